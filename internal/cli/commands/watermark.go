package commands

import (
	"fmt"

	"github.com/cloo-solutions/witsync/internal/domain"
	"github.com/cloo-solutions/witsync/internal/service"
	"github.com/spf13/cobra"
)

// WatermarkCmd returns the watermark command
func WatermarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watermark",
		Short: "Print the latest timestamp stored in the vector store",
		Long: "Print the latest known timestamp as ISO-8601, followed by FILTERED_DATE=<fetch window start>.\n" +
			"An empty store reports 1970-01-01T00:00:00Z.",
		Args: cobra.NoArgs,
		RunE: runWatermark,
	}

	cmd.Flags().Duration("lookback", -1, "Override the lookback subtracted for FILTERED_DATE (default WITSYNC_SYNC_LOOKBACK)")

	return cmd
}

func runWatermark(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.openStore(ctx, false); err != nil {
		return err
	}

	watermark, err := service.NewWatermarkTracker(a.store).LatestKnownTimestamp(ctx)
	if err != nil {
		return err
	}

	lookback := a.cfg.SyncLookback
	if override, _ := cmd.Flags().GetDuration("lookback"); override >= 0 {
		lookback = override
	}

	since := service.WindowStart(watermark, lookback, a.cfg.InitialSinceTime())

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, domain.FormatISO(watermark))
	fmt.Fprintf(out, "FILTERED_DATE=%s\n", domain.FormatISO(since))
	return nil
}

