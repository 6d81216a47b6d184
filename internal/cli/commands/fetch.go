package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cloo-solutions/witsync/internal/checkpoint"
	"github.com/cloo-solutions/witsync/internal/domain"
	"github.com/cloo-solutions/witsync/internal/service"
	"github.com/spf13/cobra"
)

// FetchCmd returns the fetch command
func FetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Export changed work items with comments to a JSON file",
		Long: "Query Azure DevOps for work items changed since --since (or $FILTERED_DATE, or the store " +
			"watermark window) and write them, comments included, to a raw export file.",
		Args: cobra.NoArgs,
		RunE: runFetch,
	}

	cmd.Flags().String("since", "", "Lower bound for System.ChangedDate (ISO-8601)")
	cmd.Flags().StringP("output", "o", "", "Output file (default workitems_export_<timestamp>.json)")
	cmd.Flags().Bool("commit-details", false, "Also fetch the git commit behind each commit link")

	return cmd
}

type commitDetailer interface {
	FetchCommitDetails(ctx context.Context, item *domain.RawWorkItem) error
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	client, err := a.source("")
	if err != nil {
		return err
	}

	since, err := a.fetchSince(cmd)
	if err != nil {
		return err
	}

	items, err := client.FetchChangedSince(ctx, since)
	if err != nil {
		return err
	}

	commitDetails, _ := cmd.Flags().GetBool("commit-details")

	for i := range items {
		comments, err := client.FetchComments(ctx, items[i].ID)
		if err != nil {
			return fmt.Errorf("failed to fetch comments for work item %d: %w", items[i].ID, err)
		}
		items[i].Comments = comments
		if d, ok := client.(commitDetailer); ok && commitDetails {
			if err := d.FetchCommitDetails(ctx, &items[i]); err != nil {
				return err
			}
		}
		a.logger.Debug("fetched work item", "work_item_id", items[i].ID, "comments", len(comments))
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = fmt.Sprintf("workitems_export_%s.json", time.Now().Format("20060102_150405"))
	}

	if err := checkpoint.WriteItems(output, items); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d work items to %s\n", len(items), output)
	return nil
}

// fetchSince resolves the fetch lower bound: --since, then $FILTERED_DATE,
// then the watermark window of the configured store.
func (a *app) fetchSince(cmd *cobra.Command) (time.Time, error) {
	raw, _ := cmd.Flags().GetString("since")
	if raw == "" {
		raw = os.Getenv("FILTERED_DATE")
	}
	if raw != "" {
		since, ok := domain.ParseTimestamp(raw)
		if !ok {
			return time.Time{}, domain.ErrInvalidTimestamp.Wrap(fmt.Errorf("since %q", raw))
		}
		return since, nil
	}

	if err := a.openStore(cmd.Context(), false); err != nil {
		return time.Time{}, err
	}
	watermark, err := service.NewWatermarkTracker(a.store).LatestKnownTimestamp(cmd.Context())
	if err != nil {
		return time.Time{}, err
	}
	return service.WindowStart(watermark, a.cfg.SyncLookback, a.cfg.InitialSinceTime()), nil
}
