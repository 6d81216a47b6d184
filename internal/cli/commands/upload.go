package commands

import (
	"fmt"

	"github.com/cloo-solutions/witsync/internal/checkpoint"
	"github.com/cloo-solutions/witsync/internal/service"
	"github.com/spf13/cobra"
)

// UploadCmd returns the upload command
func UploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload RECORDS",
		Short: "Reconcile a records file into the vector store",
		Args:  cobra.ExactArgs(1),
		RunE:  runUpload,
	}

	cmd.Flags().Bool("embed", false, "Compute embeddings with OpenAI before storing")
	cmd.Flags().Bool("migrate", false, "Apply pending postgres migrations first")

	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	records, err := checkpoint.ReadRecords(args[0])
	if err != nil {
		return err
	}

	migrate, _ := cmd.Flags().GetBool("migrate")
	if err := a.openStore(ctx, migrate); err != nil {
		return err
	}

	embed, _ := cmd.Flags().GetBool("embed")
	reconciler, err := a.reconciler(embed)
	if err != nil {
		return err
	}

	stats, err := reconciler.Reconcile(ctx, service.GroupByWorkItem(records))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d records for %d work items (%d stale removed, mode %s)\n",
		stats.Upserted, stats.WorkItems, stats.Deleted, reconciler.Mode())
	if stats.Degraded > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%d work items fell back to upsert-only\n", stats.Degraded)
	}
	return nil
}
