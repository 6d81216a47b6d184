package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// SyncCmd returns the sync command
func SyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one incremental sync",
		Long: "Compute the store watermark, fetch work items changed inside the lookback window, rebuild " +
			"their chunks and reconcile them into the vector store.",
		Args: cobra.NoArgs,
		RunE: runSync,
	}

	cmd.Flags().String("input", "", "Replay a raw export file instead of querying Azure DevOps")
	cmd.Flags().Bool("embed", false, "Compute embeddings with OpenAI before storing")
	cmd.Flags().Bool("migrate", false, "Apply pending postgres migrations first")
	cmd.Flags().Bool("json", false, "Print the sync run as JSON")

	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	a.initTelemetry()

	input, _ := cmd.Flags().GetString("input")
	source, err := a.source(input)
	if err != nil {
		return err
	}

	migrate, _ := cmd.Flags().GetBool("migrate")
	if err := a.openStore(ctx, migrate); err != nil {
		return err
	}

	embed, _ := cmd.Flags().GetBool("embed")
	svc, err := a.syncService(ctx, source, embed)
	if err != nil {
		return err
	}

	run, runErr := svc.Run(ctx)
	if run == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Sync %s %s: %d fetched, %d synced, %d failed, %d chunks written, %d removed\n",
			run.ID, run.Status, run.ItemsFetched, run.ItemsSynced, run.ItemsFailed, run.ChunksWritten, run.ChunksDeleted)
	}
	return runErr
}
