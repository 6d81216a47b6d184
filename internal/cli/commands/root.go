package commands

import (
	"github.com/cloo-solutions/witsync/internal/cli"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the witsync command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "witsync",
		Short: "Sync tracker work items into a vector store",
		Long: "witsync fetches work items and comments from Azure DevOps, normalizes and chunks their text, " +
			"and keeps a vector store in step with incremental syncs.",
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("store", "", "Vector store backend: bolt or postgres (overrides WITSYNC_STORE)")
	flags.String("bolt-path", "", "Path of the bolt store file (overrides WITSYNC_BOLT_PATH)")
	flags.String("database-url", "", "Postgres connection URL (overrides WITSYNC_DATABASE_URL)")
	flags.String("mode", "", "Reconcile mode: diff, replace or upsert (overrides WITSYNC_RECONCILE_MODE)")

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(
		FetchCmd(),
		CleanCmd(),
		UploadCmd(),
		WatermarkCmd(),
		SyncCmd(),
		ServeCmd(),
		MigrateCmd(),
	)

	return rootCmd
}
