package commands

import (
	"fmt"

	"github.com/cloo-solutions/witsync/internal/checkpoint"
	"github.com/spf13/cobra"
)

// CleanCmd returns the clean command
func CleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean INPUT",
		Short: "Normalize and chunk a raw export into a records file",
		Long: "Read a raw work item export, normalize and chunk it, and write the chunk records to " +
			"<input>_cleaned.json. Work items that fail are reported and left out.",
		Args: cobra.ExactArgs(1),
		RunE: runClean,
	}

	cmd.Flags().StringP("output", "o", "", "Output file (default <input>_cleaned.json)")

	return cmd
}

func runClean(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	input := args[0]
	items, err := checkpoint.ReadItems(input)
	if err != nil {
		return err
	}

	builder, err := a.recordBuilder()
	if err != nil {
		return err
	}

	records, failures := builder.BuildAll(items)

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = checkpoint.CleanedPath(input)
	}
	if err := checkpoint.WriteRecords(output, records); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %d records from %d work items to %s\n", len(records), len(items)-len(failures), output)

	for _, f := range failures {
		a.logger.Error("work item skipped", "work_item_id", f.WorkItemID, "error", f.Err)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d work items failed", len(failures), len(items))
	}
	return nil
}
