package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cloo-solutions/witsync/internal/cli"
	"github.com/cloo-solutions/witsync/internal/cli/commands"
)

func main() {
	rootCmd := commands.NewRootCmd()

	if handled, err := cli.HelpJSON(rootCmd, os.Args[1:], os.Stdout); handled {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
