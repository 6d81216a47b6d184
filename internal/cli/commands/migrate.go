package commands

import (
	"fmt"

	"github.com/cloo-solutions/witsync/internal/database"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
	}

	cmd.AddCommand(migrateUpCmd(), migrateDownCmd())
	return cmd
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newPostgresApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			return database.MigrateUp(a.cfg.DatabaseURL, a.logger)
		},
	}
}

func migrateDownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			a, err := newPostgresApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			return database.MigrateDown(a.cfg.DatabaseURL, steps, a.logger)
		},
	}

	cmd.Flags().Int("steps", 1, "Number of migrations to roll back")
	return cmd
}

func newPostgresApp(cmd *cobra.Command) (*app, error) {
	a, err := newApp(cmd)
	if err != nil {
		return nil, err
	}
	if a.cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("migrate requires WITSYNC_DATABASE_URL or --database-url")
	}
	return a, nil
}
