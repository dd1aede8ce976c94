package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amoshaviv/flow-tester-sub001/internal/repository"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := repository.Migrate(a.db); err != nil {
				return err
			}
			a.logger.Info("schema migrated", "database", a.cfg.Database.Type, "dsn", a.cfg.Database.DSN)
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}
