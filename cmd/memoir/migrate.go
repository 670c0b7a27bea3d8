package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/longregen/memoir/internal/adapters/postgres"
)

// migrateCmd applies the embedded PostgreSQL migrations
func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.UsesMemoryStore() {
				return fmt.Errorf("migrate requires the postgres store")
			}
			pool, err := postgres.Connect(cmd.Context(), cfg.Database.PostgresURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := postgres.Migrate(cmd.Context(), postgres.NewTransactionManager(pool))
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", v)
			}
			return nil
		},
	}
}
