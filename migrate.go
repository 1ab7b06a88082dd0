package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaforge/vaforge-engine/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	rt, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	if err := database.RunMigrationsOnPool(rt.db, rt.logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
	return nil
}
