package main

import (
	"github.com/spf13/cobra"

	"sns/internal/platform/config"
	"sns/internal/registry/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		db, err := openDB(cmd.Context(), cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := store.Migrate(db); err != nil {
			return err
		}
		cmd.Println("migrations applied")
		return nil
	},
}
