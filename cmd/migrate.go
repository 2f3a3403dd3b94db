package cmd

import (
	"github.com/spf13/cobra"

	"github.com/openveris/declaration-crawler/internal/config"
	"github.com/openveris/declaration-crawler/internal/storage/postgres"
)

// newMigrateCmd creates the 'migrate' subcommand for applying schema
// migrations without starting a crawl.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Applies pending database migrations and exits",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			return postgres.RunMigrations(cfg.DB.DSN, cfg.DB.MigrationsPath)
		},
	}
}
