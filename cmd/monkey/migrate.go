package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/store"
)

func migrateCMD() *cobra.Command {
	var migDir string
	var cfgPath string
	var migrate = &cobra.Command{
		Use:   "migrate",
		Short: "Apply run archive database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			dsn := cfg.Storage.Postgres.DSN()
			if dsn == "" {
				return fmt.Errorf("postgres not configured (storage.postgres.url or host/dbname)")
			}
			return store.Migrate(migDir, dsn)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source")
	migrate.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return migrate
}
