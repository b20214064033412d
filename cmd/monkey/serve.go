package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/scheduler"
	srv "github.com/FRAMEEE17/MonkeyResearcher/internal/server"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/store"
)

func serveCMD() *cobra.Command {
	var serveAddr string
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the research HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			graph, err := buildGraph(cfg)
			if err != nil {
				return err
			}

			ctx := context.Background()
			archive, err := store.Open(ctx, cfg.Storage.Postgres)
			if err != nil {
				return fmt.Errorf("run archive: %w", err)
			}
			if archive != nil {
				if err := store.Migrate("file://migrations", cfg.Storage.Postgres.DSN()); err != nil {
					return err
				}
				defer archive.Close()
			}

			if len(cfg.Schedules) > 0 {
				sched := scheduler.New(cfg.Schedules, graph, archive)
				go sched.Start(ctx)
			}

			return srv.New(cfg, graph, archive).Run(serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}
