package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zulandar/pulse/internal/dashboard"
)

func newDashboardCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the rankings dashboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := storeFromConfig(configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if port == 0 {
				port = cfg.Dashboard.Port
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return dashboard.Start(ctx, dashboard.StartOpts{
				Store:   store,
				DataDir: cfg.DataDir,
				Port:    port,
				Out:     cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Pulse config file")
	cmd.Flags().IntVar(&port, "port", 0, "listen port override")
	return cmd
}
