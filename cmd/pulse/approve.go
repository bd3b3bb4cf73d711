package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zulandar/pulse/internal/gate"
)

func newApproveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Run the manager approval gate over the inbox",
		Long:  "Scans the inbox for peer-to-peer messages awaiting manager approval and forwards them with the approval flag cleared. Already-forwarded messages are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := storeFromConfig(configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			statePath := filepath.Join(cfg.BusDir, "logs", "gate_state.json")
			g, err := gate.New(store, statePath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			res, err := g.Run(out)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Approved %d messages, %d left untouched\n", res.Forwarded, res.Kept)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Pulse config file")
	return cmd
}
