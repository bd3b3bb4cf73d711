package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/pulse/internal/orchestrator"
)

func newOrchestrateCmd() *cobra.Command {
	var (
		configPath string
		mode       string
		window     string
	)

	cmd := &cobra.Command{
		Use:   "orchestrate",
		Short: "Publish collection tasks and merge worker results",
		Long:  "In publish mode, fans collection tasks out to the worker agents. In merge mode, drains the outbox into a snapshot. Mode both does publish then merge.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode != "publish" && mode != "merge" && mode != "both" {
				return fmt.Errorf("unknown mode %q (publish, merge, both)", mode)
			}
			cfg, store, err := storeFromConfig(configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if window == "" {
				window = cfg.Window
			}
			orch, err := orchestrator.New(store, cfg.DataDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if mode == "publish" || mode == "both" {
				n, err := orch.PublishTasks(cfg.Platforms, window, cfg.News.MinCredibility, out)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Published %d tasks for %d platforms\n", n, len(cfg.Platforms))
			}
			if mode == "merge" || mode == "both" {
				snap, err := orch.Drain(out)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Merged %d results into snapshot\n", snap.Count)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Pulse config file")
	cmd.Flags().StringVar(&mode, "mode", "both", "orchestration mode (publish, merge, both)")
	cmd.Flags().StringVar(&window, "window", "", "collection window override (e.g. 7d)")
	return cmd
}
