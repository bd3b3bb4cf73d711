package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/pulse/internal/agent"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run a worker agent against its task queue",
	}

	cmd.AddCommand(newAgentNewsCmd())
	cmd.AddCommand(newAgentGitHubCmd())
	return cmd
}

func newAgentNewsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "news",
		Short: "Collect news coverage for pending tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := storeFromConfig(configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			c := agent.NewNews(cfg.News)
			n, err := agent.Run(cmd.Context(), store, c, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "news agent published %d results\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Pulse config file")
	return cmd
}

func newAgentGitHubCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "github",
		Short: "Collect repository activity for pending tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := storeFromConfig(configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			c := agent.NewGitHub(githubToken(cfg), cfg.GitHub.Orgs)
			n, err := agent.Run(cmd.Context(), store, c, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "github agent published %d results\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Pulse config file")
	return cmd
}
