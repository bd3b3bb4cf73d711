package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zulandar/pulse/internal/agent"
	"github.com/zulandar/pulse/internal/bus"
	"github.com/zulandar/pulse/internal/config"
	"github.com/zulandar/pulse/internal/gate"
	"github.com/zulandar/pulse/internal/notify"
	"github.com/zulandar/pulse/internal/orchestrator"
	"github.com/zulandar/pulse/internal/ranking"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		window     string
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline once",
		Long:  "Publishes collection tasks, runs the approval gate and both worker agents, merges the results into a snapshot, computes rankings, and sends digests to any configured notifiers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := storeFromConfig(configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if window == "" {
				window = cfg.Window
			}
			return runPipeline(cmd, cfg, store, window, quiet)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Pulse config file")
	cmd.Flags().StringVar(&window, "window", "", "collection window override (e.g. 7d)")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "skip notifier delivery")
	return cmd
}

func runPipeline(cmd *cobra.Command, cfg *config.Config, store bus.Store, window string, quiet bool) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	orch, err := orchestrator.New(store, cfg.DataDir)
	if err != nil {
		return err
	}
	tasks, err := orch.PublishTasks(cfg.Platforms, window, cfg.News.MinCredibility, out)
	if err != nil {
		return fmt.Errorf("publish tasks: %w", err)
	}
	fmt.Fprintf(out, "Published %d tasks\n", tasks)

	statePath := filepath.Join(cfg.BusDir, "logs", "gate_state.json")
	g, err := gate.New(store, statePath)
	if err != nil {
		return err
	}
	if _, err := g.Run(out); err != nil {
		return fmt.Errorf("approval gate: %w", err)
	}

	collectors := []agent.Collector{
		agent.NewNews(cfg.News),
		agent.NewGitHub(githubToken(cfg), cfg.GitHub.Orgs),
	}
	for _, c := range collectors {
		n, err := agent.Run(ctx, store, c, out)
		if err != nil {
			return fmt.Errorf("%s agent: %w", c.ID(), err)
		}
		fmt.Fprintf(out, "%s agent published %d results\n", c.ID(), n)
	}

	snap, err := orch.Drain(out)
	if err != nil {
		return fmt.Errorf("merge results: %w", err)
	}
	fmt.Fprintf(out, "Merged %d results into snapshot\n", snap.Count)

	eng, err := ranking.New(cfg.DataDir, rankingWeights(cfg.Weights))
	if err != nil {
		return err
	}
	res, err := eng.Run(out)
	if err != nil {
		return fmt.Errorf("rank: %w", err)
	}
	printRankings(cmd, res)

	if !quiet {
		sendDigest(cfg, res, out)
	}
	return nil
}

func sendDigest(cfg *config.Config, res *ranking.Output, out io.Writer) {
	notifiers := notify.FromConfig(cfg.Notify)
	if len(notifiers) == 0 {
		return
	}
	digest := notify.FormatDigest(res, cfg.Notify.Top)
	if digest == "" {
		return
	}
	notify.Broadcast(notifiers, digest)
	fmt.Fprintf(out, "Digest sent to %d notifiers\n", len(notifiers))
}
