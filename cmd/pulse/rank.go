package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zulandar/pulse/internal/config"
	"github.com/zulandar/pulse/internal/ranking"
)

func rankingWeights(w config.WeightsConfig) ranking.Weights {
	return ranking.Weights{Interest: w.Interest, Community: w.Community, Updates: w.Updates}
}

func newRankCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Compute platform rankings from the latest snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			eng, err := ranking.New(cfg.DataDir, rankingWeights(cfg.Weights))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			res, err := eng.Run(out)
			if err != nil {
				return err
			}
			printRankings(cmd, res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Pulse config file")
	return cmd
}

func printRankings(cmd *cobra.Command, res *ranking.Output) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tPLATFORM\tSCORE\tDELTA")
	for i, item := range res.Items {
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%+.2f\n", i+1, item.Platform, item.Score, item.Delta7d)
	}
	w.Flush()
}
