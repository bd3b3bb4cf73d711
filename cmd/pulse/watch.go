package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

func newWatchCmd() *cobra.Command {
	var (
		configPath string
		cronExpr   string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the pipeline on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cronExpr == "" {
				cronExpr = cfg.Schedule
			}
			if _, err := cronParser.Parse(cronExpr); err != nil {
				return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching on schedule %q (Ctrl+C to stop)\n", cronExpr)

			timer := time.NewTimer(nextCronDuration(cronExpr))
			defer timer.Stop()

			for {
				select {
				case <-ctx.Done():
					fmt.Fprintln(out, "Watch stopped")
					return nil
				case <-timer.C:
					if err := runOnce(cmd, configPath, cfg.Window); err != nil {
						fmt.Fprintf(out, "Run failed: %v\n", err)
					}
					if d := nextCronDuration(cronExpr); d > 0 {
						timer.Reset(d)
					}
				}
			}
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Pulse config file")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "cron schedule override (5-field)")
	return cmd
}

// runOnce opens a fresh store for a single scheduled pipeline run so a
// backend failure in one tick does not poison the next.
func runOnce(cmd *cobra.Command, configPath, window string) error {
	cfg, store, err := storeFromConfig(configPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return runPipeline(cmd, cfg, store, window, false)
}
