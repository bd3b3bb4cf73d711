package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zulandar/pulse/internal/config"
	"github.com/zulandar/pulse/internal/orchestrator"
	"github.com/zulandar/pulse/internal/ranking"
)

func newDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system prerequisites and configuration",
		Long:  "Runs diagnostic checks on Pulse prerequisites: config, bus storage, data directory, pipeline artifacts, GitHub token, and notifier settings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Pulse config file")
	return cmd
}

type checkResult struct {
	name   string
	status string // "PASS", "FAIL", "WARN"
	detail string
}

func runDoctor(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Pulse Doctor")
	fmt.Fprintln(out, "============")

	var results []checkResult

	// 1. Config
	cfg, cfgResult := checkDoctorConfig(configPath)
	results = append(results, cfgResult)

	if cfg != nil {
		// 2. Bus storage
		results = append(results, checkBusStore(cfg))

		// 3. Data directory
		results = append(results, checkDataDir(cfg.DataDir))

		// 4. Pipeline artifacts
		results = append(results, checkArtifact("Snapshot", filepath.Join(cfg.DataDir, orchestrator.SnapshotFile), "run orchestrate first"))
		results = append(results, checkArtifact("Rankings", filepath.Join(cfg.DataDir, ranking.OutputFile), "run rank first"))

		// 5. GitHub token
		results = append(results, checkGitHubToken(cfg))

		// 6. Notifiers
		results = append(results, checkNotifiers(cfg))
	} else {
		results = append(results, checkResult{"Bus storage", "FAIL", "skipped (no config)"})
	}

	passed, failed, warned := 0, 0, 0
	for _, r := range results {
		printCheckResult(out, r)
		switch r.status {
		case "PASS":
			passed++
		case "FAIL":
			failed++
		case "WARN":
			warned++
		}
	}

	fmt.Fprintf(out, "\n%d passed, %d failed, %d warning\n", passed, failed, warned)

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func printCheckResult(out io.Writer, r checkResult) {
	fmt.Fprintf(out, "[%s] %s: %s\n", r.status, r.name, r.detail)
}

func checkDoctorConfig(path string) (*config.Config, checkResult) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if path == defaultConfigPath {
			return config.Default(), checkResult{"Config file", "WARN", fmt.Sprintf("%s not found, using defaults", path)}
		}
		return nil, checkResult{"Config file", "FAIL", fmt.Sprintf("%s not found", path)}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, checkResult{"Config file", "FAIL", fmt.Sprintf("%s: %v", path, err)}
	}
	return cfg, checkResult{"Config file", "PASS", path}
}

func checkBusStore(cfg *config.Config) checkResult {
	label := fmt.Sprintf("Bus storage (%s)", cfg.Store.Backend)
	store, err := openStore(cfg)
	if err != nil {
		return checkResult{label, "FAIL", err.Error()}
	}
	defer store.Close()

	st, err := store.Stats()
	if err != nil {
		return checkResult{label, "FAIL", fmt.Sprintf("stats: %v", err)}
	}
	return checkResult{label, "PASS", fmt.Sprintf("%d inbox, %d outbox, %d reviews pending", st.Inbox, st.Outbox, st.Reviews)}
}

func checkDataDir(dir string) checkResult {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return checkResult{"Data directory", "FAIL", fmt.Sprintf("%s: %v", dir, err)}
	}
	probe := filepath.Join(dir, ".doctor_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return checkResult{"Data directory", "FAIL", fmt.Sprintf("%s not writable: %v", dir, err)}
	}
	os.Remove(probe)
	return checkResult{"Data directory", "PASS", dir}
}

func checkArtifact(name, path, hint string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{name, "WARN", fmt.Sprintf("%s missing (%s)", path, hint)}
	}
	return checkResult{name, "PASS", fmt.Sprintf("%s (%d bytes)", path, info.Size())}
}

func checkGitHubToken(cfg *config.Config) checkResult {
	if githubToken(cfg) == "" {
		return checkResult{"GitHub token", "WARN", fmt.Sprintf("%s not set (github agent runs in sample mode)", cfg.GitHub.TokenEnv)}
	}
	return checkResult{"GitHub token", "PASS", fmt.Sprintf("%s set", cfg.GitHub.TokenEnv)}
}

func checkNotifiers(cfg *config.Config) checkResult {
	n := 0
	if cfg.Notify.Slack.Token != "" && cfg.Notify.Slack.Channel != "" {
		n++
	}
	if cfg.Notify.Discord.Token != "" && cfg.Notify.Discord.ChannelID != "" {
		n++
	}
	if n == 0 {
		return checkResult{"Notifiers", "WARN", "none configured (digests stay local)"}
	}
	return checkResult{"Notifiers", "PASS", fmt.Sprintf("%d configured", n)}
}
