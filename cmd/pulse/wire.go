package main

import (
	"fmt"
	"os"

	"github.com/zulandar/pulse/internal/bus"
	"github.com/zulandar/pulse/internal/bus/busdb"
	"github.com/zulandar/pulse/internal/config"
)

// defaultConfigPath is where commands look for configuration by default.
const defaultConfigPath = "pulse.yaml"

// loadConfig reads the config file, falling back to built-in defaults when
// the default path does not exist. An explicit --config path must exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if path == defaultConfigPath {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return config.Load(path)
}

// openStore builds the bus store selected by the configuration.
func openStore(cfg *config.Config) (bus.Store, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		return busdb.OpenSQLite(cfg.Store.SQLitePath)
	case "mysql":
		m := cfg.Store.MySQL
		return busdb.OpenMySQL(m.Host, m.Port, m.Database)
	default:
		return bus.Open(cfg.BusDir)
	}
}

// storeFromConfig loads configuration and opens its bus store.
func storeFromConfig(configPath string) (*config.Config, bus.Store, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// githubToken resolves the GitHub API token from the configured
// environment variable. Empty means the collector runs in sample mode.
func githubToken(cfg *config.Config) string {
	return os.Getenv(cfg.GitHub.TokenEnv)
}
