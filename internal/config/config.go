// Package config provides YAML-based configuration loading for Pulse.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Pulse configuration, loaded from pulse.yaml.
type Config struct {
	BusDir    string          `yaml:"bus_dir"`
	DataDir   string          `yaml:"data_dir"`
	Window    string          `yaml:"window"`
	Platforms []string        `yaml:"platforms"`
	Weights   WeightsConfig   `yaml:"weights"`
	Store     StoreConfig     `yaml:"store"`
	News      NewsConfig      `yaml:"news"`
	GitHub    GitHubConfig    `yaml:"github"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Notify    NotifyConfig    `yaml:"notify"`
	Schedule  string          `yaml:"schedule"`
}

// WeightsConfig holds the composite score weights. They must sum to 1.
type WeightsConfig struct {
	Interest  float64 `yaml:"interest"`
	Community float64 `yaml:"community"`
	Updates   float64 `yaml:"updates"`
}

// StoreConfig selects the bus storage backend.
type StoreConfig struct {
	Backend    string      `yaml:"backend"` // "fs" (default), "sqlite", "mysql"
	SQLitePath string      `yaml:"sqlite_path"`
	MySQL      MySQLConfig `yaml:"mysql"`
}

// MySQLConfig holds connection settings for a MySQL-compatible server.
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// NewsConfig configures the news collector.
type NewsConfig struct {
	Feeds          []string `yaml:"feeds"`
	MinCredibility float64  `yaml:"min_credibility"`
	HackerNews     bool     `yaml:"hacker_news"`
	Arxiv          bool     `yaml:"arxiv"`
}

// GitHubConfig configures the repository collector. Orgs maps a platform
// name to its GitHub organization.
type GitHubConfig struct {
	TokenEnv string            `yaml:"token_env"`
	Orgs     map[string]string `yaml:"orgs"`
}

// DashboardConfig holds the web dashboard settings.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// NotifyConfig configures post-run digest delivery.
type NotifyConfig struct {
	Top     int           `yaml:"top"`
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack digest delivery settings.
type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// DiscordConfig holds Discord digest delivery settings.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// defaultPlatforms is used when the config lists none.
var defaultPlatforms = []string{
	"OpenAI", "Anthropic", "Google", "Meta", "Mistral", "xAI", "Perplexity", "Cohere",
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.BusDir == "" {
		c.BusDir = "agents_bus"
	}
	if c.DataDir == "" {
		c.DataDir = "public/data"
	}
	if c.Window == "" {
		c.Window = "7d"
	}
	if len(c.Platforms) == 0 {
		c.Platforms = append(c.Platforms, defaultPlatforms...)
	}
	if c.Weights == (WeightsConfig{}) {
		c.Weights = WeightsConfig{Interest: 0.40, Community: 0.35, Updates: 0.25}
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "fs"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "pulse_bus.db"
	}
	if c.Store.MySQL.Host == "" {
		c.Store.MySQL.Host = "127.0.0.1"
	}
	if c.Store.MySQL.Port == 0 {
		c.Store.MySQL.Port = 3306
	}
	if c.Store.MySQL.Database == "" {
		c.Store.MySQL.Database = "pulse_bus"
	}
	if c.News.MinCredibility == 0 {
		c.News.MinCredibility = 0.6
	}
	if c.GitHub.TokenEnv == "" {
		c.GitHub.TokenEnv = "GITHUB_TOKEN"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	if c.Notify.Top == 0 {
		c.Notify.Top = 5
	}
	if c.Schedule == "" {
		c.Schedule = "0 7 * * *"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Store.Backend {
	case "fs", "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("store.backend %q is not one of fs, sqlite, mysql", c.Store.Backend))
	}
	sum := c.Weights.Interest + c.Weights.Community + c.Weights.Updates
	if math.Abs(sum-1.0) > 1e-9 {
		errs = append(errs, fmt.Sprintf("weights must sum to 1.0, got %.2f", sum))
	}
	if c.Weights.Interest < 0 || c.Weights.Community < 0 || c.Weights.Updates < 0 {
		errs = append(errs, "weights must be non-negative")
	}
	for i, p := range c.Platforms {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Sprintf("platforms[%d] is empty", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
