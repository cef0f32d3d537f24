// Package config loads the service configuration from a YAML file, with
// sane defaults for every field so an empty or missing file still yields a
// runnable setup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvDatabasePath overrides the configured database path when set.
const EnvDatabasePath = "SYDNEY_EVENTS_DB"

// Duration wraps time.Duration so YAML values like "6h" or "30s" parse.
// yaml.v3 has no native duration support.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite file, e.g. ./data/events.db
}

type SourceConfig struct {
	BaseURL   string   `yaml:"base_url"`   // override the source's listing URL
	Timeout   Duration `yaml:"timeout"`    // per-request timeout
	MaxEvents int      `yaml:"max_events"` // cutoff per scrape, default 30
	Disabled  bool     `yaml:"disabled"`
}

type ScrapeConfig struct {
	Interval     Duration `yaml:"interval"`      // default 6h
	InitialDelay Duration `yaml:"initial_delay"` // default 30s
	RunTimeout   Duration `yaml:"run_timeout"`   // bound on one full run
}

type ServerConfig struct {
	Addr string `yaml:"addr"` // listen address, default :8080
}

type NotifierConfig struct {
	Enabled bool `yaml:"enabled"` // post new events to Twitter
	DryRun  bool `yaml:"dry_run"` // print instead of posting
}

type Config struct {
	Database DatabaseConfig          `yaml:"database"`
	City     string                  `yaml:"city"` // filter term stamped on events
	LogLevel string                  `yaml:"log_level"`
	Sources  map[string]SourceConfig `yaml:"sources"` // keyed eventbrite, meetup, operahouse, timeout
	Scrape   ScrapeConfig            `yaml:"scrape"`
	Server   ServerConfig            `yaml:"server"`
	Notifier NotifierConfig          `yaml:"notifier"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: "./data/events.db"},
		City:     "Sydney",
		LogLevel: "info",
		Scrape: ScrapeConfig{
			Interval:     Duration(6 * time.Hour),
			InitialDelay: Duration(30 * time.Second),
			RunTimeout:   Duration(5 * time.Minute),
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads the config at path, layering it over the defaults. An empty
// path or a missing file yields the defaults. The SYDNEY_EVENTS_DB
// environment variable takes precedence over the configured database path.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		} else if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if db := os.Getenv(EnvDatabasePath); db != "" {
		c.Database.Path = db
	}
	c.applyDefaults()
	return c, nil
}

// applyDefaults fills any field the file zeroed or omitted.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Database.Path == "" {
		c.Database.Path = def.Database.Path
	}
	if c.City == "" {
		c.City = def.City
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Scrape.Interval <= 0 {
		c.Scrape.Interval = def.Scrape.Interval
	}
	if c.Scrape.InitialDelay <= 0 {
		c.Scrape.InitialDelay = def.Scrape.InitialDelay
	}
	if c.Scrape.RunTimeout <= 0 {
		c.Scrape.RunTimeout = def.Scrape.RunTimeout
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
}

// EnabledSources returns the per-source settings for sources that are not
// disabled, keyed by registry name. Sources absent from the file run with
// defaults.
func (c *Config) EnabledSources(known []string) map[string]SourceConfig {
	out := make(map[string]SourceConfig, len(known))
	for _, name := range known {
		sc, ok := c.Sources[name]
		if ok && sc.Disabled {
			continue
		}
		out[name] = sc
	}
	return out
}
