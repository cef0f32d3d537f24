package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	// Empty path and missing file both yield pure defaults.
	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent.yaml")} {
		c, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q) error = %v", path, err)
		}
		if c.City != "Sydney" {
			t.Errorf("city = %q", c.City)
		}
		if c.Scrape.Interval.Std() != 6*time.Hour {
			t.Errorf("interval = %v", c.Scrape.Interval)
		}
		if c.Scrape.InitialDelay.Std() != 30*time.Second {
			t.Errorf("initial delay = %v", c.Scrape.InitialDelay)
		}
		if c.Server.Addr != ":8080" {
			t.Errorf("addr = %q", c.Server.Addr)
		}
		if c.Database.Path == "" {
			t.Error("database path empty")
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/test-events.db
city: Sydney
log_level: debug
sources:
  meetup:
    max_events: 10
    timeout: 5s
  timeout:
    disabled: true
scrape:
  interval: 1h
server:
  addr: 127.0.0.1:9000
notifier:
  enabled: true
  dry_run: true
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if c.Database.Path != "/tmp/test-events.db" {
		t.Errorf("database path = %q", c.Database.Path)
	}
	if c.LogLevel != "debug" {
		t.Errorf("log level = %q", c.LogLevel)
	}
	if c.Scrape.Interval.Std() != time.Hour {
		t.Errorf("interval = %v", c.Scrape.Interval)
	}
	// Omitted fields fall back to defaults.
	if c.Scrape.InitialDelay.Std() != 30*time.Second {
		t.Errorf("initial delay = %v", c.Scrape.InitialDelay)
	}
	if c.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("addr = %q", c.Server.Addr)
	}
	if !c.Notifier.Enabled || !c.Notifier.DryRun {
		t.Errorf("notifier = %+v", c.Notifier)
	}

	mu := c.Sources["meetup"]
	if mu.MaxEvents != 10 || mu.Timeout.Std() != 5*time.Second {
		t.Errorf("meetup source = %+v", mu)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := writeConfig(t, "city: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("malformed YAML should fail to load")
	}
}

func TestEnvOverridesDatabasePath(t *testing.T) {
	t.Setenv(EnvDatabasePath, "/tmp/override.db")

	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if c.Database.Path != "/tmp/override.db" {
		t.Errorf("database path = %q, want env override", c.Database.Path)
	}
}

func TestEnabledSources(t *testing.T) {
	c, _ := Load(writeConfig(t, `
sources:
  timeout:
    disabled: true
  meetup:
    max_events: 5
`))

	known := []string{"eventbrite", "meetup", "operahouse", "timeout"}
	enabled := c.EnabledSources(known)

	if _, ok := enabled["timeout"]; ok {
		t.Error("disabled source should be excluded")
	}
	if len(enabled) != 3 {
		t.Errorf("enabled = %d sources, want 3", len(enabled))
	}
	if enabled["meetup"].MaxEvents != 5 {
		t.Errorf("meetup settings lost: %+v", enabled["meetup"])
	}
	// Sources absent from the file still run, with defaults.
	if _, ok := enabled["eventbrite"]; !ok {
		t.Error("unlisted source should default to enabled")
	}
}
