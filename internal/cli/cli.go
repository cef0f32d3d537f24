package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/sydney-events/internal/config"
	"github.com/pfrederiksen/sydney-events/internal/logger"
	"github.com/pfrederiksen/sydney-events/internal/notifier"
	"github.com/pfrederiksen/sydney-events/internal/source"
)

const (
	ExitSuccess   = 0
	ExitError     = 1
	ExitNewEvents = 2
)

var (
	flagConfig  string
	flagFormat  string
	flagVerbose bool
	flagNotify  bool
	flagDryRun  bool
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sydney-events",
		Short: "Scrape and reconcile Sydney event listings",
		Long: `Scrapes event listings from Eventbrite, Meetup, Sydney Opera House and
Time Out Sydney, reconciles them against a local catalog, and tracks each
event's lifecycle (new, updated, inactive, imported) across runs.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config file")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// loadConfig reads the config file and applies the logging flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, err
	}
	level := logger.ParseLevel(cfg.LogLevel)
	if flagVerbose {
		level = logger.LevelDebug
	}
	logger.SetDefault(logger.New(level, os.Stderr))
	return cfg, nil
}

// buildSources turns the config's per-source settings into extractors.
func buildSources(cfg config.Config) []source.Source {
	enabled := cfg.EnabledSources(source.Names)
	opts := make(map[string]source.Options, len(enabled))
	for name, sc := range enabled {
		opts[name] = source.Options{
			BaseURL:   sc.BaseURL,
			Timeout:   sc.Timeout.Std(),
			MaxEvents: sc.MaxEvents,
			City:      cfg.City,
		}
	}
	return source.Enabled(opts)
}

// buildNotifier resolves the notifier from config and flags. Returns nil
// when notifications are off.
func buildNotifier(cfg config.Config) (notifier.Notifier, error) {
	if !flagNotify && !cfg.Notifier.Enabled {
		return nil, nil
	}
	if flagDryRun || cfg.Notifier.DryRun {
		return notifier.NewDryRunNotifier(), nil
	}
	return notifier.NewTwitterNotifier()
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
