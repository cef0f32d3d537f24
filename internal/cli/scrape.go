package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/sydney-events/internal/scrape"
	"github.com/pfrederiksen/sydney-events/internal/store"
)

func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape across all enabled sources",
		Long: `Fetches every enabled source once, reconciles the results against the
catalog, and prints a per-source report. Exits with code 2 when new
events were discovered, so cron jobs can branch on it.`,
		RunE: runScrape,
	}

	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&flagNotify, "notify", false, "Post new events to Twitter")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Print notifications instead of posting")

	return cmd
}

func runScrape(cmd *cobra.Command, args []string) error {
	format := OutputFormat(strings.ToLower(flagFormat))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer st.Close() //nolint:errcheck

	n, err := buildNotifier(cfg)
	if err != nil {
		return fmt.Errorf("configuring notifier: %w", err)
	}

	opts := []scrape.Option{scrape.WithRunTimeout(cfg.Scrape.RunTimeout.Std())}
	if n != nil {
		opts = append(opts, scrape.WithNotifier(n))
	}
	coordinator := scrape.New(buildSources(cfg), st, opts...)

	report, err := coordinator.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("running scrape: %w", err)
	}

	if err := WriteReport(os.Stdout, report, format, flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if report.NewEventCount() > 0 {
		os.Exit(ExitNewEvents)
	}
	return nil
}
