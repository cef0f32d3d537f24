package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/sydney-events/internal/logger"
	"github.com/pfrederiksen/sydney-events/internal/scrape"
	"github.com/pfrederiksen/sydney-events/internal/schedule"
	"github.com/pfrederiksen/sydney-events/internal/server"
	"github.com/pfrederiksen/sydney-events/internal/store"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with scheduled scraping",
		Long: `Starts the HTTP API and a background scheduler that scrapes all
enabled sources on an interval. Runs until interrupted.`,
		RunE: runServe,
	}

	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Print notifications instead of posting")

	return cmd
}

// scrapeControl joins the coordinator's running flag with the scheduler's
// trigger for the API.
type scrapeControl struct {
	coordinator *scrape.Coordinator
	scheduler   *schedule.Scheduler
}

func (s *scrapeControl) Running() bool { return s.coordinator.Running() }
func (s *scrapeControl) TriggerNow()   { s.scheduler.TriggerNow() }

func runServe(cmd *cobra.Command, args []string) error {
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

	scheduler := schedule.New(cfg.Scrape.Interval.Std(), cfg.Scrape.InitialDelay.Std(),
		func(ctx context.Context) {
			if _, err := coordinator.Run(ctx); err != nil {
				logger.Error("scheduled scrape", nil, err)
			}
		})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	srv := server.New(cfg.Server.Addr, st, &scrapeControl{coordinator, scheduler}, cfg.City)
	return srv.Start(ctx)
}
