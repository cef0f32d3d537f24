package scrape

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pfrederiksen/sydney-events/internal/event"
	"github.com/pfrederiksen/sydney-events/internal/logger"
	"github.com/pfrederiksen/sydney-events/internal/notifier"
	"github.com/pfrederiksen/sydney-events/internal/reconcile"
	"github.com/pfrederiksen/sydney-events/internal/source"
	"github.com/pfrederiksen/sydney-events/internal/store"
)

// DefaultRunTimeout bounds one full run across all sources.
const DefaultRunTimeout = 5 * time.Minute

// ErrRunInProgress is returned when a run is requested while another is
// still executing.
var ErrRunInProgress = errors.New("a scrape run is already in progress")

// Catalog is the slice of the event store the coordinator needs.
type Catalog interface {
	ListBySource(ctx context.Context, sourceName string) ([]*event.Record, error)
	ApplyPlan(ctx context.Context, plan *reconcile.Plan) error
	InsertRunLog(ctx context.Context, log *store.RunLog) error
}

// SourceResult is one source's outcome within a run.
type SourceResult struct {
	Source     string           `json:"source"`
	Found      int              `json:"events_found"`
	Counts     reconcile.Counts `json:"counts"`
	SoftErrors []string         `json:"soft_errors,omitempty"`
	Error      string           `json:"error,omitempty"`
	Duration   string           `json:"duration"`
}

// Failed reports whether the source could not be scraped at all.
func (r *SourceResult) Failed() bool { return r.Error != "" }

// Report summarizes a full scrape run.
type Report struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Sources    []*SourceResult  `json:"sources"`
	Totals     reconcile.Counts `json:"totals"`
	Failures   int              `json:"failures"`
}

// NewEventCount returns the number of first-sighting events across sources.
func (r *Report) NewEventCount() int { return r.Totals.New }

// Errors collects the failed sources' error strings.
func (r *Report) Errors() []string {
	var out []string
	for _, sr := range r.Sources {
		if sr.Failed() {
			out = append(out, fmt.Sprintf("%s: %s", sr.Source, sr.Error))
		}
	}
	return out
}

// Coordinator fans fetches out across sources and applies the results
// serially, one transaction per source.
type Coordinator struct {
	sources    []source.Source
	catalog    Catalog
	notifier   notifier.Notifier
	runTimeout time.Duration

	running atomic.Bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNotifier posts new events after each run. Notification failures are
// logged, never fatal to the run.
func WithNotifier(n notifier.Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithRunTimeout bounds the whole run. Zero keeps the default.
func WithRunTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.runTimeout = d
		}
	}
}

// New creates a Coordinator over the given sources and catalog.
func New(sources []source.Source, catalog Catalog, opts ...Option) *Coordinator {
	c := &Coordinator{
		sources:    sources,
		catalog:    catalog,
		runTimeout: DefaultRunTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Running reports whether a run is currently executing.
func (c *Coordinator) Running() bool {
	return c.running.Load()
}

type fetchResult struct {
	source string
	events []*event.Event
	soft   []source.SoftError
	err    error
	took   time.Duration
}

// Run executes one full scrape: every source is fetched concurrently, then
// each batch is reconciled and committed serially in source-name order so
// runs are deterministic. A source failure is contained to that source.
// Returns ErrRunInProgress if another run has not finished.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer c.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, c.runTimeout)
	defer cancel()

	report := &Report{StartedAt: time.Now().UTC()}
	logger.Info("scrape run started", logger.Fields{"sources": len(c.sources)})
	logger.IncrCounter("scrape.runs")

	results := c.fetchAll(ctx)

	// Apply in a fixed order so concurrent fetch scheduling never changes
	// what gets written.
	sort.Slice(results, func(i, j int) bool { return results[i].source < results[j].source })

	var newRecords []*event.Record
	for _, res := range results {
		sr, fresh := c.apply(ctx, res)
		report.Sources = append(report.Sources, sr)
		if sr.Failed() {
			report.Failures++
			continue
		}
		report.Totals.Total += sr.Counts.Total
		report.Totals.New += sr.Counts.New
		report.Totals.Updated += sr.Counts.Updated
		report.Totals.Inactive += sr.Counts.Inactive
		report.Totals.Unchanged += sr.Counts.Unchanged
		newRecords = append(newRecords, fresh...)
	}

	report.FinishedAt = time.Now().UTC()
	logger.RecordTiming("scrape.run", report.FinishedAt.Sub(report.StartedAt))
	logger.Info("scrape run finished", logger.Fields{
		"new":      report.Totals.New,
		"updated":  report.Totals.Updated,
		"inactive": report.Totals.Inactive,
		"failures": report.Failures,
	})

	if c.notifier != nil && len(newRecords) > 0 {
		if err := c.notifier.Notify(newRecords); err != nil {
			logger.Error("notifying new events", logger.Fields{"count": len(newRecords)}, err)
		}
	}

	return report, nil
}

// fetchAll runs one goroutine per source. Each source's own HTTP timeout
// applies inside Fetch; the run context bounds the whole fan-out.
func (c *Coordinator) fetchAll(ctx context.Context) []*fetchResult {
	results := make([]*fetchResult, len(c.sources))
	var wg sync.WaitGroup
	for i, src := range c.sources {
		wg.Add(1)
		go func(i int, src source.Source) {
			defer wg.Done()
			start := time.Now()
			events, soft, err := src.Fetch(ctx)
			results[i] = &fetchResult{
				source: src.Name(),
				events: events,
				soft:   soft,
				err:    err,
				took:   time.Since(start),
			}
		}(i, src)
	}
	wg.Wait()
	return results
}

// apply reconciles one source's batch against the catalog and records the
// outcome as a run log. Returns the per-source result and any first-sighting
// records for notification.
func (c *Coordinator) apply(ctx context.Context, res *fetchResult) (*SourceResult, []*event.Record) {
	started := time.Now().UTC().Add(-res.took)
	sr := &SourceResult{
		Source:   res.source,
		Duration: res.took.Round(time.Millisecond).String(),
	}
	for _, soft := range res.soft {
		sr.SoftErrors = append(sr.SoftErrors, soft.Detail)
	}
	logger.RecordTiming("scrape.source."+res.source, res.took)

	if res.err != nil {
		// Unavailable source: nothing is written to the catalog, so the
		// previous state (including inactive marking) stays untouched.
		sr.Error = res.err.Error()
		var unavailable *source.UnavailableError
		logger.Error("source fetch failed", logger.Fields{
			"source":      res.source,
			"unavailable": errors.As(res.err, &unavailable),
		}, res.err)
		logger.IncrCounter("scrape.failures")
		c.logRun(ctx, sr, started, res.err)
		return sr, nil
	}

	sr.Found = len(res.events)
	existing, err := c.catalog.ListBySource(ctx, res.source)
	if err != nil {
		sr.Error = fmt.Sprintf("loading catalog: %v", err)
		logger.Error("loading catalog", logger.Fields{"source": res.source}, err)
		c.logRun(ctx, sr, started, err)
		return sr, nil
	}

	plan := reconcile.Build(res.source, existing, res.events, time.Now().UTC())
	if err := c.catalog.ApplyPlan(ctx, plan); err != nil {
		sr.Error = fmt.Sprintf("applying changes: %v", err)
		logger.Error("applying changes", logger.Fields{"source": res.source}, err)
		c.logRun(ctx, sr, started, err)
		return sr, nil
	}
	sr.Counts = plan.Counts

	var fresh []*event.Record
	for _, rec := range plan.Upserts {
		if rec.Status == event.StatusNew {
			fresh = append(fresh, rec)
		}
	}

	logger.Info("source reconciled", logger.Fields{
		"source":   res.source,
		"found":    sr.Found,
		"new":      plan.Counts.New,
		"updated":  plan.Counts.Updated,
		"inactive": plan.Counts.Inactive,
	})
	c.logRun(ctx, sr, started, nil)
	return sr, fresh
}

func (c *Coordinator) logRun(ctx context.Context, sr *SourceResult, started time.Time, runErr error) {
	log := &store.RunLog{
		SourceName: sr.Source,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Found:      sr.Found,
		New:        sr.Counts.New,
		Updated:    sr.Counts.Updated,
		Inactive:   sr.Counts.Inactive,
		SoftErrors: len(sr.SoftErrors),
		Status:     store.RunCompleted,
	}
	if runErr != nil {
		log.Status = store.RunFailed
		log.ErrorMessage = runErr.Error()
	}
	if err := c.catalog.InsertRunLog(ctx, log); err != nil {
		logger.Error("persisting run log", logger.Fields{"source": sr.Source}, err)
	}
}
