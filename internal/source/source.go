package source

import (
	"context"
	"fmt"
	"time"

	"github.com/pfrederiksen/sydney-events/internal/event"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultMaxEvents = 30
	DefaultCity      = "Sydney"
)

// Source is the capability every extractor implements: fetch the source's
// listing page(s) and return canonical events plus any item-level parse
// failures. A nil error with an empty slice is a confirmed empty page;
// a whole-source failure is returned as *UnavailableError and means the
// caller learned nothing about the source's current listings.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]*event.Event, []SoftError, error)
}

// SoftError records one malformed listing that was skipped. It never
// aborts the batch.
type SoftError struct {
	Source string `json:"source"`
	Detail string `json:"detail"`
}

func (e SoftError) Error() string {
	return fmt.Sprintf("%s: %s", e.Source, e.Detail)
}

// UnavailableError means the source could not be fetched at all (network
// failure, timeout, non-2xx response). Persisted events for the source
// must be left untouched when this is returned.
type UnavailableError struct {
	Source string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Options carries per-source configuration. Zero values fall back to the
// source's defaults, so Options{} yields a working extractor.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	MaxEvents int // page cutoff per scrape; 0 means DefaultMaxEvents
	City      string
}

func (o *Options) normalize() {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxEvents <= 0 {
		o.MaxEvents = DefaultMaxEvents
	}
	if o.City == "" {
		o.City = DefaultCity
	}
}

// Names lists the registry keys accepted by All, Enabled, and the config
// file, in build order.
var Names = []string{"eventbrite", "meetup", "operahouse", "timeout"}

var constructors = map[string]func(Options) Source{
	"eventbrite": func(o Options) Source { return NewEventbrite(o) },
	"meetup":     func(o Options) Source { return NewMeetup(o) },
	"operahouse": func(o Options) Source { return NewOperaHouse(o) },
	"timeout":    func(o Options) Source { return NewTimeOut(o) },
}

// All constructs the full extractor set with per-source options. Unknown
// names in opts are ignored; missing entries get defaults.
func All(opts map[string]Options) []Source {
	full := make(map[string]Options, len(Names))
	for _, name := range Names {
		full[name] = opts[name]
	}
	return Enabled(full)
}

// Enabled constructs extractors for just the keys present in opts, in
// registry order. Unknown keys are ignored.
func Enabled(opts map[string]Options) []Source {
	out := make([]Source, 0, len(opts))
	for _, name := range Names {
		o, ok := opts[name]
		if !ok {
			continue
		}
		out = append(out, constructors[name](o))
	}
	return out
}

// dedupe drops repeated natural keys (JSON-LD and card parsing often see
// the same event twice) and applies the per-source cutoff.
func dedupe(events []*event.Event, max int) []*event.Event {
	seen := make(map[string]bool, len(events))
	out := make([]*event.Event, 0, len(events))
	for _, evt := range events {
		if evt.SourceURL == "" || seen[evt.SourceURL] {
			continue
		}
		seen[evt.SourceURL] = true
		out = append(out, evt)
		if len(out) >= max {
			break
		}
	}
	return out
}
