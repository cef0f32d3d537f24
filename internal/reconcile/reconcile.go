package reconcile

import (
	"time"

	"github.com/pfrederiksen/sydney-events/internal/event"
)

// Counts summarizes one source's reconciliation outcome.
type Counts struct {
	Total     int `json:"total"`
	New       int `json:"new"`
	Updated   int `json:"updated"`
	Inactive  int `json:"inactive"`
	Unchanged int `json:"unchanged"`
}

// Plan is the full set of rows to persist for one source's scrape batch.
// It is only ever produced from a successful extractor call; a failed
// fetch must not reach the planner at all, which is what keeps transient
// outages from inactivating real events.
type Plan struct {
	Source  string
	Upserts []*event.Record
	Counts  Counts
}

// Build computes status transitions for one source: existing is the
// persisted catalog restricted to that source, fetched is the extractor's
// complete batch. Rows absent from the result are rows with nothing to
// write this run.
//
// Curated import fields and FirstSeenAt pass through untouched; the
// storage layer additionally excludes them from its update set.
func Build(sourceName string, existing []*event.Record, fetched []*event.Event, now time.Time) *Plan {
	plan := &Plan{Source: sourceName}

	byKey := make(map[event.Key]*event.Record, len(existing))
	for _, rec := range existing {
		byKey[rec.Key()] = rec
	}

	seen := make(map[event.Key]bool, len(fetched))
	for _, evt := range fetched {
		key := evt.Key()
		if seen[key] {
			continue // extractor duplicates are a parsing artifact
		}
		seen[key] = true
		plan.Counts.Total++

		prev, exists := byKey[key]
		if !exists {
			plan.Upserts = append(plan.Upserts, event.NewRecord(evt, now))
			plan.Counts.New++
			continue
		}

		next := reconcileExisting(prev, evt, now)
		plan.Upserts = append(plan.Upserts, next)
		switch {
		case next.Status == event.StatusUpdated && prev.Status != event.StatusUpdated,
			next.Fingerprint != prev.Fingerprint:
			plan.Counts.Updated++
		default:
			plan.Counts.Unchanged++
		}
	}

	// Confirmed absences: present in the catalog, omitted by a successful
	// complete scrape.
	for _, rec := range existing {
		if seen[rec.Key()] {
			continue
		}
		if gone := markMissing(rec, now); gone != nil {
			plan.Upserts = append(plan.Upserts, gone)
			plan.Counts.Inactive++
		}
	}

	return plan
}

// reconcileExisting merges a re-observed event into its catalog row.
func reconcileExisting(prev *event.Record, evt *event.Event, now time.Time) *event.Record {
	next := *prev
	next.LastScrapedAt = now
	next.SourceMissing = false

	fingerprint := evt.Fingerprint()
	if fingerprint == prev.Fingerprint {
		// Content unchanged. A reappearance clears inactive; imported
		// rows keep their curated status either way.
		if prev.Status == event.StatusInactive {
			next.Status = event.StatusUpdated
		}
		if prev.IsImported {
			next.Status = event.StatusImported
		}
		return &next
	}

	// Content drifted: refresh scrape fields and the fingerprint. Curated
	// events are not re-flagged for review churn.
	next.Event = *evt
	next.Fingerprint = fingerprint
	next.Status = event.StatusUpdated
	if prev.IsImported {
		next.Status = event.StatusImported
	}
	return &next
}

// markMissing handles a confirmed absence. Returns nil when the row
// already reflects it.
func markMissing(rec *event.Record, now time.Time) *event.Record {
	if rec.IsImported {
		if rec.SourceMissing {
			return nil
		}
		next := *rec
		next.SourceMissing = true
		return &next
	}
	if rec.Status == event.StatusInactive {
		return nil
	}
	next := *rec
	next.Status = event.StatusInactive
	return &next
}
