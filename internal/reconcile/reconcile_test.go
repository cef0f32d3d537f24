package reconcile

import (
	"testing"
	"time"

	"github.com/pfrederiksen/sydney-events/internal/event"
)

const srcName = "Test Source"

func fetchedEvent(url, title string) *event.Event {
	return &event.Event{
		SourceName: srcName,
		SourceURL:  url,
		Title:      title,
		City:       "Sydney",
	}
}

func run(t *testing.T, existing []*event.Record, fetched []*event.Event, now time.Time) *Plan {
	t.Helper()
	return Build(srcName, existing, fetched, now)
}

// apply simulates the repository commit: plans feed the next run's
// "existing" set keyed by natural key.
func apply(existing []*event.Record, plan *Plan) []*event.Record {
	byKey := make(map[event.Key]*event.Record)
	for _, rec := range existing {
		byKey[rec.Key()] = rec
	}
	for _, rec := range plan.Upserts {
		byKey[rec.Key()] = rec
	}
	out := make([]*event.Record, 0, len(byKey))
	for _, rec := range byKey {
		out = append(out, rec)
	}
	return out
}

func findRecord(t *testing.T, recs []*event.Record, url string) *event.Record {
	t.Helper()
	for _, rec := range recs {
		if rec.SourceURL == url {
			return rec
		}
	}
	t.Fatalf("no record for %s", url)
	return nil
}

// TestEventLifecycle walks the full new → updated → inactive → reappeared
// sequence across four runs against one source.
func TestEventLifecycle(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var catalog []*event.Record

	// Run 1: first sighting.
	plan := run(t, catalog, []*event.Event{fetchedEvent("/a", "Jazz Night")}, now)
	if plan.Counts.New != 1 || plan.Counts.Updated != 0 || plan.Counts.Inactive != 0 {
		t.Fatalf("run 1 counts = %+v", plan.Counts)
	}
	catalog = apply(catalog, plan)
	rec := findRecord(t, catalog, "/a")
	if rec.Status != event.StatusNew {
		t.Fatalf("run 1 status = %s, want new", rec.Status)
	}
	firstSeen := rec.FirstSeenAt

	// Run 2: title changed.
	now = now.Add(6 * time.Hour)
	plan = run(t, catalog, []*event.Event{fetchedEvent("/a", "Jazz Night - SOLD OUT")}, now)
	if plan.Counts.Updated != 1 || plan.Counts.New != 0 {
		t.Fatalf("run 2 counts = %+v", plan.Counts)
	}
	catalog = apply(catalog, plan)
	rec = findRecord(t, catalog, "/a")
	if rec.Status != event.StatusUpdated {
		t.Fatalf("run 2 status = %s, want updated", rec.Status)
	}
	if rec.Title != "Jazz Night - SOLD OUT" {
		t.Errorf("run 2 title not refreshed: %q", rec.Title)
	}
	if !rec.FirstSeenAt.Equal(firstSeen) {
		t.Error("first_seen_at must never change")
	}
	changedFingerprint := rec.Fingerprint

	// Run 3: successful scrape omits the event.
	now = now.Add(6 * time.Hour)
	plan = run(t, catalog, nil, now)
	if plan.Counts.Inactive != 1 {
		t.Fatalf("run 3 counts = %+v", plan.Counts)
	}
	catalog = apply(catalog, plan)
	rec = findRecord(t, catalog, "/a")
	if rec.Status != event.StatusInactive {
		t.Fatalf("run 3 status = %s, want inactive", rec.Status)
	}

	// Run 4: the event reappears with unchanged content.
	now = now.Add(6 * time.Hour)
	plan = run(t, catalog, []*event.Event{fetchedEvent("/a", "Jazz Night - SOLD OUT")}, now)
	catalog = apply(catalog, plan)
	rec = findRecord(t, catalog, "/a")
	if rec.Status != event.StatusUpdated {
		t.Fatalf("run 4 status = %s, want updated (reappearance)", rec.Status)
	}
	if rec.Fingerprint != changedFingerprint {
		t.Error("run 4 fingerprint should be unchanged")
	}
	if !rec.FirstSeenAt.Equal(firstSeen) {
		t.Error("first_seen_at must survive the full lifecycle")
	}
}

func TestIdempotentRerun(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	fetched := []*event.Event{
		fetchedEvent("/a", "Jazz Night"),
		fetchedEvent("/b", "Poetry Slam"),
	}

	catalog := apply(nil, run(t, nil, fetched, now))
	catalog = apply(catalog, run(t, catalog, fetched, now.Add(time.Hour)))

	// Second run with the identical batch: no status churn.
	plan := run(t, catalog, fetched, now.Add(2*time.Hour))
	if plan.Counts.New != 0 || plan.Counts.Updated != 0 || plan.Counts.Inactive != 0 {
		t.Errorf("rerun caused churn: %+v", plan.Counts)
	}
	if plan.Counts.Unchanged != 2 {
		t.Errorf("unchanged = %d, want 2", plan.Counts.Unchanged)
	}
	for _, rec := range plan.Upserts {
		prev := findRecord(t, catalog, rec.SourceURL)
		if rec.Status != prev.Status || rec.Fingerprint != prev.Fingerprint {
			t.Errorf("%s: status/fingerprint changed on identical rerun", rec.SourceURL)
		}
	}
}

func TestIdentityStability(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var catalog []*event.Record
	for i := 0; i < 5; i++ {
		plan := run(t, catalog, []*event.Event{fetchedEvent("/a", "Jazz Night")}, now.Add(time.Duration(i)*time.Hour))
		catalog = apply(catalog, plan)
	}
	if len(catalog) != 1 {
		t.Errorf("repeated scrapes of one key produced %d records, want 1", len(catalog))
	}
}

func TestDuplicateKeysInBatch(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	plan := run(t, nil, []*event.Event{
		fetchedEvent("/a", "Jazz Night"),
		fetchedEvent("/a", "Jazz Night"),
	}, now)
	if len(plan.Upserts) != 1 || plan.Counts.Total != 1 {
		t.Errorf("duplicate keys in one batch must collapse: %d upserts, total %d",
			len(plan.Upserts), plan.Counts.Total)
	}
}

func TestImportedEventProtection(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	importedAt := now.Add(-24 * time.Hour)

	imported := event.NewRecord(fetchedEvent("/a", "Jazz Night"), now.Add(-48*time.Hour))
	imported.Status = event.StatusImported
	imported.IsImported = true
	imported.ImportedAt = importedAt
	imported.ImportedBy = "curator@example.com"
	imported.ImportNotes = "headline act"
	catalog := []*event.Record{imported}

	// Content drift refreshes fields but not the curated status.
	plan := run(t, catalog, []*event.Event{fetchedEvent("/a", "Jazz Night - NEW DATE")}, now)
	catalog = apply(catalog, plan)
	rec := findRecord(t, catalog, "/a")
	if rec.Status != event.StatusImported {
		t.Fatalf("status = %s, imported events must not be re-flagged", rec.Status)
	}
	if rec.Title != "Jazz Night - NEW DATE" {
		t.Error("scrape fields should still refresh on imported events")
	}
	if !rec.IsImported || !rec.ImportedAt.Equal(importedAt) ||
		rec.ImportedBy != "curator@example.com" || rec.ImportNotes != "headline act" {
		t.Error("curated fields must pass through reconciliation untouched")
	}

	// Absence sets the internal indicator, never the inactive status.
	plan = run(t, catalog, nil, now.Add(6*time.Hour))
	if plan.Counts.Inactive != 1 {
		t.Fatalf("absence counts = %+v", plan.Counts)
	}
	catalog = apply(catalog, plan)
	rec = findRecord(t, catalog, "/a")
	if rec.Status != event.StatusImported {
		t.Errorf("status = %s, want imported", rec.Status)
	}
	if !rec.SourceMissing {
		t.Error("expected SourceMissing after a confirmed absence")
	}

	// Second absent run writes nothing for the row.
	plan = run(t, catalog, nil, now.Add(12*time.Hour))
	if len(plan.Upserts) != 0 {
		t.Errorf("repeat absence should be a no-op, got %d upserts", len(plan.Upserts))
	}

	// Reappearance clears the indicator, keeps the curated state.
	plan = run(t, catalog, []*event.Event{fetchedEvent("/a", "Jazz Night - NEW DATE")}, now.Add(18*time.Hour))
	catalog = apply(catalog, plan)
	rec = findRecord(t, catalog, "/a")
	if rec.SourceMissing {
		t.Error("reappearance must clear SourceMissing")
	}
	if rec.Status != event.StatusImported || !rec.IsImported {
		t.Error("reappearance must preserve curated state")
	}
}

func TestAlreadyInactiveStaysQuiet(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	rec := event.NewRecord(fetchedEvent("/a", "Jazz Night"), now)
	rec.Status = event.StatusInactive

	plan := run(t, []*event.Record{rec}, nil, now.Add(time.Hour))
	if len(plan.Upserts) != 0 || plan.Counts.Inactive != 0 {
		t.Errorf("already-inactive rows must not be rewritten: %+v", plan.Counts)
	}
}
