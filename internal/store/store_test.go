package store

import (
	"context"
	"testing"
	"time"

	"github.com/pfrederiksen/sydney-events/internal/event"
	"github.com/pfrederiksen/sydney-events/internal/reconcile"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEvent(url, title string) *event.Event {
	return &event.Event{
		SourceName: "Eventbrite",
		SourceURL:  url,
		Title:      title,
		City:       "Sydney",
		DateString: "12 Sep 2026",
	}
}

func applyBatch(t *testing.T, s *Store, source string, fetched []*event.Event, now time.Time) *reconcile.Plan {
	t.Helper()
	existing, err := s.ListBySource(context.Background(), source)
	if err != nil {
		t.Fatalf("listing %s: %v", source, err)
	}
	plan := reconcile.Build(source, existing, fetched, now)
	if err := s.ApplyPlan(context.Background(), plan); err != nil {
		t.Fatalf("applying plan: %v", err)
	}
	return plan
}

func TestUpsertByNaturalKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	applyBatch(t, s, "Eventbrite", []*event.Event{testEvent("/a", "Jazz Night")}, now)
	applyBatch(t, s, "Eventbrite", []*event.Event{testEvent("/a", "Jazz Night - SOLD OUT")}, now.Add(time.Hour))

	recs, err := s.ListBySource(ctx, "Eventbrite")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected one row per natural key, got %d", len(recs))
	}
	if recs[0].Title != "Jazz Night - SOLD OUT" {
		t.Errorf("title = %q", recs[0].Title)
	}
	if recs[0].Status != event.StatusUpdated {
		t.Errorf("status = %s", recs[0].Status)
	}
	if !recs[0].FirstSeenAt.Equal(now) {
		t.Errorf("first_seen_at changed: %v", recs[0].FirstSeenAt)
	}
	if !recs[0].LastScrapedAt.Equal(now.Add(time.Hour)) {
		t.Errorf("last_scraped_at = %v", recs[0].LastScrapedAt)
	}
}

func TestGetBySourceKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	applyBatch(t, s, "Eventbrite", []*event.Event{testEvent("/a", "Jazz Night")}, now)

	rec, err := s.GetBySourceKey(ctx, "Eventbrite", "/a")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.Title != "Jazz Night" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	missing, err := s.GetBySourceKey(ctx, "Eventbrite", "/nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("unknown key should return nil, nil")
	}

	otherSource, err := s.GetBySourceKey(ctx, "Meetup", "/a")
	if err != nil {
		t.Fatal(err)
	}
	if otherSource != nil {
		t.Error("the key is (source, url), not url alone")
	}
}

func TestImportStateSurvivesScrape(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	applyBatch(t, s, "Eventbrite", []*event.Event{testEvent("/a", "Jazz Night")}, now)
	rec, _ := s.GetBySourceKey(ctx, "Eventbrite", "/a")

	if err := s.SetImportState(ctx, rec.ID, true, "curator@example.com", "headline act"); err != nil {
		t.Fatalf("import: %v", err)
	}
	rec, _ = s.GetEvent(ctx, rec.ID)
	if rec.Status != event.StatusImported || !rec.IsImported {
		t.Fatalf("import did not stick: %+v", rec)
	}
	importedAt := rec.ImportedAt
	if importedAt.IsZero() {
		t.Fatal("imported_at not stamped")
	}

	// A content change scrape refreshes fields but never curated state.
	applyBatch(t, s, "Eventbrite", []*event.Event{testEvent("/a", "Jazz Night - NEW DATE")}, now.Add(time.Hour))
	rec, _ = s.GetEvent(ctx, rec.ID)
	if rec.Title != "Jazz Night - NEW DATE" {
		t.Error("scrape fields should refresh on imported rows")
	}
	if rec.Status != event.StatusImported {
		t.Errorf("status = %s, want imported", rec.Status)
	}
	if !rec.IsImported || !rec.ImportedAt.Equal(importedAt) ||
		rec.ImportedBy != "curator@example.com" || rec.ImportNotes != "headline act" {
		t.Error("curated fields were touched by the scrape path")
	}

	// Absence from a successful scrape sets the indicator only.
	applyBatch(t, s, "Eventbrite", nil, now.Add(2*time.Hour))
	rec, _ = s.GetEvent(ctx, rec.ID)
	if rec.Status != event.StatusImported {
		t.Errorf("status = %s after absence, want imported", rec.Status)
	}
	if !rec.SourceMissing {
		t.Error("expected source_missing after a confirmed absence")
	}

	// Un-import is the only path out.
	if err := s.SetImportState(ctx, rec.ID, false, "", ""); err != nil {
		t.Fatalf("un-import: %v", err)
	}
	rec, _ = s.GetEvent(ctx, rec.ID)
	if rec.IsImported || !rec.ImportedAt.IsZero() || rec.ImportedBy != "" || rec.ImportNotes != "" {
		t.Errorf("un-import did not clear curated fields: %+v", rec)
	}
	if rec.Status != event.StatusUpdated {
		t.Errorf("status after un-import = %s, want updated", rec.Status)
	}
}

func TestSetImportStateUnknownID(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetImportState(context.Background(), 999, true, "x", ""); err == nil {
		t.Error("expected an error for an unknown event id")
	}
}

func TestSourceIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	applyBatch(t, s, "Eventbrite", []*event.Event{testEvent("/a", "Jazz Night")}, now)

	meetup := testEvent("/m", "Go Meetup")
	meetup.SourceName = "Meetup"
	applyBatch(t, s, "Meetup", []*event.Event{meetup}, now)

	// An empty (successful) Meetup batch inactivates Meetup rows only.
	applyBatch(t, s, "Meetup", nil, now.Add(time.Hour))

	ebRec, _ := s.GetBySourceKey(ctx, "Eventbrite", "/a")
	if ebRec.Status != event.StatusNew {
		t.Errorf("Eventbrite row touched by Meetup reconciliation: %s", ebRec.Status)
	}
	muRec, _ := s.GetBySourceKey(ctx, "Meetup", "/m")
	if muRec.Status != event.StatusInactive {
		t.Errorf("Meetup row status = %s, want inactive", muRec.Status)
	}
}

func TestListEventsFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	applyBatch(t, s, "Eventbrite", []*event.Event{
		testEvent("/a", "Jazz Night"),
		testEvent("/b", "Poetry Slam"),
	}, now)
	opera := testEvent("/o", "Opera Gala")
	opera.SourceName = "Sydney Opera House"
	applyBatch(t, s, "Sydney Opera House", []*event.Event{opera}, now)

	rec, _ := s.GetBySourceKey(ctx, "Eventbrite", "/b")
	if err := s.SetImportState(ctx, rec.ID, true, "curator", ""); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListEvents(ctx, Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}

	bySource, _ := s.ListEvents(ctx, Query{Source: "Eventbrite"})
	if len(bySource) != 2 {
		t.Errorf("by source = %d, want 2", len(bySource))
	}

	imported := true
	byImported, _ := s.ListEvents(ctx, Query{Imported: &imported})
	if len(byImported) != 1 || byImported[0].Title != "Poetry Slam" {
		t.Errorf("by imported = %+v", byImported)
	}

	byStatus, _ := s.ListEvents(ctx, Query{Status: event.StatusNew})
	if len(byStatus) != 2 {
		t.Errorf("by status new = %d, want 2", len(byStatus))
	}

	bySearch, _ := s.ListEvents(ctx, Query{Search: "jazz"})
	if len(bySearch) != 1 || bySearch[0].Title != "Jazz Night" {
		t.Errorf("by search = %+v", bySearch)
	}

	limited, _ := s.ListEvents(ctx, Query{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit = %d, want 1", len(limited))
	}
}

func TestGetStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	applyBatch(t, s, "Eventbrite", []*event.Event{
		testEvent("/a", "Jazz Night"),
		testEvent("/b", "Poetry Slam"),
	}, now)

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 {
		t.Errorf("total = %d", stats.Total)
	}
	if stats.ByStatus[event.StatusNew] != 2 {
		t.Errorf("by status = %+v", stats.ByStatus)
	}
	if stats.BySource["Eventbrite"] != 2 {
		t.Errorf("by source = %+v", stats.BySource)
	}
}

func TestRunLogs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	logs := []*RunLog{
		{SourceName: "Eventbrite", StartedAt: now, FinishedAt: now.Add(time.Second), Found: 5, New: 5, Status: RunCompleted},
		{SourceName: "Meetup", StartedAt: now, Status: RunFailed, ErrorMessage: "source Meetup unavailable: timeout"},
		{SourceName: "Eventbrite", StartedAt: now.Add(6 * time.Hour), FinishedAt: now.Add(6*time.Hour + time.Second), Found: 5, Status: RunCompleted},
	}
	for _, log := range logs {
		if err := s.InsertRunLog(ctx, log); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := s.RecentRunLogs(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 {
		t.Fatalf("recent = %d, want 3", len(recent))
	}
	if recent[0].SourceName != "Eventbrite" || !recent[0].StartedAt.Equal(now.Add(6*time.Hour)) {
		t.Errorf("recent[0] = %+v, want newest first", recent[0])
	}

	latest, err := s.LatestRunLogs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 2 {
		t.Fatalf("latest = %d, want one per source", len(latest))
	}
	for _, log := range latest {
		if log.SourceName == "Eventbrite" && log.StartedAt.Equal(now) {
			t.Error("latest should pick the most recent Eventbrite entry")
		}
		if log.SourceName == "Meetup" && log.Status != RunFailed {
			t.Errorf("Meetup latest = %+v", log)
		}
	}
}
