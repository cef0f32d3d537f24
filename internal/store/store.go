package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pfrederiksen/sydney-events/internal/event"
	"github.com/pfrederiksen/sydney-events/internal/reconcile"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	source_name    TEXT NOT NULL,
	source_url     TEXT NOT NULL,
	title          TEXT NOT NULL,
	date_time      INTEGER,
	date_string    TEXT NOT NULL DEFAULT '',
	venue_name     TEXT NOT NULL DEFAULT '',
	venue_address  TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	tags           TEXT NOT NULL DEFAULT '',
	image_url      TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	fingerprint    TEXT NOT NULL,
	first_seen_at  INTEGER NOT NULL,
	last_scraped_at INTEGER NOT NULL,
	source_missing INTEGER NOT NULL DEFAULT 0,
	is_imported    INTEGER NOT NULL DEFAULT 0,
	imported_at    INTEGER,
	imported_by    TEXT NOT NULL DEFAULT '',
	import_notes   TEXT NOT NULL DEFAULT '',
	UNIQUE(source_name, source_url)
);
CREATE INDEX IF NOT EXISTS idx_events_status ON events(status);
CREATE INDEX IF NOT EXISTS idx_events_source ON events(source_name);

CREATE TABLE IF NOT EXISTS scrape_runs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	source_name    TEXT NOT NULL,
	started_at     INTEGER NOT NULL,
	finished_at    INTEGER,
	events_found   INTEGER NOT NULL DEFAULT 0,
	events_new     INTEGER NOT NULL DEFAULT 0,
	events_updated INTEGER NOT NULL DEFAULT 0,
	events_inactive INTEGER NOT NULL DEFAULT 0,
	soft_errors    INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL,
	error_message  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_scrape_runs_source ON scrape_runs(source_name, started_at);
`

// Store is the SQLite-backed event catalog.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the catalog database and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite serializes writers anyway; one connection avoids busy errors
	// between the scrape path and the import path.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

const recordColumns = `id, source_name, source_url, title, date_time, date_string,
	venue_name, venue_address, city, description, category, tags, image_url,
	status, fingerprint, first_seen_at, last_scraped_at, source_missing,
	is_imported, imported_at, imported_by, import_notes`

// GetBySourceKey looks up one row by natural key. Returns (nil, nil) when
// the key is unknown.
func (s *Store) GetBySourceKey(ctx context.Context, source, url string) (*event.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM events WHERE source_name = ? AND source_url = ?`,
		source, url)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// GetEvent looks up one row by id. Returns (nil, nil) when absent.
func (s *Store) GetEvent(ctx context.Context, id int64) (*event.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM events WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListBySource returns the full persisted subset for one source.
func (s *Store) ListBySource(ctx context.Context, source string) ([]*event.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM events WHERE source_name = ? ORDER BY id`, source)
	if err != nil {
		return nil, fmt.Errorf("listing events for %s: %w", source, err)
	}
	return collectRecords(rows)
}

// Query filters the catalog listing.
type Query struct {
	Status   event.Status
	Source   string
	Imported *bool
	Search   string // substring match on title
	Limit    int
}

// ListEvents returns catalog rows matching the query, newest first.
func (s *Store) ListEvents(ctx context.Context, q Query) ([]*event.Record, error) {
	var where []string
	var args []any
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.Source != "" {
		where = append(where, "source_name = ?")
		args = append(args, q.Source)
	}
	if q.Imported != nil {
		where = append(where, "is_imported = ?")
		args = append(args, boolToInt(*q.Imported))
	}
	if q.Search != "" {
		where = append(where, "title LIKE ?")
		args = append(args, "%"+q.Search+"%")
	}

	query := `SELECT ` + recordColumns + ` FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY first_seen_at DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return collectRecords(rows)
}

// ApplyPlan commits one source's reconciliation plan in a single
// transaction: either the whole batch lands or none of it does. The
// upsert's update set deliberately excludes first_seen_at and every
// curated column, and a row that became imported since the plan was built
// keeps its imported status.
func (s *Store) ApplyPlan(ctx context.Context, plan *reconcile.Plan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (source_name, source_url, title, date_time, date_string,
			venue_name, venue_address, city, description, category, tags, image_url,
			status, fingerprint, first_seen_at, last_scraped_at, source_missing)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(source_name, source_url) DO UPDATE SET
			title = excluded.title,
			date_time = excluded.date_time,
			date_string = excluded.date_string,
			venue_name = excluded.venue_name,
			venue_address = excluded.venue_address,
			city = excluded.city,
			description = excluded.description,
			category = excluded.category,
			tags = excluded.tags,
			image_url = excluded.image_url,
			status = CASE WHEN events.is_imported = 1 THEN events.status ELSE excluded.status END,
			fingerprint = excluded.fingerprint,
			last_scraped_at = excluded.last_scraped_at,
			source_missing = excluded.source_missing`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range plan.Upserts {
		_, err := stmt.ExecContext(ctx,
			rec.SourceName, rec.SourceURL, rec.Title,
			nullTime(rec.DateTime), rec.DateString,
			rec.VenueName, rec.VenueAddress, rec.City, rec.Description,
			rec.Category, rec.Tags, rec.ImageURL,
			string(rec.Status), rec.Fingerprint,
			rec.FirstSeenAt.UnixMilli(), rec.LastScrapedAt.UnixMilli(),
			boolToInt(rec.SourceMissing))
		if err != nil {
			return fmt.Errorf("upserting %s: %w", rec.SourceURL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s batch: %w", plan.Source, err)
	}
	return nil
}

// SetImportState is the curated-field mutation path: it touches only the
// import columns plus status, and nothing on the scrape path ever writes
// those columns back.
func (s *Store) SetImportState(ctx context.Context, id int64, imported bool, by, notes string) error {
	var res sql.Result
	var err error
	if imported {
		res, err = s.db.ExecContext(ctx, `
			UPDATE events SET is_imported = 1, imported_at = ?, imported_by = ?,
				import_notes = ?, status = ?
			WHERE id = ?`,
			time.Now().UnixMilli(), by, notes, string(event.StatusImported), id)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE events SET is_imported = 0, imported_at = NULL, imported_by = '',
				import_notes = '', source_missing = 0, status = ?
			WHERE id = ?`,
			string(event.StatusUpdated), id)
	}
	if err != nil {
		return fmt.Errorf("setting import state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("event not found: %d", id)
	}
	return nil
}

// Stats summarizes the catalog for the stats endpoint.
type Stats struct {
	Total    int                  `json:"total"`
	ByStatus map[event.Status]int `json:"by_status"`
	BySource map[string]int       `json:"by_source"`
}

// GetStats counts catalog rows by status and source.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByStatus: make(map[event.Status]int),
		BySource: make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, source_name, COUNT(*) FROM events GROUP BY status, source_name`)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, source string
		var n int
		if err := rows.Scan(&status, &source, &n); err != nil {
			return nil, err
		}
		stats.Total += n
		stats.ByStatus[event.Status(status)] += n
		stats.BySource[source] += n
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*event.Record, error) {
	var rec event.Record
	var dateTime, importedAt sql.NullInt64
	var firstSeen, lastScraped int64
	var sourceMissing, isImported int
	var status string

	err := row.Scan(&rec.ID, &rec.SourceName, &rec.SourceURL, &rec.Title,
		&dateTime, &rec.DateString, &rec.VenueName, &rec.VenueAddress,
		&rec.City, &rec.Description, &rec.Category, &rec.Tags, &rec.ImageURL,
		&status, &rec.Fingerprint, &firstSeen, &lastScraped, &sourceMissing,
		&isImported, &importedAt, &rec.ImportedBy, &rec.ImportNotes)
	if err != nil {
		return nil, err
	}

	rec.Status = event.Status(status)
	rec.FirstSeenAt = time.UnixMilli(firstSeen).UTC()
	rec.LastScrapedAt = time.UnixMilli(lastScraped).UTC()
	rec.SourceMissing = sourceMissing != 0
	rec.IsImported = isImported != 0
	if dateTime.Valid {
		rec.DateTime = time.UnixMilli(dateTime.Int64).UTC()
	}
	if importedAt.Valid {
		rec.ImportedAt = time.UnixMilli(importedAt.Int64).UTC()
	}
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]*event.Record, error) {
	defer rows.Close()
	var recs []*event.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
