package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RunLog records one source's outcome for one scrape run.
type RunLog struct {
	ID           int64     `json:"id"`
	SourceName   string    `json:"source_name"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
	Found        int       `json:"events_found"`
	New          int       `json:"events_new"`
	Updated      int       `json:"events_updated"`
	Inactive     int       `json:"events_inactive"`
	SoftErrors   int       `json:"soft_errors"`
	Status       string    `json:"status"` // "completed" or "failed"
	ErrorMessage string    `json:"error_message,omitempty"`
}

const (
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// InsertRunLog appends one per-source run outcome.
func (s *Store) InsertRunLog(ctx context.Context, log *RunLog) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_runs (source_name, started_at, finished_at, events_found,
			events_new, events_updated, events_inactive, soft_errors, status, error_message)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		log.SourceName, log.StartedAt.UnixMilli(), nullTime(log.FinishedAt),
		log.Found, log.New, log.Updated, log.Inactive, log.SoftErrors,
		log.Status, log.ErrorMessage)
	if err != nil {
		return fmt.Errorf("inserting run log: %w", err)
	}
	log.ID, _ = res.LastInsertId()
	return nil
}

// RecentRunLogs returns the latest entries across all sources, newest
// first.
func (s *Store) RecentRunLogs(ctx context.Context, limit int) ([]*RunLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_name, started_at, finished_at, events_found, events_new,
			events_updated, events_inactive, soft_errors, status, error_message
		FROM scrape_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing run logs: %w", err)
	}
	return collectRunLogs(rows)
}

// LatestRunLogs returns each source's most recent entry, for the status
// endpoint.
func (s *Store) LatestRunLogs(ctx context.Context) ([]*RunLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_name, started_at, finished_at, events_found, events_new,
			events_updated, events_inactive, soft_errors, status, error_message
		FROM scrape_runs
		WHERE id IN (SELECT MAX(id) FROM scrape_runs GROUP BY source_name)
		ORDER BY source_name`)
	if err != nil {
		return nil, fmt.Errorf("listing latest run logs: %w", err)
	}
	return collectRunLogs(rows)
}

func collectRunLogs(rows *sql.Rows) ([]*RunLog, error) {
	defer rows.Close()
	var logs []*RunLog
	for rows.Next() {
		var log RunLog
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&log.ID, &log.SourceName, &started, &finished,
			&log.Found, &log.New, &log.Updated, &log.Inactive, &log.SoftErrors,
			&log.Status, &log.ErrorMessage); err != nil {
			return nil, err
		}
		log.StartedAt = time.UnixMilli(started).UTC()
		if finished.Valid {
			log.FinishedAt = time.UnixMilli(finished.Int64).UTC()
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}
