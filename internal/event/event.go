package event

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Status tracks an event's lifecycle in the catalog.
type Status string

const (
	StatusNew      Status = "new"
	StatusUpdated  Status = "updated"
	StatusInactive Status = "inactive"
	StatusImported Status = "imported"
)

// Event is the canonical shape every source extractor produces for one
// scrape pass. SourceName and SourceURL together form the natural key;
// everything else is best-effort and may be empty.
type Event struct {
	SourceName   string    `json:"source_name"`
	SourceURL    string    `json:"source_url"`
	Title        string    `json:"title"`
	DateTime     time.Time `json:"date_time,omitzero"` // zero when unresolved
	DateString   string    `json:"date_string,omitempty"`
	VenueName    string    `json:"venue_name,omitempty"`
	VenueAddress string    `json:"venue_address,omitempty"`
	City         string    `json:"city,omitempty"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category,omitempty"`
	Tags         string    `json:"tags,omitempty"` // comma-separated
	ImageURL     string    `json:"image_url,omitempty"`
}

// Key identifies an event across scrapes.
type Key struct {
	Source string
	URL    string
}

// Key returns the event's natural key.
func (e *Event) Key() Key {
	return Key{Source: e.SourceName, URL: e.SourceURL}
}

// Fingerprint hashes the fields that matter for change detection. Volatile
// fields (tags, scrape timestamps) are excluded, so two scrapes of an
// unchanged page hash identically.
func (e *Event) Fingerprint() string {
	date := e.DateString
	if !e.DateTime.IsZero() {
		date = e.DateTime.UTC().Format(time.RFC3339)
	}
	parts := []string{
		e.Title,
		date,
		e.VenueName,
		e.VenueAddress,
		e.Description,
		e.Category,
		e.ImageURL,
	}
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", h)
}

// Record is a persisted catalog row, one per natural key. Curated fields
// (IsImported, ImportedAt, ImportedBy, ImportNotes) are mutated only by
// the import path, never by reconciliation.
type Record struct {
	ID int64 `json:"id"`
	Event

	Status        Status    `json:"status"`
	Fingerprint   string    `json:"fingerprint"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastScrapedAt time.Time `json:"last_scraped_at"`

	// SourceMissing marks an imported event whose page disappeared from a
	// successful scrape. Non-imported events transition to StatusInactive
	// instead.
	SourceMissing bool `json:"source_missing,omitempty"`

	IsImported  bool      `json:"is_imported"`
	ImportedAt  time.Time `json:"imported_at,omitzero"`
	ImportedBy  string    `json:"imported_by,omitempty"`
	ImportNotes string    `json:"import_notes,omitempty"`
}

// NewRecord creates a catalog row for a freshly discovered event.
func NewRecord(e *Event, now time.Time) *Record {
	return &Record{
		Event:         *e,
		Status:        StatusNew,
		Fingerprint:   e.Fingerprint(),
		FirstSeenAt:   now,
		LastScrapedAt: now,
	}
}
