// Package event defines the canonical event model shared by the scrapers
// and the catalog.
//
// An Event is what a source extractor produces for one scrape pass; a
// Record is the durable catalog row keyed by (source_name, source_url).
// Change detection relies on a SHA-256 fingerprint over the semantically
// meaningful fields, so a reformatted page that says the same thing does
// not register as an update.
package event
