// Package store provides the SQLite-backed event catalog and scrape run
// log.
//
// Rows are keyed by (source_name, source_url); the scrape path writes
// through a keyed upsert whose update set excludes first_seen_at and the
// curated import columns, so reconciliation can never clobber what a
// curator set. Each source batch commits in one transaction.
package store
