// Package scrape coordinates full scrape runs across all configured
// sources.
//
// Fetches fan out concurrently, one goroutine per source, then results are
// reconciled and committed serially in source-name order so a run's writes
// are deterministic. A failing source is contained: its catalog rows stay
// untouched and the failure is recorded as a run log while the other
// sources proceed.
package scrape
