// Package reconcile computes catalog status transitions for one source's
// scrape batch.
//
// Build is a pure function over the persisted rows and the freshly
// fetched batch; it performs no I/O, which keeps the state machine
// independently testable and keeps the atomic-commit decision with the
// storage layer. An event only ever becomes inactive through a plan,
// and plans are only built from successful scrapes.
package reconcile
