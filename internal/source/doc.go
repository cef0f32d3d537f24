// Package source provides the per-site event extractors.
//
// Each extractor fetches one listing page and yields canonical events
// plus item-level soft errors. A whole-source fetch failure is a typed
// *UnavailableError so callers can tell "the page is empty" apart from
// "the site is down" — the distinction that keeps outages from being
// misread as mass event removal. Extractors differ in parsing strategy
// (JSON-LD, Next.js payloads, plain HTML cards) behind one interface.
package source
