// Package cli implements the command-line interface for sydney-events.
//
// The cli package provides the Cobra-based CLI with two subcommands:
// "scrape" runs one scrape-and-reconcile pass and reports the changes,
// "serve" runs the scheduler and HTTP API as a long-lived process. It
// wires the config, source, store, scrape, and server packages together.
package cli
