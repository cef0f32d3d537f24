// Package server exposes the event catalog and scraper controls over HTTP.
//
// Routing uses chi. All responses are JSON except the calendar endpoints,
// which serve text/calendar.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pfrederiksen/sydney-events/internal/logger"
	"github.com/pfrederiksen/sydney-events/internal/store"
)

// ScrapeController exposes the scraper to the API: a running flag and a
// way to request an immediate run.
type ScrapeController interface {
	Running() bool
	TriggerNow()
}

// Server handles the HTTP API.
type Server struct {
	store   *store.Store
	scraper ScrapeController
	city    string

	http *http.Server
}

// New creates a Server over the given catalog and scraper controls.
func New(addr string, st *store.Store, scraper ScrapeController, city string) *Server {
	s := &Server{
		store:   st,
		scraper: scraper,
		city:    city,
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the chi route tree. Exposed separately so tests can drive
// handlers without a listener.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/events", s.handleListEvents)
		r.Get("/events/{id}", s.handleGetEvent)
		r.Get("/events/{id}/calendar.ics", s.handleEventCalendar)
		r.Post("/events/{id}/import", s.handleImport)
		r.Post("/events/{id}/unimport", s.handleUnimport)

		r.Get("/calendar.ics", s.handleBulkCalendar)
		r.Get("/stats", s.handleStats)

		r.Route("/scraper", func(r chi.Router) {
			r.Post("/run", s.handleScraperRun)
			r.Get("/status", s.handleScraperStatus)
			r.Get("/logs", s.handleScraperLogs)
		})
	})

	return r
}

// Start begins serving and blocks until the context ends or the listener
// fails, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info("http server listening", logger.Fields{"addr": s.http.Addr})
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("http server shutting down", nil)
	return s.http.Shutdown(shutdownCtx)
}
