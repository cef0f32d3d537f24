package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pfrederiksen/sydney-events/internal/calendar"
	"github.com/pfrederiksen/sydney-events/internal/event"
	"github.com/pfrederiksen/sydney-events/internal/logger"
	"github.com/pfrederiksen/sydney-events/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encoding response", nil, err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "city": s.city})
}

// handleListEvents supports ?status=, ?source=, ?imported=, ?q=, ?limit=.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := store.Query{
		Status: event.Status(r.URL.Query().Get("status")),
		Source: r.URL.Query().Get("source"),
		Search: r.URL.Query().Get("q"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %q", raw))
			return
		}
		q.Limit = limit
	}
	if raw := r.URL.Query().Get("imported"); raw != "" {
		imported, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid imported flag: %q", raw))
			return
		}
		q.Imported = &imported
	}

	events, err := s.store.ListEvents(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []*event.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// eventFromPath resolves {id}. Writes the error response itself and
// returns nil when the record can't be served.
func (s *Server) eventFromPath(w http.ResponseWriter, r *http.Request) *event.Record {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return nil
	}
	rec, err := s.store.GetEvent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("event %d not found", id))
		return nil
	}
	return rec
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	rec := s.eventFromPath(w, r)
	if rec == nil {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleEventCalendar(w http.ResponseWriter, r *http.Request) {
	rec := s.eventFromPath(w, r)
	if rec == nil {
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=event-%d.ics", rec.ID))
	fmt.Fprint(w, calendar.GenerateICS(rec)) //nolint:errcheck
}

// handleBulkCalendar serves every non-inactive event as one calendar.
func (s *Server) handleBulkCalendar(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEvents(r.Context(), store.Query{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	active := make([]*event.Record, 0, len(events))
	for _, rec := range events {
		if rec.Status != event.StatusInactive {
			active = append(active, rec)
		}
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=sydney-events.ics")
	name := fmt.Sprintf("%s Events", s.city)
	fmt.Fprint(w, calendar.GenerateBulkICS(active, name)) //nolint:errcheck
}

type importRequest struct {
	ImportedBy string `json:"imported_by"`
	Notes      string `json:"notes"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	rec := s.eventFromPath(w, r)
	if rec == nil {
		return
	}

	var req importRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := s.store.SetImportState(r.Context(), rec.ID, true, req.ImportedBy, req.Notes); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("event imported", logger.Fields{"id": rec.ID, "by": req.ImportedBy})

	updated, err := s.store.GetEvent(r.Context(), rec.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleUnimport(w http.ResponseWriter, r *http.Request) {
	rec := s.eventFromPath(w, r)
	if rec == nil {
		return
	}
	if !rec.IsImported {
		writeError(w, http.StatusConflict, fmt.Sprintf("event %d is not imported", rec.ID))
		return
	}

	if err := s.store.SetImportState(r.Context(), rec.ID, false, "", ""); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("event un-imported", logger.Fields{"id": rec.ID})

	updated, err := s.store.GetEvent(r.Context(), rec.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleScraperRun requests an immediate scrape. The run happens in the
// background; 409 when one is already executing.
func (s *Server) handleScraperRun(w http.ResponseWriter, r *http.Request) {
	if s.scraper.Running() {
		writeError(w, http.StatusConflict, "a scrape run is already in progress")
		return
	}
	s.scraper.TriggerNow()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleScraperStatus(w http.ResponseWriter, r *http.Request) {
	latest, err := s.store.LatestRunLogs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if latest == nil {
		latest = []*store.RunLog{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"running": s.scraper.Running(),
		"sources": latest,
	})
}

func (s *Server) handleScraperLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %q", raw))
			return
		}
		limit = n
	}
	logs, err := s.store.RecentRunLogs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if logs == nil {
		logs = []*store.RunLog{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}
