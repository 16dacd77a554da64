package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	// defaultEventDays is the event query window when none is given.
	defaultEventDays = 7

	// defaultEventLimit caps the number of events returned.
	defaultEventLimit = 100
)

// handleLatestReading returns the most recent enriched reading for a unit.
func (s *Server) handleLatestReading(w http.ResponseWriter, r *http.Request) {
	imei := chi.URLParam(r, "imei")

	reading := s.telemetry.Latest(r.Context(), imei)
	if reading == nil {
		writeNotFound(w, "no data for unit "+imei)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

// handleReadingHistory returns recent readings for a unit, newest first.
//
// Query parameters:
//   - count: maximum readings to return (default and cap applied by the facade)
func (s *Server) handleReadingHistory(w http.ResponseWriter, r *http.Request) {
	imei := chi.URLParam(r, "imei")

	count := 0
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "count must be a non-negative integer")
			return
		}
		count = parsed
	}

	history := s.telemetry.History(r.Context(), imei, count)
	writeJSON(w, http.StatusOK, map[string]any{
		"imei":     imei,
		"readings": history,
		"count":    len(history),
	})
}

// handleVehicleEvents returns firmware events for a unit.
//
// Query parameters:
//   - days: how far back to look (default 7)
//   - limit: maximum events to return (default 100)
func (s *Server) handleVehicleEvents(w http.ResponseWriter, r *http.Request) {
	imei := chi.URLParam(r, "imei")

	days := defaultEventDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "days must be a positive integer")
			return
		}
		days = parsed
	}

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	timespan := time.Duration(days) * 24 * time.Hour
	events := s.telemetry.Events(r.Context(), imei, timespan, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"imei":   imei,
		"events": events,
		"count":  len(events),
	})
}

// handleTrackedUnits returns the unit ids currently held in the live cache.
func (s *Server) handleTrackedUnits(w http.ResponseWriter, _ *http.Request) {
	units := s.telemetry.TrackedUnits()
	writeJSON(w, http.StatusOK, map[string]any{
		"units": units,
		"count": len(units),
	})
}

// handleClearUnitCache discards one unit's cached readings.
func (s *Server) handleClearUnitCache(w http.ResponseWriter, r *http.Request) {
	imei := chi.URLParam(r, "imei")
	s.telemetry.ClearUnit(imei)
	w.WriteHeader(http.StatusNoContent)
}

// handleClearCache discards every unit's cached readings.
func (s *Server) handleClearCache(w http.ResponseWriter, _ *http.Request) {
	s.telemetry.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}
