package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/samuelsono/nelo-fms/internal/fleet"
)

// MapPoint is one vehicle's position for the live map. It is built from
// the live cache when the unit has reported since startup, otherwise from
// the registry's last-known columns.
type MapPoint struct {
	VehicleID   string     `json:"vehicleId"`
	Name        string     `json:"name"`
	PlateNumber string     `json:"plateNumber"`
	Status      string     `json:"status"`
	IMEI        string     `json:"imei"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	Speed       *float64   `json:"speed,omitempty"`
	Ignition    *bool      `json:"ignition,omitempty"`
	Live        bool       `json:"live"`
	LastUpdate  *time.Time `json:"lastUpdate,omitempty"`
}

// handleListVehicles returns all vehicles with their tracking units.
func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := s.fleet.ListVehicles(r.Context())
	if err != nil {
		s.logger.Error("listing vehicles failed", "error", err)
		writeInternalError(w, "failed to list vehicles")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"vehicles": vehicles,
		"count":    len(vehicles),
	})
}

// handleGetVehicle returns a single vehicle by ID.
func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	vehicle, err := s.fleet.GetVehicle(r.Context(), id)
	if err != nil {
		if errors.Is(err, fleet.ErrVehicleNotFound) {
			writeNotFound(w, "vehicle not found")
			return
		}
		s.logger.Error("getting vehicle failed", "id", id, "error", err)
		writeInternalError(w, "failed to get vehicle")
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

// handleCreateVehicle creates a new vehicle.
func (s *Server) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	var vehicle fleet.Vehicle
	if err := json.NewDecoder(r.Body).Decode(&vehicle); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.fleet.CreateVehicle(r.Context(), &vehicle); err != nil {
		if errors.Is(err, fleet.ErrInvalidVehicle) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("creating vehicle failed", "error", err)
		writeInternalError(w, "failed to create vehicle")
		return
	}
	writeJSON(w, http.StatusCreated, vehicle)
}

// handleUpdateVehicle updates a vehicle's descriptive fields.
func (s *Server) handleUpdateVehicle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var vehicle fleet.Vehicle
	if err := json.NewDecoder(r.Body).Decode(&vehicle); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	vehicle.ID = id

	if err := s.fleet.UpdateVehicle(r.Context(), &vehicle); err != nil {
		switch {
		case errors.Is(err, fleet.ErrVehicleNotFound):
			writeNotFound(w, "vehicle not found")
		case errors.Is(err, fleet.ErrInvalidVehicle):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("updating vehicle failed", "id", id, "error", err)
			writeInternalError(w, "failed to update vehicle")
		}
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

// handleDeleteVehicle removes a vehicle.
func (s *Server) handleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.fleet.DeleteVehicle(r.Context(), id); err != nil {
		if errors.Is(err, fleet.ErrVehicleNotFound) {
			writeNotFound(w, "vehicle not found")
			return
		}
		s.logger.Error("deleting vehicle failed", "id", id, "error", err)
		writeInternalError(w, "failed to delete vehicle")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMapData returns one position per vehicle for the live map.
//
// For each vehicle with a tracking unit the live cache is preferred; when
// the unit has not reported since startup the registry's last-known
// columns are used instead. Vehicles with no position from either source
// are omitted.
func (s *Server) handleMapData(w http.ResponseWriter, r *http.Request) {
	vehicles, err := s.fleet.ListVehicles(r.Context())
	if err != nil {
		s.logger.Error("listing vehicles for map failed", "error", err)
		writeInternalError(w, "failed to build map data")
		return
	}

	points := make([]MapPoint, 0, len(vehicles))
	for i := range vehicles {
		if point, ok := s.mapPoint(r.Context(), &vehicles[i]); ok {
			points = append(points, point)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"points": points,
		"count":  len(points),
	})
}

// mapPoint resolves one vehicle's position, preferring the live cache.
func (s *Server) mapPoint(ctx context.Context, vehicle *fleet.Vehicle) (MapPoint, bool) {
	point := MapPoint{
		VehicleID:   vehicle.ID,
		Name:        vehicle.Name,
		PlateNumber: vehicle.PlateNumber,
		Status:      vehicle.Status,
	}
	if vehicle.TrackingUnit != nil {
		point.IMEI = vehicle.TrackingUnit.IMEI

		latest := s.telemetry.Latest(ctx, point.IMEI)
		if latest != nil && latest.Latitude != nil && latest.Longitude != nil {
			point.Latitude = *latest.Latitude
			point.Longitude = *latest.Longitude
			point.Speed = latest.Speed
			point.Ignition = latest.Ignition
			point.Live = true
			ts := latest.Timestamp
			point.LastUpdate = &ts
			return point, true
		}
	}

	if vehicle.LastLatitude != nil && vehicle.LastLongitude != nil {
		point.Latitude = *vehicle.LastLatitude
		point.Longitude = *vehicle.LastLongitude
		point.Speed = vehicle.LastSpeed
		point.Ignition = vehicle.Ignition
		point.LastUpdate = vehicle.LastLocationUpdate
		return point, true
	}
	return MapPoint{}, false
}

// handleListTrackingUnits returns all tracking units.
func (s *Server) handleListTrackingUnits(w http.ResponseWriter, r *http.Request) {
	units, err := s.fleet.ListTrackingUnits(r.Context())
	if err != nil {
		s.logger.Error("listing tracking units failed", "error", err)
		writeInternalError(w, "failed to list tracking units")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"units": units,
		"count": len(units),
	})
}

// handleCreateTrackingUnit registers a new tracking unit.
func (s *Server) handleCreateTrackingUnit(w http.ResponseWriter, r *http.Request) {
	var unit fleet.TrackingUnit
	if err := json.NewDecoder(r.Body).Decode(&unit); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.fleet.CreateTrackingUnit(r.Context(), &unit); err != nil {
		switch {
		case errors.Is(err, fleet.ErrUnitExists):
			writeConflict(w, err.Error())
		case errors.Is(err, fleet.ErrInvalidUnit):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("creating tracking unit failed", "error", err)
			writeInternalError(w, "failed to create tracking unit")
		}
		return
	}
	writeJSON(w, http.StatusCreated, unit)
}
