package fleet

import (
	"context"
	"errors"
	"fmt"

	"github.com/samuelsono/nelo-fms/internal/telemetry"
)

// Logger is the minimal logging interface the updater needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// LocationUpdater is the ingest sink that writes each enriched reading
// through to the fleet registry, so last-known positions survive a
// restart of the live cache.
type LocationUpdater struct {
	repo   Repository
	logger Logger
}

// NewLocationUpdater creates an updater backed by the given repository.
func NewLocationUpdater(repo Repository) *LocationUpdater {
	return &LocationUpdater{repo: repo, logger: noopLogger{}}
}

// SetLogger sets the logger for updater activity.
func (u *LocationUpdater) SetLogger(logger Logger) {
	if logger != nil {
		u.logger = logger
	}
}

// Apply writes the reading's location fields through to the vehicle fitted
// with the reading's unit. Readings from units that are not registered are
// ignored: devices often come online before they are commissioned.
func (u *LocationUpdater) Apply(ctx context.Context, reading *telemetry.Reading) error {
	if reading == nil || reading.IMEI == "" {
		return nil
	}

	loc := LastLocation{
		Timestamp: reading.Timestamp,
		Latitude:  reading.Latitude,
		Longitude: reading.Longitude,
		Speed:     reading.Speed,
		Ignition:  reading.Ignition,
		Odometer:  reading.Odometer,
	}

	err := u.repo.UpdateLastLocation(ctx, reading.IMEI, loc)
	if err != nil {
		if errors.Is(err, ErrUnitNotFound) {
			u.logger.Debug("reading from unregistered unit", "imei", reading.IMEI)
			return nil
		}
		u.logger.Warn("last-location write failed", "imei", reading.IMEI, "error", err)
		return fmt.Errorf("applying location for %s: %w", reading.IMEI, err)
	}
	return nil
}
