package telemetry

import (
	"context"
	"time"
)

// MaxHistoryCount caps how many readings a single history query may return.
const MaxHistoryCount = 100

// Store is the durable fallback consulted when the in-memory cache has no
// answer for a unit (typically after a restart). Implemented by the
// InfluxDB client; the facade treats it as an opaque collaborator.
type Store interface {
	LatestReading(ctx context.Context, imei string) (*Reading, error)
	ReadingHistory(ctx context.Context, imei string, count int) ([]*Reading, error)
	VehicleEvents(ctx context.Context, imei string, timespan time.Duration, limit int) ([]VehicleEvent, error)
}

// Logger is the logging interface used by the facade.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Facade is the read path over the enrichment cache exposed to the CRUD
// layer. Cache misses fall back to the durable store; store failures
// degrade to absent data rather than errors so callers see stale-or-absent
// results when the live pipeline is down.
//
// All operations are non-mutating with respect to ingestion and only take
// the cheap cache locks, so they can never block the ingestion coordinator.
type Facade struct {
	cache  *Cache
	store  Store
	logger Logger
}

// NewFacade creates a query facade over the given cache. The store may be
// nil, in which case cache misses simply return absent data.
func NewFacade(cache *Cache, store Store) *Facade {
	return &Facade{
		cache:  cache,
		store:  store,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used for fallback diagnostics.
func (f *Facade) SetLogger(logger Logger) {
	f.logger = logger
}

// Latest returns the most recent reading for a unit, consulting the
// durable store when the cache has no entry. Returns nil when the unit is
// unknown everywhere.
func (f *Facade) Latest(ctx context.Context, imei string) *Reading {
	if reading := f.cache.GetLatest(imei); reading != nil {
		return reading
	}

	if f.store == nil {
		return nil
	}

	reading, err := f.store.LatestReading(ctx, imei)
	if err != nil {
		f.logger.Warn("durable store latest lookup failed", "imei", imei, "error", err)
		return nil
	}
	return reading
}

// History returns up to count readings for a unit, most recent first. The
// count is clamped to MaxHistoryCount. An empty cache falls back to the
// durable store.
func (f *Facade) History(ctx context.Context, imei string, count int) []*Reading {
	if count <= 0 || count > MaxHistoryCount {
		count = MaxHistoryCount
	}

	history := f.cache.GetHistory(imei, count)
	if len(history) > 0 {
		return history
	}

	if f.store == nil {
		return history
	}

	stored, err := f.store.ReadingHistory(ctx, imei, count)
	if err != nil {
		f.logger.Warn("durable store history lookup failed", "imei", imei, "error", err)
		return history
	}
	return stored
}

// Events returns derived event records for a unit from the durable store.
func (f *Facade) Events(ctx context.Context, imei string, timespan time.Duration, limit int) []VehicleEvent {
	if f.store == nil {
		return []VehicleEvent{}
	}

	events, err := f.store.VehicleEvents(ctx, imei, timespan, limit)
	if err != nil {
		f.logger.Warn("durable store events lookup failed", "imei", imei, "error", err)
		return []VehicleEvent{}
	}
	return events
}

// TrackedUnits returns all unit ids with cached readings.
func (f *Facade) TrackedUnits() []string {
	return f.cache.TrackedUnits()
}

// ClearUnit discards a unit's cached state.
func (f *Facade) ClearUnit(imei string) {
	f.cache.ClearUnit(imei)
}

// ClearAll discards every unit's cached state.
func (f *Facade) ClearAll() {
	f.cache.ClearAll()
}
