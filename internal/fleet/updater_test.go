package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samuelsono/nelo-fms/internal/telemetry"
)

// fakeLocationRepo records UpdateLastLocation calls and returns a canned
// error. The other Repository methods are unused by the updater.
type fakeLocationRepo struct {
	Repository

	err      error
	calls    int
	lastIMEI string
	lastLoc  LastLocation
}

func (f *fakeLocationRepo) UpdateLastLocation(_ context.Context, imei string, loc LastLocation) error {
	f.calls++
	f.lastIMEI = imei
	f.lastLoc = loc
	return f.err
}

func TestLocationUpdaterApply(t *testing.T) {
	ctx := context.Background()
	stamp := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	reading := &telemetry.Reading{
		IMEI:      "867730050000001",
		Timestamp: stamp,
		Latitude:  fPtr(-33.9249),
		Longitude: fPtr(18.4241),
		Speed:     fPtr(62.5),
		Ignition:  boolPtr(true),
		Odometer:  fPtr(120345),
		Heading:   fPtr(270), // not written through
	}

	t.Run("maps location fields", func(t *testing.T) {
		repo := &fakeLocationRepo{}
		updater := NewLocationUpdater(repo)

		if err := updater.Apply(ctx, reading); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if repo.lastIMEI != reading.IMEI {
			t.Errorf("imei = %q, want %q", repo.lastIMEI, reading.IMEI)
		}
		if !repo.lastLoc.Timestamp.Equal(stamp) {
			t.Errorf("timestamp = %v, want %v", repo.lastLoc.Timestamp, stamp)
		}
		if repo.lastLoc.Latitude == nil || *repo.lastLoc.Latitude != -33.9249 {
			t.Errorf("latitude = %v", repo.lastLoc.Latitude)
		}
		if repo.lastLoc.Ignition == nil || !*repo.lastLoc.Ignition {
			t.Errorf("ignition = %v, want true", repo.lastLoc.Ignition)
		}
		if repo.lastLoc.Odometer == nil || *repo.lastLoc.Odometer != 120345 {
			t.Errorf("odometer = %v", repo.lastLoc.Odometer)
		}
	})

	t.Run("unregistered unit is not an error", func(t *testing.T) {
		repo := &fakeLocationRepo{err: ErrUnitNotFound}
		updater := NewLocationUpdater(repo)

		if err := updater.Apply(ctx, reading); err != nil {
			t.Errorf("Apply = %v, want nil for unregistered unit", err)
		}
		if repo.calls != 1 {
			t.Errorf("calls = %d, want 1", repo.calls)
		}
	})

	t.Run("repository failure is surfaced", func(t *testing.T) {
		dbErr := errors.New("disk full")
		repo := &fakeLocationRepo{err: dbErr}
		updater := NewLocationUpdater(repo)

		err := updater.Apply(ctx, reading)
		if !errors.Is(err, dbErr) {
			t.Errorf("Apply = %v, want wrapped %v", err, dbErr)
		}
	})

	t.Run("nil and anonymous readings ignored", func(t *testing.T) {
		repo := &fakeLocationRepo{}
		updater := NewLocationUpdater(repo)

		if err := updater.Apply(ctx, nil); err != nil {
			t.Errorf("Apply(nil) = %v", err)
		}
		if err := updater.Apply(ctx, &telemetry.Reading{Timestamp: stamp}); err != nil {
			t.Errorf("Apply(empty imei) = %v", err)
		}
		if repo.calls != 0 {
			t.Errorf("calls = %d, want 0", repo.calls)
		}
	})
}
