package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func makeReading(imei string, ts time.Time) *Reading {
	return &Reading{IMEI: imei, Timestamp: ts}
}

func TestAddAndEnrich_FirstReadingUnchanged(t *testing.T) {
	cache := NewCache(50)
	reading := makeReading("IMEI123", time.Now().UTC())
	reading.Speed = floatPtr(42)

	enriched := cache.AddAndEnrich(reading)

	if enriched.Speed == nil || *enriched.Speed != 42 {
		t.Errorf("Speed = %v, want 42", enriched.Speed)
	}
	if enriched.Latitude != nil {
		t.Error("expected Latitude to stay absent on first reading")
	}
}

func TestAddAndEnrich_FillsAbsentFields(t *testing.T) {
	cache := NewCache(50)

	first := makeReading("IMEI123", time.Now().UTC())
	first.Latitude = floatPtr(-33.9)
	first.Longitude = floatPtr(18.4)
	first.Speed = floatPtr(60)
	cache.AddAndEnrich(first)

	second := makeReading("IMEI123", time.Now().UTC().Add(time.Second))
	second.Speed = floatPtr(65)

	enriched := cache.AddAndEnrich(second)

	if enriched.Latitude == nil || *enriched.Latitude != -33.9 {
		t.Errorf("Latitude = %v, want -33.9 from last known complete", enriched.Latitude)
	}
	if enriched.Longitude == nil || *enriched.Longitude != 18.4 {
		t.Errorf("Longitude = %v, want 18.4 from last known complete", enriched.Longitude)
	}
	if enriched.Speed == nil || *enriched.Speed != 65 {
		t.Errorf("Speed = %v, want input value 65", enriched.Speed)
	}
}

func TestAddAndEnrich_InputWinsOverSnapshot(t *testing.T) {
	cache := NewCache(50)

	first := makeReading("IMEI123", time.Now().UTC())
	first.Odometer = floatPtr(1000)
	cache.AddAndEnrich(first)

	second := makeReading("IMEI123", time.Now().UTC())
	second.Odometer = floatPtr(1010)

	enriched := cache.AddAndEnrich(second)

	if *enriched.Odometer != 1010 {
		t.Errorf("Odometer = %v, want 1010 (input wins)", *enriched.Odometer)
	}
}

func TestAddAndEnrich_AbsentEverywhereStaysAbsent(t *testing.T) {
	cache := NewCache(50)

	first := makeReading("IMEI123", time.Now().UTC())
	first.Speed = floatPtr(10)
	cache.AddAndEnrich(first)

	second := makeReading("IMEI123", time.Now().UTC())
	enriched := cache.AddAndEnrich(second)

	if enriched.Temperature != nil {
		t.Error("Temperature was absent in both input and snapshot, must stay absent")
	}
	if enriched.Ignition != nil {
		t.Error("Ignition was absent in both input and snapshot, must stay absent")
	}
}

func TestAddAndEnrich_AllAbsentYieldsSnapshotWithNewTimestamp(t *testing.T) {
	cache := NewCache(50)

	first := makeReading("IMEI123", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	first.Latitude = floatPtr(1.5)
	first.Longitude = floatPtr(2.5)
	first.Speed = floatPtr(80)
	first.EventCode = intPtr(3)
	cache.AddAndEnrich(first)

	ts := time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC)
	enriched := cache.AddAndEnrich(makeReading("IMEI123", ts))

	if !enriched.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", enriched.Timestamp, ts)
	}
	if *enriched.Latitude != 1.5 || *enriched.Longitude != 2.5 || *enriched.Speed != 80 || *enriched.EventCode != 3 {
		t.Error("empty reading must enrich to the numeric values of the snapshot")
	}
}

func TestAddAndEnrich_HistoryBounded(t *testing.T) {
	const maxRecords = 5
	cache := NewCache(maxRecords)

	for i := 0; i < maxRecords*3; i++ {
		r := makeReading("IMEI123", time.Now().UTC())
		r.Satellites = intPtr(i)
		cache.AddAndEnrich(r)
	}

	history := cache.GetHistory("IMEI123", maxRecords*3)
	if len(history) != maxRecords {
		t.Fatalf("history length = %d, want %d", len(history), maxRecords)
	}

	// Head of history is the most recently enriched reading.
	if *history[0].Satellites != maxRecords*3-1 {
		t.Errorf("head Satellites = %d, want %d", *history[0].Satellites, maxRecords*3-1)
	}
	// Oldest surviving entry.
	if *history[maxRecords-1].Satellites != maxRecords*2 {
		t.Errorf("tail Satellites = %d, want %d", *history[maxRecords-1].Satellites, maxRecords*2)
	}
}

func TestAddAndEnrich_NoAliasing(t *testing.T) {
	cache := NewCache(50)

	input := makeReading("IMEI123", time.Now().UTC())
	input.Speed = floatPtr(42)

	enriched := cache.AddAndEnrich(input)

	// Mutating the returned reading must not change cache state.
	*enriched.Speed = 999
	enriched.Latitude = floatPtr(12.3)

	latest := cache.GetLatest("IMEI123")
	if *latest.Speed != 42 {
		t.Errorf("cache Speed = %v after mutating returned reading, want 42", *latest.Speed)
	}
	if latest.Latitude != nil {
		t.Error("cache Latitude changed after mutating returned reading")
	}

	// Mutating the input after the call must not change cache state either.
	*input.Speed = -1
	latest = cache.GetLatest("IMEI123")
	if *latest.Speed != 42 {
		t.Errorf("cache Speed = %v after mutating input, want 42", *latest.Speed)
	}
}

func TestGetLatest_UnknownUnit(t *testing.T) {
	cache := NewCache(50)
	if got := cache.GetLatest("nope"); got != nil {
		t.Errorf("GetLatest(unknown) = %v, want nil", got)
	}
}

func TestGetHistory_UnknownUnitYieldsEmpty(t *testing.T) {
	cache := NewCache(50)
	history := cache.GetHistory("nope", 10)
	if history == nil || len(history) != 0 {
		t.Errorf("GetHistory(unknown) = %v, want empty slice", history)
	}
}

func TestGetHistory_CountShorterThanHistory(t *testing.T) {
	cache := NewCache(50)
	for i := 0; i < 10; i++ {
		r := makeReading("IMEI123", time.Now().UTC())
		r.Satellites = intPtr(i)
		cache.AddAndEnrich(r)
	}

	history := cache.GetHistory("IMEI123", 3)
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	if *history[0].Satellites != 9 || *history[1].Satellites != 8 || *history[2].Satellites != 7 {
		t.Error("history not most-recent-first")
	}
}

func TestTrackedUnits(t *testing.T) {
	cache := NewCache(50)
	cache.AddAndEnrich(makeReading("B", time.Now().UTC()))
	cache.AddAndEnrich(makeReading("A", time.Now().UTC()))

	units := cache.TrackedUnits()
	if len(units) != 2 || units[0] != "A" || units[1] != "B" {
		t.Errorf("TrackedUnits() = %v, want [A B]", units)
	}
}

func TestClearUnit_ResetsEnrichmentState(t *testing.T) {
	cache := NewCache(50)

	first := makeReading("IMEI123", time.Now().UTC())
	first.Latitude = floatPtr(-33.9)
	first.Longitude = floatPtr(18.4)
	cache.AddAndEnrich(first)

	cache.ClearUnit("IMEI123")

	if cache.GetLatest("IMEI123") != nil {
		t.Fatal("expected no latest reading after ClearUnit")
	}

	// The next reading behaves exactly as a first-ever reading: no
	// residual enrichment from pre-clear state.
	fresh := makeReading("IMEI123", time.Now().UTC())
	fresh.Speed = floatPtr(5)
	enriched := cache.AddAndEnrich(fresh)

	if enriched.Latitude != nil || enriched.Longitude != nil {
		t.Error("reading after ClearUnit must not inherit pre-clear coordinates")
	}
}

func TestClearAll(t *testing.T) {
	cache := NewCache(50)
	cache.AddAndEnrich(makeReading("A", time.Now().UTC()))
	cache.AddAndEnrich(makeReading("B", time.Now().UTC()))

	cache.ClearAll()

	if cache.Len() != 0 {
		t.Errorf("Len() = %d after ClearAll, want 0", cache.Len())
	}
}

func TestAddAndEnrich_ConcurrentSameUnit(t *testing.T) {
	cache := NewCache(50)
	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				r := makeReading("IMEI123", time.Now().UTC())
				// Latitude and longitude always written as a
				// matched pair; a torn merge would break it.
				v := float64(w*perWriter + i)
				r.Latitude = floatPtr(v)
				r.Longitude = floatPtr(-v)
				cache.AddAndEnrich(r)
			}
		}(w)
	}
	wg.Wait()

	latest := cache.GetLatest("IMEI123")
	if latest == nil || latest.Latitude == nil || latest.Longitude == nil {
		t.Fatal("expected coordinates after concurrent writes")
	}
	if *latest.Latitude != -*latest.Longitude {
		t.Errorf("torn merge: latitude %v does not match longitude %v", *latest.Latitude, *latest.Longitude)
	}

	if got := len(cache.GetHistory("IMEI123", 100)); got != 50 {
		t.Errorf("history length = %d, want bounded at 50", got)
	}
}

func TestAddAndEnrich_ConcurrentDistinctUnits(t *testing.T) {
	cache := NewCache(10)
	const units = 16

	var wg sync.WaitGroup
	for u := 0; u < units; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			imei := fmt.Sprintf("IMEI%03d", u)
			for i := 0; i < 25; i++ {
				r := makeReading(imei, time.Now().UTC())
				r.Satellites = intPtr(i)
				cache.AddAndEnrich(r)
			}
		}(u)
	}
	wg.Wait()

	if cache.Len() != units {
		t.Errorf("Len() = %d, want %d", cache.Len(), units)
	}
	for u := 0; u < units; u++ {
		imei := fmt.Sprintf("IMEI%03d", u)
		latest := cache.GetLatest(imei)
		if latest == nil || *latest.Satellites != 24 {
			t.Errorf("unit %s latest = %v, want Satellites 24", imei, latest)
		}
	}
}

func TestAddAndEnrich_SnapshotNeverRollsBack(t *testing.T) {
	cache := NewCache(50)

	withValue := makeReading("IMEI123", time.Now().UTC())
	withValue.Temperature = floatPtr(30)
	cache.AddAndEnrich(withValue)

	// Several readings without temperature must keep re-enriching the
	// original value.
	for i := 0; i < 5; i++ {
		enriched := cache.AddAndEnrich(makeReading("IMEI123", time.Now().UTC()))
		if enriched.Temperature == nil || *enriched.Temperature != 30 {
			t.Fatalf("iteration %d: Temperature = %v, want 30", i, enriched.Temperature)
		}
	}
}
