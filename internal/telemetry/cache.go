package telemetry

import (
	"sort"
	"sync"
)

// DefaultMaxRecords bounds the per-unit reading history unless overridden.
const DefaultMaxRecords = 50

// Cache holds per-unit telemetry state: a bounded most-recent-first history
// of enriched readings and the last known complete reading used to fill in
// absent fields on new samples.
//
// The cache is an explicit handle constructed at startup and shared by the
// ingestion coordinator (writer) and the query facade (readers) — there is
// no package-level instance.
//
// Thread Safety:
//   - AddAndEnrich calls for the same unit are serialized by a per-unit
//     mutex; different units proceed concurrently.
//   - Readers observe consistent snapshots and receive independent copies.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*unitEntry
	maxRecords int
}

// unitEntry is the per-unit state. The history is a ring buffer so that
// inserting a reading and evicting the oldest are both O(1).
type unitEntry struct {
	mu             sync.Mutex
	buf            []*Reading
	head           int // index of the most recent reading
	count          int
	latestComplete *Reading
}

// NewCache creates an enrichment cache bounding each unit's history to
// maxRecords entries. Non-positive values fall back to DefaultMaxRecords.
func NewCache(maxRecords int) *Cache {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Cache{
		entries:    make(map[string]*unitEntry),
		maxRecords: maxRecords,
	}
}

// AddAndEnrich merges a new reading against the unit's last known complete
// reading (the input wins wherever it has a value), records the enriched
// result at the head of the unit's history, and folds the enriched values
// back into the last-known-complete snapshot.
//
// The first reading ever seen for a unit is stored unchanged.
//
// Returns an independent copy of the enriched reading; mutating it does not
// affect cache state.
func (c *Cache) AddAndEnrich(reading *Reading) *Reading {
	entry := c.entry(reading.IMEI)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	enriched := entry.enrich(reading)
	entry.push(enriched)
	entry.updateLatestComplete(enriched)

	return enriched.Clone()
}

// GetLatest returns the most recent enriched reading for a unit, or nil if
// the unit is unknown.
func (c *Cache) GetLatest(imei string) *Reading {
	entry := c.lookup(imei)
	if entry == nil {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.count == 0 {
		return nil
	}
	return entry.buf[entry.head].Clone()
}

// GetHistory returns up to count readings for a unit, most recent first.
// An unknown unit yields an empty slice, not an error.
func (c *Cache) GetHistory(imei string, count int) []*Reading {
	entry := c.lookup(imei)
	if entry == nil || count <= 0 {
		return []*Reading{}
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	n := count
	if n > entry.count {
		n = entry.count
	}

	history := make([]*Reading, 0, n)
	for i := 0; i < n; i++ {
		history = append(history, entry.buf[(entry.head+i)%len(entry.buf)].Clone())
	}
	return history
}

// TrackedUnits returns the ids of all units with at least one cached
// reading, sorted for deterministic output.
func (c *Cache) TrackedUnits() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	units := make([]string, 0, len(c.entries))
	for imei := range c.entries {
		units = append(units, imei)
	}
	sort.Strings(units)
	return units
}

// ClearUnit removes a unit's entry entirely. Subsequent readings for the
// unit start a fresh first-reading state with no residual enrichment.
func (c *Cache) ClearUnit(imei string) {
	c.mu.Lock()
	delete(c.entries, imei)
	c.mu.Unlock()
}

// ClearAll removes every cached unit.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.entries = make(map[string]*unitEntry)
	c.mu.Unlock()
}

// Len returns the number of tracked units.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// entry returns the unit's cache entry, creating it lazily on first use.
func (c *Cache) entry(imei string) *unitEntry {
	c.mu.RLock()
	entry, ok := c.entries[imei]
	c.mu.RUnlock()
	if ok {
		return entry
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Re-check: another writer may have raced us here.
	if entry, ok = c.entries[imei]; ok {
		return entry
	}
	entry = &unitEntry{buf: make([]*Reading, c.maxRecords)}
	c.entries[imei] = entry
	return entry
}

// lookup returns the unit's entry or nil without creating one.
func (c *Cache) lookup(imei string) *unitEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[imei]
}

// enrich builds a new reading where every absent optional field is filled
// from the last known complete reading. Identity fields (IMEI, timestamp,
// raw payload) always come from the input. The input is never mutated.
func (e *unitEntry) enrich(input *Reading) *Reading {
	if e.latestComplete == nil {
		return input.Clone()
	}

	enriched := input.Clone()
	last := e.latestComplete

	if enriched.Latitude == nil {
		enriched.Latitude = cloneFloat(last.Latitude)
	}
	if enriched.Longitude == nil {
		enriched.Longitude = cloneFloat(last.Longitude)
	}
	if enriched.Speed == nil {
		enriched.Speed = cloneFloat(last.Speed)
	}
	if enriched.Heading == nil {
		enriched.Heading = cloneFloat(last.Heading)
	}
	if enriched.Altitude == nil {
		enriched.Altitude = cloneFloat(last.Altitude)
	}
	if enriched.Satellites == nil {
		enriched.Satellites = cloneInt(last.Satellites)
	}
	if enriched.HDOP == nil {
		enriched.HDOP = cloneFloat(last.HDOP)
	}
	if enriched.BatteryVoltage == nil {
		enriched.BatteryVoltage = cloneFloat(last.BatteryVoltage)
	}
	if enriched.UnitBatteryVoltage == nil {
		enriched.UnitBatteryVoltage = cloneFloat(last.UnitBatteryVoltage)
	}
	if enriched.Temperature == nil {
		enriched.Temperature = cloneFloat(last.Temperature)
	}
	if enriched.Odometer == nil {
		enriched.Odometer = cloneFloat(last.Odometer)
	}
	if enriched.Ignition == nil {
		enriched.Ignition = cloneBool(last.Ignition)
	}
	if enriched.Movement == nil {
		enriched.Movement = cloneBool(last.Movement)
	}
	if enriched.EventCode == nil {
		enriched.EventCode = cloneInt(last.EventCode)
	}
	if enriched.Priority == nil {
		enriched.Priority = cloneInt(last.Priority)
	}
	if enriched.RPM == nil {
		enriched.RPM = cloneFloat(last.RPM)
	}
	if enriched.Distance == nil {
		enriched.Distance = cloneFloat(last.Distance)
	}

	return enriched
}

// push records the enriched reading as the unit's most recent, evicting the
// oldest entry once the ring is full.
func (e *unitEntry) push(enriched *Reading) {
	capacity := len(e.buf)
	e.head = (e.head - 1 + capacity) % capacity
	e.buf[e.head] = enriched
	if e.count < capacity {
		e.count++
	}
}

// updateLatestComplete overwrites every field present on the enriched
// reading onto the last-known-complete snapshot. Absent fields never roll
// back previously known values; the timestamp always advances to the
// enriched reading's timestamp.
func (e *unitEntry) updateLatestComplete(enriched *Reading) {
	if e.latestComplete == nil {
		e.latestComplete = enriched.Clone()
		return
	}

	last := e.latestComplete

	if enriched.Latitude != nil {
		last.Latitude = cloneFloat(enriched.Latitude)
	}
	if enriched.Longitude != nil {
		last.Longitude = cloneFloat(enriched.Longitude)
	}
	if enriched.Speed != nil {
		last.Speed = cloneFloat(enriched.Speed)
	}
	if enriched.Heading != nil {
		last.Heading = cloneFloat(enriched.Heading)
	}
	if enriched.Altitude != nil {
		last.Altitude = cloneFloat(enriched.Altitude)
	}
	if enriched.Satellites != nil {
		last.Satellites = cloneInt(enriched.Satellites)
	}
	if enriched.HDOP != nil {
		last.HDOP = cloneFloat(enriched.HDOP)
	}
	if enriched.BatteryVoltage != nil {
		last.BatteryVoltage = cloneFloat(enriched.BatteryVoltage)
	}
	if enriched.UnitBatteryVoltage != nil {
		last.UnitBatteryVoltage = cloneFloat(enriched.UnitBatteryVoltage)
	}
	if enriched.Temperature != nil {
		last.Temperature = cloneFloat(enriched.Temperature)
	}
	if enriched.Odometer != nil {
		last.Odometer = cloneFloat(enriched.Odometer)
	}
	if enriched.Ignition != nil {
		last.Ignition = cloneBool(enriched.Ignition)
	}
	if enriched.Movement != nil {
		last.Movement = cloneBool(enriched.Movement)
	}
	if enriched.EventCode != nil {
		last.EventCode = cloneInt(enriched.EventCode)
	}
	if enriched.Priority != nil {
		last.Priority = cloneInt(enriched.Priority)
	}
	if enriched.RPM != nil {
		last.RPM = cloneFloat(enriched.RPM)
	}
	if enriched.Distance != nil {
		last.Distance = cloneFloat(enriched.Distance)
	}

	last.Timestamp = enriched.Timestamp
	last.RawPayload = enriched.RawPayload
}
