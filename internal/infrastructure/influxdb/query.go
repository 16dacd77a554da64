package influxdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/query"

	"github.com/samuelsono/nelo-fms/internal/telemetry"
)

// queryRange bounds how far back latest/history queries look. Units that
// have been silent longer than this are treated as absent.
const queryRange = 24 * time.Hour

// LatestReading returns the most recent stored reading for a unit, or nil
// when the unit has no data within the query range.
func (c *Client) LatestReading(ctx context.Context, imei string) (*telemetry.Reading, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	flux := fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%ds)
  |> filter(fn: (r) => r._measurement == %q)
  |> filter(fn: (r) => r.imei == %q)
  |> last()
  |> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
`, c.cfg.Bucket, int(queryRange.Seconds()), measurement, sanitizeTag(imei))

	result, err := c.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("%w: latest reading: %w", ErrQueryFailed, err)
	}
	defer result.Close() //nolint:errcheck // Stream cleanup

	if !result.Next() {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("%w: latest reading: %w", ErrQueryFailed, err)
		}
		return nil, nil
	}

	return readingFromRecord(result.Record(), imei), nil
}

// ReadingHistory returns up to count stored readings for a unit, most
// recent first.
func (c *Client) ReadingHistory(ctx context.Context, imei string, count int) ([]*telemetry.Reading, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	flux := fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%ds)
  |> filter(fn: (r) => r._measurement == %q)
  |> filter(fn: (r) => r.imei == %q)
  |> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d)
`, c.cfg.Bucket, int(queryRange.Seconds()), measurement, sanitizeTag(imei), count)

	result, err := c.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("%w: reading history: %w", ErrQueryFailed, err)
	}
	defer result.Close() //nolint:errcheck // Stream cleanup

	readings := []*telemetry.Reading{}
	for result.Next() {
		readings = append(readings, readingFromRecord(result.Record(), imei))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading history: %w", ErrQueryFailed, err)
	}

	return readings, nil
}

// VehicleEvents returns derived event records for a unit: stored readings
// within the timespan whose event code is non-zero, most recent first.
func (c *Client) VehicleEvents(ctx context.Context, imei string, timespan time.Duration, limit int) ([]telemetry.VehicleEvent, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	flux := fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%ds)
  |> filter(fn: (r) => r._measurement == %q)
  |> filter(fn: (r) => r.imei == %q)
  |> filter(fn: (r) => r._field == "eventCode")
  |> filter(fn: (r) => r._value != 0)
  |> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d)
`, c.cfg.Bucket, int(timespan.Seconds()), measurement, sanitizeTag(imei), limit)

	result, err := c.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("%w: vehicle events: %w", ErrQueryFailed, err)
	}
	defer result.Close() //nolint:errcheck // Stream cleanup

	events := []telemetry.VehicleEvent{}
	for result.Next() {
		record := result.Record()
		code := intField(record, "eventCode")
		description := telemetry.EventDescriptionForCode(code)
		events = append(events, telemetry.VehicleEvent{
			Timestamp:   record.Time(),
			IMEI:        imei,
			EventCode:   code,
			EventType:   telemetry.EventTypeForCode(code),
			Description: &description,
			Latitude:    floatField(record, "latitude"),
			Longitude:   floatField(record, "longitude"),
			Speed:       floatField(record, "speed"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: vehicle events: %w", ErrQueryFailed, err)
	}

	return events, nil
}

// readingFromRecord rebuilds a Reading from a pivoted Flux record.
// Absent columns stay nil; the raw payload is not stored and stays empty.
func readingFromRecord(record *query.FluxRecord, imei string) *telemetry.Reading {
	return &telemetry.Reading{
		IMEI:               imei,
		Timestamp:          record.Time(),
		Latitude:           floatField(record, "latitude"),
		Longitude:          floatField(record, "longitude"),
		Speed:              floatField(record, "speed"),
		Heading:            floatField(record, "heading"),
		Altitude:           floatField(record, "altitude"),
		Satellites:         intField(record, "satellites"),
		HDOP:               floatField(record, "hdop"),
		BatteryVoltage:     floatField(record, "batteryVoltage"),
		UnitBatteryVoltage: floatField(record, "unitBatteryVoltage"),
		Temperature:        floatField(record, "temperature"),
		Odometer:           floatField(record, "odometer"),
		Ignition:           boolField(record, "ignition"),
		Movement:           boolField(record, "movement"),
		EventCode:          intField(record, "eventCode"),
		Priority:           intField(record, "priority"),
		RPM:                floatField(record, "rpm"),
		Distance:           floatField(record, "distance"),
	}
}

// floatField extracts a numeric column as *float64, nil when absent or
// non-numeric.
func floatField(record *query.FluxRecord, name string) *float64 {
	value, ok := numericValue(record, name)
	if !ok {
		return nil
	}
	return &value
}

// intField extracts a numeric column as *int, nil when absent.
func intField(record *query.FluxRecord, name string) *int {
	value, ok := numericValue(record, name)
	if !ok {
		return nil
	}
	i := int(value)
	return &i
}

// boolField extracts a 0/1 column written by WriteReading back to *bool.
func boolField(record *query.FluxRecord, name string) *bool {
	value, ok := numericValue(record, name)
	if !ok {
		return nil
	}
	b := value > 0
	return &b
}

// numericValue reads a pivoted column, tolerating the integer and float
// types the client library may hand back.
func numericValue(record *query.FluxRecord, name string) (float64, bool) {
	raw := record.ValueByKey(name)
	switch v := raw.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// sanitizeTag strips characters that would break out of a quoted Flux
// string literal. IMEIs are numeric, so anything else is hostile input.
func sanitizeTag(value string) string {
	return strings.NewReplacer(`"`, ``, `\`, ``, "\n", "").Replace(value)
}
