package telemetry

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Payload field keys used by the tracking units.
//
// The flag and battery fields are numeric protocol IDs rather than names;
// they come straight off the device firmware.
const (
	keyTimestamp   = "ts"       // epoch milliseconds
	keyLatLng      = "latlng"   // "lat,lng" string
	keyIgnition    = "239"      // positive integer = on
	keyMovement    = "240"      // positive integer = moving
	keyBatteryMV   = "66"       // millivolts
	keyUnitBattMV  = "67"       // millivolts
	keySpeed       = "sp"
	keyHeading     = "ang"
	keyAltitude    = "alt"
	keySatellites  = "sat"
	keyHDOP        = "hdop"
	keyTemperature = "temp"
	keyOdometer    = "odometer"
	keyMileage     = "mileage" // alternate odometer key
	keyEventCode   = "evt"
	keyPriority    = "pr"
	keyRPM         = "rpm"
	keyDistance    = "distance"
)

// millivoltsPerVolt converts the wire battery fields to volts.
const millivoltsPerVolt = 1000.0

// Outcome classifies the result of decoding one payload, so callers and
// tests can assert on decode quality without relying on panics or errors.
type Outcome int

const (
	// DecodeFull means the payload was valid JSON and every recognised
	// field it carried was usable.
	DecodeFull Outcome = iota

	// DecodePartial means the payload was valid JSON but at least one
	// recognised field was malformed and dropped.
	DecodePartial

	// DecodeUnparseable means the payload was not valid JSON; the
	// reading carries only the unit id, ingestion time, and raw payload.
	DecodeUnparseable
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	switch o {
	case DecodeFull:
		return "full"
	case DecodePartial:
		return "partial"
	case DecodeUnparseable:
		return "unparseable"
	default:
		return "unknown"
	}
}

// Decode parses one raw transport payload into a normalized Reading.
//
// It never fails: malformed JSON degrades to a minimal reading carrying
// only the unit id, ingestion timestamp, and raw payload. Individual
// malformed fields are dropped rather than failing the whole message.
//
// Payloads may be a flat JSON object or wrapped in a device-shadow
// envelope {"state":{"reported":{...}}}; the reported object is then
// treated as the message body.
//
// Parameters:
//   - payload: raw UTF-8 message body
//   - imei: unit identifier derived from the topic
//   - now: ingestion time, used when the payload has no ts field
func Decode(payload []byte, imei string, now time.Time) (*Reading, Outcome) {
	reading := &Reading{
		IMEI:       imei,
		Timestamp:  now.UTC(),
		RawPayload: string(payload),
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(payload, &root); err != nil {
		return reading, DecodeUnparseable
	}

	body := unwrapShadow(root)
	partial := false

	// Timestamp: epoch milliseconds when present and numeric.
	if raw, ok := body[keyTimestamp]; ok {
		if ms, ok := rawInt64(raw); ok {
			reading.Timestamp = time.UnixMilli(ms).UTC()
		} else {
			partial = true
		}
	}

	// Position: all-or-nothing "lat,lng" pair. A malformed string
	// yields both coordinates absent, never a partial pair.
	if raw, ok := body[keyLatLng]; ok {
		lat, lng, ok := parseLatLng(raw)
		if ok {
			reading.Latitude = &lat
			reading.Longitude = &lng
		} else {
			partial = true
		}
	}

	reading.Ignition, partial = decodeFlag(body, keyIgnition, partial)
	reading.Movement, partial = decodeFlag(body, keyMovement, partial)

	// Battery channels arrive in millivolts.
	reading.BatteryVoltage, partial = decodeMillivolts(body, keyBatteryMV, partial)
	reading.UnitBatteryVoltage, partial = decodeMillivolts(body, keyUnitBattMV, partial)

	reading.Speed, partial = decodeFloat(body, keySpeed, partial)
	reading.Heading, partial = decodeFloat(body, keyHeading, partial)
	reading.Altitude, partial = decodeFloat(body, keyAltitude, partial)
	reading.Satellites, partial = decodeInt(body, keySatellites, partial)
	reading.HDOP, partial = decodeFloat(body, keyHDOP, partial)
	reading.Temperature, partial = decodeFloat(body, keyTemperature, partial)
	reading.EventCode, partial = decodeInt(body, keyEventCode, partial)
	reading.Priority, partial = decodeInt(body, keyPriority, partial)
	reading.RPM, partial = decodeFloat(body, keyRPM, partial)
	reading.Distance, partial = decodeFloat(body, keyDistance, partial)

	// Odometer is carried under either of two keys. Mileage backs up
	// odometer whenever the latter yielded no value, including when it
	// was present but unreadable.
	reading.Odometer, partial = decodeFloat(body, keyOdometer, partial)
	if reading.Odometer == nil {
		reading.Odometer, partial = decodeFloat(body, keyMileage, partial)
	}

	if partial {
		return reading, DecodePartial
	}
	return reading, DecodeFull
}

// unwrapShadow returns the device-shadow "reported" object when the payload
// uses the {"state":{"reported":{...}}} envelope, otherwise the root object.
func unwrapShadow(root map[string]json.RawMessage) map[string]json.RawMessage {
	stateRaw, ok := root["state"]
	if !ok {
		return root
	}

	var state map[string]json.RawMessage
	if err := json.Unmarshal(stateRaw, &state); err != nil {
		return root
	}

	reportedRaw, ok := state["reported"]
	if !ok {
		return root
	}

	var reported map[string]json.RawMessage
	if err := json.Unmarshal(reportedRaw, &reported); err != nil {
		return root
	}
	return reported
}

// parseLatLng splits a "lat,lng" string; both halves must parse for either
// coordinate to be accepted.
func parseLatLng(raw json.RawMessage) (lat, lng float64, ok bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, 0, false
	}

	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}

	lat, latErr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if latErr != nil || lngErr != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

// decodeFlag reads a numeric flag field: any positive integer means true,
// zero (or negative) means false, absence means unknown.
func decodeFlag(body map[string]json.RawMessage, key string, partial bool) (*bool, bool) {
	raw, ok := body[key]
	if !ok {
		return nil, partial
	}
	n, ok := rawInt64(raw)
	if !ok {
		return nil, true
	}
	v := n > 0
	return &v, partial
}

// decodeMillivolts reads a numeric field carried in millivolts and converts
// it to volts.
func decodeMillivolts(body map[string]json.RawMessage, key string, partial bool) (*float64, bool) {
	v, partial := decodeFloat(body, key, partial)
	if v == nil {
		return nil, partial
	}
	volts := *v / millivoltsPerVolt
	return &volts, partial
}

// decodeFloat reads an optional numeric field; parse failures leave the
// field absent and mark the decode partial.
func decodeFloat(body map[string]json.RawMessage, key string, partial bool) (*float64, bool) {
	raw, ok := body[key]
	if !ok {
		return nil, partial
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, true
	}
	return &v, partial
}

// decodeInt reads an optional integer field; non-integer numbers and parse
// failures leave the field absent and mark the decode partial.
func decodeInt(body map[string]json.RawMessage, key string, partial bool) (*int, bool) {
	raw, ok := body[key]
	if !ok {
		return nil, partial
	}
	n, ok := rawInt64(raw)
	if !ok {
		return nil, true
	}
	v := int(n)
	return &v, partial
}

// rawInt64 parses a JSON number as an integer, rejecting fractions and
// non-numeric values.
func rawInt64(raw json.RawMessage) (int64, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	v, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return v, true
}
