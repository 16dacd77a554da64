package telemetry

import "time"

// Reading is one normalized telemetry sample for one tracking unit.
//
// Every scalar field is optional: a nil pointer means the device did not
// report the value, never a sentinel. Numeric fields hold values already
// converted to their natural unit (battery voltages are volts, not the
// millivolts carried on the wire).
type Reading struct {
	// IMEI is the stable hardware identifier of the tracking unit,
	// extracted from the topic. Immutable once created.
	IMEI string `json:"imei"`

	// Timestamp is device-reported when the payload carries one,
	// otherwise the ingestion time.
	Timestamp time.Time `json:"timestamp"`

	// RawPayload keeps the original message body for diagnostics/replay.
	RawPayload string `json:"rawPayload"`

	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	Speed              *float64 `json:"speed,omitempty"`
	Heading            *float64 `json:"heading,omitempty"`
	Altitude           *float64 `json:"altitude,omitempty"`
	Satellites         *int     `json:"satellites,omitempty"`
	HDOP               *float64 `json:"hdop,omitempty"`
	BatteryVoltage     *float64 `json:"batteryVoltage,omitempty"`
	UnitBatteryVoltage *float64 `json:"unitBatteryVoltage,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty"`
	Odometer           *float64 `json:"odometer,omitempty"`
	Ignition           *bool    `json:"ignition,omitempty"`
	Movement           *bool    `json:"movement,omitempty"`
	EventCode          *int     `json:"eventCode,omitempty"`
	Priority           *int     `json:"priority,omitempty"`
	RPM                *float64 `json:"rpm,omitempty"`
	Distance           *float64 `json:"distance,omitempty"`
}

// Clone returns an independent copy of the reading. All pointer fields are
// re-allocated so the copy shares no memory with the original. This is
// essential for cache isolation: callers may mutate a clone freely.
func (r *Reading) Clone() *Reading {
	if r == nil {
		return nil
	}

	cpy := *r
	cpy.Latitude = cloneFloat(r.Latitude)
	cpy.Longitude = cloneFloat(r.Longitude)
	cpy.Speed = cloneFloat(r.Speed)
	cpy.Heading = cloneFloat(r.Heading)
	cpy.Altitude = cloneFloat(r.Altitude)
	cpy.Satellites = cloneInt(r.Satellites)
	cpy.HDOP = cloneFloat(r.HDOP)
	cpy.BatteryVoltage = cloneFloat(r.BatteryVoltage)
	cpy.UnitBatteryVoltage = cloneFloat(r.UnitBatteryVoltage)
	cpy.Temperature = cloneFloat(r.Temperature)
	cpy.Odometer = cloneFloat(r.Odometer)
	cpy.Ignition = cloneBool(r.Ignition)
	cpy.Movement = cloneBool(r.Movement)
	cpy.EventCode = cloneInt(r.EventCode)
	cpy.Priority = cloneInt(r.Priority)
	cpy.RPM = cloneFloat(r.RPM)
	cpy.Distance = cloneFloat(r.Distance)
	return &cpy
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	cpy := *v
	return &cpy
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	cpy := *v
	return &cpy
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	cpy := *v
	return &cpy
}
