package telemetry

import "time"

// VehicleEvent is a derived event record produced from readings whose
// event code is non-zero. The numeric codes come from the tracking-unit
// firmware; the core only translates them for display.
type VehicleEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	IMEI        string    `json:"imei"`
	EventType   string    `json:"eventType"`
	EventCode   *int      `json:"eventCode,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Speed       *float64  `json:"speed,omitempty"`
	Description *string   `json:"description,omitempty"`
}

// eventNames maps firmware event codes to their type and description.
var eventNames = map[int][2]string{
	1:  {"TripStart", "Vehicle trip started"},
	2:  {"TripStop", "Vehicle trip ended"},
	3:  {"IgnitionOn", "Ignition turned on"},
	4:  {"IgnitionOff", "Ignition turned off"},
	5:  {"HarshBraking", "Harsh braking detected"},
	6:  {"HarshAcceleration", "Harsh acceleration detected"},
	7:  {"HarshCornering", "Harsh cornering detected"},
	8:  {"Overspeed", "Vehicle exceeded speed limit"},
	9:  {"Idling", "Vehicle idling for extended period"},
	10: {"GeofenceEnter", "Vehicle entered geofence"},
	11: {"GeofenceExit", "Vehicle exited geofence"},
	12: {"PowerDisconnect", "Power disconnected"},
	13: {"PowerReconnect", "Power reconnected"},
	14: {"Towing", "Vehicle towing detected"},
	15: {"Crash", "Crash or impact detected"},
}

// EventTypeForCode returns the event type name for a firmware event code.
// Unknown or absent codes yield "Unknown".
func EventTypeForCode(code *int) string {
	if code == nil {
		return "Unknown"
	}
	if names, ok := eventNames[*code]; ok {
		return names[0]
	}
	return "Unknown"
}

// EventDescriptionForCode returns the human-readable description for a
// firmware event code. Unknown or absent codes yield "Unknown event".
func EventDescriptionForCode(code *int) string {
	if code == nil {
		return "Unknown event"
	}
	if names, ok := eventNames[*code]; ok {
		return names[1]
	}
	return "Unknown event"
}
