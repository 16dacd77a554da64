package fleet

import "time"

// Vehicle statuses.
const (
	StatusActive      = "active"
	StatusInactive    = "inactive"
	StatusMaintenance = "maintenance"
)

// Vehicle is a fleet vehicle, optionally fitted with one tracking unit.
//
// The Last* columns are a write-through of the most recent enriched
// reading for the vehicle's unit. They let the map render a position even
// when the live cache is cold.
type Vehicle struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	PlateNumber string  `json:"plateNumber"`
	Make        *string `json:"make,omitempty"`
	Model       *string `json:"model,omitempty"`
	Year        *int    `json:"year,omitempty"`
	Odometer    *int    `json:"odometer,omitempty"`
	VIN         *string `json:"vin,omitempty"`
	Color       *string `json:"color,omitempty"`
	Status      string  `json:"status"`
	Driver      *string `json:"driver,omitempty"`
	FuelLevel   *int    `json:"fuelLevel,omitempty"`
	Ignition    *bool   `json:"ignition,omitempty"`

	LastLocationUpdate *time.Time `json:"lastLocationUpdate,omitempty"`
	LastLatitude       *float64   `json:"lastLatitude,omitempty"`
	LastLongitude      *float64   `json:"lastLongitude,omitempty"`
	LastSpeed          *float64   `json:"lastSpeed,omitempty"`

	TrackingUnitID *string       `json:"trackingUnitId,omitempty"`
	TrackingUnit   *TrackingUnit `json:"trackingUnit,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// TrackingUnit is an installed telematics device. The IMEI is the identity
// the MQTT pipeline keys everything on.
type TrackingUnit struct {
	ID                string     `json:"id"`
	IMEI              string     `json:"imei"`
	SerialNumber      string     `json:"serialNumber"`
	Model             *string    `json:"model,omitempty"`
	Manufacturer      *string    `json:"manufacturer,omitempty"`
	FirmwareVersion   *string    `json:"firmwareVersion,omitempty"`
	IsActive          bool       `json:"isActive"`
	LastCommunication *time.Time `json:"lastCommunication,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// LastLocation carries the fields of an enriched reading that are written
// through to the vehicle row.
type LastLocation struct {
	Timestamp time.Time
	Latitude  *float64
	Longitude *float64
	Speed     *float64
	Ignition  *bool
	Odometer  *float64
}
