package fleet

import "errors"

// Domain errors for the fleet package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, fleet.ErrVehicleNotFound) {
//	    // handle not found case
//	}
var (
	// ErrVehicleNotFound is returned when a vehicle ID does not exist.
	ErrVehicleNotFound = errors.New("fleet: vehicle not found")

	// ErrUnitNotFound is returned when a tracking unit does not exist.
	ErrUnitNotFound = errors.New("fleet: tracking unit not found")

	// ErrUnitExists is returned when creating a tracking unit whose IMEI
	// is already registered.
	ErrUnitExists = errors.New("fleet: tracking unit already exists")

	// ErrInvalidVehicle is returned when vehicle validation fails.
	ErrInvalidVehicle = errors.New("fleet: invalid vehicle")

	// ErrInvalidUnit is returned when tracking unit validation fails.
	ErrInvalidUnit = errors.New("fleet: invalid tracking unit")
)
