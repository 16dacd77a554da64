package fleet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for fleet persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// ListVehicles retrieves all vehicles with their tracking units.
	ListVehicles(ctx context.Context) ([]Vehicle, error)

	// GetVehicle retrieves a vehicle by ID.
	// Returns ErrVehicleNotFound if the vehicle does not exist.
	GetVehicle(ctx context.Context, id string) (*Vehicle, error)

	// CreateVehicle inserts a new vehicle, assigning an ID when empty.
	CreateVehicle(ctx context.Context, vehicle *Vehicle) error

	// UpdateVehicle modifies an existing vehicle.
	// Returns ErrVehicleNotFound if the vehicle does not exist.
	UpdateVehicle(ctx context.Context, vehicle *Vehicle) error

	// DeleteVehicle removes a vehicle by ID.
	// Returns ErrVehicleNotFound if the vehicle does not exist.
	DeleteVehicle(ctx context.Context, id string) error

	// ListTrackingUnits retrieves all tracking units.
	ListTrackingUnits(ctx context.Context) ([]TrackingUnit, error)

	// CreateTrackingUnit inserts a new unit, assigning an ID when empty.
	// Returns ErrUnitExists if the IMEI is already registered.
	CreateTrackingUnit(ctx context.Context, unit *TrackingUnit) error

	// UpdateLastLocation writes an enriched reading through to the unit's
	// vehicle and stamps the unit's last communication time.
	// Returns ErrUnitNotFound if the IMEI is unknown.
	UpdateLastLocation(ctx context.Context, imei string, loc LastLocation) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const vehicleColumns = `
	v.id, v.name, v.plate_number, v.make, v.model, v.year, v.odometer,
	v.vin, v.color, v.status, v.driver, v.fuel_level, v.ignition,
	v.last_location_update, v.last_latitude, v.last_longitude, v.last_speed,
	v.tracking_unit_id, v.created_at,
	u.id, u.imei, u.serial_number, u.model, u.manufacturer,
	u.firmware_version, u.is_active, u.last_communication, u.created_at`

const vehicleFrom = `
	FROM vehicles v
	LEFT JOIN tracking_units u ON u.id = v.tracking_unit_id`

// ListVehicles retrieves all vehicles with their tracking units.
func (r *SQLiteRepository) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	query := "SELECT" + vehicleColumns + vehicleFrom + " ORDER BY v.name"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		vehicle, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning vehicle row: %w", err)
		}
		vehicles = append(vehicles, *vehicle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vehicles: %w", err)
	}
	return vehicles, nil
}

// GetVehicle retrieves a vehicle by ID.
func (r *SQLiteRepository) GetVehicle(ctx context.Context, id string) (*Vehicle, error) {
	query := "SELECT" + vehicleColumns + vehicleFrom + " WHERE v.id = ?"

	vehicle, err := scanVehicle(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVehicleNotFound
		}
		return nil, fmt.Errorf("querying vehicle by id: %w", err)
	}
	return vehicle, nil
}

// VehicleByIMEI retrieves the vehicle fitted with the given unit.
func (r *SQLiteRepository) VehicleByIMEI(ctx context.Context, imei string) (*Vehicle, error) {
	query := "SELECT" + vehicleColumns + vehicleFrom + " WHERE u.imei = ?"

	vehicle, err := scanVehicle(r.db.QueryRowContext(ctx, query, imei))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVehicleNotFound
		}
		return nil, fmt.Errorf("querying vehicle by imei: %w", err)
	}
	return vehicle, nil
}

// CreateVehicle inserts a new vehicle.
func (r *SQLiteRepository) CreateVehicle(ctx context.Context, vehicle *Vehicle) error {
	if strings.TrimSpace(vehicle.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidVehicle)
	}
	if vehicle.ID == "" {
		vehicle.ID = uuid.NewString()
	}
	if vehicle.Status == "" {
		vehicle.Status = StatusActive
	}
	if vehicle.CreatedAt.IsZero() {
		vehicle.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vehicles (
			id, name, plate_number, make, model, year, odometer, vin,
			color, status, driver, fuel_level, ignition,
			last_location_update, last_latitude, last_longitude, last_speed,
			tracking_unit_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		vehicle.ID, vehicle.Name, vehicle.PlateNumber,
		vehicle.Make, vehicle.Model, vehicle.Year, vehicle.Odometer,
		vehicle.VIN, vehicle.Color, vehicle.Status, vehicle.Driver,
		vehicle.FuelLevel, boolToNullInt(vehicle.Ignition),
		timeToNullString(vehicle.LastLocationUpdate),
		vehicle.LastLatitude, vehicle.LastLongitude, vehicle.LastSpeed,
		vehicle.TrackingUnitID,
		vehicle.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting vehicle: %w", err)
	}
	return nil
}

// UpdateVehicle modifies an existing vehicle's descriptive fields. The
// Last* location columns are owned by the ingest pipeline and are not
// touched here.
func (r *SQLiteRepository) UpdateVehicle(ctx context.Context, vehicle *Vehicle) error {
	if strings.TrimSpace(vehicle.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidVehicle)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE vehicles SET
			name = ?, plate_number = ?, make = ?, model = ?, year = ?,
			odometer = ?, vin = ?, color = ?, status = ?, driver = ?,
			fuel_level = ?, tracking_unit_id = ?
		WHERE id = ?`,
		vehicle.Name, vehicle.PlateNumber, vehicle.Make, vehicle.Model,
		vehicle.Year, vehicle.Odometer, vehicle.VIN, vehicle.Color,
		vehicle.Status, vehicle.Driver, vehicle.FuelLevel,
		vehicle.TrackingUnitID, vehicle.ID,
	)
	if err != nil {
		return fmt.Errorf("updating vehicle: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrVehicleNotFound
	}
	return nil
}

// DeleteVehicle removes a vehicle by ID.
func (r *SQLiteRepository) DeleteVehicle(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM vehicles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting vehicle: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrVehicleNotFound
	}
	return nil
}

// ListTrackingUnits retrieves all tracking units.
func (r *SQLiteRepository) ListTrackingUnits(ctx context.Context) ([]TrackingUnit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, imei, serial_number, model, manufacturer,
			firmware_version, is_active, last_communication, created_at
		FROM tracking_units
		ORDER BY imei`)
	if err != nil {
		return nil, fmt.Errorf("querying tracking units: %w", err)
	}
	defer rows.Close()

	var units []TrackingUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tracking unit row: %w", err)
		}
		units = append(units, *unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tracking units: %w", err)
	}
	return units, nil
}

// UnitByIMEI retrieves a tracking unit by IMEI.
func (r *SQLiteRepository) UnitByIMEI(ctx context.Context, imei string) (*TrackingUnit, error) {
	unit, err := scanUnit(r.db.QueryRowContext(ctx, `
		SELECT id, imei, serial_number, model, manufacturer,
			firmware_version, is_active, last_communication, created_at
		FROM tracking_units
		WHERE imei = ?`, imei))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnitNotFound
		}
		return nil, fmt.Errorf("querying tracking unit by imei: %w", err)
	}
	return unit, nil
}

// CreateTrackingUnit inserts a new tracking unit.
func (r *SQLiteRepository) CreateTrackingUnit(ctx context.Context, unit *TrackingUnit) error {
	if strings.TrimSpace(unit.IMEI) == "" {
		return fmt.Errorf("%w: imei is required", ErrInvalidUnit)
	}
	if unit.ID == "" {
		unit.ID = uuid.NewString()
	}
	if unit.CreatedAt.IsZero() {
		unit.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tracking_units (
			id, imei, serial_number, model, manufacturer,
			firmware_version, is_active, last_communication, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		unit.ID, unit.IMEI, unit.SerialNumber, unit.Model,
		unit.Manufacturer, unit.FirmwareVersion, unit.IsActive,
		timeToNullString(unit.LastCommunication),
		unit.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: imei %s", ErrUnitExists, unit.IMEI)
		}
		return fmt.Errorf("inserting tracking unit: %w", err)
	}
	return nil
}

// UpdateLastLocation writes an enriched reading through to the unit's
// vehicle and stamps the unit's last communication time. A unit with no
// assigned vehicle still gets its communication stamp.
func (r *SQLiteRepository) UpdateLastLocation(ctx context.Context, imei string, loc LastLocation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	stamp := loc.Timestamp.UTC().Format(time.RFC3339)

	result, err := tx.ExecContext(ctx,
		"UPDATE tracking_units SET last_communication = ? WHERE imei = ?",
		stamp, imei,
	)
	if err != nil {
		return fmt.Errorf("stamping tracking unit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking stamp result: %w", err)
	}
	if affected == 0 {
		return ErrUnitNotFound
	}

	// Fields absent from the reading keep their previous vehicle value.
	if _, err := tx.ExecContext(ctx, `
		UPDATE vehicles SET
			last_location_update = ?,
			last_latitude = COALESCE(?, last_latitude),
			last_longitude = COALESCE(?, last_longitude),
			last_speed = COALESCE(?, last_speed),
			ignition = COALESCE(?, ignition),
			odometer = COALESCE(?, odometer)
		WHERE tracking_unit_id = (SELECT id FROM tracking_units WHERE imei = ?)`,
		stamp, loc.Latitude, loc.Longitude, loc.Speed,
		boolToNullInt(loc.Ignition), floatToNullInt(loc.Odometer), imei,
	); err != nil {
		return fmt.Errorf("updating vehicle location: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing location update: %w", err)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

// scanVehicle reads one joined vehicle row, including the optional
// tracking unit columns from the LEFT JOIN.
func scanVehicle(row scanner) (*Vehicle, error) {
	var (
		v              Vehicle
		ignition       sql.NullInt64
		locationUpdate sql.NullString
		createdAt      string

		unitID       sql.NullString
		unitIMEI     sql.NullString
		unitSerial   sql.NullString
		unitModel    sql.NullString
		unitMaker    sql.NullString
		unitFirmware sql.NullString
		unitActive   sql.NullBool
		unitLastComm sql.NullString
		unitCreated  sql.NullString
	)

	err := row.Scan(
		&v.ID, &v.Name, &v.PlateNumber, &v.Make, &v.Model, &v.Year,
		&v.Odometer, &v.VIN, &v.Color, &v.Status, &v.Driver, &v.FuelLevel,
		&ignition, &locationUpdate, &v.LastLatitude, &v.LastLongitude,
		&v.LastSpeed, &v.TrackingUnitID, &createdAt,
		&unitID, &unitIMEI, &unitSerial, &unitModel, &unitMaker,
		&unitFirmware, &unitActive, &unitLastComm, &unitCreated,
	)
	if err != nil {
		return nil, err
	}

	if ignition.Valid {
		b := ignition.Int64 > 0
		v.Ignition = &b
	}
	v.LastLocationUpdate = parseNullTime(locationUpdate)
	v.CreatedAt = parseTime(createdAt)

	if unitID.Valid {
		v.TrackingUnit = &TrackingUnit{
			ID:                unitID.String,
			IMEI:              unitIMEI.String,
			SerialNumber:      unitSerial.String,
			Model:             nullString(unitModel),
			Manufacturer:      nullString(unitMaker),
			FirmwareVersion:   nullString(unitFirmware),
			IsActive:          unitActive.Bool,
			LastCommunication: parseNullTime(unitLastComm),
			CreatedAt:         parseTime(unitCreated.String),
		}
	}

	return &v, nil
}

// scanUnit reads one tracking unit row.
func scanUnit(row scanner) (*TrackingUnit, error) {
	var (
		u        TrackingUnit
		lastComm sql.NullString
		created  string
	)

	err := row.Scan(
		&u.ID, &u.IMEI, &u.SerialNumber, &u.Model, &u.Manufacturer,
		&u.FirmwareVersion, &u.IsActive, &lastComm, &created,
	)
	if err != nil {
		return nil, err
	}

	u.LastCommunication = parseNullTime(lastComm)
	u.CreatedAt = parseTime(created)
	return &u, nil
}

func boolToNullInt(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return int64(1)
	}
	return int64(0)
}

func floatToNullInt(f *float64) any {
	if f == nil {
		return nil
	}
	return int64(*f)
}

func timeToNullString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	value := s.String
	return &value
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s) //nolint:errcheck // Format is controlled
	return t
}
