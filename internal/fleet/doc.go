// Package fleet provides the vehicle registry for NeloFMS.
//
// The registry is the catalogue of vehicles and the tracking units fitted
// to them, persisted in SQLite. It serves the REST API's vehicle CRUD and
// map endpoints, and the ingest pipeline writes each unit's last known
// location back onto its vehicle so the map survives a restart with no
// live telemetry.
//
// # Key Types
//
//   - Vehicle: a fleet vehicle, optionally linked to one tracking unit
//   - TrackingUnit: the installed telematics device, keyed by IMEI
//   - LocationUpdater: the ingest sink applying enriched readings to
//     the vehicle's last-known-location columns
//
// # Thread Safety
//
// Repository implementations must be safe for concurrent use; the SQLite
// implementation relies on database/sql connection serialisation.
package fleet
