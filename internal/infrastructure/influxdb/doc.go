// Package influxdb provides the time-series store for vehicle telemetry.
//
// This package manages:
//   - Connection to InfluxDB v2 with token authentication
//   - Non-blocking, batched writes of enriched readings
//   - Flux queries backing the query facade's durable-store fallback
//   - Health monitoring
//
// # Data Model
//
// Every enriched reading is written to the "vehicle_data" measurement,
// tagged with the unit's IMEI and its data topic. Only fields present on
// the reading are written; booleans are stored as 0/1 integers so they
// survive the Flux pivot used on the read path. Timestamps use
// millisecond precision, matching the resolution of the unit firmware.
//
// # Usage
//
//	store, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	store.WriteReading(reading)
//	latest, err := store.LatestReading(ctx, "867730050000000")
package influxdb
