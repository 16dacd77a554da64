package influxdb

import (
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/samuelsono/nelo-fms/internal/infrastructure/mqtt"
	"github.com/samuelsono/nelo-fms/internal/telemetry"
)

// measurement is the single measurement holding all vehicle telemetry.
const measurement = "vehicle_data"

// WriteReading records an enriched reading in the vehicle_data measurement.
//
// The point is tagged with the unit's IMEI and data topic. Only fields
// present on the reading are written; booleans are stored as 0/1 so the
// pivot on the read path yields numeric columns. The write is non-blocking
// and batched; failures surface via the SetOnError callback.
func (c *Client) WriteReading(reading *telemetry.Reading) {
	if !c.IsConnected() || reading == nil {
		return
	}

	fields := make(map[string]interface{})
	putFloat := func(name string, v *float64) {
		if v != nil {
			fields[name] = *v
		}
	}
	putInt := func(name string, v *int) {
		if v != nil {
			fields[name] = int64(*v)
		}
	}
	putBool := func(name string, v *bool) {
		if v == nil {
			return
		}
		if *v {
			fields[name] = int64(1)
		} else {
			fields[name] = int64(0)
		}
	}

	putFloat("latitude", reading.Latitude)
	putFloat("longitude", reading.Longitude)
	putFloat("speed", reading.Speed)
	putFloat("heading", reading.Heading)
	putFloat("altitude", reading.Altitude)
	putInt("satellites", reading.Satellites)
	putFloat("hdop", reading.HDOP)
	putFloat("batteryVoltage", reading.BatteryVoltage)
	putFloat("unitBatteryVoltage", reading.UnitBatteryVoltage)
	putFloat("temperature", reading.Temperature)
	putFloat("odometer", reading.Odometer)
	putBool("ignition", reading.Ignition)
	putBool("movement", reading.Movement)
	putInt("eventCode", reading.EventCode)
	putInt("priority", reading.Priority)
	putFloat("rpm", reading.RPM)
	putFloat("distance", reading.Distance)

	if len(fields) == 0 {
		// A reading with no scalar values carries no queryable data.
		return
	}

	point := write.NewPoint(
		measurement,
		map[string]string{
			"imei":  reading.IMEI,
			"topic": mqtt.UnitData(reading.IMEI),
		},
		fields,
		reading.Timestamp,
	)

	c.writeAPI.WritePoint(point)
}
