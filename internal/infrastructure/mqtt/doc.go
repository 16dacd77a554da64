// Package mqtt provides the MQTT client used to receive telemetry from
// tracking units.
//
// This package manages:
//   - Mutual-TLS connection to the fleet broker with auto-reconnect
//   - Subscriptions to per-unit data topics ({imei}/data)
//   - Message publishing for diagnostics and test tooling
//   - Connection health monitoring
//
// # Architecture
//
// Tracking units publish JSON location messages to "{imei}/data". The core
// subscribes with the single-level wildcard "+/data" so every unit in the
// fleet is covered by one subscription; the IMEI is recovered from the
// topic of each delivered message.
//
//	Tracking Units → MQTT Broker → NeloFMS Core
//
// # Security Considerations
//
//   - The broker requires a client certificate (mutual TLS)
//   - Server certificate verification is on by default; the
//     insecure_skip_verify config flag disables it explicitly
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.AllUnitData(), 1,
//	    func(topic string, payload []byte) error {
//	        imei, ok := mqtt.ParseDataTopic(topic)
//	        ...
//	    })
package mqtt
