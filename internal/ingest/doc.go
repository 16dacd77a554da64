// Package ingest runs the MQTT ingestion pipeline.
//
// The coordinator subscribes to the per-unit data topic, decodes each
// payload into a telemetry.Reading, enriches it through the live cache,
// and hands the enriched reading to the fanout hub and the downstream
// sinks (time-series store, fleet registry write-through).
//
// # Pipeline
//
//	broker -> decode -> cache.AddAndEnrich -> hub.Publish
//	                                       -> sink pools (bounded, async)
//
// Each sink runs behind its own bounded worker pool so a slow sink can
// never stall the broker handler: when a sink's queue is full the reading
// is dropped for that sink (and counted), while the cache and the live
// fan-out always see it.
//
// # Credentials Gate
//
// The broker requires mutual TLS. When the configured client certificate
// or key file is missing, Start logs the fact and leaves ingestion
// stopped rather than failing the process; the HTTP API stays up so the
// registry and historical queries keep working.
package ingest
