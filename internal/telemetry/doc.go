// Package telemetry implements the live-telemetry core of NeloFMS: the
// normalized Reading model, the tolerant message decoder, and the per-unit
// enrichment cache that fills absent fields from the last known complete
// reading for each tracking unit.
//
// # Data Flow
//
//	broker payload -> Decode -> Cache.AddAndEnrich -> enriched Reading
//
// The enriched reading is then dispatched by the ingest package to the
// fan-out hub, the time-series store, and the relational fleet store.
//
// # Thread Safety
//
// The Cache is safe for concurrent use. AddAndEnrich calls for the same
// unit are serialized on a per-unit mutex; calls for different units run
// concurrently. All readings handed out are independent copies — mutating
// a returned Reading never changes cache state.
package telemetry
