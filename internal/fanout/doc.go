// Package fanout distributes enriched readings to live subscribers.
//
// The Hub keeps an explicit registry of subscribers and the channels they
// have joined. Two channel kinds exist: the fleet-wide broadcast channel,
// which every enriched reading is published to, and per-unit channels
// keyed by IMEI. The WebSocket layer binds subscribers to client
// connections; the hub itself knows nothing about transports.
//
// Delivery is non-blocking: each subscriber owns a buffered event channel
// and readings are dropped, not queued unboundedly, when a subscriber
// falls behind. Drops are counted per subscriber for diagnostics.
package fanout
