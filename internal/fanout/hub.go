package fanout

import (
	"sync"
	"sync/atomic"

	"github.com/samuelsono/nelo-fms/internal/telemetry"
)

// defaultBufferSize is the per-subscriber event buffer. A subscriber that
// lags this far behind starts losing readings rather than stalling the
// ingest path.
const defaultBufferSize = 256

// Channel identifies a fan-out destination.
type Channel string

// BroadcastChannel is the fleet-wide channel every enriched reading is
// published to.
func BroadcastChannel() Channel {
	return Channel("vehicle-data")
}

// DeviceChannel is the per-unit channel carrying only one IMEI's readings.
func DeviceChannel(imei string) Channel {
	return Channel("device:" + imei)
}

// Event is a reading delivered on a specific channel.
type Event struct {
	Channel Channel
	Reading *telemetry.Reading
}

// Logger is the logging interface used by the hub.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Hub routes enriched readings to subscribers.
//
// Membership is explicit: a subscriber receives nothing until it joins a
// channel, and stops receiving the moment it leaves. All methods are safe
// for concurrent use.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	channels    map[Channel]map[*Subscriber]struct{}
	logger      Logger
	closed      bool
}

// Subscriber is one registered consumer of readings.
type Subscriber struct {
	hub     *Hub
	events  chan Event
	dropped atomic.Uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		channels:    make(map[Channel]map[*Subscriber]struct{}),
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger used for delivery diagnostics.
func (h *Hub) SetLogger(logger Logger) {
	h.logger = logger
}

// Subscribe registers a new subscriber with the default buffer size.
// The subscriber is not joined to any channel yet.
func (h *Hub) Subscribe() *Subscriber {
	return h.SubscribeBuffered(defaultBufferSize)
}

// SubscribeBuffered registers a new subscriber with an explicit buffer size.
func (h *Hub) SubscribeBuffered(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = defaultBufferSize
	}
	sub := &Subscriber{
		hub:    h,
		events: make(chan Event, buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		// Closed hub hands back a subscriber whose channel is already
		// closed so consumers drain immediately.
		close(sub.events)
		return sub
	}
	h.subscribers[sub] = struct{}{}
	return sub
}

// Unsubscribe removes a subscriber from every channel and closes its event
// stream. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	_, existed := h.subscribers[sub]
	delete(h.subscribers, sub)
	for ch, members := range h.channels {
		delete(members, sub)
		if len(members) == 0 {
			delete(h.channels, ch)
		}
	}
	h.mu.Unlock()

	// Only the goroutine that removed the subscriber closes the channel,
	// preventing double-close panics during shutdown.
	if existed {
		close(sub.events)
	}
}

// Join adds a subscriber to a channel. Joining twice is a no-op.
func (h *Hub) Join(sub *Subscriber, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	members, ok := h.channels[ch]
	if !ok {
		members = make(map[*Subscriber]struct{})
		h.channels[ch] = members
	}
	members[sub] = struct{}{}
}

// Leave removes a subscriber from a channel. Leaving a channel it never
// joined is a no-op.
func (h *Hub) Leave(sub *Subscriber, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.channels[ch]
	if !ok {
		return
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(h.channels, ch)
	}
}

// Publish delivers a reading to the broadcast channel and to the unit's
// own channel. Subscribers joined to both receive one event per channel,
// each carrying the channel it arrived on.
func (h *Hub) Publish(reading *telemetry.Reading) {
	if reading == nil {
		return
	}
	h.publish(BroadcastChannel(), reading)
	h.publish(DeviceChannel(reading.IMEI), reading)
}

// publish delivers a reading to one channel's members.
func (h *Hub) publish(ch Channel, reading *telemetry.Reading) {
	// Snapshot membership under the lock, deliver outside it.
	h.mu.RLock()
	members := make([]*Subscriber, 0, len(h.channels[ch]))
	for sub := range h.channels[ch] {
		members = append(members, sub)
	}
	h.mu.RUnlock()

	event := Event{Channel: ch, Reading: reading}
	for _, sub := range members {
		sub.trySend(event)
	}
	if len(members) > 0 {
		h.logger.Debug("reading published", "channel", string(ch), "recipients", len(members))
	}
}

// SubscriberCount returns the number of registered subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// ChannelMembers returns how many subscribers have joined a channel.
func (h *Hub) ChannelMembers(ch Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[ch])
}

// Close unsubscribes every subscriber and rejects future registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.Unsubscribe(sub)
	}
}

// Events returns the subscriber's event stream. The channel is closed when
// the subscriber is unsubscribed or the hub shuts down.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Dropped returns how many events were discarded because this subscriber's
// buffer was full.
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// trySend attempts delivery without blocking. A full buffer counts a drop;
// a closed channel (racing unsubscribe) is absorbed.
func (s *Subscriber) trySend(event Event) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case s.events <- event:
	default:
		s.dropped.Add(1)
	}
}
