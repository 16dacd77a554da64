package ingest

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samuelsono/nelo-fms/internal/fanout"
	"github.com/samuelsono/nelo-fms/internal/infrastructure/config"
	"github.com/samuelsono/nelo-fms/internal/infrastructure/mqtt"
	"github.com/samuelsono/nelo-fms/internal/telemetry"
)

// broker is the slice of the MQTT client the coordinator uses.
type broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	HasSubscription(topic string) bool
	IsConnected() bool
	Close() error
}

// Status is the ingestion state reported by the API.
type Status struct {
	Running     bool              `json:"running"`
	Connected   bool              `json:"connected"`
	Subscribed  bool              `json:"subscribed"`
	Topic       string            `json:"topic"`
	Received    uint64            `json:"messagesReceived"`
	Ignored     uint64            `json:"messagesIgnored"`
	Unparseable uint64            `json:"unparseablePayloads"`
	SinkDrops   map[string]uint64 `json:"sinkDrops,omitempty"`
}

// Coordinator owns the MQTT subscription and drives the ingestion
// pipeline. Construct with NewCoordinator, register sinks with AddSink,
// then call Start.
type Coordinator struct {
	cfg    config.MQTTConfig
	cache  *telemetry.Cache
	hub    *fanout.Hub
	logger Logger

	// connect is swappable for tests.
	connect func(cfg config.MQTTConfig) (broker, error)

	mu      sync.Mutex
	client  broker
	running bool
	topic   string
	pools   []*Pool

	received    atomic.Uint64
	ignored     atomic.Uint64
	unparseable atomic.Uint64
}

// NewCoordinator creates a coordinator over the given cache and hub.
func NewCoordinator(cfg config.MQTTConfig, cache *telemetry.Cache, hub *fanout.Hub, logger Logger) *Coordinator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Coordinator{
		cfg:    cfg,
		cache:  cache,
		hub:    hub,
		logger: logger,
		connect: func(cfg config.MQTTConfig) (broker, error) {
			return mqtt.Connect(cfg)
		},
	}
}

// AddSink registers a downstream sink behind a bounded worker pool.
// Must be called before Start.
func (c *Coordinator) AddSink(name string, fn SinkFunc, workers, queueSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools = append(c.pools, NewPool(name, fn, workers, queueSize, c.logger))
}

// Start connects to the broker and subscribes to the unit data topic.
//
// Ingestion being unavailable is not fatal: when MQTT is disabled, or the
// mutual-TLS credentials are missing, Start logs why and returns nil with
// the coordinator stopped. Broker connection failures are returned.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	if !c.cfg.Enabled {
		c.logger.Info("mqtt disabled, ingestion stopped")
		return nil
	}
	if !mqtt.CredentialsPresent(c.cfg) {
		c.logger.Warn("mqtt client certificate or key missing, ingestion stopped",
			"cert_file", c.cfg.TLS.CertFile, "key_file", c.cfg.TLS.KeyFile)
		return nil
	}

	client, err := c.connect(c.cfg)
	if err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}

	topic := c.cfg.Topic
	if topic == "" {
		topic = mqtt.AllUnitData()
	}

	if err := client.Subscribe(topic, byte(c.cfg.QoS), c.handleMessage); err != nil {
		client.Close() //nolint:errcheck // already failing
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	c.client = client
	c.topic = topic
	c.running = true
	c.logger.Info("ingestion started", "topic", topic, "qos", c.cfg.QoS)
	return nil
}

// Stop unsubscribes, disconnects, and drains the sink pools. Safe to call
// when the coordinator never started.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	client := c.client
	topic := c.topic
	pools := c.pools
	wasRunning := c.running
	c.client = nil
	c.running = false
	c.mu.Unlock()

	if client != nil {
		if err := client.Unsubscribe(topic); err != nil {
			c.logger.Warn("unsubscribe failed", "topic", topic, "error", err)
		}
		if err := client.Close(); err != nil {
			c.logger.Warn("broker disconnect failed", "error", err)
		}
	}
	for _, pool := range pools {
		pool.Close()
	}
	if wasRunning {
		c.logger.Info("ingestion stopped")
	}
}

// Status reports the current ingestion state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{
		Running:     c.running,
		Topic:       c.topic,
		Received:    c.received.Load(),
		Ignored:     c.ignored.Load(),
		Unparseable: c.unparseable.Load(),
	}
	if c.client != nil {
		status.Connected = c.client.IsConnected()
		status.Subscribed = c.client.HasSubscription(c.topic)
	}
	if len(c.pools) > 0 {
		status.SinkDrops = make(map[string]uint64, len(c.pools))
		for _, pool := range c.pools {
			status.SinkDrops[pool.Name()] = pool.Dropped()
		}
	}
	return status
}

// handleMessage is the broker callback: decode, enrich, fan out, sink.
func (c *Coordinator) handleMessage(topic string, payload []byte) error {
	imei, ok := mqtt.ParseDataTopic(topic)
	if !ok {
		c.ignored.Add(1)
		c.logger.Debug("ignoring message on unrecognised topic", "topic", topic)
		return nil
	}
	c.received.Add(1)

	reading, outcome := telemetry.Decode(payload, imei, time.Now())
	if outcome == telemetry.DecodeUnparseable {
		c.unparseable.Add(1)
		c.logger.Warn("unparseable payload", "imei", imei, "bytes", len(payload))
	}

	enriched := c.cache.AddAndEnrich(reading)
	c.hub.Publish(enriched)

	c.mu.Lock()
	pools := c.pools
	c.mu.Unlock()
	for _, pool := range pools {
		pool.Submit(enriched)
	}
	return nil
}
