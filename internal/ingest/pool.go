package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samuelsono/nelo-fms/internal/telemetry"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 512

	// sinkTimeout bounds one sink call. A sink that exceeds it has its
	// context cancelled; the reading is counted as failed, not retried.
	sinkTimeout = 10 * time.Second
)

// SinkFunc consumes one enriched reading. Errors are logged and counted;
// the pipeline never retries.
type SinkFunc func(ctx context.Context, reading *telemetry.Reading) error

// Logger is the minimal logging interface the ingest package needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Pool is a bounded worker pool feeding one downstream sink.
//
// Submit never blocks: when the queue is full the reading is dropped for
// this sink and the drop counter incremented. This keeps the broker
// handler fast regardless of sink latency.
type Pool struct {
	name    string
	fn      SinkFunc
	queue   chan *telemetry.Reading
	wg      sync.WaitGroup
	logger  Logger
	dropped atomic.Uint64
	failed  atomic.Uint64

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool with the given worker count and queue size and
// starts its workers. Zero or negative values fall back to defaults.
func NewPool(name string, fn SinkFunc, workers, queueSize int, logger Logger) *Pool {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}

	p := &Pool{
		name:   name,
		fn:     fn,
		queue:  make(chan *telemetry.Reading, queueSize),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Name returns the sink name the pool was created with.
func (p *Pool) Name() string {
	return p.name
}

// Submit enqueues a reading for the sink. It returns false when the
// queue is full or the pool is closed; the reading is then dropped.
func (p *Pool) Submit(reading *telemetry.Reading) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	select {
	case p.queue <- reading:
		return true
	default:
		dropped := p.dropped.Add(1)
		if dropped == 1 || dropped%100 == 0 {
			p.logger.Warn("sink queue full, dropping reading",
				"sink", p.name, "dropped_total", dropped)
		}
		return false
	}
}

// Dropped returns the number of readings dropped because the queue was full.
func (p *Pool) Dropped() uint64 {
	return p.dropped.Load()
}

// Failed returns the number of sink calls that returned an error.
func (p *Pool) Failed() uint64 {
	return p.failed.Load()
}

// Close stops accepting readings, drains the queue, and waits for the
// workers to finish. Safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for reading := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if err := p.fn(ctx, reading); err != nil {
			p.failed.Add(1)
			p.logger.Warn("sink write failed",
				"sink", p.name, "imei", reading.IMEI, "error", err)
		}
		cancel()
	}
}
