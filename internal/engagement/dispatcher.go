package engagement

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/cinevault/backend/internal/events"
	"github.com/cinevault/backend/internal/metrics"
)

// Publisher is a sink for engagement events.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, event events.Event) error
}

// DispatcherConfig controls the concurrency characteristics of the dispatcher.
// QueueSize is split evenly across the workers.
type DispatcherConfig struct {
	QueueSize      int
	Workers        int
	PublishTimeout time.Duration
}

var errDispatcherClosed = errors.New("event dispatcher closed")

// Dispatcher delivers events to every publisher from a small worker pool so
// that request handlers never wait on sinks. Events are sharded by video id,
// so each video's events reach the sinks in dispatch order.
type Dispatcher struct {
	publishers []Publisher
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	shards []chan events.Event
	wg     sync.WaitGroup
}

// NewDispatcher starts the worker pool.
func NewDispatcher(publishers []Publisher, cfg DispatcherConfig, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		publishers: publishers,
		timeout:    cfg.PublishTimeout,
		logger:     logger,
		metrics:    m,
		shards:     make([]chan events.Event, cfg.Workers),
	}

	perShard := max(1, (cfg.QueueSize+cfg.Workers-1)/cfg.Workers)
	d.wg.Add(cfg.Workers)
	for i := range d.shards {
		d.shards[i] = make(chan events.Event, perShard)
		go d.worker(d.shards[i])
	}

	return d
}

// Dispatch queues the event without blocking. When the queue is full the
// event is dropped and counted.
func (d *Dispatcher) Dispatch(event events.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return errDispatcherClosed
	}

	select {
	case d.shardFor(event.VideoID) <- event:
		return nil
	default:
		if d.metrics != nil {
			d.metrics.EventsDropped.Inc()
		}
		d.logger.Warn("engagement event dropped, queue full", "type", event.Type, "video_id", event.VideoID)
		return nil
	}
}

// Shutdown stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, shard := range d.shards {
			close(shard)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (d *Dispatcher) shardFor(videoID string) chan events.Event {
	return d.shards[xxhash.Sum64String(videoID)%uint64(len(d.shards))]
}

func (d *Dispatcher) worker(jobs <-chan events.Event) {
	defer d.wg.Done()

	for event := range jobs {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event events.Event) {
	for _, p := range d.publishers {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := p.Publish(ctx, event)
		cancel()

		status := "ok"
		if err != nil {
			status = "error"
			d.logger.Error("publish engagement event", "sink", p.Name(), "type", event.Type, "video_id", event.VideoID, "error", err)
		}
		if d.metrics != nil {
			d.metrics.EventsPublished.WithLabelValues(p.Name(), status).Inc()
		}
	}
}
