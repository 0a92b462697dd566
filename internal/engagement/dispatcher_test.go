package engagement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cinevault/backend/internal/events"
	"github.com/cinevault/backend/internal/metrics"
	"github.com/cinevault/backend/internal/models"
)

type publisherStub struct {
	name string
	err  error

	mu       sync.Mutex
	received []events.Event
	block    chan struct{}
}

func (p *publisherStub) Name() string { return p.name }

func (p *publisherStub) Publish(ctx context.Context, event events.Event) error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	p.received = append(p.received, event)
	p.mu.Unlock()
	return p.err
}

func (p *publisherStub) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.received)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func shutdown(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestDispatcherDeliversToEveryPublisher(t *testing.T) {
	first := &publisherStub{name: "kafka"}
	second := &publisherStub{name: "realtime", err: errors.New("boom")}
	m := metrics.New(nil)

	d := NewDispatcher([]Publisher{first, second}, DispatcherConfig{QueueSize: 4, Workers: 1}, discardLogger(), m)
	for i := 0; i < 3; i++ {
		if err := d.Dispatch(events.Event{Type: events.TypeVideoViewed, VideoID: "v1"}); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}
	shutdown(t, d)

	if first.count() != 3 || second.count() != 3 {
		t.Fatalf("expected both sinks to receive 3 events, got %d and %d", first.count(), second.count())
	}
	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues("kafka", "ok")); got != 3 {
		t.Fatalf("expected 3 ok publishes, got %v", got)
	}
	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues("realtime", "error")); got != 3 {
		t.Fatalf("expected 3 failed publishes, got %v", got)
	}
}

func TestDispatcherDropsWhenQueueIsFull(t *testing.T) {
	blocked := &publisherStub{name: "slow", block: make(chan struct{})}
	m := metrics.New(nil)

	d := NewDispatcher([]Publisher{blocked}, DispatcherConfig{QueueSize: 1, Workers: 1, PublishTimeout: time.Second}, discardLogger(), m)

	// One event is held by the worker, one fills the queue, the rest drop.
	for i := 0; i < 5; i++ {
		if err := d.Dispatch(events.Event{Type: events.TypeRatingSet, VideoID: "v1"}); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}
	close(blocked.block)
	shutdown(t, d)

	dropped := testutil.ToFloat64(m.EventsDropped)
	if dropped < 3 {
		t.Fatalf("expected at least 3 dropped events, got %v", dropped)
	}
	if int(dropped)+blocked.count() != 5 {
		t.Fatalf("delivered %d plus dropped %v should account for all events", blocked.count(), dropped)
	}
}

func TestDispatchAfterShutdownFails(t *testing.T) {
	d := NewDispatcher(nil, DispatcherConfig{}, discardLogger(), nil)
	shutdown(t, d)

	if err := d.Dispatch(events.Event{Type: events.TypeVideoViewed}); !errors.Is(err, errDispatcherClosed) {
		t.Fatalf("expected errDispatcherClosed got %v", err)
	}
	// A second shutdown is harmless.
	shutdown(t, d)
}

// slowFirstPublisher stalls on the first event of each video so a
// concurrent worker would overtake it.
type slowFirstPublisher struct {
	mu    sync.Mutex
	seen  map[string]bool
	order map[string][]int
}

func (p *slowFirstPublisher) Name() string { return "slow" }

func (p *slowFirstPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	first := !p.seen[event.VideoID]
	p.seen[event.VideoID] = true
	p.mu.Unlock()
	if first {
		time.Sleep(20 * time.Millisecond)
	}
	p.mu.Lock()
	p.order[event.VideoID] = append(p.order[event.VideoID], event.Stats.ViewCount)
	p.mu.Unlock()
	return nil
}

func TestDispatcherKeepsPerVideoOrder(t *testing.T) {
	sink := &slowFirstPublisher{seen: map[string]bool{}, order: map[string][]int{}}
	d := NewDispatcher([]Publisher{sink}, DispatcherConfig{QueueSize: 256, Workers: 4, PublishTimeout: time.Second}, discardLogger(), nil)

	videos := []string{"v", "w", "x"}
	for views := 1; views <= 20; views++ {
		for _, id := range videos {
			if err := d.Dispatch(events.Event{Type: events.TypeVideoViewed, VideoID: id, Stats: models.VideoStats{VideoID: id, ViewCount: views}}); err != nil {
				t.Fatalf("dispatch: %v", err)
			}
		}
	}
	shutdown(t, d)

	for _, id := range videos {
		got := sink.order[id]
		if len(got) != 20 {
			t.Fatalf("video %s: expected 20 deliveries got %d", id, len(got))
		}
		for i, views := range got {
			if views != i+1 {
				t.Fatalf("video %s delivered out of order: %v", id, got)
			}
		}
	}
}

func TestDispatcherShardsByVideo(t *testing.T) {
	d := NewDispatcher(nil, DispatcherConfig{QueueSize: 10, Workers: 3}, discardLogger(), nil)
	defer shutdown(t, d)

	if len(d.shards) != 3 || cap(d.shards[0]) != 4 {
		t.Fatalf("expected 3 shards of 4 slots, got %d of %d", len(d.shards), cap(d.shards[0]))
	}
	if d.shardFor("video-1") != d.shardFor("video-1") {
		t.Fatal("a video must always map to the same shard")
	}
}
