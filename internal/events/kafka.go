package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"github.com/cinevault/backend/internal/config"
)

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("event publisher closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by video id. Writes go
// through a circuit breaker so a broker outage fails fast instead of stalling
// the dispatch workers.
type KafkaPublisher struct {
	writer  messageWriter
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewKafkaPublisher constructs a publisher for the configured brokers and topic.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *slog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(writer, logger)
}

func newKafkaPublisher(writer messageWriter, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		writer: writer,
		logger: logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "kafka",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Name identifies the sink in logs and metrics.
func (p *KafkaPublisher) Name() string { return "kafka" }

// Publish writes the event to Kafka.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(event.VideoID),
			Value: data,
			Time:  event.OccurredAt,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(event.Type)},
			},
		})
	})
	if err != nil {
		return fmt.Errorf("publish %s for video %s: %w", event.Type, event.VideoID, err)
	}

	return nil
}

// Close flushes pending writes and releases the writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}
