// Package kafka forwards change events to a Kafka topic, keyed by service
// group so every event of one participant lands on the same partition.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"smpd/internal/domain"
	"smpd/internal/notify"
	"smpd/pkg/platform/circuit"
)

// ErrCircuitOpen is returned without contacting the brokers while recent
// produce calls keep failing. The event is dropped.
var ErrCircuitOpen = errors.New("kafka publishing suspended after repeated failures")

// Producer is the part of *kgo.Client the publisher uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Message is the JSON value of one record.
type Message struct {
	ID                 string                     `json:"id"`
	Type               notify.EventType           `json:"type"`
	OccurredAt         time.Time                  `json:"occurred_at"`
	ServiceGroupKey    string                     `json:"service_group_key,omitempty"`
	ServiceGroup       *domain.ServiceGroup       `json:"service_group,omitempty"`
	Redirect           *domain.Redirect           `json:"redirect,omitempty"`
	ServiceInformation *domain.ServiceInformation `json:"service_information,omitempty"`
	Settings           *domain.Settings           `json:"settings,omitempty"`
}

func messageOf(e notify.Event) Message {
	return Message{
		ID:                 e.ID.String(),
		Type:               e.Type,
		OccurredAt:         e.OccurredAt,
		ServiceGroupKey:    e.ServiceGroupKey,
		ServiceGroup:       e.ServiceGroup,
		Redirect:           e.Redirect,
		ServiceInformation: e.ServiceInformation,
		Settings:           e.Settings,
	}
}

// Publisher is a notify subscriber producing one record per event.
type Publisher struct {
	producer Producer
	topic    string
	timeout  time.Duration
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithTimeout bounds each produce call. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) { p.breaker = b }
}

func New(producer Producer, topic string, opts ...Option) *Publisher {
	p := &Publisher{
		producer: producer,
		topic:    topic,
		timeout:  5 * time.Second,
		breaker:  circuit.New("kafka", circuit.WithFailureThreshold(3), circuit.WithCooldown(30*time.Second)),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Healthy is false while recent produce calls keep failing.
func (p *Publisher) Healthy() bool {
	return !p.breaker.IsOpen()
}

// Handle produces one record for e. While the breaker is open it fails fast
// with ErrCircuitOpen so a broker outage does not stall the synchronous bus.
func (p *Publisher) Handle(ctx context.Context, e notify.Event) error {
	value, err := json.Marshal(messageOf(e))
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	if !p.breaker.Allow() {
		return fmt.Errorf("produce %s event: %w", e.Type, ErrCircuitOpen)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(e.ServiceGroupKey),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.logger.WarnContext(ctx, "kafka publishing degraded", "topic", p.topic, "error", err)
		}
		return fmt.Errorf("produce %s event: %w", e.Type, err)
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.InfoContext(ctx, "kafka publishing recovered", "topic", p.topic)
	}
	return nil
}
