// Package kafkaevents publishes ledger events to a Kafka topic.
package kafkaevents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mmynk/splitledger/internal/events"
)

// Ensure Publisher implements events.Publisher
var _ events.Publisher = (*Publisher)(nil)

// Publisher writes events as JSON messages keyed by scope, so every event of
// one scope lands on the same partition. Writers publish after releasing the
// scope locks, so two events of a scope can arrive out of order; consumers
// order them by the version header.
type Publisher struct {
	writer *kafka.Writer
}

// New creates a publisher for topic on the given brokers.
func New(brokers []string, topic string) *Publisher {
	return &Publisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			slog.Debug(fmt.Sprintf(msg, args...), "component", "kafka")
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			slog.Error(fmt.Sprintf(msg, args...), "component", "kafka")
		}),
	}}
}

// Publish writes events synchronously.
func (p *Publisher) Publish(ctx context.Context, evts ...events.ScopeChanged) error {
	if len(evts) == 0 {
		return nil
	}
	msgs, err := toMessages(evts)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish %d events: %w", len(msgs), err)
	}
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func toMessages(evts []events.ScopeChanged) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(evts))
	for _, e := range evts {
		value, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to encode event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.Scope),
			Value: value,
			Time:  e.OccurredAt,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(e.Type)},
				{Key: "version", Value: strconv.AppendInt(nil, e.Version, 10)},
			},
		})
	}
	return msgs, nil
}
