package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	rainfall "rainlog/internal/rainfall/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces observation change events to a Kafka topic.
// It implements rainfall.EventPublisher.
type Publisher struct {
	writer  messageWriter
	timeout time.Duration
}

// NewPublisher creates a producer for topic on brokers.
func NewPublisher(brokers []string, topic string, timeout time.Duration) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher: no brokers")
	}
	if topic == "" {
		return nil, errors.New("kafka publisher: empty topic")
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: timeout,
	}
	return &Publisher{writer: w, timeout: timeout}, nil
}

// Publish writes one event keyed by observation id, so changes to the same
// observation land on one partition in order.
func (p *Publisher) Publish(ctx context.Context, event rainfall.ObservationChanged) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an ObservationChanged into a Kafka message.
func serializeToMessage(event rainfall.ObservationChanged) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatInt(event.ObservationID, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "occurred_at", Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
