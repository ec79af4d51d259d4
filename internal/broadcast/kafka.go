package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/efreitasn/cryptosim/internal/domain"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes ticks to a Kafka topic keyed by symbol.
type KafkaSink struct {
	writer MessageWriter
	topic  string
}

// NewKafkaWriter constructs a kafka.Writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	return kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Dialer:       dialer,
		BatchTimeout: 200 * time.Millisecond,
		RequiredAcks: int(kafka.RequireOne),
		Async:        true,
	})
}

// NewKafkaSink creates a sink over w.
func NewKafkaSink(w MessageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: w, topic: topic}
}

func (k *KafkaSink) Name() string { return "kafka:" + k.topic }

func (k *KafkaSink) Send(ctx context.Context, tick domain.PriceTick) error {
	value, err := json.Marshal(NewPriceMessage(tick))
	if err != nil {
		return fmt.Errorf("marshal tick: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(tick.Symbol),
		Value: value,
		Time:  tick.ReceivedAt,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write tick: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
