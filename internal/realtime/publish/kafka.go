package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wonny/quoteboard/internal/realtime/feed"
	"github.com/wonny/quoteboard/pkg/logger"
)

// MessageWriter is satisfied by *kafka.Writer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a batching writer that hashes keys to partitions,
// so every symbol stays ordered within its partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

// KafkaPublisher writes every update to a topic keyed by symbol
type KafkaPublisher struct {
	writer MessageWriter
	logger *logger.Logger
}

// NewKafkaPublisher creates a publisher over writer
func NewKafkaPublisher(writer MessageWriter, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		logger: log.WithComponent("kafka-publisher"),
	}
}

// Name implements feed.Publisher
func (p *KafkaPublisher) Name() string {
	return "kafka"
}

// Publish implements feed.Publisher
func (p *KafkaPublisher) Publish(ctx context.Context, u feed.Update) error {
	value, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("kafka marshal: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(u.Stock.Symbol),
		Value: value,
		Time:  u.Stock.LastUpdated,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", u.Stock.Symbol, err)
	}

	p.logger.WithField("symbol", u.Stock.Symbol).Debug("Published to kafka")
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
