package market

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"nftmarket/pkg/telemetry"

	"github.com/segmentio/kafka-go"
)

// MutationKind names a coordinated mutation.
type MutationKind string

const (
	MutationMint     MutationKind = "mint"
	MutationList     MutationKind = "list"
	MutationUnlist   MutationKind = "unlist"
	MutationPurchase MutationKind = "purchase"
)

// MutationRecord describes one coordinated mutation. It lives for the call
// and is handed to the event sink once the outcome is known.
type MutationRecord struct {
	ID          string       `json:"id"`
	Kind        MutationKind `json:"kind"`
	TargetID    string       `json:"target_id,omitempty"`
	Caller      string       `json:"caller"`
	Payload     any          `json:"payload,omitempty"`
	Invalidated []string     `json:"invalidated,omitempty"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
}

// EventSink receives completed mutation records.
type EventSink interface {
	Publish(ctx context.Context, rec MutationRecord) error
	Close() error
}

// NopSink discards records.
type NopSink struct{}

func (NopSink) Publish(context.Context, MutationRecord) error { return nil }
func (NopSink) Close() error                                  { return nil }

// KafkaSink writes records as JSON to a Kafka topic, keyed by target id.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(topic) == "" {
		topic = "nftmarket-mutations"
	}
	if logger == nil {
		logger = slog.Default()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 500 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("mutation events not delivered", "count", len(messages), "error", err)
			}
		},
	}
	return &KafkaSink{writer: writer}, nil
}

func (k *KafkaSink) Publish(ctx context.Context, rec MutationRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	headers := make([]kafka.Header, 0, 2)
	telemetry.InjectKafkaHeaders(ctx, &headers)
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(rec.TargetID),
		Value:   payload,
		Headers: headers,
	})
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
