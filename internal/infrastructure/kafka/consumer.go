package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/example/ec-fulfillment/internal/events"
	"github.com/segmentio/kafka-go"
)

// EventHandler processes one decoded envelope.
type EventHandler func(ctx context.Context, e events.Event) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader messageReader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Consume runs until ctx is cancelled. Offsets are committed after the
// handler returns, whether it failed or not: a message that cannot be
// handled is logged and skipped rather than retried forever.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, context.Canceled) {
				return err
			}
			log.Printf("[Kafka] Error reading message: %v", err)
			continue
		}

		var e events.Event
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			log.Printf("[Kafka] Skipping malformed message at offset %d: %v", msg.Offset, err)
		} else if err := handler(ctx, e); err != nil {
			log.Printf("[Kafka] Error handling %s for %s: %v", e.EventType, e.AggregateID, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[Kafka] Error committing offset %d: %v", msg.Offset, err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
