package notification

import (
	"context"

	"github.com/example/ec-fulfillment/internal/domain/order"
	"github.com/example/ec-fulfillment/internal/events"
)

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// KafkaSender hands notifications to the notifier service through the order
// topic.
type KafkaSender struct {
	publisher Publisher
}

func NewKafkaSender(publisher Publisher) *KafkaSender {
	return &KafkaSender{publisher: publisher}
}

func (s *KafkaSender) OrderCreated(ctx context.Context, o *order.Order) error {
	e, err := events.NewOrderCreated(o)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, e)
}

func (s *KafkaSender) OrderStatusChanged(ctx context.Context, o *order.Order, previous order.Status) error {
	e, err := events.NewOrderStatusChanged(o, previous)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, e)
}
