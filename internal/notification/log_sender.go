package notification

import (
	"context"
	"log"

	"github.com/example/ec-fulfillment/internal/domain/order"
)

// LogSender writes notifications to the log instead of delivering them.
// Used when no broker is configured.
type LogSender struct{}

func (LogSender) OrderCreated(_ context.Context, o *order.Order) error {
	log.Printf("[Notifier] Order %s placed by %s <%s>: %d items, total %s",
		o.OrderNumber, o.UserID, o.CustomerEmail, len(o.Items), o.TotalAmount.StringFixed(2))
	return nil
}

func (LogSender) OrderStatusChanged(_ context.Context, o *order.Order, previous order.Status) error {
	log.Printf("[Notifier] Order %s for <%s>: %s -> %s",
		o.OrderNumber, o.CustomerEmail, previous, o.Status)
	return nil
}
