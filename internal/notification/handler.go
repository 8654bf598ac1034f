package notification

import (
	"context"
	"log"

	"github.com/example/ec-fulfillment/internal/email"
	"github.com/example/ec-fulfillment/internal/events"
)

// Mailer is satisfied by email.Service.
type Mailer interface {
	SendOrderConfirmation(to string, summary email.OrderSummary) error
	SendStatusUpdate(to string, update email.StatusUpdate) error
}

// Handler turns order events consumed from Kafka into customer emails.
type Handler struct {
	mailer Mailer
}

// NewHandler creates a new notification handler
func NewHandler(mailer Mailer) *Handler {
	return &Handler{mailer: mailer}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, e events.Event) error {
	switch e.EventType {
	case events.TypeOrderCreated:
		return h.handleOrderCreated(e)
	case events.TypeOrderStatusChanged:
		return h.handleStatusChanged(e)
	default:
		return nil
	}
}

func (h *Handler) handleOrderCreated(e events.Event) error {
	var payload events.OrderCreated
	if err := e.Decode(&payload); err != nil {
		log.Printf("[Notifier] Failed to decode OrderCreated event %s: %v", e.ID, err)
		return err
	}
	if payload.CustomerEmail == "" {
		log.Printf("[Notifier] No email address for order %s, skipping", payload.OrderNumber)
		return nil
	}

	items := make([]email.OrderItem, len(payload.Items))
	for i, item := range payload.Items {
		items[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	err := h.mailer.SendOrderConfirmation(payload.CustomerEmail, email.OrderSummary{
		OrderNumber:  payload.OrderNumber,
		Items:        items,
		Subtotal:     payload.Subtotal,
		ShippingCost: payload.ShippingCost,
		Tax:          payload.Tax,
		Total:        payload.Total,
	})
	if err != nil {
		log.Printf("[Notifier] Failed to send confirmation to %s: %v", payload.CustomerEmail, err)
		return err
	}

	log.Printf("[Notifier] Order confirmation email sent to %s for order %s", payload.CustomerEmail, payload.OrderNumber)
	return nil
}

func (h *Handler) handleStatusChanged(e events.Event) error {
	var payload events.OrderStatusChanged
	if err := e.Decode(&payload); err != nil {
		log.Printf("[Notifier] Failed to decode OrderStatusChanged event %s: %v", e.ID, err)
		return err
	}
	if payload.CustomerEmail == "" {
		return nil
	}

	err := h.mailer.SendStatusUpdate(payload.CustomerEmail, email.StatusUpdate{
		OrderNumber: payload.OrderNumber,
		Previous:    string(payload.Previous),
		Current:     string(payload.Current),
		Total:       payload.Total,
		Notes:       payload.Notes,
	})
	if err != nil {
		log.Printf("[Notifier] Failed to send status update to %s: %v", payload.CustomerEmail, err)
		return err
	}

	log.Printf("[Notifier] Status update email sent to %s for order %s (%s)", payload.CustomerEmail, payload.OrderNumber, payload.Current)
	return nil
}
