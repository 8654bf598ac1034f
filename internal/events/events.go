// Package events defines the envelope and payloads published on the order
// topic.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/ec-fulfillment/internal/domain/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const AggregateOrder = "order"

const (
	TypeOrderCreated       = "OrderCreated"
	TypeOrderStatusChanged = "OrderStatusChanged"
)

// Event is the message envelope. Data holds one of the payload types below,
// selected by EventType.
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int64           `json:"version"`
}

type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderCreated struct {
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	UserID        string          `json:"user_id"`
	CustomerEmail string          `json:"customer_email"`
	Items         []OrderItem     `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ShippingCost  decimal.Decimal `json:"shipping_cost"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
}

type OrderStatusChanged struct {
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	UserID        string          `json:"user_id"`
	CustomerEmail string          `json:"customer_email"`
	Previous      order.Status    `json:"previous"`
	Current       order.Status    `json:"current"`
	Total         decimal.Decimal `json:"total"`
	Notes         string          `json:"notes,omitempty"`
}

func NewOrderCreated(o *order.Order) (Event, error) {
	items := make([]OrderItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItem{
			ProductID: it.ProductID,
			Name:      it.ProductName,
			SKU:       it.ProductSKU,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	return newEvent(o, TypeOrderCreated, OrderCreated{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		CustomerEmail: o.CustomerEmail,
		Items:         items,
		Subtotal:      o.Subtotal,
		ShippingCost:  o.ShippingCost,
		Tax:           o.Tax,
		Total:         o.TotalAmount,
	})
}

func NewOrderStatusChanged(o *order.Order, previous order.Status) (Event, error) {
	return newEvent(o, TypeOrderStatusChanged, OrderStatusChanged{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		CustomerEmail: o.CustomerEmail,
		Previous:      previous,
		Current:       o.Status,
		Total:         o.TotalAmount,
		Notes:         o.Notes,
	})
}

func newEvent(o *order.Order, eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return Event{
		ID:            uuid.New().String(),
		AggregateID:   o.ID,
		AggregateType: AggregateOrder,
		EventType:     eventType,
		Data:          data,
		Timestamp:     time.Now().UTC(),
		Version:       o.Version,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", e.EventType, err)
	}
	return nil
}
