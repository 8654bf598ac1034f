// Package payment is a stand-in payment processor. It never talks to a
// gateway; a payment succeeds when it matches the order total exactly.
package payment

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/example/ec-fulfillment/internal/apperr"
	"github.com/example/ec-fulfillment/internal/auth"
	"github.com/example/ec-fulfillment/internal/domain/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrAmountMismatch = errors.New("payment amount does not match order total")
	ErrMethodRequired = errors.New("payment method is required")
)

type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusRefunded  Status = "REFUNDED"
	StatusPending   Status = "PENDING"
)

type Request struct {
	OrderID string
	Amount  decimal.Decimal
	Method  string
}

type Receipt struct {
	PaymentID   string          `json:"payment_id"`
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	Status      Status          `json:"status"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// Orders is the part of the order engine that payments need.
type Orders interface {
	Get(ctx context.Context, p auth.Principal, orderID string) (*order.Order, error)
	FindByPaymentID(ctx context.Context, p auth.Principal, paymentID string) (*order.Order, error)
	RecordPayment(ctx context.Context, orderID, paymentID, method string) (*order.Order, error)
}

type Service struct {
	orders Orders
	now    func() time.Time
}

func NewService(orders Orders) *Service {
	return &Service{orders: orders, now: time.Now}
}

// Process pays for a PENDING order and confirms it.
func (s *Service) Process(ctx context.Context, p auth.Principal, req Request) (*Receipt, error) {
	method := strings.TrimSpace(req.Method)
	if method == "" {
		return nil, apperr.Wrap(apperr.KindValidation, ErrMethodRequired, "Payment method is required")
	}

	o, err := s.orders.Get(ctx, p, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusPending {
		return nil, apperr.Wrap(apperr.KindValidation, order.ErrNotPending, "Order is not in pending status")
	}
	if !req.Amount.Equal(o.TotalAmount) {
		return nil, apperr.Wrap(apperr.KindValidation, ErrAmountMismatch, "Payment amount does not match order total")
	}

	paymentID := NewPaymentID()
	confirmed, err := s.orders.RecordPayment(ctx, o.ID, paymentID, method)
	if err != nil {
		return nil, err
	}

	log.Printf("[Payment] Processed %s for order %s: %s via %s",
		paymentID, confirmed.OrderNumber, req.Amount.StringFixed(2), method)
	return &Receipt{
		PaymentID:   paymentID,
		OrderID:     confirmed.ID,
		OrderNumber: confirmed.OrderNumber,
		Amount:      confirmed.TotalAmount,
		Method:      method,
		Status:      StatusCompleted,
		ProcessedAt: s.now(),
	}, nil
}

// Status looks a payment up by id.
func (s *Service) Status(ctx context.Context, p auth.Principal, paymentID string) (*Receipt, error) {
	o, err := s.orders.FindByPaymentID(ctx, p, paymentID)
	if err != nil {
		return nil, err
	}
	st := StatusCompleted
	if o.Status == order.StatusRefunded {
		st = StatusRefunded
	}
	return &Receipt{
		PaymentID:   o.PaymentID,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Amount:      o.TotalAmount,
		Method:      o.PaymentMethod,
		Status:      st,
		ProcessedAt: o.UpdatedAt,
	}, nil
}

// NewPaymentID returns PAY- followed by eight upper-case hex characters.
func NewPaymentID() string {
	return "PAY-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
