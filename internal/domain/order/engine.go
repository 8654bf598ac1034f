package order

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/example/ec-fulfillment/internal/apperr"
	"github.com/example/ec-fulfillment/internal/auth"
	"github.com/example/ec-fulfillment/internal/domain/cart"
	"github.com/example/ec-fulfillment/internal/domain/inventory"
	"github.com/example/ec-fulfillment/internal/domain/product"
	"github.com/example/ec-fulfillment/internal/keylock"
	"github.com/example/ec-fulfillment/internal/pricing"
	"github.com/google/uuid"
)

const maxOrderNumberAttempts = 3

// StockLedger reserves and releases product stock atomically per product.
type StockLedger interface {
	Reserve(ctx context.Context, productID string, quantity int) error
	Release(ctx context.Context, productID string, quantity int) error
}

// CartSource gives the engine the buyer's cart and takes the ordered lines
// out of it after checkout.
type CartSource interface {
	GetOrCreate(ctx context.Context, userID string) (*cart.Cart, error)
	ConsumeItems(ctx context.Context, userID string, consumed []cart.Item) error
}

type CreateRequest struct {
	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   string
	Notes           string
}

// Engine runs the order lifecycle: checkout, status changes, cancellation
// and refunds.
type Engine struct {
	repo     Repository
	carts    CartSource
	catalog  product.Reader
	ledger   StockLedger
	notifier Notifier
	locks    *keylock.Map
	now      func() time.Time
	number   func(time.Time) string
}

func NewEngine(repo Repository, carts CartSource, catalog product.Reader, ledger StockLedger, notifier Notifier) *Engine {
	return &Engine{
		repo:     repo,
		carts:    carts,
		catalog:  catalog,
		ledger:   ledger,
		notifier: notifier,
		locks:    keylock.New(),
		now:      time.Now,
		number:   NewOrderNumber,
	}
}

type reservation struct {
	productID string
	quantity  int
}

// CreateOrder turns the principal's cart into a PENDING order. Either every
// line is reserved, the order is stored and the ordered lines leave the
// cart, or none of it happens.
func (e *Engine) CreateOrder(ctx context.Context, p auth.Principal, req CreateRequest) (*Order, error) {
	if err := req.ShippingAddress.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "Shipping address is incomplete")
	}
	billing := req.BillingAddress
	if billing.IsZero() {
		billing = req.ShippingAddress
	}

	// One checkout per user at a time so the same cart is never ordered twice.
	// Cart edits may still run; only the lines read here are consumed.
	unlock := e.locks.Lock(p.UserID)
	defer unlock()

	c, err := e.carts.GetOrCreate(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, apperr.Wrap(apperr.KindValidation, ErrEmptyCart, "Cart is empty")
	}

	// Fail fast on stale carts. The reservation below is the real check.
	products := make(map[string]*product.Product, len(c.Items))
	for _, it := range c.Items {
		prod, err := e.catalog.Get(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrProductNotFound) {
				return nil, apperr.Wrap(apperr.KindNotFound, err, "Product not found: %s", it.ProductID)
			}
			return nil, apperr.Internal(err, "load product %s", it.ProductID)
		}
		if !prod.Active {
			return nil, apperr.Validation("Product is not available: %s", prod.Name)
		}
		if it.Quantity > prod.StockQuantity {
			return nil, apperr.Wrap(apperr.KindValidation, inventory.ErrInsufficientStock,
				"Insufficient stock for product: %s", prod.Name)
		}
		products[it.ProductID] = prod
	}

	now := e.now()
	o := &Order{
		ID:              uuid.New().String(),
		UserID:          p.UserID,
		CustomerEmail:   p.Email,
		Status:          StatusPending,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
		Notes:           strings.TrimSpace(req.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           make([]Item, 0, len(c.Items)),
	}

	reserved := make([]reservation, 0, len(c.Items))
	lines := make([]pricing.Line, 0, len(c.Items))
	for _, it := range c.Items {
		prod := products[it.ProductID]
		if err := e.ledger.Reserve(ctx, it.ProductID, it.Quantity); err != nil {
			e.release(ctx, o.ID, reserved)
			if errors.Is(err, inventory.ErrInsufficientStock) {
				return nil, apperr.Wrap(apperr.KindValidation, err, "Insufficient stock for product: %s", prod.Name)
			}
			return nil, err
		}
		reserved = append(reserved, reservation{productID: it.ProductID, quantity: it.Quantity})

		unit := prod.EffectivePrice()
		o.Items = append(o.Items, Item{
			ID:          uuid.New().String(),
			OrderID:     o.ID,
			ProductID:   prod.ID,
			ProductName: prod.Name,
			ProductSKU:  prod.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   unit,
		})
		lines = append(lines, pricing.Line{UnitPrice: unit, Quantity: it.Quantity})
	}

	quote := pricing.Quote(lines)
	o.Subtotal = quote.Subtotal
	o.ShippingCost = quote.ShippingCost
	o.Tax = quote.Tax
	o.Discount = quote.Discount
	o.TotalAmount = quote.Total

	if err := e.persist(ctx, o); err != nil {
		e.release(ctx, o.ID, reserved)
		return nil, apperr.Internal(err, "save order")
	}

	if err := e.carts.ConsumeItems(ctx, p.UserID, c.Items); err != nil {
		// Undo the checkout so no half-finished order stays visible.
		if derr := e.repo.Delete(context.WithoutCancel(ctx), o.ID); derr != nil {
			log.Printf("[Order] Failed to delete order %s after cart update failure: %v", o.ID, derr)
		}
		e.release(ctx, o.ID, reserved)
		return nil, apperr.Internal(err, "remove ordered items from cart")
	}

	log.Printf("[Order] Created order %s (%s) for user %s, total %s",
		o.OrderNumber, o.ID, o.UserID, o.TotalAmount.StringFixed(2))
	e.notifier.OrderCreated(ctx, o.clone())
	return o, nil
}

// persist stores a new order, drawing a fresh order number on collision.
func (e *Engine) persist(ctx context.Context, o *Order) error {
	var err error
	for i := 0; i < maxOrderNumberAttempts; i++ {
		o.OrderNumber = e.number(o.CreatedAt)
		err = e.repo.Create(ctx, o)
		if !errors.Is(err, ErrDuplicateOrderNumber) {
			return err
		}
	}
	return err
}

// release returns reserved stock. It runs detached from ctx cancellation so
// compensation still happens when the request is gone.
func (e *Engine) release(ctx context.Context, orderID string, reserved []reservation) {
	ctx = context.WithoutCancel(ctx)
	for _, r := range reserved {
		if err := e.ledger.Release(ctx, r.productID, r.quantity); err != nil {
			log.Printf("[Order] Failed to release %d of %s for order %s: %v", r.quantity, r.productID, orderID, err)
		}
	}
}

// UpdateStatus moves an order along the state machine. Admin only.
func (e *Engine) UpdateStatus(ctx context.Context, p auth.Principal, orderID string, status Status, notes string) (*Order, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("Only administrators can update order status")
	}
	if _, ok := validTransitions[status]; !ok {
		return nil, apperr.Wrap(apperr.KindValidation, ErrUnknownStatus, "Unknown order status: %s", status)
	}
	o, err := e.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return e.transition(ctx, o, status, notes)
}

// Cancel cancels an order while it is PENDING or CONFIRMED and returns its
// stock. Customers may cancel only their own orders; admins any order.
func (e *Engine) Cancel(ctx context.Context, p auth.Principal, orderID string) (*Order, error) {
	o, err := e.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !visible(p, o) {
		return nil, notFound(orderID)
	}
	if !o.Cancellable() {
		return nil, apperr.Wrap(apperr.KindValidation, ErrNotCancellable,
			"Cannot cancel order in current status: %s", o.Status)
	}
	return e.transition(ctx, o, StatusCancelled, "")
}

// Refund marks a paid order as refunded. Goods are restocked only if the
// order had not shipped yet. Admin only.
func (e *Engine) Refund(ctx context.Context, p auth.Principal, orderID, reason string) (*Order, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("Only administrators can refund orders")
	}
	o, err := e.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.CanTransitionTo(StatusRefunded) {
		return nil, apperr.Wrap(apperr.KindValidation, ErrInvalidStatus,
			"Cannot refund order in current status: %s", o.Status)
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		reason = "Refund: " + reason
	}
	return e.transition(ctx, o, StatusRefunded, reason)
}

// RecordPayment confirms a PENDING order after a successful payment.
func (e *Engine) RecordPayment(ctx context.Context, orderID, paymentID, method string) (*Order, error) {
	o, err := e.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, apperr.Wrap(apperr.KindValidation, ErrNotPending, "Order is not in pending status")
	}
	o.PaymentID = paymentID
	if method != "" {
		o.PaymentMethod = method
	}
	return e.transition(ctx, o, StatusConfirmed, "")
}

// Get returns an order visible to the principal. Orders owned by someone
// else are reported as not found.
func (e *Engine) Get(ctx context.Context, p auth.Principal, orderID string) (*Order, error) {
	o, err := e.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !visible(p, o) {
		return nil, notFound(orderID)
	}
	return o, nil
}

func (e *Engine) GetByNumber(ctx context.Context, p auth.Principal, number string) (*Order, error) {
	o, err := e.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, loadError(err, number)
	}
	if !visible(p, o) {
		return nil, notFound(number)
	}
	return o, nil
}

// FindByPaymentID returns the order paid with paymentID, masked like Get.
func (e *Engine) FindByPaymentID(ctx context.Context, p auth.Principal, paymentID string) (*Order, error) {
	o, err := e.repo.GetByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, err, "Payment not found: %s", paymentID)
		}
		return nil, apperr.Internal(err, "load payment %s", paymentID)
	}
	if !visible(p, o) {
		return nil, apperr.NotFound("Payment not found: %s", paymentID)
	}
	return o, nil
}

// transition applies a checked status change and its stock side effects.
func (e *Engine) transition(ctx context.Context, o *Order, to Status, notes string) (*Order, error) {
	from := o.Status
	prev := o.clone()
	if !o.CanTransitionTo(to) {
		return nil, apperr.Wrap(apperr.KindValidation, ErrInvalidStatus,
			"Cannot change order status from %s to %s", from, to)
	}

	now := e.now()
	o.Status = to
	o.appendNotes(notes)
	o.UpdatedAt = now
	switch to {
	case StatusShipped:
		o.ShippedAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
	}

	if err := e.repo.Update(ctx, o); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, apperr.Wrap(apperr.KindConflict, err, "Order was modified concurrently, please retry")
		}
		return nil, loadError(err, o.ID)
	}

	if restocks(from, to) {
		if err := e.restock(ctx, o); err != nil {
			e.revert(ctx, o, prev)
			return nil, err
		}
	}

	log.Printf("[Order] Order %s: %s -> %s", o.OrderNumber, from, to)
	e.notifier.OrderStatusChanged(ctx, o.clone(), from)
	return o, nil
}

// restock releases every line of o. On failure the lines already released
// are reserved again so stock matches the order state.
func (e *Engine) restock(ctx context.Context, o *Order) error {
	ctx = context.WithoutCancel(ctx)
	done := make([]reservation, 0, len(o.Items))
	for _, it := range o.Items {
		if err := e.ledger.Release(ctx, it.ProductID, it.Quantity); err != nil {
			for _, r := range done {
				if rerr := e.ledger.Reserve(ctx, r.productID, r.quantity); rerr != nil {
					log.Printf("[Order] Failed to re-reserve %d of %s for order %s: %v", r.quantity, r.productID, o.ID, rerr)
				}
			}
			return apperr.Internal(err, "release stock for order %s", o.ID)
		}
		done = append(done, reservation{productID: it.ProductID, quantity: it.Quantity})
	}
	return nil
}

// revert writes prev back after a failed restock. Only the version moves
// forward.
func (e *Engine) revert(ctx context.Context, o *Order, prev *Order) {
	version := o.Version
	*o = *prev
	o.Version = version
	o.UpdatedAt = e.now()
	if err := e.repo.Update(context.WithoutCancel(ctx), o); err != nil {
		log.Printf("[Order] Failed to revert order %s to %s: %v", o.ID, prev.Status, err)
	}
}

func (e *Engine) load(ctx context.Context, orderID string) (*Order, error) {
	o, err := e.repo.Get(ctx, orderID)
	if err != nil {
		return nil, loadError(err, orderID)
	}
	return o, nil
}

func visible(p auth.Principal, o *Order) bool {
	return p.IsAdmin() || p.Owns(o.UserID)
}

func notFound(ref string) error {
	return apperr.Wrap(apperr.KindNotFound, ErrOrderNotFound, "Order not found: %s", ref)
}

func loadError(err error, ref string) error {
	if errors.Is(err, ErrOrderNotFound) {
		return notFound(ref)
	}
	return apperr.Internal(err, "load order %s", ref)
}
