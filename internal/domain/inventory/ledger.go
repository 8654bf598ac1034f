// Package inventory owns every change to product stock. Updates are
// compare-and-swap writes guarded by a per-product version, retried with
// jittered backoff when another writer wins.
package inventory

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"time"

	"github.com/example/ec-fulfillment/internal/apperr"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrStockNotFound     = errors.New("stock record not found")
	ErrContention        = errors.New("stock changed, please retry")
)

const (
	defaultMaxAttempts = 50
	defaultBackoff     = 2 * time.Millisecond
)

// Stock is the current quantity of a product and its write version.
type Stock struct {
	ProductID string
	Quantity  int
	Version   int64
}

// StockStore persists stock. CompareAndSwapStock writes quantity only if the
// stored version still equals expectedVersion, and reports whether it did.
type StockStore interface {
	LoadStock(ctx context.Context, productID string) (Stock, error)
	CompareAndSwapStock(ctx context.Context, productID string, expectedVersion int64, quantity int) (bool, error)
}

// ChangeHook is called after every committed stock change.
type ChangeHook func(ctx context.Context, productID string)

type Ledger struct {
	store       StockStore
	maxAttempts int
	backoff     time.Duration
	hooks       []ChangeHook
}

type Option func(*Ledger)

func WithMaxAttempts(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(l *Ledger) { l.backoff = d }
}

func WithChangeHook(h ChangeHook) Option {
	return func(l *Ledger) { l.hooks = append(l.hooks, h) }
}

func NewLedger(store StockStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:       store,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reserve decrements stock by quantity. It fails with a Validation error
// wrapping ErrInsufficientStock when stock is too low, and with a Conflict
// error after the last retry.
func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return apperr.Wrap(apperr.KindValidation, ErrInvalidQuantity, "Quantity must be positive")
	}
	return l.apply(ctx, productID, -quantity)
}

// Release returns previously reserved quantity to stock. Increments cannot
// fail the stock check, so lost swaps are retried until ctx is done.
func (l *Ledger) Release(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return apperr.Wrap(apperr.KindValidation, ErrInvalidQuantity, "Quantity must be positive")
	}
	return l.apply(ctx, productID, quantity)
}

// Restock adds newly received goods.
func (l *Ledger) Restock(ctx context.Context, productID string, quantity int) error {
	if err := l.Release(ctx, productID, quantity); err != nil {
		return err
	}
	log.Printf("[Inventory] Restocked %d units of %s", quantity, productID)
	return nil
}

// Available returns the current stock of a product.
func (l *Ledger) Available(ctx context.Context, productID string) (int, error) {
	stock, err := l.store.LoadStock(ctx, productID)
	if err != nil {
		return 0, loadError(err, productID)
	}
	return stock.Quantity, nil
}

func (l *Ledger) apply(ctx context.Context, productID string, delta int) error {
	for attempt := 1; ; attempt++ {
		stock, err := l.store.LoadStock(ctx, productID)
		if err != nil {
			return loadError(err, productID)
		}

		next := stock.Quantity + delta
		if next < 0 {
			return apperr.Wrap(apperr.KindValidation, ErrInsufficientStock,
				"Insufficient stock for product: %s", productID)
		}

		swapped, err := l.store.CompareAndSwapStock(ctx, productID, stock.Version, next)
		if err != nil {
			return apperr.Internal(err, "update stock for %s", productID)
		}
		if swapped {
			l.notify(ctx, productID)
			return nil
		}

		if delta < 0 && attempt >= l.maxAttempts {
			log.Printf("[Inventory] Gave up on %s after %d attempts", productID, attempt)
			return apperr.Wrap(apperr.KindConflict, ErrContention, "stock changed, please retry")
		}
		if err := l.wait(ctx, attempt); err != nil {
			return apperr.Wrap(apperr.KindConflict, err, "stock changed, please retry")
		}
	}
}

func (l *Ledger) wait(ctx context.Context, attempt int) error {
	if l.backoff <= 0 {
		return ctx.Err()
	}
	step := min(attempt, 8)
	d := l.backoff*time.Duration(step) + rand.N(l.backoff)

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *Ledger) notify(ctx context.Context, productID string) {
	for _, h := range l.hooks {
		h(ctx, productID)
	}
}

func loadError(err error, productID string) error {
	if errors.Is(err, ErrStockNotFound) {
		return apperr.Wrap(apperr.KindNotFound, err, "Product not found: %s", productID)
	}
	return apperr.Internal(err, "load stock for %s", productID)
}
