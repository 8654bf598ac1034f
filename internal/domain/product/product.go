package product

import (
	"context"
	"errors"
	"time"

	"github.com/example/ec-fulfillment/internal/pricing"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrInvalidDiscount = errors.New("discount price must not be negative")
	ErrInvalidName     = errors.New("name is required")
	ErrInvalidSKU      = errors.New("sku is required")
	ErrInvalidStock    = errors.New("stock quantity must not be negative")
	ErrDuplicateSKU    = errors.New("sku already exists")
)

type Product struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	SKU           string           `json:"sku"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discount_price,omitempty"`
	StockQuantity int              `json:"stock_quantity"`
	Active        bool             `json:"active"`
	Version       int64            `json:"version"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// EffectivePrice is the price a buyer pays per unit.
func (p *Product) EffectivePrice() decimal.Decimal {
	return pricing.EffectivePrice(p.Price, p.DiscountPrice)
}

func (p *Product) InStock() bool {
	return p.StockQuantity > 0
}

// Reader is the read side of the catalog used by carts and orders.
// Get returns ErrProductNotFound for unknown ids.
type Reader interface {
	Get(ctx context.Context, id string) (*Product, error)
}

// Repository persists products. Update never writes stock quantity;
// stock changes go through the inventory ledger.
type Repository interface {
	Reader
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	ListActive(ctx context.Context, offset, limit int) ([]*Product, int, error)
}

// Invalidator drops cached copies of a product after it changes.
type Invalidator interface {
	Invalidate(ctx context.Context, id string) error
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context, string) error { return nil }
