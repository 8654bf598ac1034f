package cart

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartExists       = errors.New("cart already exists")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrInvalidProduct   = errors.New("product_id is required")
)

// Cart belongs to exactly one user and is created on first use.
type Cart struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item is a line in a cart. Prices are not stored; they are read from the
// catalog whenever the cart is viewed.
type Item struct {
	ID        string    `json:"id"`
	CartID    string    `json:"cart_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

func (c *Cart) findByProduct(productID string) (Item, bool) {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return Item{}, false
}

func (c *Cart) findItem(itemID string) (Item, bool) {
	for _, it := range c.Items {
		if it.ID == itemID {
			return it, true
		}
	}
	return Item{}, false
}

// Repository stores carts and their items.
//
// RemoveItem deletes an item from the given cart. It returns nil when the
// item id is unknown and ErrCartItemNotFound when the id belongs to a
// different cart.
//
// ConsumeItems takes the given lines out of the cart in one step: each
// line's quantity is subtracted from the item with the same id, and items
// left at zero or below are deleted. Ids no longer in the cart are skipped.
type Repository interface {
	GetByUserID(ctx context.Context, userID string) (*Cart, error)
	Create(ctx context.Context, c *Cart) error
	AddItem(ctx context.Context, item Item) error
	UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error
	RemoveItem(ctx context.Context, cartID, itemID string) error
	ClearItems(ctx context.Context, cartID string) error
	ConsumeItems(ctx context.Context, cartID string, consumed []Item) error
}

// View is the cart as shown to its owner, priced from live catalog data.
type View struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Items      []ItemView      `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type ItemView struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	InStock        bool            `json:"in_stock"`
	AvailableStock int             `json:"available_stock"`
}
