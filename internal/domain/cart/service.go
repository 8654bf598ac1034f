package cart

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/example/ec-fulfillment/internal/apperr"
	"github.com/example/ec-fulfillment/internal/domain/product"
	"github.com/example/ec-fulfillment/internal/keylock"
	"github.com/example/ec-fulfillment/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service implements cart operations. Stock is checked, never changed.
type Service struct {
	repo    Repository
	catalog product.Reader
	locks   *keylock.Map
	now     func() time.Time
}

func NewService(repo Repository, catalog product.Reader) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		locks:   keylock.New(),
		now:     time.Now,
	}
}

// GetOrCreate returns the user's cart, creating an empty one on first use.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.repo.GetByUserID(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return nil, apperr.Internal(err, "load cart")
	}

	now := s.now()
	c = &Cart{ID: uuid.New().String(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	if err := s.repo.Create(ctx, c); err != nil {
		if !errors.Is(err, ErrCartExists) {
			return nil, apperr.Internal(err, "create cart")
		}
		// Another request created it first.
		existing, err := s.repo.GetByUserID(ctx, userID)
		if err != nil {
			return nil, apperr.Internal(err, "load cart")
		}
		return existing, nil
	}
	log.Printf("[Cart] Created cart %s for user %s", c.ID, userID)
	return c, nil
}

// View returns the cart priced from current catalog data.
func (s *Service) View(ctx context.Context, userID string) (*View, error) {
	c, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, c)
}

// AddItem adds quantity of a product, merging with an existing line for the
// same product.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*View, error) {
	if productID == "" {
		return nil, apperr.Wrap(apperr.KindValidation, ErrInvalidProduct, "Product ID is required")
	}
	if quantity <= 0 {
		return nil, apperr.Wrap(apperr.KindValidation, ErrInvalidQuantity, "Quantity must be positive")
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	p, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, apperr.Validation("Product is not available")
	}
	if !p.InStock() {
		return nil, apperr.Validation("Product is out of stock")
	}

	c, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if existing, ok := c.findByProduct(productID); ok {
		total := existing.Quantity + quantity
		if total > p.StockQuantity {
			return nil, apperr.Validation("Total quantity exceeds available stock")
		}
		if err := s.repo.UpdateItemQuantity(ctx, c.ID, existing.ID, total); err != nil {
			return nil, itemError(err)
		}
	} else {
		if quantity > p.StockQuantity {
			return nil, apperr.Validation("Requested quantity exceeds available stock")
		}
		item := Item{
			ID:        uuid.New().String(),
			CartID:    c.ID,
			ProductID: productID,
			Quantity:  quantity,
			AddedAt:   s.now(),
		}
		if err := s.repo.AddItem(ctx, item); err != nil {
			return nil, apperr.Internal(err, "add cart item")
		}
	}

	return s.View(ctx, userID)
}

// UpdateItemQuantity sets an item's quantity. A quantity of zero or less
// removes the item.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*View, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	c, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, ok := c.findItem(itemID)
	if !ok {
		return nil, apperr.Wrap(apperr.KindNotFound, ErrCartItemNotFound, "Cart item not found: %s", itemID)
	}

	if quantity <= 0 {
		if err := s.repo.RemoveItem(ctx, c.ID, itemID); err != nil {
			return nil, itemError(err)
		}
		return s.View(ctx, userID)
	}

	p, err := s.product(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	if quantity > p.StockQuantity {
		return nil, apperr.Validation("Quantity exceeds available stock")
	}
	if err := s.repo.UpdateItemQuantity(ctx, c.ID, itemID, quantity); err != nil {
		return nil, itemError(err)
	}
	return s.View(ctx, userID)
}

// RemoveItem deletes an item. Removing an unknown item is a no-op; an item
// that belongs to someone else's cart is reported as not found.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) (*View, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	c, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RemoveItem(ctx, c.ID, itemID); err != nil {
		return nil, itemError(err)
	}
	return s.View(ctx, userID)
}

// Clear empties the cart. The cart itself is kept.
func (s *Service) Clear(ctx context.Context, userID string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	c, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.ClearItems(ctx, c.ID); err != nil {
		return apperr.Internal(err, "clear cart")
	}
	return nil
}

// ConsumeItems removes the lines an order was built from. Items added or
// raised after the order read the cart keep the difference.
func (s *Service) ConsumeItems(ctx context.Context, userID string, consumed []Item) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	c, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.ConsumeItems(ctx, c.ID, consumed); err != nil {
		return apperr.Internal(err, "remove ordered items from cart")
	}
	return nil
}

func (s *Service) buildView(ctx context.Context, c *Cart) (*View, error) {
	v := &View{
		ID:         c.ID,
		UserID:     c.UserID,
		Items:      make([]ItemView, 0, len(c.Items)),
		TotalPrice: decimal.Zero,
	}
	for _, it := range c.Items {
		iv := ItemView{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: decimal.Zero,
			Subtotal:  decimal.Zero,
		}
		p, err := s.catalog.Get(ctx, it.ProductID)
		switch {
		case err == nil:
			iv.ProductName = p.Name
			iv.UnitPrice = p.EffectivePrice()
			iv.Subtotal = pricing.LineTotal(iv.UnitPrice, it.Quantity)
			iv.InStock = p.Active && p.InStock()
			iv.AvailableStock = p.StockQuantity
		case errors.Is(err, product.ErrProductNotFound):
			log.Printf("[Cart] Product %s in cart %s no longer exists", it.ProductID, c.ID)
		default:
			return nil, apperr.Internal(err, "load product %s", it.ProductID)
		}
		v.Items = append(v.Items, iv)
		v.TotalItems += it.Quantity
		v.TotalPrice = v.TotalPrice.Add(iv.Subtotal)
	}
	v.TotalPrice = pricing.Round(v.TotalPrice)
	return v, nil
}

func (s *Service) product(ctx context.Context, productID string) (*product.Product, error) {
	p, err := s.catalog.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrProductNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, err, "Product not found: %s", productID)
		}
		return nil, apperr.Internal(err, "load product %s", productID)
	}
	return p, nil
}

func itemError(err error) error {
	if errors.Is(err, ErrCartItemNotFound) {
		return apperr.Wrap(apperr.KindNotFound, err, "Cart item not found")
	}
	return apperr.Internal(err, "update cart item")
}
