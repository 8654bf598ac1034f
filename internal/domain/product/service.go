package product

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/example/ec-fulfillment/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateInput struct {
	Name          string
	SKU           string
	Description   string
	Price         decimal.Decimal
	DiscountPrice *decimal.Decimal
	StockQuantity int
}

// UpdateInput holds optional field changes. Nil fields are left as they are.
type UpdateInput struct {
	Name          *string
	Description   *string
	Price         *decimal.Decimal
	DiscountPrice *decimal.Decimal
	ClearDiscount bool
	Active        *bool
}

type Service struct {
	repo        Repository
	reader      Reader
	invalidator Invalidator
	now         func() time.Time
}

// NewService builds the catalog service. reader serves lookups and may be a
// cache in front of repo; inv is told about every write.
func NewService(repo Repository, reader Reader, inv Invalidator) *Service {
	if reader == nil {
		reader = repo
	}
	if inv == nil {
		inv = noopInvalidator{}
	}
	return &Service{repo: repo, reader: reader, invalidator: inv, now: time.Now}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.SKU = strings.TrimSpace(in.SKU)
	if err := validate(in.Name, in.SKU, in.Price, in.DiscountPrice); err != nil {
		return nil, err
	}
	if in.StockQuantity < 0 {
		return nil, apperr.Wrap(apperr.KindValidation, ErrInvalidStock, "Stock quantity must not be negative")
	}

	now := s.now()
	p := &Product{
		ID:            uuid.New().String(),
		Name:          in.Name,
		SKU:           in.SKU,
		Description:   in.Description,
		Price:         in.Price,
		DiscountPrice: in.DiscountPrice,
		StockQuantity: in.StockQuantity,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicateSKU) {
			return nil, apperr.Wrap(apperr.KindConflict, err, "Product with SKU %s already exists", p.SKU)
		}
		return nil, apperr.Internal(err, "create product")
	}
	log.Printf("[Catalog] Created product %s (%s)", p.ID, p.SKU)
	return p, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Product, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.ClearDiscount {
		p.DiscountPrice = nil
	} else if in.DiscountPrice != nil {
		p.DiscountPrice = in.DiscountPrice
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
	if err := validate(p.Name, p.SKU, p.Price, p.DiscountPrice); err != nil {
		return nil, err
	}

	p.UpdatedAt = s.now()
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Deactivate hides a product from new carts. Existing orders keep their
// snapshots, so products are never hard-deleted.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !p.Active {
		return nil
	}
	p.Active = false
	p.UpdatedAt = s.now()
	return s.save(ctx, p)
}

func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	p, err := s.reader.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, id)
	}
	return p, nil
}

func (s *Service) ListActive(ctx context.Context, offset, limit int) ([]*Product, int, error) {
	items, total, err := s.repo.ListActive(ctx, offset, limit)
	if err != nil {
		return nil, 0, apperr.Internal(err, "list products")
	}
	return items, total, nil
}

// load reads from the repository, never the cache, so writes start from
// the stored row.
func (s *Service) load(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, id)
	}
	return p, nil
}

func (s *Service) save(ctx context.Context, p *Product) error {
	if err := s.repo.Update(ctx, p); err != nil {
		return notFoundOr(err, p.ID)
	}
	if err := s.invalidator.Invalidate(ctx, p.ID); err != nil {
		log.Printf("[Catalog] Failed to invalidate cache for %s: %v", p.ID, err)
	}
	return nil
}

func validate(name, sku string, price decimal.Decimal, discount *decimal.Decimal) error {
	if name == "" {
		return apperr.Wrap(apperr.KindValidation, ErrInvalidName, "Product name is required")
	}
	if sku == "" {
		return apperr.Wrap(apperr.KindValidation, ErrInvalidSKU, "Product SKU is required")
	}
	if !price.IsPositive() {
		return apperr.Wrap(apperr.KindValidation, ErrInvalidPrice, "Price must be positive")
	}
	if discount != nil && discount.IsNegative() {
		return apperr.Wrap(apperr.KindValidation, ErrInvalidDiscount, "Discount price must not be negative")
	}
	return nil
}

func notFoundOr(err error, id string) error {
	if errors.Is(err, ErrProductNotFound) {
		return apperr.Wrap(apperr.KindNotFound, err, "Product not found: %s", id)
	}
	return apperr.Internal(err, "load product %s", id)
}
