package store

import (
	"context"
	"sort"
	"sync"

	"github.com/example/ec-fulfillment/internal/domain/inventory"
	"github.com/example/ec-fulfillment/internal/domain/product"
)

// MemoryProductStore keeps products in memory. It serves both the catalog
// repository and the inventory ledger's stock store.
type MemoryProductStore struct {
	mu       sync.RWMutex
	products map[string]*product.Product
}

func NewMemoryProductStore() *MemoryProductStore {
	return &MemoryProductStore{products: make(map[string]*product.Product)}
}

func (s *MemoryProductStore) Create(_ context.Context, p *product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if existing.SKU == p.SKU {
			return product.ErrDuplicateSKU
		}
	}
	cp := *p
	if cp.Version == 0 {
		cp.Version = 1
	}
	p.Version = cp.Version
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryProductStore) Get(_ context.Context, id string) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

// Update writes catalog fields. Stock quantity and version are left alone.
func (s *MemoryProductStore) Update(_ context.Context, p *product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.products[p.ID]
	if !ok {
		return product.ErrProductNotFound
	}
	cur.Name = p.Name
	cur.Description = p.Description
	cur.Price = p.Price
	cur.DiscountPrice = p.DiscountPrice
	cur.Active = p.Active
	cur.UpdatedAt = p.UpdatedAt
	return nil
}

func (s *MemoryProductStore) ListActive(_ context.Context, offset, limit int) ([]*product.Product, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]*product.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.Active {
			cp := *p
			active = append(active, &cp)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Name != active[j].Name {
			return active[i].Name < active[j].Name
		}
		return active[i].ID < active[j].ID
	})
	return paginate(active, offset, limit), len(active), nil
}

func (s *MemoryProductStore) LoadStock(_ context.Context, productID string) (inventory.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return inventory.Stock{}, inventory.ErrStockNotFound
	}
	return inventory.Stock{ProductID: p.ID, Quantity: p.StockQuantity, Version: p.Version}, nil
}

func (s *MemoryProductStore) CompareAndSwapStock(_ context.Context, productID string, expectedVersion int64, quantity int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return false, inventory.ErrStockNotFound
	}
	if p.Version != expectedVersion || quantity < 0 {
		return false, nil
	}
	p.StockQuantity = quantity
	p.Version++
	return true, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
