// Package cache provides a read-through product cache with explicit
// invalidation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/ec-fulfillment/internal/domain/inventory"
	"github.com/example/ec-fulfillment/internal/domain/product"
)

const DefaultTTL = 5 * time.Minute

// ErrCacheMiss is returned by Backend.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// StockReader supplies the live stock figure for a product.
type StockReader interface {
	LoadStock(ctx context.Context, productID string) (inventory.Stock, error)
}

// CachedCatalog serves product reads from the backend and falls back to the
// source reader. A backend that errors is bypassed, never fatal.
//
// Stock is never served from the backend: a fill racing an invalidation can
// store an old figure, so every read takes the quantity from the stock reader.
type CachedCatalog struct {
	source  product.Reader
	stock   StockReader
	backend Backend
	ttl     time.Duration
}

var (
	_ product.Reader      = (*CachedCatalog)(nil)
	_ product.Invalidator = (*CachedCatalog)(nil)
)

func NewCachedCatalog(source product.Reader, stock StockReader, backend Backend, ttl time.Duration) *CachedCatalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedCatalog{source: source, stock: stock, backend: backend, ttl: ttl}
}

func productKey(id string) string {
	return "product:" + id
}

func (c *CachedCatalog) Get(ctx context.Context, id string) (*product.Product, error) {
	key := productKey(id)

	data, err := c.backend.Get(ctx, key)
	switch {
	case err == nil:
		var p product.Product
		if err := json.Unmarshal(data, &p); err == nil {
			if err := c.withLiveStock(ctx, &p); err != nil {
				return nil, err
			}
			return &p, nil
		}
		log.Printf("[Cache] Discarding undecodable entry %s", key)
	case !errors.Is(err, ErrCacheMiss):
		log.Printf("[Cache] Error reading %s: %v", key, err)
	}

	p, err := c.source.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(p)
	if err != nil {
		return p, nil
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		log.Printf("[Cache] Error writing %s: %v", key, err)
	}
	return p, nil
}

func (c *CachedCatalog) withLiveStock(ctx context.Context, p *product.Product) error {
	s, err := c.stock.LoadStock(ctx, p.ID)
	if err != nil {
		if errors.Is(err, inventory.ErrStockNotFound) {
			return product.ErrProductNotFound
		}
		return fmt.Errorf("load stock for %s: %w", p.ID, err)
	}
	p.StockQuantity = s.Quantity
	return nil
}

func (c *CachedCatalog) Invalidate(ctx context.Context, id string) error {
	if err := c.backend.Del(ctx, productKey(id)); err != nil {
		log.Printf("[Cache] Error invalidating product %s: %v", id, err)
		return err
	}
	return nil
}

// StockChanged has the inventory.ChangeHook signature, so the ledger can
// drop stale stock figures after every committed change.
func (c *CachedCatalog) StockChanged(ctx context.Context, productID string) {
	_ = c.Invalidate(ctx, productID)
}
