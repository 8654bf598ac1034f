package store

import (
	"context"
	"sync"

	"github.com/example/ec-fulfillment/internal/domain/cart"
)

// MemoryCartStore keeps carts in memory, one per user.
type MemoryCartStore struct {
	mu        sync.RWMutex
	carts     map[string]*cart.Cart // cartID -> cart
	byUser    map[string]string     // userID -> cartID
	itemOwner map[string]string     // itemID -> cartID
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{
		carts:     make(map[string]*cart.Cart),
		byUser:    make(map[string]string),
		itemOwner: make(map[string]string),
	}
}

func (s *MemoryCartStore) GetByUserID(_ context.Context, userID string) (*cart.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUser[userID]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	return copyCart(s.carts[id]), nil
}

func (s *MemoryCartStore) Create(_ context.Context, c *cart.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUser[c.UserID]; ok {
		return cart.ErrCartExists
	}
	s.carts[c.ID] = copyCart(c)
	s.byUser[c.UserID] = c.ID
	return nil
}

func (s *MemoryCartStore) AddItem(_ context.Context, item cart.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[item.CartID]
	if !ok {
		return cart.ErrCartNotFound
	}
	c.Items = append(c.Items, item)
	c.UpdatedAt = item.AddedAt
	s.itemOwner[item.ID] = item.CartID
	return nil
}

func (s *MemoryCartStore) UpdateItemQuantity(_ context.Context, cartID, itemID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[cartID]
	if !ok {
		return cart.ErrCartItemNotFound
	}
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items[i].Quantity = quantity
			return nil
		}
	}
	return cart.ErrCartItemNotFound
}

func (s *MemoryCartStore) RemoveItem(_ context.Context, cartID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.itemOwner[itemID]
	if !ok {
		return nil
	}
	if owner != cartID {
		return cart.ErrCartItemNotFound
	}
	c := s.carts[cartID]
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			break
		}
	}
	delete(s.itemOwner, itemID)
	return nil
}

func (s *MemoryCartStore) ClearItems(_ context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[cartID]
	if !ok {
		return nil
	}
	for _, it := range c.Items {
		delete(s.itemOwner, it.ID)
	}
	c.Items = nil
	return nil
}

func (s *MemoryCartStore) ConsumeItems(_ context.Context, cartID string, consumed []cart.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[cartID]
	if !ok {
		return nil
	}
	taken := make(map[string]int, len(consumed))
	for _, it := range consumed {
		taken[it.ID] += it.Quantity
	}
	kept := c.Items[:0]
	for _, it := range c.Items {
		it.Quantity -= taken[it.ID]
		if it.Quantity <= 0 {
			delete(s.itemOwner, it.ID)
			continue
		}
		kept = append(kept, it)
	}
	c.Items = kept
	return nil
}

func copyCart(c *cart.Cart) *cart.Cart {
	cp := *c
	cp.Items = append([]cart.Item(nil), c.Items...)
	return &cp
}
