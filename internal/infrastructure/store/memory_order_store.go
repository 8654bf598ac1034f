package store

import (
	"context"
	"sort"
	"sync"

	"github.com/example/ec-fulfillment/internal/domain/order"
)

// MemoryOrderStore keeps orders in memory with the same version semantics
// as the Postgres store.
type MemoryOrderStore struct {
	mu       sync.RWMutex
	orders   map[string]*order.Order
	byNumber map[string]string
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{
		orders:   make(map[string]*order.Order),
		byNumber: make(map[string]string),
	}
}

func (s *MemoryOrderStore) Create(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byNumber[o.OrderNumber]; ok {
		return order.ErrDuplicateOrderNumber
	}
	o.Version = 1
	s.orders[o.ID] = copyOrder(o)
	s.byNumber[o.OrderNumber] = o.ID
	return nil
}

func (s *MemoryOrderStore) Get(_ context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (s *MemoryOrderStore) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	s.mu.RLock()
	id, ok := s.byNumber[number]
	s.mu.RUnlock()
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return s.Get(ctx, id)
}

func (s *MemoryOrderStore) GetByPaymentID(_ context.Context, paymentID string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if paymentID != "" && o.PaymentID == paymentID {
			return copyOrder(o), nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (s *MemoryOrderStore) Update(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.orders[o.ID]
	if !ok {
		return order.ErrOrderNotFound
	}
	if cur.Version != o.Version {
		return order.ErrVersionConflict
	}
	cur.Status = o.Status
	cur.Notes = o.Notes
	cur.PaymentID = o.PaymentID
	cur.PaymentMethod = o.PaymentMethod
	cur.ShippedAt = o.ShippedAt
	cur.DeliveredAt = o.DeliveredAt
	cur.UpdatedAt = o.UpdatedAt
	cur.Version++
	o.Version = cur.Version
	return nil
}

func (s *MemoryOrderStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o, ok := s.orders[id]; ok {
		delete(s.byNumber, o.OrderNumber)
		delete(s.orders, id)
	}
	return nil
}

func (s *MemoryOrderStore) ListByUser(_ context.Context, userID string, offset, limit int) ([]*order.Order, int, error) {
	return s.list(func(o *order.Order) bool { return o.UserID == userID }, offset, limit)
}

func (s *MemoryOrderStore) List(_ context.Context, status *order.Status, offset, limit int) ([]*order.Order, int, error) {
	return s.list(func(o *order.Order) bool { return status == nil || o.Status == *status }, offset, limit)
}

func (s *MemoryOrderStore) list(match func(*order.Order) bool, offset, limit int) ([]*order.Order, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*order.Order, 0)
	for _, o := range s.orders {
		if match(o) {
			matched = append(matched, copyOrder(o))
		}
	}
	// Newest first, ties broken by id for stable pages.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return paginate(matched, offset, limit), len(matched), nil
}

func copyOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	return &cp
}
