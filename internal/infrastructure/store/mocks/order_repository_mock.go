package mocks

import (
	"context"
	"sync"

	"github.com/example/ec-fulfillment/internal/domain/order"
	"github.com/example/ec-fulfillment/internal/infrastructure/store"
)

// MockOrderRepository wraps the in-memory order store and lets tests inject
// failures and inspect calls.
type MockOrderRepository struct {
	*store.MemoryOrderStore

	mu          sync.Mutex
	CreateCalls int
	UpdateCalls int
	DeleteCalls []string
	CreateErr   error
	UpdateErr   error
	// CreateCallback, when set, replaces the default Create behaviour.
	CreateCallback func(ctx context.Context, o *order.Order) error
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{MemoryOrderStore: store.NewMemoryOrderStore()}
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	m.CreateCalls++
	cb, err := m.CreateCallback, m.CreateErr
	m.mu.Unlock()

	if cb != nil {
		return cb(ctx, o)
	}
	if err != nil {
		return err
	}
	return m.MemoryOrderStore.Create(ctx, o)
}

func (m *MockOrderRepository) Update(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	m.UpdateCalls++
	err := m.UpdateErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return m.MemoryOrderStore.Update(ctx, o)
}

func (m *MockOrderRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, id)
	m.mu.Unlock()
	return m.MemoryOrderStore.Delete(ctx, id)
}

// Count returns how many orders are stored.
func (m *MockOrderRepository) Count() int {
	_, total, _ := m.MemoryOrderStore.List(context.Background(), nil, 0, 0)
	return total
}
