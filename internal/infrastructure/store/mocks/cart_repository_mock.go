package mocks

import (
	"context"
	"sync"

	"github.com/example/ec-fulfillment/internal/domain/cart"
	"github.com/example/ec-fulfillment/internal/infrastructure/store"
)

// MockCartRepository wraps the in-memory cart store with injectable errors.
type MockCartRepository struct {
	*store.MemoryCartStore

	mu           sync.Mutex
	ConsumeCalls int
	ConsumeErr   error
}

func NewMockCartRepository() *MockCartRepository {
	return &MockCartRepository{MemoryCartStore: store.NewMemoryCartStore()}
}

func (m *MockCartRepository) ConsumeItems(ctx context.Context, cartID string, consumed []cart.Item) error {
	m.mu.Lock()
	m.ConsumeCalls++
	err := m.ConsumeErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return m.MemoryCartStore.ConsumeItems(ctx, cartID, consumed)
}
