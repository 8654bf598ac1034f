package mocks

import (
	"context"
	"sync"

	"github.com/example/ec-fulfillment/internal/domain/order"
)

type StatusChange struct {
	OrderID  string
	Previous order.Status
	Current  order.Status
}

// MockNotifier records order notifications.
type MockNotifier struct {
	mu            sync.Mutex
	Created       []string
	StatusChanges []StatusChange
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) OrderCreated(_ context.Context, o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, o.ID)
}

func (m *MockNotifier) OrderStatusChanged(_ context.Context, o *order.Order, previous order.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusChanges = append(m.StatusChanges, StatusChange{OrderID: o.ID, Previous: previous, Current: o.Status})
}

func (m *MockNotifier) CreatedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Created)
}
