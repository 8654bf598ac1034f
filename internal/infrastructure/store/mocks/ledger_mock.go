package mocks

import (
	"context"
	"sync"
)

// StockLedger is the subset of the inventory ledger the mock wraps.
type StockLedger interface {
	Reserve(ctx context.Context, productID string, quantity int) error
	Release(ctx context.Context, productID string, quantity int) error
}

type StockCall struct {
	ProductID string
	Quantity  int
}

// MockLedger records reserve/release calls and forwards them to an inner
// ledger unless an error is configured for the product.
type MockLedger struct {
	inner StockLedger

	mu           sync.Mutex
	ReserveCalls []StockCall
	ReleaseCalls []StockCall
	ReserveErr   map[string]error
	ReleaseErr   map[string]error
}

func NewMockLedger(inner StockLedger) *MockLedger {
	return &MockLedger{
		inner:      inner,
		ReserveErr: make(map[string]error),
		ReleaseErr: make(map[string]error),
	}
}

func (m *MockLedger) Reserve(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	m.ReserveCalls = append(m.ReserveCalls, StockCall{productID, quantity})
	err := m.ReserveErr[productID]
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return m.inner.Reserve(ctx, productID, quantity)
}

func (m *MockLedger) Release(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	m.ReleaseCalls = append(m.ReleaseCalls, StockCall{productID, quantity})
	err := m.ReleaseErr[productID]
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return m.inner.Release(ctx, productID, quantity)
}

// Released returns a copy of the recorded release calls.
func (m *MockLedger) Released() []StockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StockCall(nil), m.ReleaseCalls...)
}
