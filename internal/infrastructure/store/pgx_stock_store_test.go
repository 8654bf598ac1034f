package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ec-fulfillment/internal/domain/inventory"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStockStore(t *testing.T) (*PgxStockStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPgxStockStore(mock), mock
}

// ============================================
// PgxStockStore Tests
// ============================================

func TestPgxStockStore_LoadStock(t *testing.T) {
	s, mock := newMockStockStore(t)
	mock.ExpectQuery(`SELECT stock_quantity, version FROM products`).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"stock_quantity", "version"}).AddRow(5, int64(3)))

	st, err := s.LoadStock(context.Background(), "p1")

	require.NoError(t, err)
	assert.Equal(t, inventory.Stock{ProductID: "p1", Quantity: 5, Version: 3}, st)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgxStockStore_LoadStock_NotFound(t *testing.T) {
	s, mock := newMockStockStore(t)
	mock.ExpectQuery(`SELECT stock_quantity, version FROM products`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LoadStock(context.Background(), "missing")

	assert.ErrorIs(t, err, inventory.ErrStockNotFound)
}

func TestPgxStockStore_CompareAndSwapStock(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"version matches", 1, true},
		{"version moved on", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStockStore(t)
			mock.ExpectExec(`UPDATE products`).
				WithArgs("p1", int64(3), 2).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			ok, err := s.CompareAndSwapStock(context.Background(), "p1", 3, 2)

			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPgxStockStore_CompareAndSwapStock_NegativeNeverWritten(t *testing.T) {
	s, mock := newMockStockStore(t)

	ok, err := s.CompareAndSwapStock(context.Background(), "p1", 3, -1)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgxStockStore_CompareAndSwapStock_Error(t *testing.T) {
	s, mock := newMockStockStore(t)
	mock.ExpectExec(`UPDATE products`).WillReturnError(errors.New("connection reset"))

	_, err := s.CompareAndSwapStock(context.Background(), "p1", 3, 2)

	assert.ErrorContains(t, err, "connection reset")
}

func TestPgxStockStore_DrivesLedger(t *testing.T) {
	s, mock := newMockStockStore(t)
	rows := func(q int, v int64) *pgxmock.Rows {
		return pgxmock.NewRows([]string{"stock_quantity", "version"}).AddRow(q, v)
	}
	// First swap loses a race, the retry wins.
	mock.ExpectQuery(`SELECT stock_quantity, version`).WithArgs("p1").WillReturnRows(rows(5, 1))
	mock.ExpectExec(`UPDATE products`).WithArgs("p1", int64(1), 3).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT stock_quantity, version`).WithArgs("p1").WillReturnRows(rows(4, 2))
	mock.ExpectExec(`UPDATE products`).WithArgs("p1", int64(2), 2).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ledger := inventory.NewLedger(s, inventory.WithBackoff(time.Microsecond))
	require.NoError(t, ledger.Reserve(context.Background(), "p1", 2))

	assert.NoError(t, mock.ExpectationsWereMet())
}
