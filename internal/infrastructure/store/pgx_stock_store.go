package store

import (
	"context"
	"errors"

	"github.com/example/ec-fulfillment/internal/domain/inventory"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PgxStockStore implements inventory.StockStore on the products table. The
// version column is the compare-and-swap token.
type PgxStockStore struct {
	pool DBPool
}

var _ inventory.StockStore = (*PgxStockStore)(nil)

func NewPgxStockStore(pool DBPool) *PgxStockStore {
	return &PgxStockStore{pool: pool}
}

func (s *PgxStockStore) LoadStock(ctx context.Context, productID string) (inventory.Stock, error) {
	st := inventory.Stock{ProductID: productID}
	err := s.pool.QueryRow(ctx,
		`SELECT stock_quantity, version FROM products WHERE id = $1`, productID,
	).Scan(&st.Quantity, &st.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return inventory.Stock{}, inventory.ErrStockNotFound
		}
		return inventory.Stock{}, err
	}
	return st, nil
}

// CompareAndSwapStock writes quantity only if the row still carries
// expectedVersion. A lost race reports false with no error.
func (s *PgxStockStore) CompareAndSwapStock(ctx context.Context, productID string, expectedVersion int64, quantity int) (bool, error) {
	if quantity < 0 {
		return false, nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE products
		SET stock_quantity = $3, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
	`, productID, expectedVersion, quantity)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
