package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/ec-fulfillment/internal/domain/cart"
)

// PostgresCartStore implements cart.Repository.
type PostgresCartStore struct {
	db *sql.DB
}

func NewPostgresCartStore(db *sql.DB) *PostgresCartStore {
	return &PostgresCartStore{db: db}
}

func (s *PostgresCartStore) GetByUserID(ctx context.Context, userID string) (*cart.Cart, error) {
	var c cart.Cart
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`, userID,
	).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cart.ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cart_id, product_id, quantity, added_at
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY added_at, id
	`, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it cart.Item
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.AddedAt); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, it)
	}
	return &c, rows.Err()
}

func (s *PostgresCartStore) Create(ctx context.Context, c *cart.Cart) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO carts (id, user_id, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.UserID, c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err, "carts_user_id_key") {
		return cart.ErrCartExists
	}
	return err
}

func (s *PostgresCartStore) AddItem(ctx context.Context, item cart.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = $2 WHERE id = $1`, item.CartID, item.AddedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cart.ErrCartNotFound
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, added_at)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.CartID, item.ProductID, item.Quantity, item.AddedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresCartStore) UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $3 WHERE id = $2 AND cart_id = $1`, cartID, itemID, quantity)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cart.ErrCartItemNotFound
	}
	return nil
}

// RemoveItem deletes the line. An unknown item id is a no-op; an item that
// belongs to another cart is reported as not found.
func (s *PostgresCartStore) RemoveItem(ctx context.Context, cartID, itemID string) error {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT cart_id FROM cart_items WHERE id = $1`, itemID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if owner != cartID {
		return cart.ErrCartItemNotFound
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	return err
}

// ConsumeItems subtracts the ordered quantities in one transaction, so lines
// added while the order was being placed stay in the cart.
func (s *PostgresCartStore) ConsumeItems(ctx context.Context, cartID string, consumed []cart.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, it := range consumed {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE id = $1 AND cart_id = $2 AND quantity <= $3`,
			it.ID, cartID, it.Quantity); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE cart_items SET quantity = quantity - $3 WHERE id = $1 AND cart_id = $2`,
			it.ID, cartID, it.Quantity); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresCartStore) ClearItems(ctx context.Context, cartID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}
