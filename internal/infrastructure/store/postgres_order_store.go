package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/ec-fulfillment/internal/domain/order"
	"github.com/google/uuid"
)

// PostgresOrderStore implements order.Repository. An order and its items are
// written in one transaction; items are immutable afterwards.
type PostgresOrderStore struct {
	db *sql.DB
}

func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

const orderColumns = `id, order_number, user_id, customer_email, subtotal, shipping_cost, tax, discount, total_amount,
	status, shipping_address, billing_address, payment_method, payment_id, notes,
	created_at, updated_at, shipped_at, delivered_at, version`

func (s *PostgresOrderStore) Create(ctx context.Context, o *order.Order) error {
	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}
	billing, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshal billing address: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, 1)
	`, o.ID, o.OrderNumber, o.UserID, o.CustomerEmail, o.Subtotal, o.ShippingCost, o.Tax, o.Discount, o.TotalAmount,
		o.Status, string(shipping), string(billing), o.PaymentMethod, nullString(o.PaymentID), o.Notes,
		o.CreatedAt, o.UpdatedAt, nullTime(o.ShippedAt), nullTime(o.DeliveredAt))
	if isUniqueViolation(err, "orders_order_number_key") {
		return order.ErrDuplicateOrderNumber
	}
	if err != nil {
		return err
	}

	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == "" {
			it.ID = uuid.New().String()
		}
		it.OrderID = o.ID
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, position, product_id, product_name, product_sku, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, it.ID, o.ID, i, it.ProductID, it.ProductName, it.ProductSKU, it.Quantity, it.UnitPrice); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	o.Version = 1
	return nil
}

func (s *PostgresOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	return s.getOne(ctx, `id = $1`, id)
}

func (s *PostgresOrderStore) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	return s.getOne(ctx, `order_number = $1`, number)
}

func (s *PostgresOrderStore) GetByPaymentID(ctx context.Context, paymentID string) (*order.Order, error) {
	if paymentID == "" {
		return nil, order.ErrOrderNotFound
	}
	return s.getOne(ctx, `payment_id = $1`, paymentID)
}

func (s *PostgresOrderStore) getOne(ctx context.Context, where string, arg string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, []*order.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PostgresOrderStore) Update(ctx context.Context, o *order.Order) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $3, notes = $4, payment_id = $5, payment_method = $6,
			shipped_at = $7, delivered_at = $8, updated_at = $9, version = version + 1
		WHERE id = $1 AND version = $2
	`, o.ID, o.Version, o.Status, o.Notes, nullString(o.PaymentID), o.PaymentMethod,
		nullTime(o.ShippedAt), nullTime(o.DeliveredAt), o.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		o.Version++
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return order.ErrOrderNotFound
	}
	return order.ErrVersionConflict
}

func (s *PostgresOrderStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return err
}

func (s *PostgresOrderStore) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*order.Order, int, error) {
	return s.list(ctx, `user_id = $1`, []any{userID}, offset, limit)
}

func (s *PostgresOrderStore) List(ctx context.Context, status *order.Status, offset, limit int) ([]*order.Order, int, error) {
	if status == nil {
		return s.list(ctx, `TRUE`, nil, offset, limit)
	}
	return s.list(ctx, `status = $1`, []any{*status}, offset, limit)
}

func (s *PostgresOrderStore) list(ctx context.Context, where string, args []any, offset, limit int) ([]*order.Order, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC, id DESC OFFSET $%d LIMIT $%d`,
		orderColumns, where, n+1, n+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders := make([]*order.Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := s.loadItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// loadItems fills Items for every order with a single query.
func (s *PostgresOrderStore) loadItems(ctx context.Context, orders []*order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*order.Order, len(orders))
	placeholders := make([]string, len(orders))
	args := make([]any, len(orders))
	for i, o := range orders {
		byID[o.ID] = o
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = o.ID
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, product_sku, quantity, unit_price
		FROM order_items
		WHERE order_id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY order_id, position
	`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var it order.Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ProductSKU, &it.Quantity, &it.UnitPrice); err != nil {
			return err
		}
		o := byID[it.OrderID]
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o                 order.Order
		shipping, billing []byte
		paymentID         sql.NullString
		shippedAt         sql.NullTime
		deliveredAt       sql.NullTime
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.CustomerEmail,
		&o.Subtotal, &o.ShippingCost, &o.Tax, &o.Discount, &o.TotalAmount,
		&o.Status, &shipping, &billing, &o.PaymentMethod, &paymentID, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt, &shippedAt, &deliveredAt, &o.Version)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address of %s: %w", o.ID, err)
	}
	if err := json.Unmarshal(billing, &o.BillingAddress); err != nil {
		return nil, fmt.Errorf("decode billing address of %s: %w", o.ID, err)
	}
	o.PaymentID = paymentID.String
	if shippedAt.Valid {
		t := shippedAt.Time
		o.ShippedAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		o.DeliveredAt = &t
	}
	return &o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
