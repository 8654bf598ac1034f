package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/ec-fulfillment/internal/domain/product"
	"github.com/shopspring/decimal"
)

// PostgresProductStore implements product.Repository. Stock quantity is only
// written on insert; afterwards it belongs to PgxStockStore.
type PostgresProductStore struct {
	db *sql.DB
}

func NewPostgresProductStore(db *sql.DB) *PostgresProductStore {
	return &PostgresProductStore{db: db}
}

const productColumns = `id, name, sku, description, price, discount_price, stock_quantity, active, version, created_at, updated_at`

func (s *PostgresProductStore) Create(ctx context.Context, p *product.Product) error {
	if p.Version == 0 {
		p.Version = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.Name, p.SKU, p.Description, p.Price, nullDecimal(p.DiscountPrice),
		p.StockQuantity, p.Active, p.Version, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err, "products_sku_key") {
		return product.ErrDuplicateSKU
	}
	return err
}

func (s *PostgresProductStore) Get(ctx context.Context, id string) (*product.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, product.ErrProductNotFound
	}
	return p, err
}

func (s *PostgresProductStore) Update(ctx context.Context, p *product.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, discount_price = $5, active = $6, updated_at = $7
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.Price, nullDecimal(p.DiscountPrice), p.Active, p.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return product.ErrProductNotFound
	}
	return nil
}

func (s *PostgresProductStore) ListActive(ctx context.Context, offset, limit int) ([]*product.Product, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE active`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE active
		ORDER BY name, id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := make([]*product.Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func scanProduct(row rowScanner) (*product.Product, error) {
	var p product.Product
	var discount decimal.NullDecimal
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Description, &p.Price, &discount,
		&p.StockQuantity, &p.Active, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if discount.Valid {
		d := discount.Decimal
		p.DiscountPrice = &d
	}
	return &p, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
