package product_test

import (
	"context"
	"sync"
	"testing"

	"github.com/example/ec-fulfillment/internal/apperr"
	"github.com/example/ec-fulfillment/internal/domain/product"
	"github.com/example/ec-fulfillment/internal/infrastructure/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

func newTestCatalog() (*product.Service, *store.MemoryProductStore, *recordingInvalidator) {
	repo := store.NewMemoryProductStore()
	inv := &recordingInvalidator{}
	return product.NewService(repo, nil, inv), repo, inv
}

func validInput() product.CreateInput {
	return product.CreateInput{
		Name:          "Coffee Mug",
		SKU:           "MUG-001",
		Price:         decimal.RequireFromString("12.50"),
		StockQuantity: 10,
	}
}

// ============================================
// Create Tests
// ============================================

func TestService_Create_Success(t *testing.T) {
	service, repo, _ := newTestCatalog()

	p, err := service.Create(context.Background(), validInput())

	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.True(t, p.Active)
	stored, err := repo.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.StockQuantity)
}

func TestService_Create_Validation(t *testing.T) {
	negative := decimal.RequireFromString("-1")
	tests := []struct {
		name   string
		mutate func(*product.CreateInput)
		err    error
	}{
		{"empty name", func(in *product.CreateInput) { in.Name = "  " }, product.ErrInvalidName},
		{"empty sku", func(in *product.CreateInput) { in.SKU = "" }, product.ErrInvalidSKU},
		{"zero price", func(in *product.CreateInput) { in.Price = decimal.Zero }, product.ErrInvalidPrice},
		{"negative discount", func(in *product.CreateInput) { in.DiscountPrice = &negative }, product.ErrInvalidDiscount},
		{"negative stock", func(in *product.CreateInput) { in.StockQuantity = -1 }, product.ErrInvalidStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _, _ := newTestCatalog()
			in := validInput()
			tt.mutate(&in)

			p, err := service.Create(context.Background(), in)

			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}
}

func TestService_Create_DuplicateSKU(t *testing.T) {
	service, _, _ := newTestCatalog()
	ctx := context.Background()

	_, err := service.Create(ctx, validInput())
	require.NoError(t, err)
	_, err = service.Create(ctx, validInput())

	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

// ============================================
// Update / Deactivate Tests
// ============================================

func TestService_Update_ChangesFieldsAndInvalidates(t *testing.T) {
	service, _, inv := newTestCatalog()
	ctx := context.Background()
	p, err := service.Create(ctx, validInput())
	require.NoError(t, err)

	name := "Large Mug"
	discount := decimal.RequireFromString("9.99")
	updated, err := service.Update(ctx, p.ID, product.UpdateInput{Name: &name, DiscountPrice: &discount})

	require.NoError(t, err)
	assert.Equal(t, "Large Mug", updated.Name)
	assert.Equal(t, "9.99", updated.EffectivePrice().StringFixed(2))
	assert.Equal(t, []string{p.ID}, inv.ids)
}

func TestService_Update_ClearDiscount(t *testing.T) {
	service, _, _ := newTestCatalog()
	ctx := context.Background()
	in := validInput()
	discount := decimal.RequireFromString("10.00")
	in.DiscountPrice = &discount
	p, err := service.Create(ctx, in)
	require.NoError(t, err)

	updated, err := service.Update(ctx, p.ID, product.UpdateInput{ClearDiscount: true})

	require.NoError(t, err)
	assert.Nil(t, updated.DiscountPrice)
	assert.Equal(t, "12.50", updated.EffectivePrice().StringFixed(2))
}

func TestService_Update_NeverChangesStock(t *testing.T) {
	service, repo, _ := newTestCatalog()
	ctx := context.Background()
	p, err := service.Create(ctx, validInput())
	require.NoError(t, err)

	ok, err := repo.CompareAndSwapStock(ctx, p.ID, 1, 3)
	require.NoError(t, err)
	require.True(t, ok)

	price := decimal.RequireFromString("15.00")
	_, err = service.Update(ctx, p.ID, product.UpdateInput{Price: &price})
	require.NoError(t, err)

	stored, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.StockQuantity)
}

func TestService_Update_NotFound(t *testing.T) {
	service, _, _ := newTestCatalog()

	_, err := service.Update(context.Background(), "missing", product.UpdateInput{})

	assert.ErrorIs(t, err, product.ErrProductNotFound)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestService_Deactivate(t *testing.T) {
	service, _, inv := newTestCatalog()
	ctx := context.Background()
	p, err := service.Create(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, service.Deactivate(ctx, p.ID))
	require.NoError(t, service.Deactivate(ctx, p.ID))

	got, err := service.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Len(t, inv.ids, 1)

	items, total, err := service.ListActive(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 0, total)
}

// ============================================
// Model Tests
// ============================================

func TestProduct_InStock(t *testing.T) {
	assert.True(t, (&product.Product{StockQuantity: 1}).InStock())
	assert.False(t, (&product.Product{StockQuantity: 0}).InStock())
}
