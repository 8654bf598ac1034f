package payment_test

import (
	"context"
	"testing"
	"time"

	"github.com/example/ec-fulfillment/internal/apperr"
	"github.com/example/ec-fulfillment/internal/auth"
	"github.com/example/ec-fulfillment/internal/domain/cart"
	"github.com/example/ec-fulfillment/internal/domain/inventory"
	"github.com/example/ec-fulfillment/internal/domain/order"
	"github.com/example/ec-fulfillment/internal/domain/payment"
	"github.com/example/ec-fulfillment/internal/domain/product"
	"github.com/example/ec-fulfillment/internal/infrastructure/store"
	"github.com/example/ec-fulfillment/internal/infrastructure/store/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var buyer = auth.Principal{UserID: "user-1", Email: "user-1@example.com", Role: auth.RoleCustomer}

func newTestPayment(t *testing.T) (*payment.Service, *order.Order) {
	t.Helper()
	ctx := context.Background()
	products := store.NewMemoryProductStore()
	require.NoError(t, products.Create(ctx, &product.Product{
		ID: "p1", Name: "Lamp", SKU: "LAMP-1", Price: decimal.RequireFromString("10.00"), StockQuantity: 5, Active: true,
	}))
	carts := cart.NewService(store.NewMemoryCartStore(), products)
	ledger := inventory.NewLedger(products, inventory.WithBackoff(time.Microsecond))
	engine := order.NewEngine(store.NewMemoryOrderStore(), carts, products, ledger, mocks.NewMockNotifier())

	_, err := carts.AddItem(ctx, buyer.UserID, "p1", 2)
	require.NoError(t, err)
	o, err := engine.CreateOrder(ctx, buyer, order.CreateRequest{
		ShippingAddress: order.Address{Street: "1 Main", City: "Springfield", Country: "US"},
	})
	require.NoError(t, err)

	return payment.NewService(engine), o
}

// ============================================
// Process Tests
// ============================================

func TestService_Process_Success(t *testing.T) {
	service, o := newTestPayment(t)
	ctx := context.Background()

	receipt, err := service.Process(ctx, buyer, payment.Request{
		OrderID: o.ID,
		Amount:  decimal.RequireFromString("31.99"),
		Method:  "CREDIT_CARD",
	})

	require.NoError(t, err)
	assert.Regexp(t, `^PAY-[0-9A-F]{8}$`, receipt.PaymentID)
	assert.Equal(t, payment.StatusCompleted, receipt.Status)
	assert.Equal(t, o.OrderNumber, receipt.OrderNumber)

	status, err := service.Status(ctx, buyer, receipt.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, status.OrderID)
	assert.Equal(t, "CREDIT_CARD", status.Method)
}

func TestService_Process_AmountMismatch(t *testing.T) {
	service, o := newTestPayment(t)

	_, err := service.Process(context.Background(), buyer, payment.Request{
		OrderID: o.ID,
		Amount:  decimal.RequireFromString("30.00"),
		Method:  "CREDIT_CARD",
	})

	assert.ErrorIs(t, err, payment.ErrAmountMismatch)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestService_Process_NotPending(t *testing.T) {
	service, o := newTestPayment(t)
	req := payment.Request{OrderID: o.ID, Amount: o.TotalAmount, Method: "PAYPAL"}

	_, err := service.Process(context.Background(), buyer, req)
	require.NoError(t, err)
	_, err = service.Process(context.Background(), buyer, req)

	assert.ErrorIs(t, err, order.ErrNotPending)
	assert.Equal(t, "Order is not in pending status", apperr.Message(err))
}

func TestService_Process_OtherUsersOrder(t *testing.T) {
	service, o := newTestPayment(t)
	stranger := auth.Principal{UserID: "user-2", Role: auth.RoleCustomer}

	_, err := service.Process(context.Background(), stranger, payment.Request{OrderID: o.ID, Amount: o.TotalAmount, Method: "CARD"})

	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestService_Process_MethodRequired(t *testing.T) {
	service, o := newTestPayment(t)

	_, err := service.Process(context.Background(), buyer, payment.Request{OrderID: o.ID, Amount: o.TotalAmount})

	assert.ErrorIs(t, err, payment.ErrMethodRequired)
}

func TestService_Status_Unknown(t *testing.T) {
	service, _ := newTestPayment(t)

	_, err := service.Status(context.Background(), buyer, "PAY-00000000")

	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
