package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/ec-fulfillment/internal/auth"
	"github.com/example/ec-fulfillment/internal/domain/cart"
	"github.com/example/ec-fulfillment/internal/domain/inventory"
	"github.com/example/ec-fulfillment/internal/domain/order"
	"github.com/example/ec-fulfillment/internal/domain/payment"
	"github.com/example/ec-fulfillment/internal/domain/product"
	"github.com/example/ec-fulfillment/internal/domain/user"
	"github.com/example/ec-fulfillment/internal/infrastructure/store"
	"github.com/example/ec-fulfillment/internal/infrastructure/store/mocks"
	"github.com/example/ec-fulfillment/internal/query"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-key-that-is-at-least-32-chars"

type testServer struct {
	router   http.Handler
	users    *user.Service
	products *store.MemoryProductStore
	notifier *mocks.MockNotifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	products := store.NewMemoryProductStore()
	orders := store.NewMemoryOrderStore()
	users := user.NewService(store.NewMemoryUserStore(), auth.NewHasher(bcrypt.MinCost))
	notifier := mocks.NewMockNotifier()

	catalog := product.NewService(products, products, nil)
	ledger := inventory.NewLedger(products, inventory.WithBackoff(time.Microsecond))
	carts := cart.NewService(store.NewMemoryCartStore(), products)
	engine := order.NewEngine(orders, carts, products, ledger, notifier)
	jwtService := auth.NewJWTService(testSecret, 15*time.Minute)

	router := NewRouter(RouterConfig{
		Handlers:     NewHandlers(catalog, ledger, carts, engine, payment.NewService(engine), query.NewHandler(orders, products)),
		AuthHandlers: NewAuthHandlers(users, jwtService),
		JWTService:   jwtService,
		Quiet:        true,
	})
	return &testServer{router: router, users: users, products: products, notifier: notifier}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Email: email, Password: "password123", Name: "Test User"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp AuthResponse
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	_, err := s.users.RegisterAdmin(context.Background(), "admin@example.com", "password123", "Admin")
	require.NoError(t, err)
	rec := s.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "admin@example.com", Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp AuthResponse
	decode(t, rec, &resp)
	return resp.AccessToken
}

func (s *testServer) seedProduct(t *testing.T, adminToken string, stock int) *product.Product {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/products", adminToken, CreateProductRequest{
		Name:          "Desk Lamp",
		SKU:           "LAMP-001",
		Price:         decimal.RequireFromString("10.00"),
		StockQuantity: stock,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p product.Product
	decode(t, rec, &p)
	return &p
}

func (s *testServer) placeOrder(t *testing.T, token, productID string, qty int) *order.Order {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/cart/items", token, AddCartItemRequest{ProductID: productID, Quantity: qty})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/orders", token, CreateOrderRequest{
		ShippingAddress: order.Address{Street: "1 Main St", City: "Springfield", Country: "US"},
		PaymentMethod:   "CREDIT_CARD",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var o order.Order
	decode(t, rec, &o)
	return &o
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decode(t, rec, &body)
	return body["error"]
}

func (s *testServer) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := s.products.Get(context.Background(), productID)
	require.NoError(t, err)
	return p.StockQuantity
}

// ============================================
// Health / Auth Tests
// ============================================

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_Register_SetsCookie(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Email: "a@example.com", Password: "password123", Name: "A"})

	require.Equal(t, http.StatusCreated, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "access_token", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestRouter_Register_DuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@example.com")

	rec := s.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Email: "A@example.com", Password: "password123", Name: "A"})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_Login_WrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@example.com")

	rec := s.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "a@example.com", Password: "nope"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorKind(t, rec))
}

func TestRouter_Me(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "a@example.com")

	rec := s.do(t, http.MethodGet, "/auth/me", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var u user.User
	decode(t, rec, &u)
	assert.Equal(t, "a@example.com", u.Email)
	assert.Equal(t, auth.RoleCustomer, u.Role)
}

func TestRouter_MalformedBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorKind(t, rec))
}

// ============================================
// Access Control Tests
// ============================================

func TestRouter_RequiresAuthentication(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/cart", "/orders", "/payments/PAY-00000000"} {
		rec := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestRouter_AdminRoutesForbiddenForCustomers(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "a@example.com")

	rec := s.do(t, http.MethodGet, "/orders/all", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorKind(t, rec))

	rec = s.do(t, http.MethodPost, "/products", token, CreateProductRequest{Name: "X", SKU: "X", Price: decimal.NewFromInt(1)})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// ============================================
// Catalog Tests
// ============================================

func TestRouter_Products_CreateListRestock(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	p := s.seedProduct(t, admin, 5)

	rec := s.do(t, http.MethodGet, "/products?page=0&size=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page query.Page[product.Product]
	decode(t, rec, &page)
	assert.Equal(t, 1, page.TotalElements)

	rec = s.do(t, http.MethodPost, "/products/"+p.ID+"/stock", admin, RestockRequest{Quantity: 7})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stock StockResponse
	decode(t, rec, &stock)
	assert.Equal(t, 12, stock.StockQuantity)

	rec = s.do(t, http.MethodPost, "/products/"+p.ID+"/stock", admin, RestockRequest{Quantity: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Products_InvalidPageParam(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/products?size=ten", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Products_UnknownID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/products/missing", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorKind(t, rec))
}

// ============================================
// Checkout Tests
// ============================================

func TestRouter_Checkout_TotalsAndStock(t *testing.T) {
	s := newTestServer(t)
	p := s.seedProduct(t, s.adminToken(t), 5)
	token := s.register(t, "buyer@example.com")

	o := s.placeOrder(t, token, p.ID, 2)

	assert.Equal(t, order.StatusPending, o.Status)
	assert.True(t, decimal.RequireFromString("20.00").Equal(o.Subtotal))
	assert.True(t, decimal.RequireFromString("9.99").Equal(o.ShippingCost))
	assert.True(t, decimal.RequireFromString("2.00").Equal(o.Tax))
	assert.True(t, decimal.RequireFromString("31.99").Equal(o.TotalAmount))
	assert.Equal(t, 3, s.stock(t, p.ID))
	assert.Equal(t, 1, s.notifier.CreatedCount())

	rec := s.do(t, http.MethodGet, "/cart", token, nil)
	var view cart.View
	decode(t, rec, &view)
	assert.Empty(t, view.Items)
}

func TestRouter_Checkout_InsufficientStock(t *testing.T) {
	s := newTestServer(t)
	p := s.seedProduct(t, s.adminToken(t), 1)
	token := s.register(t, "buyer@example.com")

	rec := s.do(t, http.MethodPost, "/cart/items", token, AddCartItemRequest{ProductID: p.ID, Quantity: 2})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, s.stock(t, p.ID))
}

func TestRouter_Checkout_EmptyCart(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "buyer@example.com")

	rec := s.do(t, http.MethodPost, "/orders", token, CreateOrderRequest{
		ShippingAddress: order.Address{Street: "1 Main St", City: "Springfield", Country: "US"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Orders_OwnershipMasked(t *testing.T) {
	s := newTestServer(t)
	p := s.seedProduct(t, s.adminToken(t), 5)
	o := s.placeOrder(t, s.register(t, "buyer@example.com"), p.ID, 1)
	stranger := s.register(t, "other@example.com")

	rec := s.do(t, http.MethodGet, "/orders/"+o.ID, stranger, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/orders/number/"+o.OrderNumber, stranger, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/orders/"+o.ID+"/cancel", stranger, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Orders_CancelRestocks(t *testing.T) {
	s := newTestServer(t)
	p := s.seedProduct(t, s.adminToken(t), 5)
	token := s.register(t, "buyer@example.com")
	o := s.placeOrder(t, token, p.ID, 2)

	rec := s.do(t, http.MethodPost, "/orders/"+o.ID+"/cancel", token, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cancelled order.Order
	decode(t, rec, &cancelled)
	assert.Equal(t, order.StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, s.stock(t, p.ID))

	rec = s.do(t, http.MethodPost, "/orders/"+o.ID+"/cancel", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Orders_AdminCancelsCustomerOrder(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	p := s.seedProduct(t, admin, 5)
	o := s.placeOrder(t, s.register(t, "buyer@example.com"), p.ID, 2)

	rec := s.do(t, http.MethodPost, "/orders/"+o.ID+"/cancel", admin, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cancelled order.Order
	decode(t, rec, &cancelled)
	assert.Equal(t, order.StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, s.stock(t, p.ID))
}

func TestRouter_Orders_AdminStatusFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	p := s.seedProduct(t, admin, 5)
	o := s.placeOrder(t, s.register(t, "buyer@example.com"), p.ID, 1)

	rec := s.do(t, http.MethodPut, "/orders/"+o.ID+"/status", admin, UpdateStatusRequest{Status: "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPut, "/orders/"+o.ID+"/status", admin, UpdateStatusRequest{Status: "DELIVERED"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/orders/"+o.ID+"/status", admin, UpdateStatusRequest{Status: "LOST"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/orders/"+o.ID+"/refund", admin, RefundRequest{Reason: "damaged"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var refunded order.Order
	decode(t, rec, &refunded)
	assert.Equal(t, order.StatusRefunded, refunded.Status)
	assert.Equal(t, 5, s.stock(t, p.ID))

	rec = s.do(t, http.MethodGet, "/orders/all?status=REFUNDED", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page query.Page[order.Order]
	decode(t, rec, &page)
	assert.Equal(t, 1, page.TotalElements)

	rec = s.do(t, http.MethodGet, "/orders/all?status=bogus", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_ListMyOrders(t *testing.T) {
	s := newTestServer(t)
	p := s.seedProduct(t, s.adminToken(t), 10)
	token := s.register(t, "buyer@example.com")
	s.placeOrder(t, token, p.ID, 1)
	s.placeOrder(t, token, p.ID, 1)

	rec := s.do(t, http.MethodGet, "/orders", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var page query.Page[order.Order]
	decode(t, rec, &page)
	assert.Equal(t, 2, page.TotalElements)
	assert.Equal(t, query.DefaultPageSize, page.Size)
}

// ============================================
// Payment Tests
// ============================================

func TestRouter_Payments_ProcessAndLookup(t *testing.T) {
	s := newTestServer(t)
	p := s.seedProduct(t, s.adminToken(t), 5)
	token := s.register(t, "buyer@example.com")
	o := s.placeOrder(t, token, p.ID, 2)

	rec := s.do(t, http.MethodPost, "/payments", token, PaymentRequest{OrderID: o.ID, Amount: decimal.RequireFromString("25.00"), Method: "CREDIT_CARD"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/payments", token, PaymentRequest{OrderID: o.ID, Amount: o.TotalAmount, Method: "CREDIT_CARD"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var receipt payment.Receipt
	decode(t, rec, &receipt)
	assert.Equal(t, payment.StatusCompleted, receipt.Status)

	rec = s.do(t, http.MethodGet, "/payments/"+receipt.PaymentID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/orders/"+o.ID, token, nil)
	var confirmed order.Order
	decode(t, rec, &confirmed)
	assert.Equal(t, order.StatusConfirmed, confirmed.Status)
}
