package query

import (
	"context"
	"log"

	"github.com/example/ec-fulfillment/internal/apperr"
	"github.com/example/ec-fulfillment/internal/auth"
	"github.com/example/ec-fulfillment/internal/domain/order"
	"github.com/example/ec-fulfillment/internal/domain/product"
)

const recentOrdersLimit = 10

// ProductLister is the catalog listing the handler pages over.
type ProductLister interface {
	ListActive(ctx context.Context, offset, limit int) ([]*product.Product, int, error)
}

// Handler serves paged, read-only views. Orders come back newest first.
type Handler struct {
	orders   order.Repository
	products ProductLister
}

func NewHandler(orders order.Repository, products ProductLister) *Handler {
	return &Handler{orders: orders, products: products}
}

// ListMyOrders returns the principal's own orders.
func (h *Handler) ListMyOrders(ctx context.Context, p auth.Principal, req PageRequest) (Page[*order.Order], error) {
	req = req.normalize()
	items, total, err := h.orders.ListByUser(ctx, p.UserID, req.offset(), req.Size)
	if err != nil {
		log.Printf("[Query] Error listing orders for %s: %v", p.UserID, err)
		return Page[*order.Order]{}, apperr.Internal(err, "list orders")
	}
	return newPage(items, req, total), nil
}

// ListAllOrders returns every order, optionally filtered by status. Admin only.
func (h *Handler) ListAllOrders(ctx context.Context, p auth.Principal, status *order.Status, req PageRequest) (Page[*order.Order], error) {
	if !p.IsAdmin() {
		return Page[*order.Order]{}, apperr.Forbidden("Only administrators can list all orders")
	}
	req = req.normalize()
	items, total, err := h.orders.List(ctx, status, req.offset(), req.Size)
	if err != nil {
		log.Printf("[Query] Error listing all orders: %v", err)
		return Page[*order.Order]{}, apperr.Internal(err, "list orders")
	}
	return newPage(items, req, total), nil
}

// RecentOrders returns the ten newest orders. Admin only.
func (h *Handler) RecentOrders(ctx context.Context, p auth.Principal) ([]*order.Order, error) {
	page, err := h.ListAllOrders(ctx, p, nil, PageRequest{Page: 0, Size: recentOrdersLimit})
	if err != nil {
		return nil, err
	}
	return page.Content, nil
}

func (h *Handler) ListProducts(ctx context.Context, req PageRequest) (Page[*product.Product], error) {
	req = req.normalize()
	items, total, err := h.products.ListActive(ctx, req.offset(), req.Size)
	if err != nil {
		log.Printf("[Query] Error listing products: %v", err)
		return Page[*product.Product]{}, apperr.Internal(err, "list products")
	}
	return newPage(items, req, total), nil
}
