package api

import (
	"net/http"

	"github.com/example/ec-fulfillment/internal/api/middleware"
	"github.com/example/ec-fulfillment/internal/auth"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Handlers     *Handlers
	AuthHandlers *AuthHandlers
	JWTService   *auth.JWTService
	// Quiet drops the per-request access log.
	Quiet bool
}

func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handlers
	requireAuth := middleware.AuthMiddleware(cfg.JWTService)
	requireAdmin := middleware.RequireRole(auth.RoleAdmin)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if !cfg.Quiet {
		r.Use(chimw.Logger)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", cfg.AuthHandlers.Register)
		r.Post("/login", cfg.AuthHandlers.Login)
		r.Post("/logout", cfg.AuthHandlers.Logout)
		r.With(requireAuth).Get("/me", cfg.AuthHandlers.Me)
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, requireAdmin)
			r.Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
			r.Post("/{id}/stock", h.RestockProduct)
		})
	})

	r.Route("/cart", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddCartItem)
		r.Put("/items/{itemID}", h.UpdateCartItem)
		r.Delete("/items/{itemID}", h.RemoveCartItem)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListMyOrders)
		r.Get("/number/{number}", h.GetOrderByNumber)
		r.Get("/{id}", h.GetOrder)
		r.Post("/{id}/cancel", h.CancelOrder)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/all", h.ListAllOrders)
			r.Get("/recent", h.RecentOrders)
			r.Put("/{id}/status", h.UpdateOrderStatus)
			r.Post("/{id}/refund", h.RefundOrder)
		})
	})

	r.Route("/payments", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", h.ProcessPayment)
		r.Get("/{paymentID}", h.GetPayment)
	})

	return r
}
