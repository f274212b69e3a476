/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/businesses/{biz}/*   Business-scoped catalog, trades, orders, balances
  /api/purchases/{id}/*     Purchase reversal
  /api/sales/{id}/*         Sale reversal
  /api/orders/{id}/*        Order reads and lifecycle
  /api/items/{id}/*         Item stock and movement history

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Business-scoped routes
		r.Route("/businesses/{biz}", func(r chi.Router) {
			r.Route("/items", func(r chi.Router) {
				r.Get("/", h.ListItems)
				r.Post("/", h.CreateItem)
			})
			r.Route("/partners", func(r chi.Router) {
				r.Get("/", h.ListPartners)
				r.Post("/", h.CreatePartner)
			})
			r.Route("/purchases", func(r chi.Router) {
				r.Get("/", h.ListPurchases)
				r.Post("/", h.CreatePurchase)
			})
			r.Route("/sales", func(r chi.Router) {
				r.Get("/", h.ListSales)
				r.Post("/", h.CreateSale)
			})
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.ListOrders)
				r.Post("/", h.CreateOrder)
			})
			r.Get("/cash", h.GetCash)
			r.Get("/cash/movements", h.ListCashMovements)
			r.Post("/capital", h.RecordCapital)
			r.Post("/fees", h.RecordFee)
		})

		// Reversal routes
		r.Post("/purchases/{id}/reverse", h.ReversePurchase)
		r.Post("/sales/{id}/reverse", h.ReverseSale)

		// Order lifecycle routes
		r.Route("/orders/{id}", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Post("/status", h.ChangeOrderStatus)
		})

		// Item ledger routes
		r.Route("/items/{id}", func(r chi.Router) {
			r.Get("/stock", h.GetStock)
			r.Get("/movements", h.ListItemMovements)
		})
	})

	return r
}
