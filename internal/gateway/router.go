package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(nc Requester, timeout time.Duration) *chi.Mux {
	carts := NewCartHandler(nc, timeout)
	orders := NewOrdersHandler(nc, timeout)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(UserID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.GetCart)
			r.Post("/items", carts.AddItem)
			r.Patch("/items/{product_id}", carts.UpdateQuantity)
			r.Delete("/items/{item_id}", carts.RemoveItem)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orders.CreateOrder)
			r.Get("/", orders.ListOrders)
			r.Get("/{order_id}", orders.GetOrder)
			r.Patch("/{order_id}/status", orders.UpdateStatus)
		})
	})

	return r
}
