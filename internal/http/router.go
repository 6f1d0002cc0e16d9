package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(users *UserHandler, products *ProductHandler, orders *OrderHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/", users.CreateUser)
		r.Get("/", users.ListUsers)
		r.Get("/{userId}", users.GetUser)
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Post("/", products.CreateProduct)
		r.Get("/", products.ListProducts)
		r.Get("/{productId}", products.GetProduct)
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", orders.CreateOrder)
		r.Get("/", orders.ListOrders)
		r.Get("/{orderId}", orders.GetOrder)
	})

	return r
}
