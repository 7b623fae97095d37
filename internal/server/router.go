package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Kavyam172/E-commerce-FSE/internal/auth"
)

// NewRouter assembles the full HTTP surface. Auth endpoints are open; cart
// and checkout endpoints sit behind the access-token cookie.
func NewRouter(cartHandler *CartHandler, ordersHandler *OrdersHandler, authHandler *AuthHandler, issuer *auth.Issuer, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(issuer))

		r.Route("/cart", func(r chi.Router) {
			r.Post("/add", cartHandler.AddItem)
			r.Post("/reduce", cartHandler.ReduceItem)
			r.Post("/remove", cartHandler.RemoveItem)
			r.Post("/clear", cartHandler.ClearCart)
			r.Get("/{userid}", cartHandler.GetCart)
		})

		r.Post("/orders/checkout", ordersHandler.Checkout)
	})

	return r
}
