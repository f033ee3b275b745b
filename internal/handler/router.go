package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/venmo-service/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса переводов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Logger(h.logger))
	if h.rateLimiter != nil {
		r.Use(h.rateLimiter.Middleware)
	}
	r.Use(custommiddleware.GzipMiddleware)

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/", h.Signup)
		r.Post("/login", h.Login)
		r.Get("/", h.ListUsers)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/me", h.GetAccount)
			r.Post("/me/email", h.UpdateEmail)
			r.Delete("/me", h.DeleteAccount)

			r.Get("/me/friends", h.ListFriends)
			r.Post("/me/friends/{id}", h.AddFriend)

			r.Get("/me/transactions", h.ListMyTransactions)
		})

		r.Get("/{id}", h.GetUser)
	})

	r.Route("/api/transactions", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Get("/", h.ListTransactions)
		r.Post("/send", h.Send)
		r.Post("/", h.RequestPayment)
		r.Post("/{id}", h.ResolveRequest)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
