package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/finance-tracker/backend/internal/middleware"
)

func NewRouter(handler *Handler, authMiddleware *middleware.AuthMiddleware, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"message": "Finance tracker backend",
		})
	})

	// Auth routes
	r.Route("/auth", func(r chi.Router) {
		r.Post("/google", handler.GoogleLogin)
		r.Post("/refresh", handler.Refresh)
		r.Post("/logout", handler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Get("/profile", handler.Profile)
		})
	})

	// Protected API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", handler.CreateTransaction)
			r.Get("/", handler.ListTransactions)
			r.Get("/stats", handler.TransactionStats)
			r.Put("/{id}", handler.UpdateTransaction)
			r.Delete("/{id}", handler.DeleteTransaction)
		})

		r.Get("/analytics/insights", handler.Insights)
	})

	return r
}
