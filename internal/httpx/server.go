// Package httpx exposes the fulfillment core over HTTP.
package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const (
	requestTimeout = 15 * time.Second
	opTimeout      = 5 * time.Second
)

func NewRouter(origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Handlers bundles every route group behind the bearer-token middleware.
type Handlers struct {
	Auth          *Authenticator
	Cart          *CartHandler
	Orders        *OrdersHandler
	Invoices      *InvoicesHandler
	Prescriptions *PrescriptionsHandler
	Medicines     *MedicinesHandler
	Activity      *ActivityHandler
}

// Register mounts the authenticated routes on r.
func (h *Handlers) Register(r chi.Router) {
	r.Group(func(pr chi.Router) {
		pr.Use(h.Auth.Middleware)
		h.Cart.Register(pr)
		h.Orders.Register(pr)
		h.Invoices.Register(pr)
		h.Prescriptions.Register(pr)
		h.Medicines.Register(pr)
		h.Activity.Register(pr)
	})
}
