package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/inventory"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

type MedicinesHandler struct {
	Ledger *inventory.Ledger
}

type createMedicineReq struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	Price      string `json:"price"`
	Stock      int64  `json:"stock"`
	ExpiryDate string `json:"expiry_date"`
	Supplier   string `json:"supplier"`
}

type adjustStockReq struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

type updatePriceReq struct {
	Price string `json:"price"`
}

func (h *MedicinesHandler) Register(r chi.Router) {
	r.Route("/medicines", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(session.RoleAdmin, session.RolePharmacist))
			r.Post("/", h.create)
			r.Post("/{id}/stock", h.adjust)
			r.Put("/{id}/price", h.updatePrice)
			r.Get("/expiring", h.expiring)
			r.Get("/low-stock", h.lowStock)
		})
	})
}

func (h *MedicinesHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	list, err := h.Ledger.List(ctx, inventory.ListFilter{Query: q.Get("q"), Category: q.Get("category"), Limit: int(limit)})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *MedicinesHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	m, err := h.Ledger.Get(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MedicinesHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createMedicineReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	price, err := parseAmount("price", req.Price, 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in := inventory.NewMedicine{
		Name:       req.Name,
		Category:   req.Category,
		PriceCents: price,
		Stock:      req.Stock,
		Supplier:   req.Supplier,
	}
	if raw := strings.TrimSpace(req.ExpiryDate); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			badRequest(w, r, "expiry_date %q must be YYYY-MM-DD", raw)
			return
		}
		in.ExpiryDate = &t
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	m, err := h.Ledger.CreateMedicine(ctx, actorOf(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MedicinesHandler) adjust(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req adjustStockReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	m, err := h.Ledger.Adjust(ctx, actorOf(r), id, req.Delta, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MedicinesHandler) updatePrice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updatePriceReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Price) == "" {
		badRequest(w, r, "price is required")
		return
	}
	price, err := parseAmount("price", req.Price, 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	m, err := h.Ledger.UpdatePrice(ctx, actorOf(r), id, price)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MedicinesHandler) expiring(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 30)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	list, err := h.Ledger.Expiring(ctx, int(days))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *MedicinesHandler) lowStock(w http.ResponseWriter, r *http.Request) {
	threshold, err := queryInt(r, "threshold", 10)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	list, err := h.Ledger.LowStock(ctx, threshold)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
