package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/cart"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/money"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

type CartHandler struct {
	Store *cart.Store
}

type cartItemReq struct {
	PatientID  int64 `json:"patient_id"`
	MedicineID int64 `json:"medicine_id"`
	Quantity   int64 `json:"quantity"`
}

type cartResp struct {
	PatientID     int64       `json:"patient_id"`
	Lines         []cart.Line `json:"lines"`
	SubtotalCents money.Cents `json:"subtotal_cents"`
}

type setQuantityResp struct {
	Line    *cart.Line `json:"line,omitempty"`
	Removed bool       `json:"removed"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Use(RequireRole(session.RolePatient, session.RoleClerk))
		r.Get("/", h.view)
		r.Post("/items", h.add)
		r.Put("/items/{medicineID}", h.setQuantity)
		r.Delete("/items/{medicineID}", h.remove)
	})
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	actor := actorOf(r)
	patientID, err := patientFor(actor, req.PatientID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	line, err := h.Store.AddOrIncrement(ctx, actor, patientID, req.MedicineID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (h *CartHandler) setQuantity(w http.ResponseWriter, r *http.Request) {
	medicineID, err := pathID(r, "medicineID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req cartItemReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	actor := actorOf(r)
	patientID, err := patientFor(actor, req.PatientID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	line, removed, err := h.Store.SetQuantity(ctx, actor, patientID, medicineID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := setQuantityResp{Removed: removed}
	if !removed {
		resp.Line = &line
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	medicineID, err := pathID(r, "medicineID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	requested, err := queryInt(r, "patient_id", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	actor := actorOf(r)
	patientID, err := patientFor(actor, requested)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	if err := h.Store.Remove(ctx, actor, patientID, medicineID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) view(w http.ResponseWriter, r *http.Request) {
	requested, err := queryInt(r, "patient_id", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	actor := actorOf(r)
	patientID, err := patientFor(actor, requested)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	lines, err := h.Store.View(ctx, actor, patientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResp{PatientID: patientID, Lines: lines, SubtotalCents: cart.Subtotal(lines)})
}
