package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/orders"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/redisx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

type OrdersHandler struct {
	Engine *orders.Engine
	Cache  *redisx.Cache
}

type checkoutReq struct {
	PatientID int64 `json:"patient_id"`
}

type checkoutResp struct {
	Order      orders.Order `json:"order"`
	Idempotent bool         `json:"idempotent"`
}

type advanceReq struct {
	Status orders.Status `json:"status"`
}

// orderStatus is what the status cache holds.
type orderStatus struct {
	OrderID       int64                `json:"order_id"`
	PatientID     int64                `json:"patient_id"`
	Status        orders.Status        `json:"status"`
	PaymentStatus orders.PaymentStatus `json:"payment_status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.With(RequireRole(session.RolePatient, session.RoleClerk)).Post("/checkout", h.checkout)
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/status", h.status)
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(session.RolePharmacist, session.RoleClerk, session.RoleAdmin))
			r.Post("/{id}/status", h.advance)
			r.Post("/{id}/cancel", h.cancel)
		})
	})
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	actor := actorOf(r)
	patientID, err := patientFor(actor, req.PatientID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	// Fast-path idempotency via Redis; the database remains the source of truth.
	idem := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	idemKey := redisx.IdemCheckoutKey(patientID, idem)
	if idem != "" {
		if v, ok := h.Cache.Get(ctx, idemKey); ok {
			if orderID, err := strconv.ParseInt(v, 10, 64); err == nil {
				o, err := h.Engine.Get(ctx, actor, orderID)
				if err == nil {
					writeJSON(w, http.StatusOK, checkoutResp{Order: o, Idempotent: true})
					return
				}
			}
		}
	}

	o, err := h.Engine.Checkout(ctx, actor, patientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if idem != "" {
		h.Cache.Set(ctx, idemKey, strconv.FormatInt(o.ID, 10), redisx.TTLIdempotency)
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusCreated, checkoutResp{Order: o})
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o orders.Order) {
	b, err := json.Marshal(orderStatus{OrderID: o.ID, PatientID: o.PatientID, Status: o.Status, PaymentStatus: o.PaymentStatus})
	if err != nil {
		return
	}
	h.Cache.Set(ctx, redisx.OrderStatusKey(o.ID), b, redisx.TTLStatusCache)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	o, err := h.Engine.Get(ctx, actorOf(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()
	actor := actorOf(r)

	// 1) cache
	if s, ok := h.Cache.Get(ctx, redisx.OrderStatusKey(id)); ok {
		var cached orderStatus
		if json.Unmarshal([]byte(s), &cached) == nil && actor.CanActFor(cached.PatientID) {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	// 2) database
	o, err := h.Engine.Get(ctx, actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, orderStatus{OrderID: o.ID, PatientID: o.PatientID, Status: o.Status, PaymentStatus: o.PaymentStatus})
}

func (h *OrdersHandler) advance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req advanceReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	o, err := h.Engine.Advance(ctx, actorOf(r), id, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	o, err := h.Engine.Cancel(ctx, actorOf(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
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

	list, err := h.Engine.ListByPatient(ctx, actor, patientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
