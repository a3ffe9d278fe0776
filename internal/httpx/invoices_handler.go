package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/apperr"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/billing"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/money"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/redisx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

type InvoicesHandler struct {
	Generator *billing.Generator
	Cache     *redisx.Cache
}

// Amounts travel as decimal strings ("1120.50").
type fromOrderReq struct {
	OrderID  int64  `json:"order_id"`
	Discount string `json:"discount"`
}

type manualInvoiceReq struct {
	PatientID int64  `json:"patient_id"`
	Subtotal  string `json:"subtotal"`
	Discount  string `json:"discount"`
}

type paymentReq struct {
	Amount    string `json:"amount"`
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

func (h *InvoicesHandler) Register(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/number/{number}", h.getByNumber)
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(session.RoleClerk, session.RoleAdmin))
			r.Post("/", h.createManual)
			r.Post("/from-order", h.fromOrder)
			r.Post("/{id}/payments", h.recordPayment)
			r.Post("/{id}/cancel", h.cancel)
		})
	})
}

func parseAmount(field, raw string, def money.Cents) (money.Cents, error) {
	if raw == "" {
		return def, nil
	}
	c, err := money.Parse(raw)
	if err != nil {
		return 0, apperr.WithMetadata(apperr.CodeInvalidAmount, err.Error(), map[string]string{field: raw})
	}
	return c, nil
}

// invalidate drops the cached status of the invoice's order; billing moves
// its payment status.
func (h *InvoicesHandler) invalidate(ctx context.Context, inv billing.Invoice) {
	if inv.OrderID != nil {
		h.Cache.Delete(ctx, redisx.OrderStatusKey(*inv.OrderID))
	}
}

func (h *InvoicesHandler) fromOrder(w http.ResponseWriter, r *http.Request) {
	var req fromOrderReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	discount, err := parseAmount("discount", req.Discount, 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	inv, err := h.Generator.FromOrder(ctx, actorOf(r), req.OrderID, discount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidate(ctx, inv)
	writeJSON(w, http.StatusCreated, inv)
}

func (h *InvoicesHandler) createManual(w http.ResponseWriter, r *http.Request) {
	var req manualInvoiceReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	subtotal, err := parseAmount("subtotal", req.Subtotal, 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	discount, err := parseAmount("discount", req.Discount, 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	inv, err := h.Generator.CreateManual(ctx, actorOf(r), req.PatientID, subtotal, discount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *InvoicesHandler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req paymentReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount, 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	inv, err := h.Generator.RecordPayment(ctx, actorOf(r), id, billing.Payment{
		AmountCents: amount,
		Method:      req.Method,
		Reference:   req.Reference,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidate(ctx, inv)
	writeJSON(w, http.StatusOK, inv)
}

func (h *InvoicesHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	inv, err := h.Generator.Cancel(ctx, actorOf(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidate(ctx, inv)
	writeJSON(w, http.StatusOK, inv)
}

func (h *InvoicesHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	inv, err := h.Generator.Get(ctx, actorOf(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *InvoicesHandler) getByNumber(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	inv, err := h.Generator.GetByNumber(ctx, actorOf(r), chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *InvoicesHandler) list(w http.ResponseWriter, r *http.Request) {
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

	list, err := h.Generator.ListByPatient(ctx, actor, patientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
