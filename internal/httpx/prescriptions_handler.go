package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/prescriptions"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

type PrescriptionsHandler struct {
	Workflow *prescriptions.Workflow
}

type reviewReq struct {
	Decision prescriptions.Decision `json:"decision"`
	Notes    string                 `json:"notes"`
}

func (h *PrescriptionsHandler) Register(r chi.Router) {
	r.Route("/prescriptions", func(r chi.Router) {
		r.With(RequireRole(session.RolePatient)).Post("/", h.submit)
		r.Get("/", h.list)
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(session.RolePharmacist))
			r.Get("/pending", h.pending)
			r.Post("/{id}/review", h.review)
			r.Post("/{id}/dispense", h.dispense)
		})
		r.Get("/{id}", h.get)
	})
}

func (h *PrescriptionsHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req prescriptions.Submission
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	actor := actorOf(r)
	if req.PatientID == 0 {
		req.PatientID = actor.UserID
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	p, err := h.Workflow.Submit(ctx, actor, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PrescriptionsHandler) review(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req reviewReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	p, err := h.Workflow.Review(ctx, actorOf(r), id, req.Decision, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PrescriptionsHandler) dispense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	p, err := h.Workflow.Dispense(ctx, actorOf(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PrescriptionsHandler) pending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	list, err := h.Workflow.ListPending(ctx, actorOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *PrescriptionsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	p, err := h.Workflow.Get(ctx, actorOf(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PrescriptionsHandler) list(w http.ResponseWriter, r *http.Request) {
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

	list, err := h.Workflow.ListByPatient(ctx, actor, patientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
