package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/activity"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

type ActivityHandler struct {
	Log *activity.Log
}

func (h *ActivityHandler) Register(r chi.Router) {
	r.With(RequireRole(session.RoleAdmin)).Get("/activity", h.list)
}

func (h *ActivityHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt(r, "user_id", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	entries, err := h.Log.List(ctx, activity.Filter{UserID: userID, Action: r.URL.Query().Get("action"), Limit: int(limit)})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
