package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/apperr"
)

type errorBody struct {
	Error    string            `json:"error"`
	Code     apperr.Code       `json:"code"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation, apperr.CodeInvalidAmount, apperr.CodeMissingRejectionReason:
		return http.StatusBadRequest
	case apperr.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeAlreadyReviewed, apperr.CodeAlreadyFinalized, apperr.CodeAlreadyInvoiced,
		apperr.CodeInvalidTransition, apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeEmptyCart, apperr.CodeInsufficientStock, apperr.CodePrescriptionNotApproved:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and the standard error body. Storage
// failures are logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		log.Printf("http: %s %s [%s]: %v", r.Method, r.URL.Path, middleware.GetReqID(r.Context()), err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: apperr.CodeUnknown})
		return
	}
	status := statusOf(ae.Code)
	if status == http.StatusInternalServerError {
		log.Printf("http: %s %s [%s]: %v", r.Method, r.URL.Path, middleware.GetReqID(r.Context()), err)
	}
	writeJSON(w, status, errorBody{Error: ae.Message, Code: ae.Code, Metadata: ae.Metadata})
}

func badRequest(w http.ResponseWriter, r *http.Request, format string, args ...any) {
	writeError(w, r, apperr.Newf(apperr.CodeValidation, format, args...))
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.CodeValidation, "invalid json: "+err.Error(), err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Newf(apperr.CodeValidation, "invalid %s %q", name, raw)
	}
	return id, nil
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string, def int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.Newf(apperr.CodeValidation, "invalid %s %q", name, raw)
	}
	return v, nil
}
