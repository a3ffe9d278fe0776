package httpx

import (
	"net/http"
	"strings"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/apperr"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/auth"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

// Authenticator turns a bearer token into the request's session actor.
type Authenticator struct {
	Issuer *auth.Issuer
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			writeError(w, r, apperr.New(apperr.CodeUnauthenticated, "missing bearer token"))
			return
		}
		actor, err := a.Issuer.Parse(strings.TrimSpace(header[len("Bearer "):]))
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(session.WithActor(r.Context(), actor)))
	})
}

// RequireRole rejects requests whose actor holds none of roles.
func RequireRole(roles ...session.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := actorOf(r).Require(roles...); err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func actorOf(r *http.Request) session.Actor {
	a, _ := session.FromContext(r.Context())
	return a
}

// patientFor resolves the patient a request is about. Patients default to
// themselves; staff must name one.
func patientFor(actor session.Actor, requested int64) (int64, error) {
	if requested == 0 && actor.Role == session.RolePatient {
		return actor.UserID, nil
	}
	if requested <= 0 {
		return 0, apperr.New(apperr.CodeValidation, "patient_id is required")
	}
	return requested, nil
}
