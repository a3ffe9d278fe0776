// Package session carries the identity on whose behalf a core operation runs.
package session

import (
	"context"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/apperr"
)

// Role is the capacity in which a user acts.
type Role string

const (
	RolePatient    Role = "patient"
	RolePharmacist Role = "pharmacist"
	RoleClerk      Role = "clerk"
	RoleAdmin      Role = "admin"
	RoleSystem     Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RolePharmacist, RoleClerk, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Actor is the caller of a core operation.
type Actor struct {
	UserID int64
	Role   Role
}

// System returns the actor used by background workers.
func System(userID int64) Actor {
	return Actor{UserID: userID, Role: RoleSystem}
}

// Is reports whether the actor holds one of roles.
func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// CanActFor reports whether the actor may operate on patientID's records.
// Patients only act for themselves; staff act for anyone.
func (a Actor) CanActFor(patientID int64) bool {
	if a.Role == RolePatient {
		return a.UserID == patientID
	}
	return a.Role.Valid()
}

// Require fails with FORBIDDEN unless the actor holds one of roles.
func (a Actor) Require(roles ...Role) error {
	if a.Is(roles...) {
		return nil
	}
	return apperr.Newf(apperr.CodeForbidden, "role %q may not perform this operation", a.Role)
}

// RequireFor fails with FORBIDDEN unless the actor may act for patientID.
func (a Actor) RequireFor(patientID int64) error {
	if a.CanActFor(patientID) {
		return nil
	}
	return apperr.Newf(apperr.CodeForbidden, "user %d may not act for patient %d", a.UserID, patientID)
}

type actorContextKey struct{}

// WithActor stores the actor in ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey{}, a)
}

// FromContext returns the actor stored in ctx.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	a, ok := ctx.Value(actorContextKey{}).(Actor)
	return a, ok
}
