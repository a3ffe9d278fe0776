// Package auth issues and verifies the bearer tokens that carry a session actor.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/apperr"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

const DefaultTTL = 24 * time.Hour

type claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and parses HS256 tokens with one shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for actor.
func (i *Issuer) Issue(actor session.Actor) (string, error) {
	if !actor.Role.Valid() {
		return "", apperr.Newf(apperr.CodeValidation, "unknown role %q", actor.Role)
	}
	now := i.now()
	c := claims{
		UserID: actor.UserID,
		Role:   string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(actor.UserID),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(i.secret)
}

// Parse verifies token and returns the actor it carries.
func (i *Issuer) Parse(token string) (session.Actor, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return session.Actor{}, apperr.Wrap(apperr.CodeUnauthenticated, "invalid token", err)
	}
	actor := session.Actor{UserID: c.UserID, Role: session.Role(c.Role)}
	if !actor.Role.Valid() {
		return session.Actor{}, apperr.Newf(apperr.CodeUnauthenticated, "token carries unknown role %q", c.Role)
	}
	return actor, nil
}
