package auth

import (
	"crypto/subtle"

	"gatepass/entity"
)

// Auth is the admin gate: a single process-wide shared secret serves as
// both the login password and the bearer token. No sessions, no expiry,
// no per-admin identity.
type Auth struct {
	secret string
}

func New(secret string) *Auth {
	return &Auth{secret: secret}
}

// Login checks the admin password and returns the bearer token to use on
// subsequent requests.
func (a *Auth) Login(password string) (string, error) {
	if !a.equal(password) {
		return "", entity.ErrNotFound
	}
	return a.secret, nil
}

// Authorize checks a bearer token extracted from the Authorization header.
func (a *Auth) Authorize(token string) error {
	if !a.equal(token) {
		return entity.ErrNotFound
	}
	return nil
}

func (a *Auth) equal(candidate string) bool {
	if a.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a.secret), []byte(candidate)) == 1
}
