// Package idp abstracts the identity backend used for primary (password)
// authentication. The auth service only ever sees this narrow surface, so a
// future external directory (LDAP, upstream OIDC) can slot in behind it.
package idp

import (
	"context"
	"errors"

	"github.com/fernwehlabs/lifelog/internal/auth/domain"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// callers can't tell the two apart.
	ErrInvalidCredentials = errors.New("idp: invalid credentials")

	// ErrEmailTaken reports a registration against an existing email.
	ErrEmailTaken = errors.New("idp: email already registered")
)

// Registration carries the fields needed to provision a new identity.
type Registration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Directory is the identity backend. Lookup and CheckPassword are split so
// the caller can apply lockout policy between the two steps.
type Directory interface {
	// Register provisions a new identity and returns the stored user.
	// Returns ErrEmailTaken when the email is already registered.
	Register(ctx context.Context, reg Registration) (domain.User, error)

	// Lookup finds an identity by email. Returns ErrInvalidCredentials for
	// unknown emails; the caller must not leak whether the account exists.
	Lookup(ctx context.Context, email string) (domain.User, error)

	// CheckPassword verifies the password against the stored hash. Returns
	// ErrInvalidCredentials on mismatch.
	CheckPassword(ctx context.Context, user domain.User, password string) error

	// SetPassword replaces the stored password hash.
	SetPassword(ctx context.Context, userID, password string) error
}
