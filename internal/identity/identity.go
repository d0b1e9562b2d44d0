// Package identity manages login accounts for institution admins.
//
// Accounts live in a dedicated identity provider. In production that is a
// separate service reached over HTTP (Client); for demo and tests a local
// bcrypt-backed implementation (Local) provides the same Provider surface.
package identity

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrEmailTaken   = errors.New("identity: email already registered")
	ErrWeakPassword = errors.New("identity: password too short")
	ErrUnavailable  = errors.New("identity: provider unavailable")
)

// Identity is a login account held by the identity provider.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewAccount carries the fields needed to register an account.
type NewAccount struct {
	Email    string
	Password string
	Name     string
}

// Provider is the identity provider surface the onboarding flow depends on.
//
// Create must reject an already-registered email with ErrEmailTaken, and
// Delete must tolerate repeated calls for the same id so that compensation
// can be retried safely.
type Provider interface {
	Create(ctx context.Context, acct NewAccount) (*Identity, error)
	Delete(ctx context.Context, id string) error
	EmailTaken(ctx context.Context, email string) (bool, error)
}
