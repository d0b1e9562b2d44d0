package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/avendale/tutorhive/internal/idgen"
	"github.com/avendale/tutorhive/internal/validation"
)

// Local is an in-memory identity provider for demo/development.
// Passwords are stored as bcrypt hashes, same as the production provider.
type Local struct {
	mu      sync.RWMutex
	byID    map[string]*account
	byEmail map[string]string // normalised email → id
}

type account struct {
	identity     Identity
	passwordHash []byte
}

// NewLocal creates an empty in-memory identity provider.
func NewLocal() *Local {
	return &Local{
		byID:    make(map[string]*account),
		byEmail: make(map[string]string),
	}
}

func (l *Local) Create(_ context.Context, acct NewAccount) (*Identity, error) {
	if len(acct.Password) < validation.MinPasswordLength {
		return nil, ErrWeakPassword
	}
	email := validation.NormalizeEmail(acct.Email)

	hash, err := bcrypt.GenerateFromPassword([]byte(acct.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byEmail[email]; ok {
		return nil, ErrEmailTaken
	}

	id := idgen.WithPrefix("idn_")
	a := &account{
		identity: Identity{
			ID:        id,
			Email:     email,
			Name:      strings.TrimSpace(acct.Name),
			CreatedAt: time.Now(),
		},
		passwordHash: hash,
	}
	l.byID[id] = a
	l.byEmail[email] = id

	cp := a.identity
	return &cp, nil
}

// Delete removes the account. Deleting an unknown id is a no-op so that
// compensation retries do not fail.
func (l *Local) Delete(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.byID[id]
	if !ok {
		return nil
	}
	delete(l.byID, id)
	delete(l.byEmail, a.identity.Email)
	return nil
}

func (l *Local) EmailTaken(_ context.Context, email string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.byEmail[validation.NormalizeEmail(email)]
	return ok, nil
}

var _ Provider = (*Local)(nil)
