// Package auth resolves the calling employee from HTTP Basic credentials and
// evaluates the per-route role policies.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"yojana/internal/core"
	"yojana/pkg/domain"
)

// Directory looks up credentials and the employees they belong to.
// core.PersistentStore satisfies it.
type Directory interface {
	GetCredentialByUsername(username string) (core.Credential, bool)
	GetEmployee(id string) (core.Employee, bool)
}

// Authenticator verifies Basic credentials against a Directory.
type Authenticator struct {
	dir   Directory
	dummy []byte
}

// NewAuthenticator returns an authenticator backed by dir.
func NewAuthenticator(dir Directory) *Authenticator {
	// Unknown usernames are compared against this hash so that they cost the
	// same as a wrong password.
	dummy, _ := bcrypt.GenerateFromPassword([]byte("yojana-unknown-user"), bcrypt.MinCost)
	return &Authenticator{dir: dir, dummy: dummy}
}

// Authenticate returns the employee named by the request's Basic credentials.
// Missing or wrong credentials yield domain.ErrUnauthenticated.
func (a *Authenticator) Authenticate(r *http.Request) (core.Employee, error) {
	username, password, ok := r.BasicAuth()
	if !ok || username == "" {
		return core.Employee{}, domain.ErrUnauthenticated
	}
	return a.Verify(username, password)
}

// Verify checks a username and password pair.
func (a *Authenticator) Verify(username, password string) (core.Employee, error) {
	cred, ok := a.dir.GetCredentialByUsername(username)
	if !ok {
		_ = bcrypt.CompareHashAndPassword(a.dummy, []byte(password))
		return core.Employee{}, domain.ErrUnauthenticated
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return core.Employee{}, domain.ErrUnauthenticated
		}
		return core.Employee{}, fmt.Errorf("verify credential %s: %w", username, err)
	}
	employee, ok := a.dir.GetEmployee(cred.ID)
	if !ok {
		return core.Employee{}, domain.ErrUnauthenticated
	}
	return employee, nil
}

type principalKey struct{}

// WithPrincipal stores the authenticated employee on ctx and records it as the
// actor for audit stamping.
func WithPrincipal(ctx context.Context, e core.Employee) context.Context {
	ctx = context.WithValue(ctx, principalKey{}, e)
	return core.ContextWithActor(ctx, e.ID)
}

// PrincipalFrom returns the employee stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (core.Employee, bool) {
	e, ok := ctx.Value(principalKey{}).(core.Employee)
	return e, ok
}
