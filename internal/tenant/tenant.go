// Package tenant carries the account a unit of work runs for.
//
// A Context is a plain value. It is passed explicitly to every service,
// store and job handler and serialized into every job payload; nothing in
// this repository keeps a "current account" in global or goroutine state.
package tenant

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrMissingTenant is returned when a unit of work has no account.
	ErrMissingTenant = errors.New("tenant: account id is required")
	// ErrForeignEntity is returned when an entity belongs to another account.
	ErrForeignEntity = errors.New("tenant: entity belongs to another account")
)

// Context identifies the account a request or job is executing for.
type Context struct {
	AccountID uuid.UUID `json:"account_id"`
}

// New returns a Context for the given account.
func New(accountID uuid.UUID) Context {
	return Context{AccountID: accountID}
}

// Parse builds a Context from a textual account id.
func Parse(s string) (Context, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Context{}, fmt.Errorf("tenant: invalid account id %q: %w", s, err)
	}
	tc := New(id)
	return tc, tc.Validate()
}

// Validate rejects the zero Context.
func (c Context) Validate() error {
	if c.AccountID == uuid.Nil {
		return ErrMissingTenant
	}
	return nil
}

// Owns reports whether an entity's account id belongs to this tenant.
func (c Context) Owns(accountID uuid.UUID) bool {
	return c.AccountID != uuid.Nil && c.AccountID == accountID
}

func (c Context) String() string {
	return c.AccountID.String()
}
