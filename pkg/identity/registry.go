package identity

import (
	"context"
	"errors"
)

// ErrIdentityNotFound indicates the referenced identity does not exist.
var ErrIdentityNotFound = errors.New("identity not found")

// ErrDuplicateAPIKey indicates an API key collision on create.
var ErrDuplicateAPIKey = errors.New("api key already registered")

// Resolver resolves an authenticated identity from a bearer token.
// This is the only identity capability the evaluator's callers need.
type Resolver interface {
	// ResolveByToken returns the identity owning the API key, or
	// ErrIdentityNotFound if the key is unknown.
	ResolveByToken(ctx context.Context, token string) (*Identity, error)
}

// AdminLister lists the contact addresses of all ADMIN identities.
type AdminLister interface {
	ListAdmins(ctx context.Context) ([]Admin, error)
}

// Registry is the full identity store consumed by the admin surface.
type Registry interface {
	Resolver
	AdminLister

	// Get returns the identity by ID, or ErrIdentityNotFound.
	Get(ctx context.Context, id string) (*Identity, error)

	// Create registers a new identity. The caller supplies the API key
	// (see NewAPIKey).
	Create(ctx context.Context, ident *Identity) error

	// Update replaces the mutable fields (name, phone, role) of an
	// existing identity. Credit is owned by the ledger and is not
	// touched here.
	Update(ctx context.Context, ident *Identity) error

	// Delete removes an identity. Not-found is an error.
	Delete(ctx context.Context, id string) error

	// List returns all identities.
	List(ctx context.Context) ([]*Identity, error)
}
