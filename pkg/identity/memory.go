package identity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRegistry implements Registry using in-memory storage. All data is
// lost when the process exits. MemoryRegistry is thread-safe.
type MemoryRegistry struct {
	mu       sync.RWMutex
	byID     map[string]*Identity
	byAPIKey map[string]string // api key -> identity ID
}

// NewMemoryRegistry creates an empty in-memory identity registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byID:     make(map[string]*Identity),
		byAPIKey: make(map[string]string),
	}
}

// ResolveByToken returns the identity owning the API key.
func (r *MemoryRegistry) ResolveByToken(ctx context.Context, token string) (*Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byAPIKey[token]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	ident := *r.byID[id]
	return &ident, nil
}

// Get returns the identity by ID.
func (r *MemoryRegistry) Get(ctx context.Context, id string) (*Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ident, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIdentityNotFound, id)
	}
	copied := *ident
	return &copied, nil
}

// Create registers a new identity.
func (r *MemoryRegistry) Create(ctx context.Context, ident *Identity) error {
	if ident.ID == "" {
		return fmt.Errorf("identity ID cannot be empty")
	}
	if !ident.Role.Valid() {
		return fmt.Errorf("invalid role %q", ident.Role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[ident.ID]; exists {
		return fmt.Errorf("identity %s already exists", ident.ID)
	}
	if _, exists := r.byAPIKey[ident.APIKey]; exists {
		return ErrDuplicateAPIKey
	}

	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = time.Now()
	}

	copied := *ident
	r.byID[ident.ID] = &copied
	r.byAPIKey[ident.APIKey] = ident.ID
	return nil
}

// Update replaces the mutable fields of an existing identity.
func (r *MemoryRegistry) Update(ctx context.Context, ident *Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[ident.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIdentityNotFound, ident.ID)
	}

	if ident.Name != "" {
		existing.Name = ident.Name
	}
	if ident.Phone != "" {
		existing.Phone = ident.Phone
	}
	if ident.Role != "" {
		if !ident.Role.Valid() {
			return fmt.Errorf("invalid role %q", ident.Role)
		}
		existing.Role = ident.Role
	}
	return nil
}

// Delete removes an identity.
func (r *MemoryRegistry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ident, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIdentityNotFound, id)
	}
	delete(r.byAPIKey, ident.APIKey)
	delete(r.byID, id)
	return nil
}

// List returns all identities ordered by creation time.
func (r *MemoryRegistry) List(ctx context.Context) ([]*Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idents := make([]*Identity, 0, len(r.byID))
	for _, ident := range r.byID {
		copied := *ident
		idents = append(idents, &copied)
	}
	sort.Slice(idents, func(i, j int) bool {
		return idents[i].CreatedAt.Before(idents[j].CreatedAt)
	})
	return idents, nil
}

// ListAdmins returns the contact projection of all ADMIN identities.
func (r *MemoryRegistry) ListAdmins(ctx context.Context) ([]Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var admins []Admin
	for _, ident := range r.byID {
		if ident.Role == RoleAdmin {
			admins = append(admins, Admin{Mail: ident.Mail, Name: ident.Name})
		}
	}
	return admins, nil
}
