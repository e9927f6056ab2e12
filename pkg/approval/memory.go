package approval

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue implements Queue using in-memory storage. MemoryQueue is
// thread-safe.
type MemoryQueue struct {
	mu       sync.RWMutex
	requests map[string]*Request
}

// NewMemoryQueue creates an empty in-memory approval queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{requests: make(map[string]*Request)}
}

// Create enqueues a PENDING request for the command.
func (q *MemoryQueue) Create(ctx context.Context, identityID, command string) (*Request, error) {
	if identityID == "" {
		return nil, fmt.Errorf("identity ID cannot be empty")
	}

	req := &Request{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		Command:    command,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.requests[req.ID] = req

	copied := *req
	return &copied, nil
}

// UpdateStatus records an administrator decision.
func (q *MemoryQueue) UpdateStatus(ctx context.Context, id string, status Status) error {
	if err := validateDecision(status); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	req, ok := q.requests[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	req.Status = status
	return nil
}

// Get returns a request by ID.
func (q *MemoryQueue) Get(ctx context.Context, id string) (*Request, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	req, ok := q.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	copied := *req
	return &copied, nil
}

// List returns all requests, most recent first.
func (q *MemoryQueue) List(ctx context.Context) ([]*Request, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]*Request, 0, len(q.requests))
	for _, req := range q.requests {
		copied := *req
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a request.
func (q *MemoryQueue) Delete(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.requests[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	delete(q.requests, id)
	return nil
}
