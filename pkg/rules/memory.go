package rules

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBackend implements Backend using an in-memory slice. Rules are
// kept in insertion order. MemoryBackend is thread-safe.
type MemoryBackend struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewMemoryBackend creates an empty in-memory rule backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Insert appends a rule to the stored list.
func (m *MemoryBackend) Insert(ctx context.Context, rule *Rule) error {
	if rule == nil {
		return fmt.Errorf("rule cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, *rule)
	return nil
}

// Delete removes a rule by ID.
func (m *MemoryBackend) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, rule := range m.rules {
		if rule.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
}

// List returns all rules in creation order.
func (m *MemoryBackend) List(ctx context.Context) ([]Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Rule, len(m.rules))
	copy(out, m.rules)
	return out, nil
}
