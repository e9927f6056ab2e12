package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLog implements Log using an in-memory slice. MemoryLog is
// thread-safe.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryLog creates an empty in-memory audit log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append records one evaluation outcome.
func (l *MemoryLog) Append(ctx context.Context, identityID, command string, outcome Outcome) error {
	entry := Entry{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		Command:    command,
		Outcome:    outcome,
		Timestamp:  time.Now(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

// HistoryFor returns the entries for an identity, most recent first.
func (l *MemoryLog) HistoryFor(ctx context.Context, identityID string) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].IdentityID == identityID {
			out = append(out, l.entries[i])
		}
	}
	return out, nil
}

// All returns every entry, most recent first.
func (l *MemoryLog) All(ctx context.Context) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, 0, len(l.entries))
	for i := len(l.entries) - 1; i >= 0; i-- {
		out = append(out, l.entries[i])
	}
	return out, nil
}

// Prune deletes entries older than the cutoff.
func (l *MemoryLog) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	deleted := 0
	for _, entry := range l.entries {
		if entry.Timestamp.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	l.entries = kept
	return deleted, nil
}
