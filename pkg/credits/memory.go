package credits

import (
	"context"
	"fmt"
	"sync"

	"github.com/nithins313/unbound2/pkg/identity"
)

// MemoryLedger implements Ledger using in-memory balances. All balances
// are lost when the process exits. MemoryLedger is thread-safe: the
// check-and-deduct in Charge happens under the write lock, so two
// concurrent charges against a balance that covers only one of them
// cannot both succeed.
type MemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]int64
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]int64)}
}

// Open registers an identity with an initial balance. Used at seed time;
// a second Open for the same identity is an error.
func (l *MemoryLedger) Open(identityID string, balance int64) error {
	if balance < 0 {
		return fmt.Errorf("initial balance cannot be negative")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.balances[identityID]; exists {
		return fmt.Errorf("ledger account for %s already open", identityID)
	}
	l.balances[identityID] = balance
	return nil
}

// Charge atomically deducts amount from the identity's balance.
func (l *MemoryLedger) Charge(ctx context.Context, identityID string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("charge amount cannot be negative")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[identityID]
	if !ok {
		return fmt.Errorf("%w: %s", identity.ErrIdentityNotFound, identityID)
	}
	if balance < amount {
		return &InsufficientCreditError{
			IdentityID: identityID,
			Balance:    balance,
			Required:   amount,
		}
	}
	l.balances[identityID] = balance - amount
	return nil
}

// Grant adds amount to the identity's balance.
func (l *MemoryLedger) Grant(ctx context.Context, identityID string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("grant amount cannot be negative")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.balances[identityID]; !ok {
		// Grants open the account implicitly so admin top-ups and
		// seeding do not need a separate bootstrap step.
		l.balances[identityID] = amount
		return nil
	}
	l.balances[identityID] += amount
	return nil
}

// Balance returns the identity's current balance.
func (l *MemoryLedger) Balance(ctx context.Context, identityID string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	balance, ok := l.balances[identityID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", identity.ErrIdentityNotFound, identityID)
	}
	return balance, nil
}
