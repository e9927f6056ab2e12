// Package credits implements the per-identity spendable credit ledger.
//
// The single correctness-critical operation is Charge: a read-check-and-
// deduct that must be indivisible with respect to concurrent callers so
// that a balance can never go negative. The memory ledger serializes
// charges behind a mutex; the SQLite ledger uses a single conditional
// UPDATE.
package credits

import (
	"context"
	"fmt"
)

// InsufficientCreditError indicates a charge exceeded the available
// balance at the time of the attempt.
type InsufficientCreditError struct {
	IdentityID string
	Balance    int64
	Required   int64
}

// Error returns the error message.
func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("insufficient credit for identity %s: have %d, need %d",
		e.IdentityID, e.Balance, e.Required)
}

// Ledger is the credit capability consumed by the policy evaluator and
// the admin surface.
type Ledger interface {
	// Charge atomically deducts amount from the identity's balance.
	// It fails with *InsufficientCreditError if the balance is less
	// than amount at the time of the attempt, and with
	// identity.ErrIdentityNotFound if the identity is unknown.
	Charge(ctx context.Context, identityID string, amount int64) error

	// Grant adds amount to the identity's balance.
	Grant(ctx context.Context, identityID string, amount int64) error

	// Balance returns the identity's current balance.
	Balance(ctx context.Context, identityID string) (int64, error)
}
