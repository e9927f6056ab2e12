package credits

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nithins313/unbound2/pkg/identity"
)

// SQLiteLedger implements Ledger against the identities table owned by
// identity.SQLiteRegistry. The *sql.DB is shared with the registry.
//
// Charge is a single conditional UPDATE (credit = credit - n WHERE
// credit >= n), so the database serializes concurrent charges and the
// balance can never go negative even without an application-level lock.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger creates a SQLite-backed ledger. The registry must have
// initialized the identities schema first.
func NewSQLiteLedger(db *sql.DB) *SQLiteLedger {
	return &SQLiteLedger{db: db}
}

// Charge atomically deducts amount from the identity's balance.
func (l *SQLiteLedger) Charge(ctx context.Context, identityID string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("charge amount cannot be negative")
	}

	result, err := l.db.ExecContext(ctx, `
		UPDATE identities SET credit = credit - ?
		WHERE id = ? AND credit >= ?`,
		amount, identityID, amount,
	)
	if err != nil {
		return fmt.Errorf("failed to charge credit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// The conditional update matched nothing: either the identity does
	// not exist or the balance was short. Distinguish with a read.
	balance, err := l.Balance(ctx, identityID)
	if err != nil {
		return err
	}
	return &InsufficientCreditError{
		IdentityID: identityID,
		Balance:    balance,
		Required:   amount,
	}
}

// Grant adds amount to the identity's balance.
func (l *SQLiteLedger) Grant(ctx context.Context, identityID string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("grant amount cannot be negative")
	}

	result, err := l.db.ExecContext(ctx,
		"UPDATE identities SET credit = credit + ? WHERE id = ?",
		amount, identityID,
	)
	if err != nil {
		return fmt.Errorf("failed to grant credit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", identity.ErrIdentityNotFound, identityID)
	}
	return nil
}

// Balance returns the identity's current balance.
func (l *SQLiteLedger) Balance(ctx context.Context, identityID string) (int64, error) {
	var balance int64
	err := l.db.QueryRowContext(ctx,
		"SELECT credit FROM identities WHERE id = ?", identityID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %s", identity.ErrIdentityNotFound, identityID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}
