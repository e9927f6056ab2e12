// Package audit records the outcome of every policy evaluation.
//
// The log is append-only: one entry per evaluation regardless of
// outcome. Appends are fire-and-forget from the evaluator's point of
// view - a logging failure must never roll back a decision already
// made - so the evaluator swallows append errors after logging them.
package audit

import (
	"context"
	"time"
)

// Outcome tags one evaluation result in the audit log.
type Outcome string

const (
	// OutcomeExecuted means an AUTO_ACCEPT rule matched and credit was
	// charged.
	OutcomeExecuted Outcome = "EXECUTED"

	// OutcomeRejected means an AUTO_REJECT rule matched.
	OutcomeRejected Outcome = "REJECTED"

	// OutcomePendingApproval means a REQUIRE_APPROVAL rule matched and
	// an approval request was queued.
	OutcomePendingApproval Outcome = "PENDING_APPROVAL"

	// OutcomeNotExecuted means no rule matched, or a stored rule
	// carried an unrecognized action.
	OutcomeNotExecuted Outcome = "NOT_EXECUTED"

	// OutcomeExecutedTimed means a TIMED_APPROVAL rule matched inside
	// the working window.
	OutcomeExecutedTimed Outcome = "EXECUTED_TIMED"

	// OutcomeRejectedOutsideHours means a TIMED_APPROVAL rule matched
	// outside the working window.
	OutcomeRejectedOutsideHours Outcome = "REJECTED_OUTSIDE_HOURS"
)

// Entry is one audit record.
type Entry struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	Command    string    `json:"command"`
	Outcome    Outcome   `json:"outcome"`
	Timestamp  time.Time `json:"timestamp"`
}

// Log is the append-only audit capability.
type Log interface {
	// Append records one evaluation outcome.
	Append(ctx context.Context, identityID, command string, outcome Outcome) error

	// HistoryFor returns the entries for an identity, most recent
	// first.
	HistoryFor(ctx context.Context, identityID string) ([]Entry, error)

	// All returns every entry, most recent first.
	All(ctx context.Context) ([]Entry, error)

	// Prune deletes entries older than the cutoff and reports how many
	// were removed.
	Prune(ctx context.Context, olderThan time.Time) (int, error)
}
