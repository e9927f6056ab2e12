// Package notify delivers approval-request alerts to administrators.
//
// Delivery is best-effort from the evaluator's perspective: a failed
// alert is logged and never alters the evaluation outcome, and no retry
// is attempted here. Retry policy, if any, belongs to the concrete
// notifier.
package notify

import (
	"context"

	"github.com/nithins313/unbound2/pkg/identity"
)

// Alert describes one approval request awaiting administrator action.
type Alert struct {
	// Command is the submitted command text.
	Command string `json:"command"`

	// IdentityID identifies the submitter.
	IdentityID string `json:"identity_id"`

	// ApprovalID identifies the queued approval request.
	ApprovalID string `json:"approval_id"`
}

// Notifier delivers an approval alert to the given administrators.
type Notifier interface {
	// SendApprovalAlert delivers the alert. A non-nil error means
	// delivery failed; the caller treats this as best-effort.
	SendApprovalAlert(ctx context.Context, admins []identity.Admin, alert Alert) error
}

// Noop is a Notifier that does nothing. Used when no notifier is
// configured and in tests.
type Noop struct{}

// SendApprovalAlert discards the alert.
func (Noop) SendApprovalAlert(ctx context.Context, admins []identity.Admin, alert Alert) error {
	return nil
}
