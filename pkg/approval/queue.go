// Package approval holds the durable queue of pending human-approval
// requests created by REQUIRE_APPROVAL evaluations.
//
// Marking a request APPROVED changes its status and nothing else: the
// original command is not re-executed. Any subsequent execution is a
// distinct, explicit submission.
package approval

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRequestNotFound indicates the referenced approval request does not
// exist.
var ErrRequestNotFound = errors.New("approval request not found")

// Status is the lifecycle state of an approval request.
type Status string

const (
	// StatusPending means the request awaits an administrator decision.
	StatusPending Status = "PENDING"

	// StatusApproved is a terminal administrator decision.
	StatusApproved Status = "APPROVED"

	// StatusRejected is a terminal administrator decision.
	StatusRejected Status = "REJECTED"
)

// Decided reports whether the status is one an administrator may set.
func (s Status) Decided() bool {
	return s == StatusApproved || s == StatusRejected
}

// Request is one queued approval request tied to a command submission.
type Request struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	Command    string    `json:"command"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Queue is the approval-request capability consumed by the evaluator
// (Create) and the admin surface (the rest).
type Queue interface {
	// Create enqueues a PENDING request for the command.
	Create(ctx context.Context, identityID, command string) (*Request, error)

	// UpdateStatus records an administrator decision. Only APPROVED and
	// REJECTED may be set.
	UpdateStatus(ctx context.Context, id string, status Status) error

	// Get returns a request by ID.
	Get(ctx context.Context, id string) (*Request, error)

	// List returns all requests, most recent first.
	List(ctx context.Context) ([]*Request, error)

	// Delete removes a request.
	Delete(ctx context.Context, id string) error
}

func validateDecision(status Status) error {
	if !status.Decided() {
		return fmt.Errorf("status must be %s or %s; got %q",
			StatusApproved, StatusRejected, status)
	}
	return nil
}
