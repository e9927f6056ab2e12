package policy

// Status is the terminal state of one evaluation.
type Status string

const (
	// StatusExecuted means the command was executed and credit charged.
	StatusExecuted Status = "executed"

	// StatusRejected means a rule or the working window rejected the
	// command. No credit is charged.
	StatusRejected Status = "rejected"

	// StatusPendingApproval means the command was queued for human
	// approval. No credit is charged at this point.
	StatusPendingApproval Status = "pending_approval"

	// StatusNotExecuted means no rule matched the command, or a stored
	// rule carried an unrecognized action.
	StatusNotExecuted Status = "not executed"
)

// Verdict is the outcome of one evaluation.
type Verdict struct {
	// Status is the terminal evaluation state.
	Status Status `json:"status"`

	// Message is a human-readable explanation.
	Message string `json:"message,omitempty"`

	// ApprovalID identifies the queued approval request when Status is
	// pending_approval.
	ApprovalID string `json:"approval_id,omitempty"`
}
