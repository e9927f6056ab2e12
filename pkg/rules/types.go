package rules

import "time"

// Action is the disposition a rule prescribes for a matching command.
type Action string

const (
	// ActionAutoAccept executes the command immediately, charging the
	// submitter's credit.
	ActionAutoAccept Action = "AUTO_ACCEPT"

	// ActionAutoReject rejects the command. No credit is charged.
	ActionAutoReject Action = "AUTO_REJECT"

	// ActionRequireApproval queues the command for human approval and
	// notifies administrators.
	ActionRequireApproval Action = "REQUIRE_APPROVAL"

	// ActionTimedApproval executes inside the working window and
	// rejects outside it.
	ActionTimedApproval Action = "TIMED_APPROVAL"
)

// Valid reports whether the action is one of the four enumerated values.
func (a Action) Valid() bool {
	switch a {
	case ActionAutoAccept, ActionAutoReject, ActionRequireApproval, ActionTimedApproval:
		return true
	}
	return false
}

// Rule is an ordered (pattern, action) policy entry. Rules are immutable
// once created; changing a pattern or action means delete and re-create.
type Rule struct {
	// ID is the stable rule identifier.
	ID string `json:"id"`

	// Pattern is the regular-expression text matched against command
	// text. It compiles at creation time; a stored pattern that fails
	// to compile later (data corruption) is skipped during scans.
	Pattern string `json:"pattern"`

	// Action is the disposition applied when the pattern matches.
	Action Action `json:"action"`

	// CreatedAt orders the rule list. Evaluation order is creation
	// order and first match wins.
	CreatedAt time.Time `json:"created_at"`
}

// ReportKind classifies a new rule against the existing rule set.
type ReportKind string

const (
	// ReportClean means the new rule neither duplicates nor overlaps
	// any existing rule.
	ReportClean ReportKind = "CLEAN"

	// ReportDuplicate means an identical (pattern, action) rule exists.
	// Creation is aborted.
	ReportDuplicate ReportKind = "DUPLICATE"

	// ReportHardConflict means the same pattern exists with a different
	// action. Creation is aborted.
	ReportHardConflict ReportKind = "HARD_CONFLICT"

	// ReportSoftOverlap means the new pattern can match overlapping
	// input with one or more existing rules prescribing different
	// actions. The rule is still created; the overlaps are surfaced as
	// a warning.
	ReportSoftOverlap ReportKind = "SOFT_OVERLAP"
)

// Overlap identifies an existing rule whose pattern overlaps the new one.
type Overlap struct {
	RuleID  string `json:"rule_id"`
	Pattern string `json:"pattern"`
	Action  Action `json:"action"`
}

// ConflictReport is the transient result of classifying a new rule
// against the existing rule set. It is returned to the caller and never
// persisted.
type ConflictReport struct {
	// Kind is the overall classification.
	Kind ReportKind `json:"kind"`

	// RuleID identifies the duplicate or hard-conflicting rule when
	// Kind is DUPLICATE or HARD_CONFLICT.
	RuleID string `json:"rule_id,omitempty"`

	// Overlaps lists the soft-overlapping rules when Kind is
	// SOFT_OVERLAP.
	Overlaps []Overlap `json:"overlaps,omitempty"`
}
