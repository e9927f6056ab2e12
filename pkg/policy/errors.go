package policy

import (
	"fmt"

	"github.com/nithins313/unbound2/pkg/rules"
)

// UnknownActionError indicates a stored rule carries an action outside
// the enumerated set. The store validates actions at creation time, so
// this can only come from data corruption; the evaluator still records
// the evaluation and returns a not-executed verdict rather than failing.
type UnknownActionError struct {
	RuleID string
	Action rules.Action
}

// Error returns the error message.
func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("rule %s carries unknown action %q", e.RuleID, e.Action)
}
