package rules

import (
	"errors"
	"fmt"
)

// ErrRuleNotFound indicates the referenced rule does not exist.
var ErrRuleNotFound = errors.New("rule not found")

// ValidationError indicates a malformed rule submission: an action
// outside the enumerated set or a pattern that does not compile.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid rule %s: %s", e.Field, e.Message)
}

// DuplicateRuleError indicates an identical (pattern, action) rule
// already exists. No rule is created.
type DuplicateRuleError struct {
	RuleID string
}

// Error returns the error message.
func (e *DuplicateRuleError) Error() string {
	return fmt.Sprintf("exact duplicate rule already exists (ID: %s)", e.RuleID)
}

// ConflictingRuleError indicates the same pattern exists with a
// different action. It carries the conflicting rule so the caller can
// report which rule blocks creation.
type ConflictingRuleError struct {
	Rule Rule
}

// Error returns the error message.
func (e *ConflictingRuleError) Error() string {
	return fmt.Sprintf("same pattern exists with different action %q (ID: %s)",
		e.Rule.Action, e.Rule.ID)
}
