// Package rules maintains the ordered list of command-disposition rules
// and classifies new rules against the existing set.
//
// # Ordering
//
// Rules evaluate in creation order and the first matching rule wins;
// later rules are never consulted for a command the earlier rule already
// matched. The Store serves scans from an immutable snapshot that is
// replaced wholesale on every create or delete, so concurrent readers
// never observe a partially-updated list.
//
// # Conflict detection
//
// Rule creation runs the Detector first. An identical (pattern, action)
// pair aborts with DuplicateRuleError; the same pattern with a different
// action aborts with ConflictingRuleError. Patterns that merely overlap
// (either regex matches the other's literal text, or one is a substring
// of the other) while prescribing different actions still create the
// rule but surface the overlap set in the ConflictReport.
//
// # Usage
//
//	store, err := rules.NewStore(ctx, rules.NewMemoryBackend(), logger)
//	rule, report, err := store.Create(ctx, "^deploy", rules.ActionRequireApproval)
//	if report.Kind == rules.ReportSoftOverlap {
//	    // warn the operator, rule is active anyway
//	}
package rules
