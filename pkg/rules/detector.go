package rules

import (
	"log/slog"
	"regexp"
	"strings"
)

// Detector classifies a proposed rule against the existing rule set.
type Detector struct {
	logger *slog.Logger
}

// NewDetector creates a conflict detector.
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default().With("component", "rules.detector")
	}
	return &Detector{logger: logger}
}

// Classify analyzes a new (pattern, action) pair against existing rules
// in stored order.
//
// Classification short-circuits on the first hard result: an identical
// pattern with the same action is a DUPLICATE, an identical pattern with
// a different action is a HARD_CONFLICT. Otherwise every existing rule
// whose pattern overlaps the new one bidirectionally - the existing
// regex matches the new pattern's literal text, the new regex matches
// the existing pattern's literal text, or one pattern is a literal
// substring of the other - while prescribing a different action is
// accumulated into a SOFT_OVERLAP report. A new rule can overlap several
// existing ones, so the scan continues after a soft hit.
//
// An existing rule whose stored pattern no longer compiles is skipped
// with a warning; corrupt data must not block new-rule creation.
//
// The caller is expected to have validated that newPattern compiles. A
// non-compiling newPattern only disables the "new matches existing"
// probe; equality and substring checks still apply.
func (d *Detector) Classify(newPattern string, newAction Action, existing []Rule) *ConflictReport {
	newRe, err := regexp.Compile(newPattern)
	if err != nil {
		newRe = nil
	}

	var overlaps []Overlap
	for _, rule := range existing {
		if rule.Pattern == newPattern {
			if rule.Action == newAction {
				return &ConflictReport{Kind: ReportDuplicate, RuleID: rule.ID}
			}
			return &ConflictReport{Kind: ReportHardConflict, RuleID: rule.ID}
		}

		existingRe, err := regexp.Compile(rule.Pattern)
		if err != nil {
			d.logger.Warn("skipping rule with invalid stored pattern",
				"rule_id", rule.ID,
				"pattern", rule.Pattern,
				"error", err,
			)
			continue
		}

		existingMatchesNew := existingRe.MatchString(newPattern)
		newMatchesExisting := newRe != nil && newRe.MatchString(rule.Pattern)
		isSubstring := strings.Contains(newPattern, rule.Pattern) ||
			strings.Contains(rule.Pattern, newPattern)

		if (existingMatchesNew || newMatchesExisting || isSubstring) && rule.Action != newAction {
			overlaps = append(overlaps, Overlap{
				RuleID:  rule.ID,
				Pattern: rule.Pattern,
				Action:  rule.Action,
			})
		}
	}

	if len(overlaps) > 0 {
		return &ConflictReport{Kind: ReportSoftOverlap, Overlaps: overlaps}
	}
	return &ConflictReport{Kind: ReportClean}
}
