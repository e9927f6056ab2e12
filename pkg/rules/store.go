package rules

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Backend persists the ordered rule list. Implementations must preserve
// creation order in List.
type Backend interface {
	// Insert appends a rule to the stored list.
	Insert(ctx context.Context, rule *Rule) error

	// Delete removes a rule by ID. Not-found is ErrRuleNotFound.
	Delete(ctx context.Context, id string) error

	// List returns all rules in creation order.
	List(ctx context.Context) ([]Rule, error)
}

// compiledRule pairs a rule with its compiled pattern. The regexp is nil
// when the stored pattern fails to compile; such rules are skipped
// during scans.
type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

// Store is the ordered collection of active rules. Reads are served from
// an immutable snapshot slice that is rebuilt on every mutation, so a
// FindFirstMatch scan always observes a consistent rule list.
type Store struct {
	backend  Backend
	detector *Detector
	logger   *slog.Logger

	// mu serializes mutations and guards snapshot replacement. The
	// snapshot slice itself is never mutated in place.
	mu       sync.RWMutex
	snapshot []compiledRule
}

// NewStore creates a rule store over the given backend and loads the
// existing rules into its snapshot.
func NewStore(ctx context.Context, backend Backend, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default().With("component", "rules.store")
	}

	s := &Store{
		backend:  backend,
		detector: NewDetector(logger),
		logger:   logger,
	}

	stored, err := backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	s.snapshot = s.compile(stored)

	return s, nil
}

// compile builds the snapshot slice, logging rules whose stored pattern
// no longer compiles. Such rules stay in the list (they still count for
// ordering and deletion) but never match.
func (s *Store) compile(stored []Rule) []compiledRule {
	compiled := make([]compiledRule, 0, len(stored))
	for _, rule := range stored {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			s.logger.Warn("stored rule pattern does not compile, rule will never match",
				"rule_id", rule.ID,
				"pattern", rule.Pattern,
				"error", err,
			)
			re = nil
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}
	return compiled
}

// Create validates, classifies, and persists a new rule.
//
// DUPLICATE and HARD_CONFLICT classifications abort creation and return
// *DuplicateRuleError or *ConflictingRuleError respectively. CLEAN and
// SOFT_OVERLAP both create the rule; the returned ConflictReport carries
// the overlap set so the caller can surface it as a non-fatal warning.
func (s *Store) Create(ctx context.Context, pattern string, action Action) (*Rule, *ConflictReport, error) {
	if !action.Valid() {
		return nil, nil, &ValidationError{
			Field:   "action",
			Message: fmt.Sprintf("must be one of AUTO_ACCEPT, AUTO_REJECT, REQUIRE_APPROVAL, TIMED_APPROVAL; got %q", action),
		}
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, nil, &ValidationError{
			Field:   "pattern",
			Message: fmt.Sprintf("does not compile as a regular expression: %v", err),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make([]Rule, 0, len(s.snapshot))
	for _, c := range s.snapshot {
		existing = append(existing, c.rule)
	}

	report := s.detector.Classify(pattern, action, existing)
	switch report.Kind {
	case ReportDuplicate:
		return nil, report, &DuplicateRuleError{RuleID: report.RuleID}
	case ReportHardConflict:
		for _, c := range s.snapshot {
			if c.rule.ID == report.RuleID {
				return nil, report, &ConflictingRuleError{Rule: c.rule}
			}
		}
		// Snapshot changed underneath us; cannot happen while holding mu.
		return nil, report, &ConflictingRuleError{Rule: Rule{ID: report.RuleID}}
	}

	rule := &Rule{
		ID:        uuid.NewString(),
		Pattern:   pattern,
		Action:    action,
		CreatedAt: time.Now(),
	}
	if err := s.backend.Insert(ctx, rule); err != nil {
		return nil, nil, fmt.Errorf("failed to persist rule: %w", err)
	}

	re := regexp.MustCompile(pattern) // validated above
	next := make([]compiledRule, len(s.snapshot), len(s.snapshot)+1)
	copy(next, s.snapshot)
	s.snapshot = append(next, compiledRule{rule: *rule, re: re})

	if report.Kind == ReportSoftOverlap {
		s.logger.Warn("rule created with potential conflicts",
			"rule_id", rule.ID,
			"pattern", pattern,
			"action", action,
			"overlap_count", len(report.Overlaps),
		)
	}
	return rule, report, nil
}

// Delete removes a rule by ID. Not-found is an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx, id); err != nil {
		return err
	}

	next := make([]compiledRule, 0, len(s.snapshot))
	for _, c := range s.snapshot {
		if c.rule.ID != id {
			next = append(next, c)
		}
	}
	s.snapshot = next
	return nil
}

// List returns all active rules in creation order. The order is
// semantically significant: it is the evaluation order.
func (s *Store) List(ctx context.Context) []Rule {
	s.mu.RLock()
	snapshot := s.snapshot
	s.mu.RUnlock()

	out := make([]Rule, 0, len(snapshot))
	for _, c := range snapshot {
		out = append(out, c.rule)
	}
	return out
}

// FindFirstMatch scans rules in stored order and returns the first whose
// pattern matches the command text. Later matching rules are never
// consulted, even if they would produce a different action. Rules whose
// stored pattern failed to compile are skipped; compile validity was
// checked at creation, so a scan-time failure can only come from data
// corruption and must not make the engine unusable.
func (s *Store) FindFirstMatch(ctx context.Context, command string) (*Rule, bool) {
	s.mu.RLock()
	snapshot := s.snapshot
	s.mu.RUnlock()

	for _, c := range snapshot {
		if c.re == nil {
			continue
		}
		if c.re.MatchString(command) {
			rule := c.rule
			return &rule, true
		}
	}
	return nil, false
}
