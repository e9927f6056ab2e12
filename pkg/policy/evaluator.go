package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nithins313/unbound2/pkg/approval"
	"github.com/nithins313/unbound2/pkg/audit"
	"github.com/nithins313/unbound2/pkg/credits"
	"github.com/nithins313/unbound2/pkg/identity"
	"github.com/nithins313/unbound2/pkg/notify"
	"github.com/nithins313/unbound2/pkg/rules"
)

// DefaultCost is the credit charged for each successful execution.
const DefaultCost int64 = 5

// RuleFinder is the rule-lookup capability the evaluator needs.
type RuleFinder interface {
	FindFirstMatch(ctx context.Context, command string) (*rules.Rule, bool)
}

// IdentityDirectory resolves identities and lists administrators.
type IdentityDirectory interface {
	Get(ctx context.Context, id string) (*identity.Identity, error)
	ListAdmins(ctx context.Context) ([]identity.Admin, error)
}

// Dependencies are the collaborators the evaluator orchestrates. All
// fields are required except Notifier, which defaults to a no-op.
type Dependencies struct {
	Rules      RuleFinder
	Identities IdentityDirectory
	Ledger     credits.Ledger
	Approvals  approval.Queue
	Audit      audit.Log
	Notifier   notify.Notifier
}

// Config contains evaluator configuration.
type Config struct {
	// Cost is the credit charged per successful execution.
	// Default: DefaultCost.
	Cost int64

	// Window is the working window for TIMED_APPROVAL rules.
	// Default: Mon-Fri 09:00-18:00 local time.
	Window *WorkingWindowConfig

	// Clock returns the current time. Default: time.Now. Injected for
	// working-window tests.
	Clock func() time.Time

	// Logger receives structured evaluation logs.
	// Default: slog.Default with a component field.
	Logger *slog.Logger

	// Metrics receives evaluation metrics. Nil disables recording.
	Metrics *Metrics
}

// Evaluator is the command-execution state machine. Execute is the sole
// entry point consumed by the transport layer.
//
// Each invocation is a single atomic evaluation: no intermediate state
// persists across calls. The evaluator holds no lock over the whole
// decision; the only strictly atomic operation is the credit charge,
// which the ledger serializes.
type Evaluator struct {
	deps    Dependencies
	clock   func() time.Time
	logger  *slog.Logger
	metrics *Metrics

	// mu guards cost and window, which are swappable at runtime via
	// Reconfigure (config hot reload).
	mu     sync.RWMutex
	cost   int64
	window *WorkingWindowConfig
}

// NewEvaluator creates a policy evaluator.
func NewEvaluator(deps Dependencies, cfg *Config) (*Evaluator, error) {
	if deps.Rules == nil || deps.Identities == nil || deps.Ledger == nil ||
		deps.Approvals == nil || deps.Audit == nil {
		return nil, fmt.Errorf("evaluator dependencies incomplete")
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Noop{}
	}

	if cfg == nil {
		cfg = &Config{}
	}
	cost := cfg.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < 0 {
		return nil, fmt.Errorf("cost cannot be negative")
	}
	window := cfg.Window
	if window == nil {
		window = DefaultWorkingWindowConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "policy.evaluator")
	}

	return &Evaluator{
		deps:    deps,
		clock:   clock,
		logger:  logger,
		metrics: cfg.Metrics,
		cost:    cost,
		window:  window,
	}, nil
}

// Reconfigure swaps the per-execution cost and working window. Used by
// the config hot-reload path; in-flight evaluations keep the settings
// they started with.
func (e *Evaluator) Reconfigure(cost int64, window *WorkingWindowConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cost > 0 {
		e.cost = cost
	}
	if window != nil {
		e.window = window
	}
}

// settings returns the current cost and window.
func (e *Evaluator) settings() (int64, *WorkingWindowConfig) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cost, e.window
}

// Execute evaluates one command for the given identity.
//
// The evaluation order is fixed: identity resolution, credit pre-check
// (before rule lookup, with no audit entry on failure), first-match rule
// lookup, then dispatch on the matched rule's action. Every
// verdict-producing path past the credit pre-check writes exactly one
// audit entry.
//
// Typed failures - identity.ErrIdentityNotFound and
// *credits.InsufficientCreditError - are returned for the transport
// layer to map; they carry no verdict.
func (e *Evaluator) Execute(ctx context.Context, command, identityID string) (*Verdict, error) {
	start := e.clock()
	cost, window := e.settings()

	ident, err := e.deps.Identities.Get(ctx, identityID)
	if err != nil {
		return nil, err
	}

	balance, err := e.deps.Ledger.Balance(ctx, ident.ID)
	if err != nil && !errors.Is(err, identity.ErrIdentityNotFound) {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}
	if balance < cost {
		// The pre-check failure writes no audit entry: the credit
		// check happens before rule lookup.
		return nil, &credits.InsufficientCreditError{
			IdentityID: ident.ID,
			Balance:    balance,
			Required:   cost,
		}
	}

	rule, found := e.deps.Rules.FindFirstMatch(ctx, command)
	if !found {
		e.append(ctx, ident.ID, command, audit.OutcomeNotExecuted)
		e.record(string(audit.OutcomeNotExecuted), start)
		return &Verdict{
			Status:  StatusNotExecuted,
			Message: "No matching rule found",
		}, nil
	}

	switch rule.Action {
	case rules.ActionAutoAccept:
		return e.executeAccepted(ctx, ident, command, cost, start)

	case rules.ActionAutoReject:
		e.append(ctx, ident.ID, command, audit.OutcomeRejected)
		e.record(string(audit.OutcomeRejected), start)
		return &Verdict{
			Status:  StatusRejected,
			Message: "Command rejected by rule",
		}, nil

	case rules.ActionRequireApproval:
		return e.executeApprovalPath(ctx, ident, command, start)

	case rules.ActionTimedApproval:
		return e.executeTimed(ctx, ident, command, cost, window, start)

	default:
		// Unreachable given store validation; only data corruption
		// puts an unrecognized action in a stored rule.
		e.logger.Error("stored rule carries unknown action",
			"rule_id", rule.ID,
			"error", &UnknownActionError{RuleID: rule.ID, Action: rule.Action},
		)
		e.append(ctx, ident.ID, command, audit.OutcomeNotExecuted)
		e.record(string(audit.OutcomeNotExecuted), start)
		return &Verdict{
			Status:  StatusNotExecuted,
			Message: "Unknown action type",
		}, nil
	}
}

// executeAccepted handles the AUTO_ACCEPT path: atomic charge, audit,
// verdict.
func (e *Evaluator) executeAccepted(ctx context.Context, ident *identity.Identity, command string, cost int64, start time.Time) (*Verdict, error) {
	if err := e.charge(ctx, ident.ID, cost); err != nil {
		return nil, err
	}
	e.append(ctx, ident.ID, command, audit.OutcomeExecuted)
	e.record(string(audit.OutcomeExecuted), start)
	return &Verdict{
		Status:  StatusExecuted,
		Message: "Command executed successfully",
	}, nil
}

// executeApprovalPath handles REQUIRE_APPROVAL: queue the request,
// notify administrators best-effort, audit. No credit is charged.
func (e *Evaluator) executeApprovalPath(ctx context.Context, ident *identity.Identity, command string, start time.Time) (*Verdict, error) {
	req, err := e.deps.Approvals.Create(ctx, ident.ID, command)
	if err != nil {
		return nil, fmt.Errorf("failed to queue approval request: %w", err)
	}

	admins, err := e.deps.Identities.ListAdmins(ctx)
	if err != nil {
		e.logger.Warn("failed to list admins for approval alert",
			"approval_id", req.ID,
			"error", err,
		)
	}

	alert := notify.Alert{
		Command:    command,
		IdentityID: ident.ID,
		ApprovalID: req.ID,
	}
	if err := e.deps.Notifier.SendApprovalAlert(ctx, admins, alert); err != nil {
		// Best-effort: delivery failure never alters the verdict.
		e.logger.Warn("approval alert delivery failed",
			"approval_id", req.ID,
			"error", err,
		)
		e.metrics.RecordNotifyFailure()
	}

	e.append(ctx, ident.ID, command, audit.OutcomePendingApproval)
	e.record(string(audit.OutcomePendingApproval), start)
	return &Verdict{
		Status:     StatusPendingApproval,
		Message:    "Command requires approval. Notification sent to approvers.",
		ApprovalID: req.ID,
	}, nil
}

// executeTimed handles TIMED_APPROVAL: execute inside the working
// window, reject outside it. No approval request is created either way.
func (e *Evaluator) executeTimed(ctx context.Context, ident *identity.Identity, command string, cost int64, window *WorkingWindowConfig, start time.Time) (*Verdict, error) {
	if window.IsWithin(e.clock()) {
		if err := e.charge(ctx, ident.ID, cost); err != nil {
			return nil, err
		}
		e.append(ctx, ident.ID, command, audit.OutcomeExecutedTimed)
		e.record(string(audit.OutcomeExecutedTimed), start)
		return &Verdict{
			Status:  StatusExecuted,
			Message: fmt.Sprintf("Command executed (within working hours: %d:00-%d:00)", window.StartHour, window.EndHour),
		}, nil
	}

	e.append(ctx, ident.ID, command, audit.OutcomeRejectedOutsideHours)
	e.record(string(audit.OutcomeRejectedOutsideHours), start)
	return &Verdict{
		Status:  StatusRejected,
		Message: fmt.Sprintf("Command rejected. Outside working hours (%d:00-%d:00)", window.StartHour, window.EndHour),
	}, nil
}

// charge deducts cost via the ledger. The ledger resolves concurrent
// charge races atomically; the evaluator never retries.
func (e *Evaluator) charge(ctx context.Context, identityID string, cost int64) error {
	err := e.deps.Ledger.Charge(ctx, identityID, cost)
	var insufficient *credits.InsufficientCreditError
	switch {
	case err == nil:
		e.metrics.RecordCharge(true)
		return nil
	case errors.As(err, &insufficient):
		e.metrics.RecordCharge(false)
		return err
	default:
		return fmt.Errorf("failed to charge credit: %w", err)
	}
}

// append writes one audit entry, fire-and-forget. A logging failure
// never rolls back the decision already made.
func (e *Evaluator) append(ctx context.Context, identityID, command string, outcome audit.Outcome) {
	if err := e.deps.Audit.Append(ctx, identityID, command, outcome); err != nil {
		e.logger.Error("audit append failed",
			"identity_id", identityID,
			"outcome", outcome,
			"error", err,
		)
	}
}

// record observes evaluation metrics.
func (e *Evaluator) record(outcome string, start time.Time) {
	e.metrics.RecordEvaluation(outcome, e.clock().Sub(start))
}
