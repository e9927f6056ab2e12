package policy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nithins313/unbound2/pkg/approval"
	"github.com/nithins313/unbound2/pkg/audit"
	"github.com/nithins313/unbound2/pkg/credits"
	"github.com/nithins313/unbound2/pkg/identity"
	"github.com/nithins313/unbound2/pkg/notify"
	"github.com/nithins313/unbound2/pkg/rules"
)

// fakeNotifier records alerts and optionally fails every delivery.
type fakeNotifier struct {
	alerts []notify.Alert
	admins [][]identity.Admin
	fail   bool
}

func (n *fakeNotifier) SendApprovalAlert(ctx context.Context, admins []identity.Admin, alert notify.Alert) error {
	n.alerts = append(n.alerts, alert)
	n.admins = append(n.admins, admins)
	if n.fail {
		return fmt.Errorf("delivery failed")
	}
	return nil
}

type testEnv struct {
	evaluator *Evaluator
	registry  *identity.MemoryRegistry
	ledger    *credits.MemoryLedger
	rules     *rules.Store
	approvals *approval.MemoryQueue
	audit     *audit.MemoryLog
	notifier  *fakeNotifier
}

// fridayAfternoon is inside the default Mon-Fri 09:00-18:00 window.
var fridayAfternoon = time.Date(2026, 1, 2, 14, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T, cfg *Config) *testEnv {
	t.Helper()

	store, err := rules.NewStore(context.Background(), rules.NewMemoryBackend(), nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	env := &testEnv{
		registry:  identity.NewMemoryRegistry(),
		ledger:    credits.NewMemoryLedger(),
		rules:     store,
		approvals: approval.NewMemoryQueue(),
		audit:     audit.NewMemoryLog(),
		notifier:  &fakeNotifier{},
	}

	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return fridayAfternoon }
	}
	if cfg.Window == nil {
		cfg.Window = &WorkingWindowConfig{
			Timezone:   "UTC",
			DaysOfWeek: []int{1, 2, 3, 4, 5},
			StartHour:  9,
			EndHour:    18,
		}
	}

	env.evaluator, err = NewEvaluator(Dependencies{
		Rules:      env.rules,
		Identities: env.registry,
		Ledger:     env.ledger,
		Approvals:  env.approvals,
		Audit:      env.audit,
		Notifier:   env.notifier,
	}, cfg)
	if err != nil {
		t.Fatalf("NewEvaluator failed: %v", err)
	}
	return env
}

func (env *testEnv) addIdentity(t *testing.T, id string, role identity.Role, credit int64) {
	t.Helper()
	err := env.registry.Create(context.Background(), &identity.Identity{
		ID:     id,
		Name:   "user " + id,
		Mail:   id + "@example.com",
		Role:   role,
		APIKey: "key-" + id,
	})
	if err != nil {
		t.Fatalf("failed to create identity: %v", err)
	}
	if err := env.ledger.Open(id, credit); err != nil {
		t.Fatalf("failed to open ledger account: %v", err)
	}
}

func (env *testEnv) addRule(t *testing.T, pattern string, action rules.Action) {
	t.Helper()
	if _, _, err := env.rules.Create(context.Background(), pattern, action); err != nil {
		t.Fatalf("failed to create rule %q: %v", pattern, err)
	}
}

func (env *testEnv) auditOutcomes(t *testing.T) []audit.Outcome {
	t.Helper()
	entries, err := env.audit.All(context.Background())
	if err != nil {
		t.Fatalf("failed to read audit log: %v", err)
	}
	out := make([]audit.Outcome, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Outcome)
	}
	return out
}

func (env *testEnv) balance(t *testing.T, id string) int64 {
	t.Helper()
	balance, err := env.ledger.Balance(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to read balance: %v", err)
	}
	return balance
}

func TestExecuteUnknownIdentity(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.evaluator.Execute(context.Background(), "ls", "ghost")
	if !errors.Is(err, identity.ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
	if got := env.auditOutcomes(t); len(got) != 0 {
		t.Errorf("expected no audit entries, got %v", got)
	}
}

func TestExecuteInsufficientCreditPreCheck(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addIdentity(t, "u1", identity.RoleMember, 3)
	env.addRule(t, "^ls", rules.ActionAutoAccept)

	_, err := env.evaluator.Execute(context.Background(), "ls", "u1")
	var insufficient *credits.InsufficientCreditError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientCreditError, got %v", err)
	}
	if insufficient.Balance != 3 || insufficient.Required != DefaultCost {
		t.Errorf("unexpected error detail: %+v", insufficient)
	}

	// The pre-check runs before rule lookup and writes no audit entry.
	if got := env.auditOutcomes(t); len(got) != 0 {
		t.Errorf("expected no audit entries, got %v", got)
	}
	if balance := env.balance(t, "u1"); balance != 3 {
		t.Errorf("expected untouched balance 3, got %d", balance)
	}
}

func TestExecuteNoMatchingRule(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addIdentity(t, "u1", identity.RoleMember, 20)
	env.addRule(t, "^ls", rules.ActionAutoAccept)

	verdict, err := env.evaluator.Execute(context.Background(), "shutdown now", "u1")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if verdict.Status != StatusNotExecuted {
		t.Errorf("expected %s, got %s", StatusNotExecuted, verdict.Status)
	}
	if verdict.Message != "No matching rule found" {
		t.Errorf("unexpected message: %q", verdict.Message)
	}

	if got := env.auditOutcomes(t); len(got) != 1 || got[0] != audit.OutcomeNotExecuted {
		t.Errorf("expected [NOT_EXECUTED], got %v", got)
	}
	if balance := env.balance(t, "u1"); balance != 20 {
		t.Errorf("default deny must not charge; balance %d", balance)
	}
}

func TestExecuteAutoAccept(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addIdentity(t, "u1", identity.RoleMember, 20)
	env.addRule(t, "^ls", rules.ActionAutoAccept)

	verdict, err := env.evaluator.Execute(context.Background(), "ls -la", "u1")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if verdict.Status != StatusExecuted {
		t.Errorf("expected %s, got %s", StatusExecuted, verdict.Status)
	}
	if verdict.Message != "Command executed successfully" {
		t.Errorf("unexpected message: %q", verdict.Message)
	}

	if balance := env.balance(t, "u1"); balance != 20-DefaultCost {
		t.Errorf("expected balance %d, got %d", 20-DefaultCost, balance)
	}
	if got := env.auditOutcomes(t); len(got) != 1 || got[0] != audit.OutcomeExecuted {
		t.Errorf("expected [EXECUTED], got %v", got)
	}
}

func TestExecuteAutoReject(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addIdentity(t, "u1", identity.RoleMember, 20)
	env.addRule(t, "^rm -rf", rules.ActionAutoReject)

	verdict, err := env.evaluator.Execute(context.Background(), "rm -rf /", "u1")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if verdict.Status != StatusRejected {
		t.Errorf("expected %s, got %s", StatusRejected, verdict.Status)
	}
	if verdict.Message != "Command rejected by rule" {
		t.Errorf("unexpected message: %q", verdict.Message)
	}

	if balance := env.balance(t, "u1"); balance != 20 {
		t.Errorf("rejection must not charge; balance %d", balance)
	}
	if got := env.auditOutcomes(t); len(got) != 1 || got[0] != audit.OutcomeRejected {
		t.Errorf("expected [REJECTED], got %v", got)
	}
}

func TestExecuteFirstMatchWins(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addIdentity(t, "u1", identity.RoleMember, 20)
	env.addRule(t, "ls", rules.ActionAutoAccept)
	env.addRule(t, ".*", rules.ActionAutoReject)

	verdict, err := env.evaluator.Execute(context.Background(), "ls -la", "u1")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if verdict.Status != StatusExecuted {
		t.Errorf("first-created rule must win; got %s", verdict.Status)
	}
}

func TestExecuteRequireApproval(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addIdentity(t, "admin", identity.RoleAdmin, 0)
	env.addIdentity(t, "u1", identity.RoleMember, 20)
	env.addRule(t, "^deploy", rules.ActionRequireApproval)

	verdict, err := env.evaluator.Execute(context.Background(), "deploy prod", "u1")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if verdict.Status != StatusPendingApproval {
		t.Errorf("expected %s, got %s", StatusPendingApproval, verdict.Status)
	}
	if verdict.Message != "Command requires approval. Notification sent to approvers." {
		t.Errorf("unexpected message: %q", verdict.Message)
	}
	if verdict.ApprovalID == "" {
		t.Error("expected approval ID on verdict")
	}

	// A PENDING request is queued.
	req, err := env.approvals.Get(context.Background(), verdict.ApprovalID)
	if err != nil {
		t.Fatalf("approval request not queued: %v", err)
	}
	if req.Status != approval.StatusPending || req.Command != "deploy prod" || req.IdentityID != "u1" {
		t.Errorf("unexpected request: %+v", req)
	}

	// Admins were notified.
	if len(env.notifier.alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(env.notifier.alerts))
	}
	if env.notifier.alerts[0].ApprovalID != verdict.ApprovalID {
		t.Error("alert does not reference the queued request")
	}
	if len(env.notifier.admins[0]) != 1 || env.notifier.admins[0][0].Mail != "admin@example.com" {
		t.Errorf("unexpected alert recipients: %+v", env.notifier.admins[0])
	}

	// No credit is charged for queueing.
	if balance := env.balance(t, "u1"); balance != 20 {
		t.Errorf("approval path must not charge; balance %d", balance)
	}
	if got := env.auditOutcomes(t); len(got) != 1 || got[0] != audit.OutcomePendingApproval {
		t.Errorf("expected [PENDING_APPROVAL], got %v", got)
	}
}

func TestExecuteApprovalNotifierFailureIsBestEffort(t *testing.T) {
	env := newTestEnv(t, nil)
	env.notifier.fail = true
	env.addIdentity(t, "u1", identity.RoleMember, 20)
	env.addRule(t, "^deploy", rules.ActionRequireApproval)

	verdict, err := env.evaluator.Execute(context.Background(), "deploy prod", "u1")
	if err != nil {
		t.Fatalf("notifier failure must not fail evaluation: %v", err)
	}
	if verdict.Status != StatusPendingApproval {
		t.Errorf("expected %s, got %s", StatusPendingApproval, verdict.Status)
	}
	if _, err := env.approvals.Get(context.Background(), verdict.ApprovalID); err != nil {
		t.Errorf("request must be queued despite notify failure: %v", err)
	}
}

func TestExecuteTimedApproval(t *testing.T) {
	tests := []struct {
		name        string
		at          time.Time
		wantStatus  Status
		wantOutcome audit.Outcome
		wantCharge  bool
	}{
		{
			name:        "friday before close",
			at:          time.Date(2026, 1, 2, 17, 59, 0, 0, time.UTC),
			wantStatus:  StatusExecuted,
			wantOutcome: audit.OutcomeExecutedTimed,
			wantCharge:  true,
		},
		{
			name:        "friday at close",
			at:          time.Date(2026, 1, 2, 18, 0, 0, 0, time.UTC),
			wantStatus:  StatusRejected,
			wantOutcome: audit.OutcomeRejectedOutsideHours,
			wantCharge:  false,
		},
		{
			name:        "saturday inside hours",
			at:          time.Date(2026, 1, 3, 10, 0, 0, 0, time.UTC),
			wantStatus:  StatusRejected,
			wantOutcome: audit.OutcomeRejectedOutsideHours,
			wantCharge:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &Config{
				Clock: func() time.Time { return tt.at },
			})
			env.addIdentity(t, "u1", identity.RoleMember, 20)
			env.addRule(t, "^restart", rules.ActionTimedApproval)

			verdict, err := env.evaluator.Execute(context.Background(), "restart api", "u1")
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if verdict.Status != tt.wantStatus {
				t.Errorf("expected %s, got %s", tt.wantStatus, verdict.Status)
			}

			wantBalance := int64(20)
			if tt.wantCharge {
				wantBalance -= DefaultCost
			}
			if balance := env.balance(t, "u1"); balance != wantBalance {
				t.Errorf("expected balance %d, got %d", wantBalance, balance)
			}
			if got := env.auditOutcomes(t); len(got) != 1 || got[0] != tt.wantOutcome {
				t.Errorf("expected [%s], got %v", tt.wantOutcome, got)
			}

			// TIMED_APPROVAL never creates approval requests.
			reqs, err := env.approvals.List(context.Background())
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(reqs) != 0 {
				t.Errorf("expected no approval requests, got %d", len(reqs))
			}
		})
	}
}

func TestExecuteCustomCost(t *testing.T) {
	env := newTestEnv(t, &Config{Cost: 12})
	env.addIdentity(t, "u1", identity.RoleMember, 25)
	env.addRule(t, "^ls", rules.ActionAutoAccept)

	if _, err := env.evaluator.Execute(context.Background(), "ls", "u1"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if balance := env.balance(t, "u1"); balance != 13 {
		t.Errorf("expected balance 13, got %d", balance)
	}

	if _, err := env.evaluator.Execute(context.Background(), "ls", "u1"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// Third execution: balance 1 < 12 fails the pre-check.
	_, err := env.evaluator.Execute(context.Background(), "ls", "u1")
	var insufficient *credits.InsufficientCreditError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientCreditError, got %v", err)
	}
}

func TestReconfigure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addIdentity(t, "u1", identity.RoleMember, 20)
	env.addRule(t, "^restart", rules.ActionTimedApproval)

	// Shrink the window so the default clock (Friday 14:00 UTC) falls
	// outside it.
	env.evaluator.Reconfigure(2, &WorkingWindowConfig{
		Timezone:   "UTC",
		DaysOfWeek: []int{1, 2, 3, 4, 5},
		StartHour:  9,
		EndHour:    12,
	})

	verdict, err := env.evaluator.Execute(context.Background(), "restart api", "u1")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if verdict.Status != StatusRejected {
		t.Errorf("expected rejection outside reconfigured window, got %s", verdict.Status)
	}

	// The reconfigured cost applies to the pre-check too.
	env.evaluator.Reconfigure(100, nil)
	_, err = env.evaluator.Execute(context.Background(), "restart api", "u1")
	var insufficient *credits.InsufficientCreditError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientCreditError under raised cost, got %v", err)
	}
	if insufficient.Required != 100 {
		t.Errorf("expected required 100, got %d", insufficient.Required)
	}
}

func TestExecuteChargeRace(t *testing.T) {
	// The pre-check passes on a stale balance; the atomic charge is the
	// arbiter. Drain the account between pre-check and charge by running
	// enough concurrent evaluations.
	env := newTestEnv(t, nil)
	env.addIdentity(t, "u1", identity.RoleMember, DefaultCost) // covers exactly one
	env.addRule(t, "^ls", rules.ActionAutoAccept)

	const attempts = 10
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			_, err := env.evaluator.Execute(context.Background(), "ls", "u1")
			results <- err
		}()
	}

	var executed int
	for i := 0; i < attempts; i++ {
		err := <-results
		if err == nil {
			executed++
			continue
		}
		var insufficient *credits.InsufficientCreditError
		if !errors.As(err, &insufficient) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if executed != 1 {
		t.Errorf("expected exactly 1 successful execution, got %d", executed)
	}
	if balance := env.balance(t, "u1"); balance != 0 {
		t.Errorf("expected balance 0, got %d", balance)
	}
}
