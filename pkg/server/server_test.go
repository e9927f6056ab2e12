package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nithins313/unbound2/pkg/approval"
	"github.com/nithins313/unbound2/pkg/audit"
	"github.com/nithins313/unbound2/pkg/config"
	"github.com/nithins313/unbound2/pkg/credits"
	"github.com/nithins313/unbound2/pkg/identity"
	"github.com/nithins313/unbound2/pkg/policy"
	"github.com/nithins313/unbound2/pkg/rules"
)

const (
	adminKey  = "admin-key"
	memberKey = "member-key"
)

type testServer struct {
	ts       *httptest.Server
	registry *identity.MemoryRegistry
	ledger   *credits.MemoryLedger
	rules    *rules.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	registry := identity.NewMemoryRegistry()
	ledger := credits.NewMemoryLedger()
	queue := approval.NewMemoryQueue()
	log := audit.NewMemoryLog()

	store, err := rules.NewStore(ctx, rules.NewMemoryBackend(), nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	seed := []struct {
		id     string
		role   identity.Role
		key    string
		credit int64
	}{
		{"admin-1", identity.RoleAdmin, adminKey, 100},
		{"member-1", identity.RoleMember, memberKey, 20},
	}
	for _, s := range seed {
		err := registry.Create(ctx, &identity.Identity{
			ID:     s.id,
			Name:   s.id,
			Mail:   s.id + "@example.com",
			Role:   s.role,
			APIKey: s.key,
		})
		if err != nil {
			t.Fatalf("failed to seed identity: %v", err)
		}
		if err := ledger.Open(s.id, s.credit); err != nil {
			t.Fatalf("failed to open ledger account: %v", err)
		}
	}

	evaluator, err := policy.NewEvaluator(policy.Dependencies{
		Rules:      store,
		Identities: registry,
		Ledger:     ledger,
		Approvals:  queue,
		Audit:      log,
	}, &policy.Config{
		// Friday 14:00 UTC, inside the default working window.
		Clock: func() time.Time {
			return time.Date(2026, 1, 2, 14, 0, 0, 0, time.UTC)
		},
		Window: &policy.WorkingWindowConfig{
			Timezone:   "UTC",
			DaysOfWeek: []int{1, 2, 3, 4, 5},
			StartHour:  9,
			EndHour:    18,
		},
	})
	if err != nil {
		t.Fatalf("NewEvaluator failed: %v", err)
	}

	srv := NewServer(&config.ServerConfig{ListenAddress: "127.0.0.1:0"}, "test-secret", Dependencies{
		Evaluator:  evaluator,
		Identities: registry,
		Ledger:     ledger,
		Rules:      store,
		Approvals:  queue,
		Audit:      log,
	}, nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testServer{ts: ts, registry: registry, ledger: ledger, rules: store}
}

func (s *testServer) request(t *testing.T, method, path, apiKey string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}

	resp, err := s.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

func (s *testServer) addRule(t *testing.T, pattern string, action rules.Action) {
	t.Helper()
	if _, _, err := s.rules.Create(context.Background(), pattern, action); err != nil {
		t.Fatalf("failed to create rule: %v", err)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	resp := s.request(t, http.MethodPost, "/v1/execute", "", executeRequest{Command: "ls"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("missing key: expected 401, got %d", resp.StatusCode)
	}

	resp = s.request(t, http.MethodPost, "/v1/execute", "bogus", executeRequest{Command: "ls"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bogus key: expected 401, got %d", resp.StatusCode)
	}
}

func TestAdminRoleRequired(t *testing.T) {
	s := newTestServer(t)

	resp := s.request(t, http.MethodGet, "/v1/admin/rules", memberKey, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for member on admin route, got %d", resp.StatusCode)
	}

	resp = s.request(t, http.MethodGet, "/v1/admin/rules", adminKey, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for admin, got %d", resp.StatusCode)
	}
}

func TestExecuteEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.addRule(t, "^ls", rules.ActionAutoAccept)
	s.addRule(t, "^rm -rf", rules.ActionAutoReject)

	resp := s.request(t, http.MethodPost, "/v1/execute", memberKey, executeRequest{Command: "ls -la"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	verdict := decode[executeResponse](t, resp)
	if verdict.Status != "executed" || verdict.Message != "Command executed successfully" {
		t.Errorf("unexpected verdict: %+v", verdict)
	}

	resp = s.request(t, http.MethodPost, "/v1/execute", memberKey, executeRequest{Command: "rm -rf /"})
	verdict = decode[executeResponse](t, resp)
	if verdict.Status != "rejected" {
		t.Errorf("expected rejected, got %+v", verdict)
	}

	resp = s.request(t, http.MethodPost, "/v1/execute", memberKey, executeRequest{Command: "shutdown"})
	verdict = decode[executeResponse](t, resp)
	if verdict.Status != "not executed" || verdict.Message != "No matching rule found" {
		t.Errorf("unexpected default-deny verdict: %+v", verdict)
	}

	resp = s.request(t, http.MethodPost, "/v1/execute", memberKey, executeRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for empty command, got %d", resp.StatusCode)
	}
}

func TestExecuteInsufficientCredit(t *testing.T) {
	s := newTestServer(t)
	s.addRule(t, "^ls", rules.ActionAutoAccept)

	// Member starts with 20 credits; 4 executions exhaust them.
	for i := 0; i < 4; i++ {
		resp := s.request(t, http.MethodPost, "/v1/execute", memberKey, executeRequest{Command: "ls"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("execution %d: expected 200, got %d", i, resp.StatusCode)
		}
	}

	resp := s.request(t, http.MethodPost, "/v1/execute", memberKey, executeRequest{Command: "ls"})
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Errorf("expected 402, got %d", resp.StatusCode)
	}
}

func TestCreditsAndHistory(t *testing.T) {
	s := newTestServer(t)
	s.addRule(t, "^ls", rules.ActionAutoAccept)

	resp := s.request(t, http.MethodPost, "/v1/execute", memberKey, executeRequest{Command: "ls"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = s.request(t, http.MethodGet, "/v1/credits", memberKey, nil)
	balance := decode[creditsResponse](t, resp)
	if balance.Credit != 15 {
		t.Errorf("expected 15 credits, got %d", balance.Credit)
	}

	resp = s.request(t, http.MethodGet, "/v1/history", memberKey, nil)
	history := decode[[]audit.Entry](t, resp)
	if len(history) != 1 || history[0].Outcome != audit.OutcomeExecuted {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestRuleAdminEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp := s.request(t, http.MethodPost, "/v1/admin/rules", adminKey,
		createRuleRequest{Pattern: "^deploy", Action: "REQUIRE_APPROVAL"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	created := decode[ruleResponse](t, resp)
	if created.ID == "" || created.Action != "REQUIRE_APPROVAL" {
		t.Errorf("unexpected rule: %+v", created)
	}

	// Soft overlap still creates, with warnings.
	resp = s.request(t, http.MethodPost, "/v1/admin/rules", adminKey,
		createRuleRequest{Pattern: "^deploy.*prod", Action: "AUTO_REJECT"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for soft overlap, got %d", resp.StatusCode)
	}
	overlapping := decode[ruleResponse](t, resp)
	if len(overlapping.Warnings) != 1 || overlapping.Warnings[0].RuleID != created.ID {
		t.Errorf("expected warning referencing %s, got %+v", created.ID, overlapping.Warnings)
	}

	// Exact duplicate is a conflict.
	resp = s.request(t, http.MethodPost, "/v1/admin/rules", adminKey,
		createRuleRequest{Pattern: "^deploy", Action: "REQUIRE_APPROVAL"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate, got %d", resp.StatusCode)
	}

	// Same pattern, different action is a conflict too.
	resp = s.request(t, http.MethodPost, "/v1/admin/rules", adminKey,
		createRuleRequest{Pattern: "^deploy", Action: "AUTO_ACCEPT"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for hard conflict, got %d", resp.StatusCode)
	}

	// Invalid submissions.
	resp = s.request(t, http.MethodPost, "/v1/admin/rules", adminKey,
		createRuleRequest{Pattern: "([unclosed", Action: "AUTO_ACCEPT"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad pattern, got %d", resp.StatusCode)
	}
	resp = s.request(t, http.MethodPost, "/v1/admin/rules", adminKey,
		createRuleRequest{Pattern: "^ls", Action: "ALLOW"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad action, got %d", resp.StatusCode)
	}

	resp = s.request(t, http.MethodGet, "/v1/admin/rules", adminKey, nil)
	listed := decode[[]ruleResponse](t, resp)
	if len(listed) != 2 {
		t.Errorf("expected 2 rules, got %d", len(listed))
	}

	resp = s.request(t, http.MethodDelete, "/v1/admin/rules/"+created.ID, adminKey, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
	resp = s.request(t, http.MethodDelete, "/v1/admin/rules/"+created.ID, adminKey, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for deleted rule, got %d", resp.StatusCode)
	}
}

func TestApprovalAdminEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.addRule(t, "^deploy", rules.ActionRequireApproval)

	resp := s.request(t, http.MethodPost, "/v1/execute", memberKey, executeRequest{Command: "deploy prod"})
	verdict := decode[executeResponse](t, resp)
	if verdict.Status != "pending_approval" || verdict.ApprovalID == "" {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}

	resp = s.request(t, http.MethodGet, "/v1/admin/approvals", adminKey, nil)
	listed := decode[[]approval.Request](t, resp)
	if len(listed) != 1 || listed[0].ID != verdict.ApprovalID {
		t.Fatalf("unexpected approvals: %+v", listed)
	}

	resp = s.request(t, http.MethodPatch, "/v1/admin/approvals/"+verdict.ApprovalID, adminKey,
		decideApprovalRequest{Status: "approved"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	decided := decode[approval.Request](t, resp)
	if decided.Status != approval.StatusApproved {
		t.Errorf("expected APPROVED, got %s", decided.Status)
	}

	resp = s.request(t, http.MethodPatch, "/v1/admin/approvals/"+verdict.ApprovalID, adminKey,
		decideApprovalRequest{Status: "PENDING"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for non-decision status, got %d", resp.StatusCode)
	}

	resp = s.request(t, http.MethodPatch, "/v1/admin/approvals/missing", adminKey,
		decideApprovalRequest{Status: "REJECTED"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}

	resp = s.request(t, http.MethodDelete, "/v1/admin/approvals/"+verdict.ApprovalID, adminKey, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
	resp = s.request(t, http.MethodGet, "/v1/admin/approvals", adminKey, nil)
	listed = decode[[]approval.Request](t, resp)
	if len(listed) != 0 {
		t.Errorf("expected empty queue after delete, got %+v", listed)
	}
	resp = s.request(t, http.MethodDelete, "/v1/admin/approvals/"+verdict.ApprovalID, adminKey, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for deleted approval, got %d", resp.StatusCode)
	}
}

func TestUserCreditTopUp(t *testing.T) {
	s := newTestServer(t)

	// Member starts with 20 credits; the top-up is a delta on the balance.
	resp := s.request(t, http.MethodPatch, "/v1/admin/users/member-1", adminKey,
		updateUserRequest{Credit: 30})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	updated := decode[userResponse](t, resp)
	if updated.Credit != 50 {
		t.Errorf("expected 50 credits after top-up, got %d", updated.Credit)
	}
	if updated.Name != "member-1" {
		t.Errorf("top-up must leave other fields unchanged, got %+v", updated)
	}

	resp = s.request(t, http.MethodGet, "/v1/credits", memberKey, nil)
	balance := decode[creditsResponse](t, resp)
	if balance.Credit != 50 {
		t.Errorf("expected 50 credits via caller route, got %d", balance.Credit)
	}

	resp = s.request(t, http.MethodPatch, "/v1/admin/users/member-1", adminKey,
		updateUserRequest{Credit: -10})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for negative credit, got %d", resp.StatusCode)
	}
}

func TestUserMailImmutable(t *testing.T) {
	s := newTestServer(t)

	resp := s.request(t, http.MethodPatch, "/v1/admin/users/member-1", adminKey,
		updateUserRequest{Mail: "other@example.com"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp = s.request(t, http.MethodGet, "/v1/admin/users", adminKey, nil)
	for _, u := range decode[[]userResponse](t, resp) {
		if u.ID == "member-1" && u.Mail != "member-1@example.com" {
			t.Errorf("mail must be unchanged, got %s", u.Mail)
		}
	}
}

func TestUserAdminEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp := s.request(t, http.MethodPost, "/v1/admin/users", adminKey, createUserRequest{
		Name:   "New User",
		Mail:   "new@example.com",
		Credit: 50,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	created := decode[userResponse](t, resp)
	if created.APIKey == "" {
		t.Error("expected API key on creation response")
	}
	if created.Role != "MEMBER" {
		t.Errorf("expected default MEMBER role, got %s", created.Role)
	}
	if created.Credit != 50 {
		t.Errorf("expected 50 credits, got %d", created.Credit)
	}

	// The fresh key authenticates.
	resp = s.request(t, http.MethodGet, "/v1/credits", created.APIKey, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("new key must authenticate: got %d", resp.StatusCode)
	}
	balance := decode[creditsResponse](t, resp)
	if balance.Credit != 50 {
		t.Errorf("expected 50 credits, got %d", balance.Credit)
	}

	resp = s.request(t, http.MethodGet, "/v1/admin/users", adminKey, nil)
	listed := decode[[]userResponse](t, resp)
	if len(listed) != 3 {
		t.Errorf("expected 3 identities, got %d", len(listed))
	}
	for _, u := range listed {
		if u.APIKey != "" {
			t.Error("list must not expose API keys")
		}
	}

	resp = s.request(t, http.MethodPatch, "/v1/admin/users/"+created.ID, adminKey,
		updateUserRequest{Name: "Renamed", Role: "ADMIN"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	updated := decode[userResponse](t, resp)
	if updated.Name != "Renamed" || updated.Role != "ADMIN" {
		t.Errorf("unexpected update result: %+v", updated)
	}

	resp = s.request(t, http.MethodDelete, "/v1/admin/users/"+created.ID, adminKey, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
	resp = s.request(t, http.MethodGet, "/v1/credits", created.APIKey, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("deleted identity's key must not authenticate: got %d", resp.StatusCode)
	}

	resp = s.request(t, http.MethodPost, "/v1/admin/users", adminKey, createUserRequest{Name: "No Mail"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing mail, got %d", resp.StatusCode)
	}
}

func TestAuditLogEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.addRule(t, "^ls", rules.ActionAutoAccept)

	s.request(t, http.MethodPost, "/v1/execute", memberKey, executeRequest{Command: "ls"})
	s.request(t, http.MethodPost, "/v1/execute", adminKey, executeRequest{Command: "ls"})

	resp := s.request(t, http.MethodGet, "/v1/admin/logs", adminKey, nil)
	entries := decode[[]audit.Entry](t, resp)
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	resp := s.request(t, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
