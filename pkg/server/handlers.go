package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nithins313/unbound2/pkg/approval"
	"github.com/nithins313/unbound2/pkg/credits"
	"github.com/nithins313/unbound2/pkg/identity"
	"github.com/nithins313/unbound2/pkg/rules"
)

// handleExecute evaluates one command for the authenticated identity.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeError(w, http.StatusBadRequest, "missing_command", "command is required")
		return
	}

	verdict, err := s.deps.Evaluator.Execute(r.Context(), req.Command, ident.ID)
	if err != nil {
		var insufficient *credits.InsufficientCreditError
		switch {
		case errors.As(err, &insufficient):
			writeError(w, http.StatusPaymentRequired, "insufficient_credit", insufficient.Error())
		case errors.Is(err, identity.ErrIdentityNotFound):
			writeError(w, http.StatusNotFound, "identity_not_found", "identity not found")
		default:
			s.logger.Error("evaluation failed",
				"identity_id", ident.ID,
				"request_id", requestIDFrom(r.Context()),
				"error", err,
			)
			writeError(w, http.StatusInternalServerError, "internal_error", "evaluation failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, executeResponse{
		Status:     string(verdict.Status),
		Message:    verdict.Message,
		ApprovalID: verdict.ApprovalID,
	})
}

// handleCredits returns the caller's current balance.
func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())

	balance, err := s.deps.Ledger.Balance(r.Context(), ident.ID)
	if err != nil && !errors.Is(err, identity.ErrIdentityNotFound) {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read balance")
		return
	}
	writeJSON(w, http.StatusOK, creditsResponse{IdentityID: ident.ID, Credit: balance})
}

// handleHistory returns the caller's audit history, most recent first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())

	entries, err := s.deps.Audit.HistoryFor(r.Context(), ident.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read history")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleCreateRule creates a rule. Soft overlaps do not block creation;
// they are surfaced as warnings on the response.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}

	rule, report, err := s.deps.Rules.Create(r.Context(), req.Pattern, rules.Action(req.Action))
	if err != nil {
		var validation *rules.ValidationError
		var duplicate *rules.DuplicateRuleError
		var conflict *rules.ConflictingRuleError
		switch {
		case errors.As(err, &validation):
			writeError(w, http.StatusBadRequest, "invalid_rule", validation.Error())
		case errors.As(err, &duplicate):
			writeError(w, http.StatusConflict, "duplicate_rule", duplicate.Error())
		case errors.As(err, &conflict):
			writeError(w, http.StatusConflict, "conflicting_rule", conflict.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to create rule")
		}
		return
	}

	resp := ruleResponse{
		ID:        rule.ID,
		Pattern:   rule.Pattern,
		Action:    string(rule.Action),
		CreatedAt: rule.CreatedAt,
	}
	if report != nil && report.Kind == rules.ReportSoftOverlap {
		for _, o := range report.Overlaps {
			resp.Warnings = append(resp.Warnings, overlapResponse{
				RuleID:  o.RuleID,
				Pattern: o.Pattern,
				Action:  string(o.Action),
			})
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleListRules returns all rules in evaluation order.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	stored := s.deps.Rules.List(r.Context())
	out := make([]ruleResponse, 0, len(stored))
	for _, rule := range stored {
		out = append(out, ruleResponse{
			ID:        rule.ID,
			Pattern:   rule.Pattern,
			Action:    string(rule.Action),
			CreatedAt: rule.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDeleteRule removes a rule by ID.
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Rules.Delete(r.Context(), id); err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "rule_not_found", "rule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListApprovals returns all approval requests, most recent first.
func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.deps.Approvals.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list approvals")
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

// handleDecideApproval records an administrator decision on a pending
// request. Approving never re-executes the original command.
func (s *Server) handleDecideApproval(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req decideApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}

	status := approval.Status(strings.ToUpper(req.Status))
	if !status.Decided() {
		writeError(w, http.StatusBadRequest, "invalid_status", "status must be APPROVED or REJECTED")
		return
	}

	if err := s.deps.Approvals.UpdateStatus(r.Context(), id, status); err != nil {
		if errors.Is(err, approval.ErrRequestNotFound) {
			writeError(w, http.StatusNotFound, "approval_not_found", "approval request not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update approval")
		return
	}

	updated, err := s.deps.Approvals.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read approval")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteApproval removes an approval request from the queue.
func (s *Server) handleDeleteApproval(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Approvals.Delete(r.Context(), id); err != nil {
		if errors.Is(err, approval.ErrRequestNotFound) {
			writeError(w, http.StatusNotFound, "approval_not_found", "approval request not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete approval")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListLogs returns the full audit log, most recent first.
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Audit.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read audit log")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleCreateUser registers an identity and opens its credit account.
// The derived API key is returned once, on this response only.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}
	if strings.TrimSpace(req.Mail) == "" {
		writeError(w, http.StatusBadRequest, "missing_mail", "mail is required")
		return
	}
	if req.Credit < 0 {
		writeError(w, http.StatusBadRequest, "invalid_credit", "credit cannot be negative")
		return
	}

	role := identity.Role(req.Role)
	if req.Role == "" {
		role = identity.RoleMember
	}
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_role", "role must be ADMIN or MEMBER")
		return
	}

	ident := &identity.Identity{
		ID:     uuid.NewString(),
		Name:   req.Name,
		Mail:   req.Mail,
		Phone:  req.Phone,
		Role:   role,
		APIKey: identity.NewAPIKey(s.apiSecret, req.Mail),
	}
	if err := s.deps.Identities.Create(r.Context(), ident); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create identity")
		return
	}
	if req.Credit > 0 {
		if err := s.deps.Ledger.Grant(r.Context(), ident.ID, req.Credit); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to open credit account")
			return
		}
	}

	writeJSON(w, http.StatusCreated, userResponse{
		ID:        ident.ID,
		Name:      ident.Name,
		Mail:      ident.Mail,
		Phone:     ident.Phone,
		Role:      string(ident.Role),
		APIKey:    ident.APIKey,
		Credit:    req.Credit,
		CreatedAt: ident.CreatedAt,
	})
}

// handleListUsers returns all identities without their API keys.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	idents, err := s.deps.Identities.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list identities")
		return
	}

	out := make([]userResponse, 0, len(idents))
	for _, ident := range idents {
		balance, err := s.deps.Ledger.Balance(r.Context(), ident.ID)
		if err != nil && !errors.Is(err, identity.ErrIdentityNotFound) {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to read balance")
			return
		}
		out = append(out, userResponse{
			ID:        ident.ID,
			Name:      ident.Name,
			Mail:      ident.Mail,
			Phone:     ident.Phone,
			Role:      string(ident.Role),
			Credit:    balance,
			CreatedAt: ident.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleUpdateUser updates the mutable fields of an identity and
// optionally tops up its credit balance.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}
	if req.Mail != "" {
		writeError(w, http.StatusBadRequest, "immutable_mail", "mail cannot be changed")
		return
	}
	if req.Role != "" && !identity.Role(req.Role).Valid() {
		writeError(w, http.StatusBadRequest, "invalid_role", "role must be ADMIN or MEMBER")
		return
	}
	if req.Credit < 0 {
		writeError(w, http.StatusBadRequest, "invalid_credit", "credit cannot be negative")
		return
	}

	err := s.deps.Identities.Update(r.Context(), &identity.Identity{
		ID:    id,
		Name:  req.Name,
		Phone: req.Phone,
		Role:  identity.Role(req.Role),
	})
	if err != nil {
		if errors.Is(err, identity.ErrIdentityNotFound) {
			writeError(w, http.StatusNotFound, "identity_not_found", "identity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update identity")
		return
	}

	if req.Credit > 0 {
		if err := s.deps.Ledger.Grant(r.Context(), id, req.Credit); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to grant credit")
			return
		}
	}

	updated, err := s.deps.Identities.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read identity")
		return
	}
	balance, err := s.deps.Ledger.Balance(r.Context(), id)
	if err != nil && !errors.Is(err, identity.ErrIdentityNotFound) {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read balance")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		ID:        updated.ID,
		Name:      updated.Name,
		Mail:      updated.Mail,
		Phone:     updated.Phone,
		Role:      string(updated.Role),
		Credit:    balance,
		CreatedAt: updated.CreatedAt,
	})
}

// handleDeleteUser removes an identity.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Identities.Delete(r.Context(), id); err != nil {
		if errors.Is(err, identity.ErrIdentityNotFound) {
			writeError(w, http.StatusNotFound, "identity_not_found", "identity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete identity")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealthz reports process liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
