package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// executeRequest is the body of POST /v1/execute.
type executeRequest struct {
	Command string `json:"command"`
}

// executeResponse is the verdict returned by POST /v1/execute.
type executeResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	ApprovalID string `json:"approval_id,omitempty"`
}

// creditsResponse is the body of GET /v1/credits.
type creditsResponse struct {
	IdentityID string `json:"identity_id"`
	Credit     int64  `json:"credit"`
}

// createRuleRequest is the body of POST /v1/admin/rules.
type createRuleRequest struct {
	Pattern string `json:"pattern"`
	Action  string `json:"action"`
}

// ruleResponse is one rule in admin responses. Warnings carries soft
// overlap notices when the rule was created despite conflicts.
type ruleResponse struct {
	ID        string            `json:"id"`
	Pattern   string            `json:"pattern"`
	Action    string            `json:"action"`
	CreatedAt time.Time         `json:"created_at"`
	Warnings  []overlapResponse `json:"warnings,omitempty"`
}

// overlapResponse describes one soft overlap with an existing rule.
type overlapResponse struct {
	RuleID  string `json:"rule_id"`
	Pattern string `json:"pattern"`
	Action  string `json:"action"`
}

// decideApprovalRequest is the body of PATCH /v1/admin/approvals/{id}.
type decideApprovalRequest struct {
	Status string `json:"status"`
}

// createUserRequest is the body of POST /v1/admin/users.
type createUserRequest struct {
	Name   string `json:"name"`
	Mail   string `json:"mail"`
	Phone  string `json:"phone"`
	Role   string `json:"role"`
	Credit int64  `json:"credit"`
}

// updateUserRequest is the body of PATCH /v1/admin/users/{id}. Empty
// fields are left unchanged. Mail is immutable (the API key is derived
// from it); a non-empty mail is rejected. Credit is a top-up granted on
// top of the current balance, not a replacement.
type updateUserRequest struct {
	Name   string `json:"name"`
	Mail   string `json:"mail"`
	Phone  string `json:"phone"`
	Role   string `json:"role"`
	Credit int64  `json:"credit"`
}

// userResponse is one identity in admin responses. The API key is only
// included on creation.
type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Mail      string    `json:"mail"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	APIKey    string    `json:"api_key,omitempty"`
	Credit    int64     `json:"credit"`
	CreatedAt time.Time `json:"created_at"`
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes a uniform JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}
