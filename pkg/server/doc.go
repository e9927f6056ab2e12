// Package server provides the HTTP API for the command authorization
// engine.
//
// # Routes
//
// Caller routes authenticate with the X-API-Key header:
//
//	POST /v1/execute    evaluate a command
//	GET  /v1/credits    current credit balance
//	GET  /v1/history    audit history for the caller
//
// Admin routes additionally require the ADMIN role:
//
//	POST   /v1/admin/rules
//	GET    /v1/admin/rules
//	DELETE /v1/admin/rules/{id}
//	GET    /v1/admin/approvals
//	PATCH  /v1/admin/approvals/{id}
//	DELETE /v1/admin/approvals/{id}
//	GET    /v1/admin/logs
//	POST   /v1/admin/users
//	GET    /v1/admin/users
//	PATCH  /v1/admin/users/{id}
//	DELETE /v1/admin/users/{id}
//
// Unauthenticated operational routes:
//
//	GET /healthz
//	GET /metrics
package server
