package approval

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLiteQueue implements Queue using SQLite. The *sql.DB is injected so
// the queue can share a database file with the other engine stores.
type SQLiteQueue struct {
	db *sql.DB
}

// NewSQLiteQueue creates a SQLite-backed approval queue and initializes
// its schema.
func NewSQLiteQueue(db *sql.DB) (*SQLiteQueue, error) {
	q := &SQLiteQueue{db: db}
	if err := q.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize approvals schema: %w", err)
	}
	return q, nil
}

func (q *SQLiteQueue) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS approvals (
		id TEXT PRIMARY KEY,
		identity_id TEXT NOT NULL,
		command TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_approvals_status ON approvals(status);
	`
	_, err := q.db.Exec(schema)
	return err
}

// Create enqueues a PENDING request for the command.
func (q *SQLiteQueue) Create(ctx context.Context, identityID, command string) (*Request, error) {
	if identityID == "" {
		return nil, fmt.Errorf("identity ID cannot be empty")
	}

	req := &Request{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		Command:    command,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO approvals (id, identity_id, command, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		req.ID, req.IdentityID, req.Command, req.Status, req.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create approval request: %w", err)
	}
	return req, nil
}

// UpdateStatus records an administrator decision.
func (q *SQLiteQueue) UpdateStatus(ctx context.Context, id string, status Status) error {
	if err := validateDecision(status); err != nil {
		return err
	}

	result, err := q.db.ExecContext(ctx,
		"UPDATE approvals SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update approval request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	return nil
}

// Get returns a request by ID.
func (q *SQLiteQueue) Get(ctx context.Context, id string) (*Request, error) {
	var req Request
	var createdAt int64
	err := q.db.QueryRowContext(ctx, `
		SELECT id, identity_id, command, status, created_at
		FROM approvals WHERE id = ?`, id).
		Scan(&req.ID, &req.IdentityID, &req.Command, &req.Status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load approval request: %w", err)
	}
	req.CreatedAt = time.Unix(0, createdAt)
	return &req, nil
}

// List returns all requests, most recent first.
func (q *SQLiteQueue) List(ctx context.Context) ([]*Request, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, identity_id, command, status, created_at
		FROM approvals ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval requests: %w", err)
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		var req Request
		var createdAt int64
		if err := rows.Scan(&req.ID, &req.IdentityID, &req.Command, &req.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval request: %w", err)
		}
		req.CreatedAt = time.Unix(0, createdAt)
		out = append(out, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approval requests: %w", err)
	}
	return out, nil
}

// Delete removes a request.
func (q *SQLiteQueue) Delete(ctx context.Context, id string) error {
	result, err := q.db.ExecContext(ctx, "DELETE FROM approvals WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete approval request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	return nil
}
