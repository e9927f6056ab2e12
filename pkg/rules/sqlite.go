package rules

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteBackend implements Backend using SQLite. The seq column is a
// monotonically increasing rowid that preserves creation order across
// restarts. The *sql.DB is injected so the rule store can share a
// database file with the other engine stores.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend creates a SQLite-backed rule backend and initializes
// its schema.
func NewSQLiteBackend(db *sql.DB) (*SQLiteBackend, error) {
	b := &SQLiteBackend{db: db}
	if err := b.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize rules schema: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rules (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		pattern TEXT NOT NULL,
		action TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	_, err := b.db.Exec(schema)
	return err
}

// Insert appends a rule to the stored list.
func (b *SQLiteBackend) Insert(ctx context.Context, rule *Rule) error {
	if rule == nil {
		return fmt.Errorf("rule cannot be nil")
	}

	_, err := b.db.ExecContext(ctx, `
		INSERT INTO rules (id, pattern, action, created_at)
		VALUES (?, ?, ?, ?)`,
		rule.ID, rule.Pattern, rule.Action, rule.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

// Delete removes a rule by ID.
func (b *SQLiteBackend) Delete(ctx context.Context, id string) error {
	result, err := b.db.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return nil
}

// List returns all rules in creation order.
func (b *SQLiteBackend) List(ctx context.Context) ([]Rule, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT id, pattern, action, created_at FROM rules ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var rule Rule
		var createdAt int64
		if err := rows.Scan(&rule.ID, &rule.Pattern, &rule.Action, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rule.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return out, nil
}
