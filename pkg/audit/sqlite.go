package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig contains configuration for the SQLite audit log.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// SQLiteLog implements Log using SQLite. The audit log keeps its own
// database file, separate from the engine stores, so pruning and history
// queries never contend with evaluation writes.
type SQLiteLog struct {
	db *sql.DB
}

// NewSQLiteLog creates a SQLite-backed audit log, opening the database
// in WAL mode and initializing its schema.
func NewSQLiteLog(cfg SQLiteConfig) (*SQLiteLog, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	l := &SQLiteLog{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	return l, nil
}

func (l *SQLiteLog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		identity_id TEXT NOT NULL,
		command TEXT NOT NULL,
		outcome TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_identity ON audit_log(identity_id);
	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Append records one evaluation outcome.
func (l *SQLiteLog) Append(ctx context.Context, identityID, command string, outcome Outcome) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, identity_id, command, outcome, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), identityID, command, outcome, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// HistoryFor returns the entries for an identity, most recent first.
func (l *SQLiteLog) HistoryFor(ctx context.Context, identityID string) ([]Entry, error) {
	return l.query(ctx, `
		SELECT id, identity_id, command, outcome, timestamp
		FROM audit_log WHERE identity_id = ? ORDER BY seq DESC`, identityID)
}

// All returns every entry, most recent first.
func (l *SQLiteLog) All(ctx context.Context) ([]Entry, error) {
	return l.query(ctx, `
		SELECT id, identity_id, command, outcome, timestamp
		FROM audit_log ORDER BY seq DESC`)
}

func (l *SQLiteLog) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var entry Entry
		var ts int64
		if err := rows.Scan(&entry.ID, &entry.IdentityID, &entry.Command, &entry.Outcome, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Timestamp = time.Unix(ts, 0)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return out, nil
}

// Prune deletes entries older than the cutoff.
func (l *SQLiteLog) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := l.db.ExecContext(ctx,
		"DELETE FROM audit_log WHERE timestamp < ?", olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit log: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(deleted), nil
}

// Close closes the underlying database.
func (l *SQLiteLog) Close() error {
	_, _ = l.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return l.db.Close()
}
