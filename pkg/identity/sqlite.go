package identity

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteRegistry implements Registry using SQLite for persistence. The
// *sql.DB is injected so the registry, credit ledger, rule store, and
// approval queue can share one database file.
//
// The identities table carries the credit column; the credit ledger
// performs its conditional decrement against the same table.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry creates a SQLite-backed identity registry and
// initializes its schema.
func NewSQLiteRegistry(db *sql.DB) (*SQLiteRegistry, error) {
	r := &SQLiteRegistry{db: db}
	if err := r.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize identity schema: %w", err)
	}
	return r, nil
}

func (r *SQLiteRegistry) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS identities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		mail TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		api_key TEXT NOT NULL UNIQUE,
		credit INTEGER NOT NULL DEFAULT 0 CHECK (credit >= 0),
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_identities_role ON identities(role);
	`
	_, err := r.db.Exec(schema)
	return err
}

const identityColumns = "id, name, mail, phone, role, api_key, credit, created_at"

func scanIdentity(row interface{ Scan(...any) error }) (*Identity, error) {
	var ident Identity
	var createdAt int64
	err := row.Scan(&ident.ID, &ident.Name, &ident.Mail, &ident.Phone,
		&ident.Role, &ident.APIKey, &ident.Credit, &createdAt)
	if err != nil {
		return nil, err
	}
	ident.CreatedAt = time.Unix(createdAt, 0)
	return &ident, nil
}

// ResolveByToken returns the identity owning the API key.
func (r *SQLiteRegistry) ResolveByToken(ctx context.Context, token string) (*Identity, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+identityColumns+" FROM identities WHERE api_key = ?", token)
	ident, err := scanIdentity(row)
	if err == sql.ErrNoRows {
		return nil, ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}
	return ident, nil
}

// Get returns the identity by ID.
func (r *SQLiteRegistry) Get(ctx context.Context, id string) (*Identity, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+identityColumns+" FROM identities WHERE id = ?", id)
	ident, err := scanIdentity(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrIdentityNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	return ident, nil
}

// Create registers a new identity.
func (r *SQLiteRegistry) Create(ctx context.Context, ident *Identity) error {
	if ident.ID == "" {
		return fmt.Errorf("identity ID cannot be empty")
	}
	if !ident.Role.Valid() {
		return fmt.Errorf("invalid role %q", ident.Role)
	}
	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (id, name, mail, phone, role, api_key, credit, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ident.ID, ident.Name, ident.Mail, ident.Phone, ident.Role,
		ident.APIKey, ident.Credit, ident.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}
	return nil
}

// Update replaces the mutable fields of an existing identity.
func (r *SQLiteRegistry) Update(ctx context.Context, ident *Identity) error {
	if ident.Role != "" && !ident.Role.Valid() {
		return fmt.Errorf("invalid role %q", ident.Role)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE identities SET
			name = COALESCE(NULLIF(?, ''), name),
			phone = COALESCE(NULLIF(?, ''), phone),
			role = COALESCE(NULLIF(?, ''), role)
		WHERE id = ?`,
		ident.Name, ident.Phone, string(ident.Role), ident.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrIdentityNotFound, ident.ID)
	}
	return nil
}

// Delete removes an identity.
func (r *SQLiteRegistry) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM identities WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrIdentityNotFound, id)
	}
	return nil
}

// List returns all identities ordered by creation time.
func (r *SQLiteRegistry) List(ctx context.Context) ([]*Identity, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+identityColumns+" FROM identities ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	defer rows.Close()

	var idents []*Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		idents = append(idents, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating identities: %w", err)
	}
	return idents, nil
}

// ListAdmins returns the contact projection of all ADMIN identities.
func (r *SQLiteRegistry) ListAdmins(ctx context.Context) ([]Admin, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT mail, name FROM identities WHERE role = ?", RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	var admins []Admin
	for rows.Next() {
		var a Admin
		if err := rows.Scan(&a.Mail, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		admins = append(admins, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating admins: %w", err)
	}
	return admins, nil
}
