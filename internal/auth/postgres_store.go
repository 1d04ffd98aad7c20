package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// PostgresStore persists users in PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed user store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create stores a new user
func (p *PostgresStore) Create(ctx context.Context, u *User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, NormalizeEmail(u.Email), u.PasswordHash, u.Name, string(u.Role), u.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}

// GetByID retrieves a user by ID
func (p *PostgresStore) GetByID(ctx context.Context, id string) (*User, error) {
	return scanUser(p.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, name, role, created_at
		FROM users WHERE id = $1`, id))
}

// GetByEmail retrieves a user by normalized email
func (p *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(p.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, name, role, created_at
		FROM users WHERE email = $1`, NormalizeEmail(email)))
}

// UpdatePassword replaces a user's password hash
func (p *PostgresStore) UpdatePassword(ctx context.Context, id, hash string) error {
	result, err := p.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	u := &User{}
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return u, nil
}

var _ Store = (*PostgresStore)(nil)
