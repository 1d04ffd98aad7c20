package notification

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/patissio/patissio/internal/pagination"
	"github.com/patissio/patissio/internal/tenant"
)

// PostgresStore persists notifications in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, n *Notification) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO notifications (id, patissier_id, type, title, body, link, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.TenantID, string(n.Type), n.Title, n.Body, n.Link, n.Read, n.CreatedAt,
	)
	return err
}

// List walks (read, created_at DESC, id DESC); read=false sorts first.
func (p *PostgresStore) List(ctx context.Context, scope tenant.Scope, after *pagination.Cursor, limit int) ([]*Notification, error) {
	query := `SELECT id, patissier_id, type, title, body, link, read, created_at
		FROM notifications WHERE patissier_id = $1`
	args := []any{scope.ID()}
	if after != nil {
		query += ` AND (read::int > $2
			OR (read::int = $2 AND (created_at < $3 OR (created_at = $3 AND id < $4))))`
		args = append(args, after.Rank, after.CreatedAt, after.ID)
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY read ASC, created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n := &Notification{}
		var kind string
		if err := rows.Scan(&n.ID, &n.TenantID, &kind, &n.Title, &n.Body, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = Type(kind)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (p *PostgresStore) MarkRead(ctx context.Context, scope tenant.Scope, id string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND patissier_id = $2`, id, scope.ID())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (p *PostgresStore) MarkAllRead(ctx context.Context, scope tenant.Scope) (int, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE patissier_id = $1 AND read = FALSE`, scope.ID())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (p *PostgresStore) CountUnread(ctx context.Context, scope tenant.Scope) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE patissier_id = $1 AND read = FALSE`, scope.ID()).Scan(&n)
	return n, err
}
