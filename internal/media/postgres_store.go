package media

import (
	"context"
	"database/sql"
	"errors"

	"github.com/patissio/patissio/internal/tenant"
)

// PostgresStore persists image metadata in the images table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const imageColumns = `id, patissier_id, kind, url, storage_key, content_type, size_bytes, created_at`

func scanImage(row interface{ Scan(...any) error }) (*Image, error) {
	img := &Image{}
	var kind string
	err := row.Scan(&img.ID, &img.TenantID, &kind, &img.URL, &img.StorageKey, &img.ContentType, &img.SizeBytes, &img.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrImageNotFound
	}
	img.Kind = Kind(kind)
	return img, err
}

func (p *PostgresStore) Create(ctx context.Context, img *Image) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO images (`+imageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		img.ID, img.TenantID, string(img.Kind), img.URL, img.StorageKey, img.ContentType, img.SizeBytes, img.CreatedAt)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, scope tenant.Scope, id string) (*Image, error) {
	return scanImage(p.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE patissier_id = $1 AND id = $2`, scope.ID(), id))
}

func (p *PostgresStore) List(ctx context.Context, scope tenant.Scope, kind Kind) ([]*Image, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+imageColumns+` FROM images
		WHERE patissier_id = $1 AND ($2::text = '' OR kind = $2)
		ORDER BY created_at DESC, id DESC`, scope.ID(), string(kind))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []*Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Delete(ctx context.Context, scope tenant.Scope, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM images WHERE patissier_id = $1 AND id = $2`, scope.ID(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrImageNotFound
	}
	return nil
}
