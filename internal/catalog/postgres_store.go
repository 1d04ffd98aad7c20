package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/patissio/patissio/internal/tenant"
)

// PostgresStore persists the catalogue in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

const (
	categoryColumns = `id, patissier_id, name, slug, position, created_at`
	creationColumns = `id, patissier_id, COALESCE(category_id, ''), title, description, image_url,
		is_featured, position, created_at, updated_at`
	productColumns = `id, patissier_id, COALESCE(category_id, ''), name, description, price_cents,
		image_url, is_available, position, created_at, updated_at`
)

func scanCategory(row scanner) (*Category, error) {
	c := &Category{}
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Slug, &c.Position, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	return c, err
}

func scanCreation(row scanner) (*Creation, error) {
	c := &Creation{}
	err := row.Scan(&c.ID, &c.TenantID, &c.CategoryID, &c.Title, &c.Description, &c.ImageURL,
		&c.IsFeatured, &c.Position, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCreationNotFound
	}
	return c, err
}

func scanProduct(row scanner) (*Product, error) {
	p := &Product{}
	err := row.Scan(&p.ID, &p.TenantID, &p.CategoryID, &p.Name, &p.Description, &p.PriceCents,
		&p.ImageURL, &p.IsAvailable, &p.Position, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	return p, err
}

// nullable stores an empty category reference as NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func collect[T any](rows *sql.Rows, err error, scan func(scanner) (T, error)) ([]T, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// --- categories ---

func (p *PostgresStore) CreateCategory(ctx context.Context, scope tenant.Scope, c *Category) error {
	c.TenantID = scope.ID()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.TenantID, c.Name, c.Slug, c.Position, c.CreatedAt)
	return err
}

func (p *PostgresStore) GetCategory(ctx context.Context, scope tenant.Scope, id string) (*Category, error) {
	return scanCategory(p.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1 AND patissier_id = $2`, id, scope.ID()))
}

func (p *PostgresStore) ListCategories(ctx context.Context, scope tenant.Scope) ([]*Category, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE patissier_id = $1 ORDER BY position, created_at`, scope.ID())
	return collect(rows, err, scanCategory)
}

func (p *PostgresStore) UpdateCategory(ctx context.Context, scope tenant.Scope, c *Category) error {
	return expectOne(p.db.ExecContext(ctx, `
		UPDATE categories SET name = $1, slug = $2, position = $3
		WHERE id = $4 AND patissier_id = $5`,
		c.Name, c.Slug, c.Position, c.ID, scope.ID()))(ErrCategoryNotFound)
}

// DeleteCategory relies on ON DELETE SET NULL to detach products and creations.
func (p *PostgresStore) DeleteCategory(ctx context.Context, scope tenant.Scope, id string) error {
	return expectOne(p.db.ExecContext(ctx,
		`DELETE FROM categories WHERE id = $1 AND patissier_id = $2`, id, scope.ID()))(ErrCategoryNotFound)
}

// --- creations ---

func (p *PostgresStore) CreateCreation(ctx context.Context, scope tenant.Scope, c *Creation) error {
	c.TenantID = scope.ID()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO creations (id, patissier_id, category_id, title, description, image_url,
			is_featured, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.TenantID, nullable(c.CategoryID), c.Title, c.Description, c.ImageURL,
		c.IsFeatured, c.Position, c.CreatedAt, c.UpdatedAt)
	return err
}

func (p *PostgresStore) GetCreation(ctx context.Context, scope tenant.Scope, id string) (*Creation, error) {
	return scanCreation(p.db.QueryRowContext(ctx,
		`SELECT `+creationColumns+` FROM creations WHERE id = $1 AND patissier_id = $2`, id, scope.ID()))
}

func (p *PostgresStore) ListCreations(ctx context.Context, scope tenant.Scope) ([]*Creation, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+creationColumns+` FROM creations WHERE patissier_id = $1 ORDER BY position, created_at`, scope.ID())
	return collect(rows, err, scanCreation)
}

func (p *PostgresStore) UpdateCreation(ctx context.Context, scope tenant.Scope, c *Creation) error {
	c.UpdatedAt = time.Now().UTC()
	return expectOne(p.db.ExecContext(ctx, `
		UPDATE creations SET category_id = $1, title = $2, description = $3, image_url = $4,
			is_featured = $5, position = $6, updated_at = $7
		WHERE id = $8 AND patissier_id = $9`,
		nullable(c.CategoryID), c.Title, c.Description, c.ImageURL,
		c.IsFeatured, c.Position, c.UpdatedAt, c.ID, scope.ID()))(ErrCreationNotFound)
}

func (p *PostgresStore) DeleteCreation(ctx context.Context, scope tenant.Scope, id string) error {
	return expectOne(p.db.ExecContext(ctx,
		`DELETE FROM creations WHERE id = $1 AND patissier_id = $2`, id, scope.ID()))(ErrCreationNotFound)
}

// --- products ---

func (p *PostgresStore) CreateProduct(ctx context.Context, scope tenant.Scope, pr *Product) error {
	pr.TenantID = scope.ID()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO products (id, patissier_id, category_id, name, description, price_cents,
			image_url, is_available, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		pr.ID, pr.TenantID, nullable(pr.CategoryID), pr.Name, pr.Description, pr.PriceCents,
		pr.ImageURL, pr.IsAvailable, pr.Position, pr.CreatedAt, pr.UpdatedAt)
	return err
}

func (p *PostgresStore) GetProduct(ctx context.Context, scope tenant.Scope, id string) (*Product, error) {
	return scanProduct(p.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND patissier_id = $2`, id, scope.ID()))
}

func (p *PostgresStore) ListProducts(ctx context.Context, scope tenant.Scope, availableOnly bool) ([]*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE patissier_id = $1`
	if availableOnly {
		query += ` AND is_available`
	}
	rows, err := p.db.QueryContext(ctx, query+` ORDER BY position, created_at`, scope.ID())
	return collect(rows, err, scanProduct)
}

func (p *PostgresStore) GetProducts(ctx context.Context, scope tenant.Scope, ids []string) (map[string]*Product, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE patissier_id = $1 AND id = ANY($2)`,
		scope.ID(), pq.Array(ids))
	list, err := collect(rows, err, scanProduct)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Product, len(list))
	for _, pr := range list {
		out[pr.ID] = pr
	}
	return out, nil
}

func (p *PostgresStore) UpdateProduct(ctx context.Context, scope tenant.Scope, pr *Product) error {
	pr.UpdatedAt = time.Now().UTC()
	return expectOne(p.db.ExecContext(ctx, `
		UPDATE products SET category_id = $1, name = $2, description = $3, price_cents = $4,
			image_url = $5, is_available = $6, position = $7, updated_at = $8
		WHERE id = $9 AND patissier_id = $10`,
		nullable(pr.CategoryID), pr.Name, pr.Description, pr.PriceCents,
		pr.ImageURL, pr.IsAvailable, pr.Position, pr.UpdatedAt, pr.ID, scope.ID()))(ErrProductNotFound)
}

func (p *PostgresStore) DeleteProduct(ctx context.Context, scope tenant.Scope, id string) error {
	return expectOne(p.db.ExecContext(ctx,
		`DELETE FROM products WHERE id = $1 AND patissier_id = $2`, id, scope.ID()))(ErrProductNotFound)
}

func (p *PostgresStore) CountProducts(ctx context.Context, scope tenant.Scope) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE patissier_id = $1`, scope.ID()).Scan(&n)
	return n, err
}

// ReorderProducts applies all positions in one transaction; an id that is not
// the tenant's rolls the whole reorder back.
func (p *PostgresStore) ReorderProducts(ctx context.Context, scope tenant.Scope, ids []string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for i, id := range ids {
		if err := expectOne(tx.ExecContext(ctx,
			`UPDATE products SET position = $1 WHERE id = $2 AND patissier_id = $3`,
			i, id, scope.ID()))(ErrProductNotFound); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// expectOne turns an Exec result into notFound when no row matched.
func expectOne(res sql.Result, err error) func(notFound error) error {
	return func(notFound error) error {
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound
		}
		return nil
	}
}
