package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists tenants in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed tenant store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const profileColumns = `id, user_id, business_name, slug, description, phone, address, city,
	logo_url, cover_url, instagram_handle, primary_color, secondary_color, font_family, theme,
	plan, custom_domain, custom_domain_verified, orders_enabled, workshops_enabled,
	support_access_enabled, deposit_percent, stripe_account_id, stripe_charges_enabled,
	stripe_payouts_enabled, stripe_details_submitted, status, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, t *Tenant) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO patissier_profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, NULLIF($17, ''), $18, $19, $20, $21, $22, NULLIF($23, ''), $24, $25, $26, $27, $28, $29)`,
		t.ID, t.UserID, t.BusinessName, t.Slug, t.Description, t.Phone, t.Address, t.City,
		t.LogoURL, t.CoverURL, t.InstagramHandle,
		t.Design.PrimaryColor, t.Design.SecondaryColor, t.Design.FontFamily, t.Design.Theme,
		string(t.Plan), t.CustomDomain, t.CustomDomainVerified, t.OrdersEnabled, t.WorkshopsEnabled,
		t.SupportAccessEnabled, t.DepositPercent, t.Stripe.AccountID, t.Stripe.ChargesEnabled,
		t.Stripe.PayoutsEnabled, t.Stripe.DetailsSubmitted, string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	return mapUniqueViolation(err)
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM patissier_profiles WHERE id = $1`, id))
}

func (p *PostgresStore) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM patissier_profiles WHERE slug = $1`, slug))
}

func (p *PostgresStore) GetByUserID(ctx context.Context, userID string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM patissier_profiles WHERE user_id = $1`, userID))
}

func (p *PostgresStore) GetByCustomDomain(ctx context.Context, domain string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM patissier_profiles WHERE custom_domain = $1`, strings.ToLower(domain)))
}

func (p *PostgresStore) GetByStripeAccount(ctx context.Context, accountID string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM patissier_profiles WHERE stripe_account_id = $1`, accountID))
}

func (p *PostgresStore) Update(ctx context.Context, t *Tenant) error {
	t.UpdatedAt = time.Now().UTC()
	result, err := p.db.ExecContext(ctx, `
		UPDATE patissier_profiles SET
			business_name = $1, slug = $2, description = $3, phone = $4, address = $5, city = $6,
			logo_url = $7, cover_url = $8, instagram_handle = $9,
			primary_color = $10, secondary_color = $11, font_family = $12, theme = $13,
			plan = $14, custom_domain = NULLIF($15, ''), custom_domain_verified = $16,
			orders_enabled = $17, workshops_enabled = $18, support_access_enabled = $19,
			deposit_percent = $20, stripe_account_id = NULLIF($21, ''), stripe_charges_enabled = $22,
			stripe_payouts_enabled = $23, stripe_details_submitted = $24, status = $25, updated_at = $26
		WHERE id = $27`,
		t.BusinessName, t.Slug, t.Description, t.Phone, t.Address, t.City,
		t.LogoURL, t.CoverURL, t.InstagramHandle,
		t.Design.PrimaryColor, t.Design.SecondaryColor, t.Design.FontFamily, t.Design.Theme,
		string(t.Plan), t.CustomDomain, t.CustomDomainVerified,
		t.OrdersEnabled, t.WorkshopsEnabled, t.SupportAccessEnabled,
		t.DepositPercent, t.Stripe.AccountID, t.Stripe.ChargesEnabled,
		t.Stripe.PayoutsEnabled, t.Stripe.DetailsSubmitted, string(t.Status), t.UpdatedAt,
		t.ID,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, f ListFilter) ([]*Tenant, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + profileColumns + ` FROM patissier_profiles WHERE 1=1`
	args := []any{}
	if f.Query != "" {
		args = append(args, "%"+strings.ToLower(f.Query)+"%")
		query += fmt.Sprintf(" AND (LOWER(business_name) LIKE $%d OR slug LIKE $%d)", len(args), len(args))
	}
	if f.Plan != "" {
		args = append(args, string(f.Plan))
		query += fmt.Sprintf(" AND plan = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []*Tenant{}
	for rows.Next() {
		t, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CountByPlan(ctx context.Context) (map[Plan]int, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT plan, COUNT(*) FROM patissier_profiles GROUP BY plan`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[Plan]int, len(Plans))
	for rows.Next() {
		var plan string
		var n int
		if err := rows.Scan(&plan, &n); err != nil {
			return nil, err
		}
		counts[Plan(plan)] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (p *PostgresStore) scanTenant(row *sql.Row) (*Tenant, error) {
	t, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	return t, err
}

func scanRow(row scanner) (*Tenant, error) {
	t := &Tenant{}
	var (
		plan, status string
		domain, acct sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.BusinessName, &t.Slug, &t.Description, &t.Phone,
		&t.Address, &t.City, &t.LogoURL, &t.CoverURL, &t.InstagramHandle,
		&t.Design.PrimaryColor, &t.Design.SecondaryColor, &t.Design.FontFamily, &t.Design.Theme,
		&plan, &domain, &t.CustomDomainVerified, &t.OrdersEnabled, &t.WorkshopsEnabled,
		&t.SupportAccessEnabled, &t.DepositPercent, &acct, &t.Stripe.ChargesEnabled,
		&t.Stripe.PayoutsEnabled, &t.Stripe.DetailsSubmitted, &status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Plan = Plan(plan)
	t.Status = Status(status)
	t.CustomDomain = domain.String
	t.Stripe.AccountID = acct.String
	return t, nil
}

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		if strings.Contains(pqErr.Constraint, "custom_domain") {
			return ErrDomainTaken
		}
		return ErrSlugTaken
	}
	return err
}

var _ Store = (*PostgresStore)(nil)
