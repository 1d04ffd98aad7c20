package billing

import (
	"context"
	"database/sql"
	"errors"

	"github.com/patissio/patissio/internal/tenant"
)

// PostgresStore persists subscriptions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const subscriptionColumns = `id, user_id, patissier_id, stripe_customer_id, COALESCE(stripe_subscription_id, ''),
	plan, interval, status, current_period_end, created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (*Subscription, error) {
	s := &Subscription{}
	var plan, interval string
	var periodEnd sql.NullTime
	err := row.Scan(&s.ID, &s.UserID, &s.TenantID, &s.StripeCustomerID, &s.StripeSubscriptionID,
		&plan, &interval, &s.Status, &periodEnd, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Plan = tenant.Plan(plan)
	s.Interval = Interval(interval)
	if periodEnd.Valid {
		t := periodEnd.Time.UTC()
		s.CurrentPeriodEnd = &t
	}
	return s, nil
}

// Upsert keys on user_id; the row id and created_at of an existing row win.
func (p *PostgresStore) Upsert(ctx context.Context, s *Subscription) error {
	var periodEnd sql.NullTime
	if s.CurrentPeriodEnd != nil {
		periodEnd = sql.NullTime{Time: *s.CurrentPeriodEnd, Valid: true}
	}
	var stripeID sql.NullString
	if s.StripeSubscriptionID != "" {
		stripeID = sql.NullString{String: s.StripeSubscriptionID, Valid: true}
	}
	return p.db.QueryRowContext(ctx, `
		INSERT INTO subscriptions (id, user_id, patissier_id, stripe_customer_id, stripe_subscription_id,
			plan, interval, status, current_period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			patissier_id = EXCLUDED.patissier_id,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			plan = EXCLUDED.plan,
			interval = EXCLUDED.interval,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`,
		s.ID, s.UserID, s.TenantID, s.StripeCustomerID, stripeID,
		string(s.Plan), string(s.Interval), s.Status, periodEnd, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID, &s.CreatedAt)
}

func (p *PostgresStore) GetByUserID(ctx context.Context, userID string) (*Subscription, error) {
	return scanSubscription(p.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID))
}

func (p *PostgresStore) GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*Subscription, error) {
	return scanSubscription(p.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = $1`, stripeSubscriptionID))
}
