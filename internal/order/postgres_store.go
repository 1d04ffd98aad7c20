package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/patissio/patissio/internal/pagination"
	"github.com/patissio/patissio/internal/tenant"
)

// PostgresStore persists orders and order_items in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orderColumns = `id, order_number, patissier_id, client_name, client_email, client_phone, type,
	custom_description, budget_cents, quoted_price_cents, total_cents, pickup_date, delivery_mode,
	delivery_address, status, payment_status, stripe_session_id, notes, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*Order, error) {
	o := &Order{}
	var kind, mode, status, payment string
	var pickup sql.NullTime
	err := row.Scan(&o.ID, &o.Number, &o.TenantID, &o.ClientName, &o.ClientEmail, &o.ClientPhone, &kind,
		&o.CustomDescription, &o.BudgetCents, &o.QuotedPriceCents, &o.TotalCents, &pickup, &mode,
		&o.DeliveryAddress, &status, &payment, &o.StripeSessionID, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Type = Type(kind)
	o.DeliveryMode = DeliveryMode(mode)
	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(payment)
	if pickup.Valid {
		t := pickup.Time.UTC()
		o.PickupDate = &t
	}
	return o, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Create inserts the order and its items in one transaction.
func (p *PostgresStore) Create(ctx context.Context, scope tenant.Scope, o *Order) error {
	o.TenantID = scope.ID()
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		o.ID, o.Number, o.TenantID, o.ClientName, o.ClientEmail, o.ClientPhone, string(o.Type),
		o.CustomDescription, o.BudgetCents, o.QuotedPriceCents, o.TotalCents, nullTime(o.PickupDate),
		string(o.DeliveryMode), o.DeliveryAddress, string(o.Status), string(o.PaymentStatus),
		o.StripeSessionID, o.Notes, o.CreatedAt, o.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "orders_order_number_key" {
		return errDuplicateNumber
	}
	if err != nil {
		return err
	}

	for _, it := range o.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, unit_price_cents, quantity)
			VALUES ($1, $2, $3, $4, $5)`,
			o.ID, it.ProductID, it.ProductName, it.UnitPriceCents, it.Quantity); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return tx.Commit()
}

func (p *PostgresStore) Get(ctx context.Context, scope tenant.Scope, id string) (*Order, error) {
	o, err := scanOrder(p.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND patissier_id = $2`, id, scope.ID()))
	if err != nil {
		return nil, err
	}
	return o, p.loadItems(ctx, []*Order{o})
}

// Update writes the mutable fields. Items never change after creation.
func (p *PostgresStore) Update(ctx context.Context, scope tenant.Scope, o *Order) error {
	o.UpdatedAt = time.Now().UTC()
	res, err := p.db.ExecContext(ctx, `
		UPDATE orders SET quoted_price_cents = $1, total_cents = $2, status = $3, payment_status = $4,
			stripe_session_id = $5, notes = $6, updated_at = $7
		WHERE id = $8 AND patissier_id = $9`,
		o.QuotedPriceCents, o.TotalCents, string(o.Status), string(o.PaymentStatus),
		o.StripeSessionID, o.Notes, o.UpdatedAt, o.ID, scope.ID())
	return updatedOne(res, err)
}

func (p *PostgresStore) SetCheckoutSession(ctx context.Context, scope tenant.Scope, orderID, sessionID string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE orders SET stripe_session_id = $1, updated_at = $2 WHERE id = $3 AND patissier_id = $4`,
		sessionID, time.Now().UTC(), orderID, scope.ID())
	return updatedOne(res, err)
}

func updatedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, scope tenant.Scope, status Status, after *pagination.Cursor, limit int) ([]*Order, error) {
	var conds []string
	args := []any{scope.ID()}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	conds = append(conds, "patissier_id = $1")
	if status != "" {
		conds = append(conds, "status = "+arg(string(status)))
	}
	if after != nil {
		at, id := arg(after.CreatedAt), arg(after.ID)
		conds = append(conds, fmt.Sprintf("(created_at < %s OR (created_at = %s AND id < %s))", at, at, id))
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY created_at DESC, id DESC LIMIT ` + arg(limit)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, p.loadItems(ctx, out)
}

func (p *PostgresStore) FindForClient(ctx context.Context, number, email string) (*Order, error) {
	o, err := scanOrder(p.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1 AND client_email = LOWER($2)`,
		number, strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	return o, p.loadItems(ctx, []*Order{o})
}

func (p *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n)
	return n, err
}

func (p *PostgresStore) loadItems(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		o.Items = []Item{}
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT order_id, product_id, product_name, unit_price_cents, quantity
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var orderID string
		var it Item
		if err := rows.Scan(&orderID, &it.ProductID, &it.ProductName, &it.UnitPriceCents, &it.Quantity); err != nil {
			return err
		}
		byID[orderID].Items = append(byID[orderID].Items, it)
	}
	return rows.Err()
}
