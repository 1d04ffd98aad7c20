package workshop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patissio/patissio/internal/tenant"
)

// PostgresStore persists workshops and bookings in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const workshopColumns = `id, patissier_id, title, description, starts_at, duration_minutes,
	capacity, price_cents, deposit_percent, location, image_url, status, created_at, updated_at`

const bookingColumns = `id, workshop_id, patissier_id, client_name, client_email, client_phone,
	nb_participants, total_price_cents, deposit_amount_cents, remaining_amount_cents,
	deposit_status, remaining_status, status, stripe_session_id, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func scanWorkshop(row scanner) (*Workshop, error) {
	w := &Workshop{}
	var status string
	err := row.Scan(&w.ID, &w.TenantID, &w.Title, &w.Description, &w.StartsAt, &w.DurationMinutes,
		&w.Capacity, &w.PriceCents, &w.DepositPercent, &w.Location, &w.ImageURL, &status,
		&w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkshopNotFound
	}
	if err != nil {
		return nil, err
	}
	w.Status = Status(status)
	return w, nil
}

func scanBooking(row scanner) (*Booking, error) {
	b := &Booking{}
	var deposit, remaining, status string
	err := row.Scan(&b.ID, &b.WorkshopID, &b.TenantID, &b.ClientName, &b.ClientEmail, &b.ClientPhone,
		&b.Participants, &b.TotalPriceCents, &b.DepositAmountCents, &b.RemainingAmountCents,
		&deposit, &remaining, &status, &b.StripeSessionID, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	b.DepositStatus = DepositStatus(deposit)
	b.RemainingStatus = RemainingStatus(remaining)
	b.Status = BookingStatus(status)
	return b, nil
}

func (p *PostgresStore) Create(ctx context.Context, scope tenant.Scope, w *Workshop) error {
	w.TenantID = scope.ID()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO workshops (`+workshopColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		w.ID, w.TenantID, w.Title, w.Description, w.StartsAt, w.DurationMinutes,
		w.Capacity, w.PriceCents, w.DepositPercent, w.Location, w.ImageURL, string(w.Status),
		w.CreatedAt, w.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, scope tenant.Scope, id string) (*Workshop, error) {
	return scanWorkshop(p.db.QueryRowContext(ctx,
		`SELECT `+workshopColumns+` FROM workshops WHERE id = $1 AND patissier_id = $2`, id, scope.ID()))
}

func (p *PostgresStore) Update(ctx context.Context, scope tenant.Scope, w *Workshop) error {
	w.UpdatedAt = time.Now().UTC()
	return expectOne(p.db.ExecContext(ctx, `
		UPDATE workshops SET title = $1, description = $2, starts_at = $3, duration_minutes = $4,
			capacity = $5, price_cents = $6, deposit_percent = $7, location = $8, image_url = $9,
			status = $10, updated_at = $11
		WHERE id = $12 AND patissier_id = $13`,
		w.Title, w.Description, w.StartsAt, w.DurationMinutes,
		w.Capacity, w.PriceCents, w.DepositPercent, w.Location, w.ImageURL,
		string(w.Status), w.UpdatedAt, w.ID, scope.ID(),
	))(ErrWorkshopNotFound)
}

func (p *PostgresStore) List(ctx context.Context, scope tenant.Scope, status Status) ([]*Workshop, error) {
	query := `SELECT ` + workshopColumns + ` FROM workshops WHERE patissier_id = $1`
	args := []any{scope.ID()}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY starts_at ASC`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Workshop
	for rows.Next() {
		w, err := scanWorkshop(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (p *PostgresStore) BookedSeats(ctx context.Context, scope tenant.Scope, workshopID string) (int, error) {
	return bookedSeats(ctx, p.db, scope, workshopID)
}

func bookedSeats(ctx context.Context, q queryer, scope tenant.Scope, workshopID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(nb_participants), 0) FROM workshop_bookings
		WHERE workshop_id = $1 AND patissier_id = $2 AND status <> 'cancelled'`,
		workshopID, scope.ID()).Scan(&n)
	return n, err
}

// ReserveSeats locks the workshop row, so concurrent reservations for the
// same workshop run one after another.
func (p *PostgresStore) ReserveSeats(ctx context.Context, scope tenant.Scope, b *Booking) (*Workshop, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	w, err := scanWorkshop(tx.QueryRowContext(ctx,
		`SELECT `+workshopColumns+` FROM workshops WHERE id = $1 AND patissier_id = $2 FOR UPDATE`,
		b.WorkshopID, scope.ID()))
	if err != nil {
		return nil, err
	}
	if !w.Status.Bookable() {
		return nil, ErrWorkshopNotOpen
	}
	booked, err := bookedSeats(ctx, tx, scope, w.ID)
	if err != nil {
		return nil, fmt.Errorf("count seats: %w", err)
	}
	if booked+b.Participants > w.Capacity {
		return nil, ErrCapacityExceeded
	}

	b.TenantID = scope.ID()
	if err := insertBooking(ctx, tx, b); err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	if booked+b.Participants == w.Capacity {
		w.Status = StatusFull
		w.UpdatedAt = time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE workshops SET status = $1, updated_at = $2 WHERE id = $3`,
			string(w.Status), w.UpdatedAt, w.ID); err != nil {
			return nil, fmt.Errorf("mark full: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return w, nil
}

func insertBooking(ctx context.Context, q queryer, b *Booking) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO workshop_bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		b.ID, b.WorkshopID, b.TenantID, b.ClientName, b.ClientEmail, b.ClientPhone,
		b.Participants, b.TotalPriceCents, b.DepositAmountCents, b.RemainingAmountCents,
		string(b.DepositStatus), string(b.RemainingStatus), string(b.Status), b.StripeSessionID,
		b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) CancelBooking(ctx context.Context, scope tenant.Scope, bookingID string) (*Booking, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	b, err := scanBooking(tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM workshop_bookings WHERE id = $1 AND patissier_id = $2 FOR UPDATE`,
		bookingID, scope.ID()))
	if err != nil {
		return nil, err
	}
	if b.Status != BookingPendingPayment && b.Status != BookingConfirmed {
		return nil, ErrInvalidTransition
	}
	now := time.Now().UTC()
	b.Status = BookingCancelled
	b.UpdatedAt = now
	if _, err := tx.ExecContext(ctx,
		`UPDATE workshop_bookings SET status = $1, updated_at = $2 WHERE id = $3`,
		string(b.Status), now, b.ID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE workshops SET status = 'published', updated_at = $1 WHERE id = $2 AND status = 'full'`,
		now, b.WorkshopID); err != nil {
		return nil, err
	}
	return b, tx.Commit()
}

func (p *PostgresStore) CancelWorkshop(ctx context.Context, scope tenant.Scope, id string) (*Workshop, []*Booking, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	w, err := scanWorkshop(tx.QueryRowContext(ctx,
		`SELECT `+workshopColumns+` FROM workshops WHERE id = $1 AND patissier_id = $2 FOR UPDATE`,
		id, scope.ID()))
	if err != nil {
		return nil, nil, err
	}
	if w.Status.Terminal() {
		return nil, nil, ErrInvalidTransition
	}
	now := time.Now().UTC()
	w.Status = StatusCancelled
	w.UpdatedAt = now
	if _, err := tx.ExecContext(ctx,
		`UPDATE workshops SET status = $1, updated_at = $2 WHERE id = $3`, string(w.Status), now, id); err != nil {
		return nil, nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		UPDATE workshop_bookings SET status = 'cancelled', updated_at = $1
		WHERE workshop_id = $2 AND status IN ('pending_payment', 'confirmed')
		RETURNING `+bookingColumns, now, id)
	if err != nil {
		return nil, nil, err
	}
	var cancelled []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, nil, err
		}
		cancelled = append(cancelled, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return w, cancelled, tx.Commit()
}

func (p *PostgresStore) GetBooking(ctx context.Context, scope tenant.Scope, id string) (*Booking, error) {
	return scanBooking(p.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM workshop_bookings WHERE id = $1 AND patissier_id = $2`, id, scope.ID()))
}

func (p *PostgresStore) UpdateBooking(ctx context.Context, scope tenant.Scope, b *Booking) error {
	b.UpdatedAt = time.Now().UTC()
	return expectOne(p.db.ExecContext(ctx, `
		UPDATE workshop_bookings SET deposit_status = $1, remaining_status = $2, status = $3,
			stripe_session_id = $4, updated_at = $5
		WHERE id = $6 AND patissier_id = $7`,
		string(b.DepositStatus), string(b.RemainingStatus), string(b.Status),
		b.StripeSessionID, b.UpdatedAt, b.ID, scope.ID(),
	))(ErrBookingNotFound)
}

func (p *PostgresStore) ListBookings(ctx context.Context, scope tenant.Scope, workshopID string) ([]*Booking, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM workshop_bookings
		WHERE workshop_id = $1 AND patissier_id = $2 ORDER BY created_at ASC`, workshopID, scope.ID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *PostgresStore) FindBookingForClient(ctx context.Context, id, email string) (*Booking, error) {
	return scanBooking(p.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM workshop_bookings WHERE id = $1 AND LOWER(client_email) = $2`,
		id, strings.ToLower(strings.TrimSpace(email))))
}

func (p *PostgresStore) CountBookings(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workshop_bookings`).Scan(&n)
	return n, err
}

func (p *PostgresStore) SetCheckoutSession(ctx context.Context, scope tenant.Scope, bookingID, sessionID string) error {
	return expectOne(p.db.ExecContext(ctx,
		`UPDATE workshop_bookings SET stripe_session_id = $1, updated_at = $2 WHERE id = $3 AND patissier_id = $4`,
		sessionID, time.Now().UTC(), bookingID, scope.ID()))(ErrBookingNotFound)
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
