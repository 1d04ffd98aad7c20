package workshop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patissio/patissio/internal/idgen"
	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/metrics"
	"github.com/patissio/patissio/internal/notification"
	"github.com/patissio/patissio/internal/payments"
	"github.com/patissio/patissio/internal/syncutil"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/traces"
	"github.com/patissio/patissio/internal/validation"
)

// Notifier records a dashboard notification for a tenant.
type Notifier interface {
	Notify(ctx context.Context, scope tenant.Scope, kind notification.Type, title, body, link string) error
}

// Service implements workshop management and booking.
type Service struct {
	store    Store
	payments payments.Provider
	notifier Notifier
	feeBPS   int64
	appURL   string
	now      func() time.Time
	seats    *syncutil.KeyedMutex
}

// NewService creates a workshop service with online payments disabled.
func NewService(store Store) *Service {
	return &Service{store: store, payments: payments.Disabled{}, now: time.Now, seats: syncutil.NewKeyedMutex()}
}

// WithPayments enables deposit checkouts. feeBPS is the platform's cut and
// appURL the storefront base used for return URLs.
func (s *Service) WithPayments(p payments.Provider, feeBPS int64, appURL string) *Service {
	s.payments = p
	s.feeBPS = feeBPS
	s.appURL = strings.TrimRight(appURL, "/")
	return s
}

func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Input is the editable part of a workshop.
type Input struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Date            time.Time `json:"date"`
	DurationMinutes int       `json:"durationMinutes"`
	Capacity        int       `json:"capacity"`
	PriceCents      int64     `json:"priceCents"`
	DepositPercent  *int      `json:"depositPercent"`
	Location        string    `json:"location"`
	ImageURL        string    `json:"imageUrl"`
}

func (in *Input) validate() error {
	in.Title = validation.SanitizeString(in.Title, 200)
	in.Description = validation.SanitizeString(in.Description, 5000)
	in.Location = validation.SanitizeString(in.Location, 300)
	checks := []validation.Check{
		validation.Required("title", in.Title),
		validation.Positive("capacity", int64(in.Capacity)),
		validation.Range("priceCents", in.PriceCents, 0, 10_000_000),
		validation.Range("durationMinutes", int64(in.DurationMinutes), 0, 24*60),
	}
	if in.Date.IsZero() {
		checks = append(checks, func() *validation.FieldError {
			return &validation.FieldError{Field: "date", Message: "is required"}
		})
	}
	if in.DepositPercent != nil {
		checks = append(checks, validation.Range("depositPercent", int64(*in.DepositPercent), 0, 100))
	}
	return validation.Validate(checks...)
}

func (in *Input) apply(w *Workshop) {
	w.Title = in.Title
	w.Description = in.Description
	w.StartsAt = in.Date.UTC()
	w.DurationMinutes = in.DurationMinutes
	w.Capacity = in.Capacity
	w.PriceCents = in.PriceCents
	if in.DepositPercent != nil {
		w.DepositPercent = *in.DepositPercent
	}
	w.Location = in.Location
	w.ImageURL = in.ImageURL
}

// Create adds a draft workshop. The deposit percent defaults to the shop's.
func (s *Service) Create(ctx context.Context, t *tenant.Tenant, in Input) (*Workshop, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	w := &Workshop{
		ID:             idgen.New(),
		DepositPercent: t.DepositPercent,
		Status:         StatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	in.apply(w)
	if err := s.store.Create(ctx, tenant.ScopeOf(t), w); err != nil {
		return nil, fmt.Errorf("create workshop: %w", err)
	}
	return w, nil
}

// Update edits a workshop that is not cancelled or completed. Capacity may
// not drop below the seats already booked; the full/published status
// follows the new capacity.
func (s *Service) Update(ctx context.Context, scope tenant.Scope, id string, in Input) (*Workshop, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	w, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if w.Status.Terminal() {
		return nil, ErrInvalidTransition
	}
	booked, err := s.store.BookedSeats(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if in.Capacity < booked {
		return nil, validation.Invalid("capacity", fmt.Sprintf("must be at least %d (seats already booked)", booked))
	}
	in.apply(w)
	switch {
	case w.Status == StatusPublished && booked == w.Capacity:
		w.Status = StatusFull
	case w.Status == StatusFull && booked < w.Capacity:
		w.Status = StatusPublished
	}
	if err := s.store.Update(ctx, scope, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Publish opens a draft for booking.
func (s *Service) Publish(ctx context.Context, scope tenant.Scope, id string) (*Workshop, error) {
	return s.transition(ctx, scope, id, StatusPublished, StatusDraft)
}

// Complete closes a published or full workshop once it has taken place.
func (s *Service) Complete(ctx context.Context, scope tenant.Scope, id string) (*Workshop, error) {
	return s.transition(ctx, scope, id, StatusCompleted, StatusPublished, StatusFull)
}

func (s *Service) transition(ctx context.Context, scope tenant.Scope, id string, to Status, from ...Status) (*Workshop, error) {
	w, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, f := range from {
		allowed = allowed || w.Status == f
	}
	if !allowed {
		return nil, ErrInvalidTransition
	}
	w.Status = to
	if err := s.store.Update(ctx, scope, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Cancel cancels the workshop and all of its active bookings.
func (s *Service) Cancel(ctx context.Context, scope tenant.Scope, id string) (*Workshop, []*Booking, error) {
	w, cancelled, err := s.store.CancelWorkshop(ctx, scope, id)
	if err != nil {
		return nil, nil, err
	}
	logging.L(ctx).Info("workshop cancelled", "workshop_id", id, "bookings_cancelled", len(cancelled))
	return w, cancelled, nil
}

// Get returns one workshop with its remaining seats.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id string) (*Listing, error) {
	w, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return s.listing(ctx, scope, w)
}

// List returns the tenant's workshops, optionally filtered by status.
func (s *Service) List(ctx context.Context, scope tenant.Scope, status Status) ([]*Listing, error) {
	ws, err := s.store.List(ctx, scope, status)
	if err != nil {
		return nil, err
	}
	out := make([]*Listing, 0, len(ws))
	for _, w := range ws {
		l, err := s.listing(ctx, scope, w)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// PublicList returns the storefront's open and full workshops. Shops that
// cannot take workshops show an empty list.
func (s *Service) PublicList(ctx context.Context, t *tenant.Tenant) ([]*Listing, error) {
	if !acceptsWorkshops(t) {
		return []*Listing{}, nil
	}
	all, err := s.List(ctx, tenant.ScopeOf(t), "")
	if err != nil {
		return nil, err
	}
	out := make([]*Listing, 0, len(all))
	for _, l := range all {
		if l.Status == StatusPublished || l.Status == StatusFull {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Service) listing(ctx context.Context, scope tenant.Scope, w *Workshop) (*Listing, error) {
	booked, err := s.store.BookedSeats(ctx, scope, w.ID)
	if err != nil {
		return nil, err
	}
	return &Listing{Workshop: w, RemainingSeats: max(w.Capacity-booked, 0)}, nil
}

func acceptsWorkshops(t *tenant.Tenant) bool {
	return t.WorkshopsEnabled && t.Plan.Features().Workshops
}

// BookingRequest is a client's booking form.
type BookingRequest struct {
	ClientName   string `json:"clientName"`
	ClientEmail  string `json:"clientEmail"`
	ClientPhone  string `json:"clientPhone"`
	Participants int    `json:"nbParticipants"`
}

func (r *BookingRequest) validate() error {
	r.ClientName = validation.SanitizeString(r.ClientName, 200)
	r.ClientEmail = strings.ToLower(strings.TrimSpace(r.ClientEmail))
	r.ClientPhone = strings.TrimSpace(r.ClientPhone)
	return validation.Validate(
		validation.Required("clientName", r.ClientName),
		validation.Required("clientEmail", r.ClientEmail),
		validation.Email("clientEmail", r.ClientEmail),
		validation.Phone("clientPhone", r.ClientPhone),
		validation.Range("nbParticipants", int64(r.Participants), 1, 100),
	)
}

// BookingResult is returned to the client. CheckoutURL is set when a
// deposit must be paid online.
type BookingResult struct {
	Booking     *Booking `json:"booking"`
	CheckoutURL string   `json:"checkoutUrl,omitempty"`
}

// Book reserves seats on a published workshop of t.
func (s *Service) Book(ctx context.Context, t *tenant.Tenant, workshopID string, req BookingRequest) (_ *BookingResult, err error) {
	ctx, span := traces.StartSpan(ctx, "workshop.Book",
		traces.TenantID(t.ID), traces.WorkshopID(workshopID), traces.Participants(req.Participants))
	defer func() { traces.End(span, err) }()

	if !acceptsWorkshops(t) {
		return nil, ErrWorkshopsDisabled
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	scope := tenant.ScopeOf(t)
	w, err := s.store.Get(ctx, scope, workshopID)
	if err != nil {
		return nil, err
	}
	if !w.Status.Bookable() {
		metrics.BookingsTotal.WithLabelValues("not_open").Inc()
		return nil, ErrWorkshopNotOpen
	}

	total, deposit, remaining := Quote(w.PriceCents, req.Participants, w.DepositPercent)
	payable := deposit > 0 && t.CanAcceptOnlinePayments() && s.payments.Enabled()

	now := s.now().UTC()
	b := &Booking{
		ID:                   idgen.New(),
		WorkshopID:           w.ID,
		ClientName:           req.ClientName,
		ClientEmail:          req.ClientEmail,
		ClientPhone:          req.ClientPhone,
		Participants:         req.Participants,
		TotalPriceCents:      total,
		DepositAmountCents:   deposit,
		RemainingAmountCents: remaining,
		DepositStatus:        DepositNotRequired,
		RemainingStatus:      RemainingPending,
		Status:               BookingConfirmed,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if payable {
		b.Status = BookingPendingPayment
		b.DepositStatus = DepositPending
	}

	// Bookings for one workshop queue here before contending for the row lock.
	unlock, err := s.seats.Lock(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	w, err = s.store.ReserveSeats(ctx, scope, b)
	unlock()
	switch {
	case errors.Is(err, ErrCapacityExceeded):
		metrics.BookingsTotal.WithLabelValues("capacity_exceeded").Inc()
		return nil, err
	case errors.Is(err, ErrWorkshopNotOpen):
		metrics.BookingsTotal.WithLabelValues("not_open").Inc()
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("reserve seats: %w", err)
	}
	metrics.BookingsTotal.WithLabelValues("created").Inc()

	result := &BookingResult{Booking: b}
	if payable {
		session, err := s.depositCheckout(ctx, t, w, b)
		if err != nil {
			if _, cerr := s.store.CancelBooking(ctx, scope, b.ID); cerr != nil {
				logging.L(ctx).Error("failed to release seats after checkout error", "booking_id", b.ID, "error", cerr)
			}
			return nil, err
		}
		b.StripeSessionID = session.ID
		if err := s.store.SetCheckoutSession(ctx, scope, b.ID, session.ID); err != nil {
			return nil, fmt.Errorf("save checkout session: %w", err)
		}
		result.CheckoutURL = session.URL
	}

	s.notify(ctx, scope, notification.TypeNewBooking,
		"Nouvelle réservation",
		fmt.Sprintf("%s a réservé %d place(s) pour « %s »", b.ClientName, b.Participants, w.Title),
		"/dashboard/workshops/"+w.ID)

	logging.L(ctx).Info("workshop booked",
		"workshop_id", w.ID, "booking_id", b.ID, "participants", b.Participants, "status", b.Status)
	return result, nil
}

func (s *Service) depositCheckout(ctx context.Context, t *tenant.Tenant, w *Workshop, b *Booking) (*payments.CheckoutSession, error) {
	base := fmt.Sprintf("%s/%s/workshops/%s", s.appURL, t.Slug, w.ID)
	return s.payments.CreateCheckout(ctx, payments.CheckoutRequest{
		ConnectedAccount:    t.Stripe.AccountID,
		AmountCents:         b.DepositAmountCents,
		ProductName:         fmt.Sprintf("Acompte – %s (%d pers.)", w.Title, b.Participants),
		CustomerEmail:       b.ClientEmail,
		SuccessURL:          base + "?booking=" + b.ID + "&paid=1",
		CancelURL:           base + "?booking=" + b.ID + "&cancelled=1",
		ApplicationFeeCents: payments.ApplicationFee(b.DepositAmountCents, s.feeBPS),
		Metadata: map[string]string{
			payments.MetaKind:      payments.KindBookingDeposit,
			payments.MetaTenantID:  t.ID,
			payments.MetaBookingID: b.ID,
		},
	})
}

// ConfirmDeposit records a paid deposit reported by the payment webhook.
// Replays are no-ops.
func (s *Service) ConfirmDeposit(ctx context.Context, scope tenant.Scope, bookingID, sessionID string) error {
	b, err := s.store.GetBooking(ctx, scope, bookingID)
	if err != nil {
		return err
	}
	if b.DepositStatus == DepositPaid {
		return nil
	}
	if b.Status == BookingCancelled {
		logging.L(ctx).Warn("deposit paid on a cancelled booking", "booking_id", b.ID, "session_id", sessionID)
	}
	b.DepositStatus = DepositPaid
	if b.Status == BookingPendingPayment {
		b.Status = BookingConfirmed
	}
	if sessionID != "" {
		b.StripeSessionID = sessionID
	}
	if err := s.store.UpdateBooking(ctx, scope, b); err != nil {
		return err
	}
	s.notify(ctx, scope, notification.TypePaymentReceived,
		"Acompte reçu",
		fmt.Sprintf("%s a réglé un acompte de %.2f €", b.ClientName, float64(b.DepositAmountCents)/100),
		"/dashboard/workshops/"+b.WorkshopID)
	return nil
}

// CancelBooking frees the booking's seats.
func (s *Service) CancelBooking(ctx context.Context, scope tenant.Scope, id string) (*Booking, error) {
	return s.store.CancelBooking(ctx, scope, id)
}

// CompleteBooking marks a confirmed booking as attended.
func (s *Service) CompleteBooking(ctx context.Context, scope tenant.Scope, id string) (*Booking, error) {
	b, err := s.store.GetBooking(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if b.Status != BookingConfirmed {
		return nil, ErrInvalidTransition
	}
	b.Status = BookingCompleted
	if err := s.store.UpdateBooking(ctx, scope, b); err != nil {
		return nil, err
	}
	return b, nil
}

// MarkRemainingPaid records the balance paid on site.
func (s *Service) MarkRemainingPaid(ctx context.Context, scope tenant.Scope, id string) (*Booking, error) {
	b, err := s.store.GetBooking(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if b.Status != BookingConfirmed && b.Status != BookingCompleted {
		return nil, ErrInvalidTransition
	}
	b.RemainingStatus = RemainingPaid
	if err := s.store.UpdateBooking(ctx, scope, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) ListBookings(ctx context.Context, scope tenant.Scope, workshopID string) ([]*Booking, error) {
	if _, err := s.store.Get(ctx, scope, workshopID); err != nil {
		return nil, err
	}
	return s.store.ListBookings(ctx, scope, workshopID)
}

// ClientBooking returns a booking to the client who made it.
func (s *Service) ClientBooking(ctx context.Context, id, email string) (*Booking, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrBookingNotFound
	}
	return s.store.FindBookingForClient(ctx, id, email)
}

// CountBookings is the platform-wide total, for the superadmin dashboard.
func (s *Service) CountBookings(ctx context.Context) (int, error) {
	return s.store.CountBookings(ctx)
}

func (s *Service) notify(ctx context.Context, scope tenant.Scope, kind notification.Type, title, body, link string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, scope, kind, title, body, link); err != nil {
		logging.L(ctx).Warn("notification failed", "type", kind, "error", err)
	}
}
