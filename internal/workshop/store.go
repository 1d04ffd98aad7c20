package workshop

import (
	"context"

	"github.com/patissio/patissio/internal/tenant"
)

// Store persists workshops and bookings. All methods except the client
// lookup and the platform count are scoped to one tenant.
type Store interface {
	Create(ctx context.Context, scope tenant.Scope, w *Workshop) error
	Get(ctx context.Context, scope tenant.Scope, id string) (*Workshop, error)
	Update(ctx context.Context, scope tenant.Scope, w *Workshop) error
	// List returns the tenant's workshops by start date; status filters when set.
	List(ctx context.Context, scope tenant.Scope, status Status) ([]*Workshop, error)
	BookedSeats(ctx context.Context, scope tenant.Scope, workshopID string) (int, error)

	// ReserveSeats atomically checks that the workshop is still bookable and
	// has room for b.Participants, inserts b and flips the workshop to full
	// when the last seat is taken. It returns the workshop as updated.
	ReserveSeats(ctx context.Context, scope tenant.Scope, b *Booking) (*Workshop, error)
	// CancelBooking frees the booking's seats and reopens a full workshop.
	CancelBooking(ctx context.Context, scope tenant.Scope, bookingID string) (*Booking, error)
	// CancelWorkshop cancels the workshop and every active booking on it.
	CancelWorkshop(ctx context.Context, scope tenant.Scope, id string) (*Workshop, []*Booking, error)

	GetBooking(ctx context.Context, scope tenant.Scope, id string) (*Booking, error)
	UpdateBooking(ctx context.Context, scope tenant.Scope, b *Booking) error
	// SetCheckoutSession records the Stripe session of a booking and
	// touches no other field.
	SetCheckoutSession(ctx context.Context, scope tenant.Scope, bookingID, sessionID string) error
	ListBookings(ctx context.Context, scope tenant.Scope, workshopID string) ([]*Booking, error)
	// FindBookingForClient looks a booking up by id and client email; the
	// pair is the client's only credential.
	FindBookingForClient(ctx context.Context, id, email string) (*Booking, error)

	CountBookings(ctx context.Context) (int, error)
}
