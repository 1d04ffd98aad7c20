// Package workshop manages pastry workshops and their seat bookings.
//
// Seat accounting is the store's job: ReserveSeats sums the active bookings
// and inserts the new one as a single atomic step, so two clients racing
// for the last seats cannot both win.
package workshop

import (
	"fmt"
	"math"
	"time"

	"github.com/patissio/patissio/internal/apierror"
)

var (
	ErrWorkshopNotFound  = fmt.Errorf("workshop %w", apierror.ErrNotFound)
	ErrBookingNotFound   = fmt.Errorf("booking %w", apierror.ErrNotFound)
	ErrWorkshopNotOpen   = apierror.New("workshop_not_open", "this workshop is not open for booking", apierror.ErrConflict)
	ErrCapacityExceeded  = apierror.New("capacity_exceeded", "not enough seats left for this workshop", apierror.ErrConflict)
	ErrInvalidTransition = apierror.New("invalid_transition", "this status change is not allowed", apierror.ErrConflict)
	ErrWorkshopsDisabled = apierror.New("workshops_disabled", "this shop does not take workshop bookings", apierror.ErrForbidden)
)

// Status is the workshop lifecycle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusFull      Status = "full"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Bookable reports whether seats may be reserved.
func (s Status) Bookable() bool { return s == StatusPublished }

// Terminal reports whether the workshop can no longer change.
func (s Status) Terminal() bool { return s == StatusCancelled || s == StatusCompleted }

// BookingStatus is the booking lifecycle.
type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "pending_payment"
	BookingConfirmed      BookingStatus = "confirmed"
	BookingCancelled      BookingStatus = "cancelled"
	BookingCompleted      BookingStatus = "completed"
)

// Active reports whether the booking holds seats.
func (s BookingStatus) Active() bool { return s != BookingCancelled }

type DepositStatus string

const (
	DepositPending     DepositStatus = "pending"
	DepositPaid        DepositStatus = "paid"
	DepositRefunded    DepositStatus = "refunded"
	DepositNotRequired DepositStatus = "not_required"
)

type RemainingStatus string

const (
	RemainingPending RemainingStatus = "pending"
	RemainingPaid    RemainingStatus = "paid"
)

// Workshop is a dated class with a fixed number of seats.
type Workshop struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"patissierId"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	StartsAt        time.Time `json:"date"`
	DurationMinutes int       `json:"durationMinutes"`
	Capacity        int       `json:"capacity"`
	PriceCents      int64     `json:"priceCents"`
	DepositPercent  int       `json:"depositPercent"`
	Location        string    `json:"location"`
	ImageURL        string    `json:"imageUrl"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Booking reserves seats on a workshop for one client.
type Booking struct {
	ID                   string          `json:"id"`
	WorkshopID           string          `json:"workshopId"`
	TenantID             string          `json:"patissierId"`
	ClientName           string          `json:"clientName"`
	ClientEmail          string          `json:"clientEmail"`
	ClientPhone          string          `json:"clientPhone"`
	Participants         int             `json:"nbParticipants"`
	TotalPriceCents      int64           `json:"totalPriceCents"`
	DepositAmountCents   int64           `json:"depositAmountCents"`
	RemainingAmountCents int64           `json:"remainingAmountCents"`
	DepositStatus        DepositStatus   `json:"depositStatus"`
	RemainingStatus      RemainingStatus `json:"remainingStatus"`
	Status               BookingStatus   `json:"status"`
	StripeSessionID      string          `json:"-"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// Listing is a workshop with its seat count, as shown on the storefront.
type Listing struct {
	*Workshop
	RemainingSeats int `json:"remainingSeats"`
}

// Quote splits a booking's price into deposit and remainder. The deposit
// is rounded half away from zero to the cent.
func Quote(priceCents int64, participants, depositPercent int) (total, deposit, remaining int64) {
	total = priceCents * int64(participants)
	deposit = int64(math.Round(float64(total) * float64(depositPercent) / 100))
	return total, deposit, total - deposit
}
