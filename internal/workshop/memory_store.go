package workshop

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/patissio/patissio/internal/tenant"
)

// MemoryStore is an in-memory workshop store for demo/development.
// One mutex serializes every write, which is what makes ReserveSeats atomic.
type MemoryStore struct {
	mu        sync.RWMutex
	workshops map[string]*Workshop
	bookings  map[string]*Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workshops: make(map[string]*Workshop),
		bookings:  make(map[string]*Booking),
	}
}

func (m *MemoryStore) Create(_ context.Context, scope tenant.Scope, w *Workshop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.TenantID = scope.ID()
	cp := *w
	m.workshops[w.ID] = &cp
	return nil
}

func (m *MemoryStore) get(scope tenant.Scope, id string) (*Workshop, bool) {
	w, ok := m.workshops[id]
	if !ok || w.TenantID != scope.ID() {
		return nil, false
	}
	return w, true
}

func (m *MemoryStore) Get(_ context.Context, scope tenant.Scope, id string) (*Workshop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.get(scope, id)
	if !ok {
		return nil, ErrWorkshopNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, scope tenant.Scope, w *Workshop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.get(scope, w.ID); !ok {
		return ErrWorkshopNotFound
	}
	w.UpdatedAt = time.Now().UTC()
	cp := *w
	m.workshops[w.ID] = &cp
	return nil
}

func (m *MemoryStore) List(_ context.Context, scope tenant.Scope, status Status) ([]*Workshop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Workshop
	for _, w := range m.workshops {
		if w.TenantID != scope.ID() || (status != "" && w.Status != status) {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (m *MemoryStore) BookedSeats(_ context.Context, scope tenant.Scope, workshopID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bookedSeats(scope, workshopID), nil
}

func (m *MemoryStore) bookedSeats(scope tenant.Scope, workshopID string) int {
	total := 0
	for _, b := range m.bookings {
		if b.WorkshopID == workshopID && b.TenantID == scope.ID() && b.Status.Active() {
			total += b.Participants
		}
	}
	return total
}

func (m *MemoryStore) ReserveSeats(_ context.Context, scope tenant.Scope, b *Booking) (*Workshop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.get(scope, b.WorkshopID)
	if !ok {
		return nil, ErrWorkshopNotFound
	}
	if !w.Status.Bookable() {
		return nil, ErrWorkshopNotOpen
	}
	booked := m.bookedSeats(scope, w.ID)
	if booked+b.Participants > w.Capacity {
		return nil, ErrCapacityExceeded
	}

	b.TenantID = scope.ID()
	cp := *b
	m.bookings[b.ID] = &cp
	if booked+b.Participants == w.Capacity {
		w.Status = StatusFull
		w.UpdatedAt = time.Now().UTC()
	}
	out := *w
	return &out, nil
}

func (m *MemoryStore) CancelBooking(_ context.Context, scope tenant.Scope, bookingID string) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[bookingID]
	if !ok || b.TenantID != scope.ID() {
		return nil, ErrBookingNotFound
	}
	if b.Status != BookingPendingPayment && b.Status != BookingConfirmed {
		return nil, ErrInvalidTransition
	}
	now := time.Now().UTC()
	b.Status = BookingCancelled
	b.UpdatedAt = now
	if w, ok := m.get(scope, b.WorkshopID); ok && w.Status == StatusFull {
		w.Status = StatusPublished
		w.UpdatedAt = now
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) CancelWorkshop(_ context.Context, scope tenant.Scope, id string) (*Workshop, []*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.get(scope, id)
	if !ok {
		return nil, nil, ErrWorkshopNotFound
	}
	if w.Status.Terminal() {
		return nil, nil, ErrInvalidTransition
	}
	now := time.Now().UTC()
	w.Status = StatusCancelled
	w.UpdatedAt = now

	var cancelled []*Booking
	for _, b := range m.bookings {
		if b.WorkshopID == id && b.TenantID == scope.ID() && (b.Status == BookingPendingPayment || b.Status == BookingConfirmed) {
			b.Status = BookingCancelled
			b.UpdatedAt = now
			cp := *b
			cancelled = append(cancelled, &cp)
		}
	}
	out := *w
	return &out, cancelled, nil
}

func (m *MemoryStore) GetBooking(_ context.Context, scope tenant.Scope, id string) (*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok || b.TenantID != scope.ID() {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) UpdateBooking(_ context.Context, scope tenant.Scope, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.bookings[b.ID]
	if !ok || existing.TenantID != scope.ID() {
		return ErrBookingNotFound
	}
	b.UpdatedAt = time.Now().UTC()
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *MemoryStore) SetCheckoutSession(_ context.Context, scope tenant.Scope, bookingID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || b.TenantID != scope.ID() {
		return ErrBookingNotFound
	}
	b.StripeSessionID = sessionID
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) ListBookings(_ context.Context, scope tenant.Scope, workshopID string) ([]*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Booking
	for _, b := range m.bookings {
		if b.WorkshopID == workshopID && b.TenantID == scope.ID() {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) FindBookingForClient(_ context.Context, id, email string) (*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok || !strings.EqualFold(b.ClientEmail, strings.TrimSpace(email)) {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) CountBookings(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bookings), nil
}
