// Package notification records dashboard notifications for patissiers and
// pushes them to open dashboard tabs.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/idgen"
	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/pagination"
	"github.com/patissio/patissio/internal/tenant"
)

var ErrNotificationNotFound = fmt.Errorf("notification %w", apierror.ErrNotFound)

var errNoScope = errors.New("notification: empty tenant scope")

// Type classifies a notification.
type Type string

const (
	TypeNewOrder        Type = "new_order"
	TypeNewBooking      Type = "new_booking"
	TypePaymentReceived Type = "payment_received"
	TypeOrderCancelled  Type = "order_cancelled"
)

// Notification is one entry of the patissier's inbox.
type Notification struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"patissierId"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Key is the listing sort key: unread first, then newest first.
func (n *Notification) Key() pagination.Cursor {
	rank := 0
	if n.Read {
		rank = 1
	}
	return pagination.Cursor{Rank: rank, CreatedAt: n.CreatedAt, ID: n.ID}
}

// Store persists notifications. Every method is scoped to one tenant.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	// List returns up to limit notifications sorted by Key, after the cursor if set.
	List(ctx context.Context, scope tenant.Scope, after *pagination.Cursor, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, scope tenant.Scope, id string) error
	MarkAllRead(ctx context.Context, scope tenant.Scope) (int, error)
	CountUnread(ctx context.Context, scope tenant.Scope) (int, error)
}

// Publisher pushes a freshly stored notification to live clients.
type Publisher interface {
	Publish(tenantID, eventType string, data any)
}

// Page is one page of a listing.
type Page struct {
	Notifications []*Notification `json:"notifications"`
	NextCursor    string          `json:"nextCursor,omitempty"`
	HasMore       bool            `json:"hasMore"`
}

// Service records notifications and fans them out.
type Service struct {
	store     Store
	publisher Publisher
	now       func() time.Time
}

// NewService creates a notification service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithPublisher adds live push. Without it notifications are only stored.
func (s *Service) WithPublisher(p Publisher) *Service {
	s.publisher = p
	return s
}

// Notify stores a notification for the scoped tenant and pushes it.
func (s *Service) Notify(ctx context.Context, scope tenant.Scope, kind Type, title, body, link string) error {
	if !scope.Valid() {
		return errNoScope
	}
	n := &Notification{
		ID:        idgen.WithPrefix("ntf_"),
		TenantID:  scope.ID(),
		Type:      kind,
		Title:     title,
		Body:      body,
		Link:      link,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Create(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	if s.publisher != nil {
		s.publisher.Publish(n.TenantID, string(n.Type), n)
	}
	logging.L(ctx).Debug("notification created", "type", kind, "id", n.ID)
	return nil
}

// List returns one page of the tenant's notifications.
func (s *Service) List(ctx context.Context, scope tenant.Scope, cursor string, limit int) (*Page, error) {
	after, err := pagination.Decode(cursor)
	if err != nil {
		return nil, err
	}
	items, err := s.store.List(ctx, scope, after, limit+1)
	if err != nil {
		return nil, err
	}
	items, next, more := pagination.ComputePage(items, limit, (*Notification).Key)
	if items == nil {
		items = []*Notification{}
	}
	return &Page{Notifications: items, NextCursor: next, HasMore: more}, nil
}

func (s *Service) MarkRead(ctx context.Context, scope tenant.Scope, id string) error {
	return s.store.MarkRead(ctx, scope, id)
}

func (s *Service) MarkAllRead(ctx context.Context, scope tenant.Scope) (int, error) {
	return s.store.MarkAllRead(ctx, scope)
}

func (s *Service) UnreadCount(ctx context.Context, scope tenant.Scope) (int, error) {
	return s.store.CountUnread(ctx, scope)
}
