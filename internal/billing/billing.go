// Package billing sells platform plans through Stripe subscriptions,
// onboards patissiers onto Stripe Connect, and applies Stripe webhook
// events to subscriptions, orders and bookings.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/tenant"
)

var (
	ErrSubscriptionNotFound = fmt.Errorf("subscription %w", apierror.ErrNotFound)
	ErrPriceNotConfigured   = apierror.New("price_not_configured", "no price is configured for this plan", apierror.ErrUnavailable)
)

// Interval is the billing period of a subscription.
type Interval string

const (
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Subscription mirrors a user's platform subscription in Stripe.
type Subscription struct {
	ID                   string      `json:"id"`
	UserID               string      `json:"userId"`
	TenantID             string      `json:"patissierId"`
	StripeCustomerID     string      `json:"-"`
	StripeSubscriptionID string      `json:"-"`
	Plan                 tenant.Plan `json:"plan"`
	Interval             Interval    `json:"interval"`
	Status               string      `json:"status"`
	CurrentPeriodEnd     *time.Time  `json:"currentPeriodEnd,omitempty"`
	CreatedAt            time.Time   `json:"createdAt"`
	UpdatedAt            time.Time   `json:"updatedAt"`
}

// Active reports whether the subscription grants its plan.
func (s *Subscription) Active() bool {
	return grantsPlan(s.Status)
}

// grantsPlan is true for Stripe subscription statuses that keep paid features.
func grantsPlan(status string) bool {
	switch status {
	case "active", "trialing", "past_due":
		return true
	}
	return false
}

// Store persists subscriptions. There is at most one per user.
type Store interface {
	// Upsert creates or replaces the subscription of s.UserID.
	Upsert(ctx context.Context, s *Subscription) error
	GetByUserID(ctx context.Context, userID string) (*Subscription, error)
	GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*Subscription, error)
}

// PriceKey is the config key of a plan's price, e.g. "pro_month".
func PriceKey(plan tenant.Plan, interval Interval) string {
	return string(plan) + "_" + string(interval)
}
