// Package admin provides the platform staff endpoints: shop listing,
// plan and status overrides, platform counters and support-mode lookups.
package admin

import (
	"context"
	"fmt"

	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/validation"
)

// OrderCounter counts orders across all shops.
type OrderCounter interface {
	Count(ctx context.Context) (int, error)
}

// BookingCounter counts workshop bookings across all shops.
type BookingCounter interface {
	CountBookings(ctx context.Context) (int, error)
}

// Stats are the platform-wide counters.
type Stats struct {
	Tenants       int                 `json:"tenants"`
	TenantsByPlan map[tenant.Plan]int `json:"tenantsByPlan"`
	Orders        int                 `json:"orders"`
	Bookings      int                 `json:"bookings"`
}

// SupportAvailability tells staff whether they can open a support session.
type SupportAvailability struct {
	Slug                 string        `json:"slug"`
	BusinessName         string        `json:"businessName"`
	Status               tenant.Status `json:"status"`
	SupportAccessEnabled bool          `json:"supportAccessEnabled"`
	Available            bool          `json:"available"`
}

// Service implements the superadmin operations.
type Service struct {
	tenants  tenant.Store
	orders   OrderCounter
	bookings BookingCounter
}

func NewService(tenants tenant.Store) *Service {
	return &Service{tenants: tenants}
}

// WithCounters wires the order and booking totals shown in Stats.
func (s *Service) WithCounters(orders OrderCounter, bookings BookingCounter) *Service {
	s.orders = orders
	s.bookings = bookings
	return s
}

// ListTenants returns shops matching f.
func (s *Service) ListTenants(ctx context.Context, f tenant.ListFilter) ([]*tenant.Tenant, error) {
	if err := validation.Validate(
		validation.OneOf("plan", string(f.Plan), planNames()...),
		validation.OneOf("status", string(f.Status), string(tenant.StatusActive), string(tenant.StatusSuspended)),
		validation.MaxLength("q", f.Query, 100),
	); err != nil {
		return nil, err
	}
	return s.tenants.List(ctx, f)
}

func (s *Service) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	return s.tenants.Get(ctx, id)
}

// SetPlan overrides a shop's plan, e.g. for a commercial gesture.
func (s *Service) SetPlan(ctx context.Context, id string, plan tenant.Plan) (*tenant.Tenant, error) {
	if err := validation.Validate(
		validation.Required("plan", string(plan)),
		validation.OneOf("plan", string(plan), planNames()...),
	); err != nil {
		return nil, err
	}
	t, err := s.tenants.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Plan == plan {
		return t, nil
	}
	prev := t.Plan
	t.Plan = plan
	if err := s.tenants.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("set plan: %w", err)
	}
	logging.L(ctx).Info("plan overridden by staff", "tenant", t.Slug, "from", prev, "to", plan)
	return t, nil
}

// SetStatus suspends or reactivates a shop. Suspended shops disappear from
// public routing.
func (s *Service) SetStatus(ctx context.Context, id string, status tenant.Status) (*tenant.Tenant, error) {
	if err := validation.Validate(
		validation.Required("status", string(status)),
		validation.OneOf("status", string(status), string(tenant.StatusActive), string(tenant.StatusSuspended)),
	); err != nil {
		return nil, err
	}
	t, err := s.tenants.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == status {
		return t, nil
	}
	t.Status = status
	if err := s.tenants.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	logging.L(ctx).Info("tenant status changed", "tenant", t.Slug, "status", status)
	return t, nil
}

// Stats aggregates platform counters. Missing counters report zero.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	byPlan, err := s.tenants.CountByPlan(ctx)
	if err != nil {
		return nil, fmt.Errorf("count tenants: %w", err)
	}
	st := &Stats{TenantsByPlan: map[tenant.Plan]int{}}
	for _, pc := range tenant.OrderedPlans() {
		st.TenantsByPlan[pc.Plan] = byPlan[pc.Plan]
		st.Tenants += byPlan[pc.Plan]
	}
	if s.orders != nil {
		if st.Orders, err = s.orders.Count(ctx); err != nil {
			return nil, fmt.Errorf("count orders: %w", err)
		}
	}
	if s.bookings != nil {
		if st.Bookings, err = s.bookings.CountBookings(ctx); err != nil {
			return nil, fmt.Errorf("count bookings: %w", err)
		}
	}
	return st, nil
}

// Support reports whether staff may act on the shop at slug.
func (s *Service) Support(ctx context.Context, slug string) (*SupportAvailability, error) {
	t, err := s.tenants.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &SupportAvailability{
		Slug:                 t.Slug,
		BusinessName:         t.BusinessName,
		Status:               t.Status,
		SupportAccessEnabled: t.SupportAccessEnabled,
		Available:            t.SupportAccessEnabled && t.Status == tenant.StatusActive,
	}, nil
}

func planNames() []string {
	var names []string
	for _, pc := range tenant.OrderedPlans() {
		names = append(names, string(pc.Plan))
	}
	return names
}
