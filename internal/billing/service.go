package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patissio/patissio/internal/idgen"
	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/payments"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/validation"
)

// OrderPayments marks an order paid after an online checkout.
type OrderPayments interface {
	MarkPaid(ctx context.Context, scope tenant.Scope, orderID, sessionID string) error
}

// DepositPayments records a paid workshop deposit.
type DepositPayments interface {
	ConfirmDeposit(ctx context.Context, scope tenant.Scope, bookingID, sessionID string) error
}

// Service implements plan subscriptions, Connect onboarding and webhook handling.
type Service struct {
	subs     Store
	tenants  tenant.Store
	payments payments.Provider
	prices   map[string]string
	appURL   string
	orders   OrderPayments
	deposits DepositPayments
	now      func() time.Time
}

// NewService creates a billing service. prices maps PriceKey to Stripe price IDs.
func NewService(subs Store, tenants tenant.Store, p payments.Provider, prices map[string]string, appURL string) *Service {
	return &Service{
		subs:     subs,
		tenants:  tenants,
		payments: p,
		prices:   prices,
		appURL:   strings.TrimRight(appURL, "/"),
		now:      time.Now,
	}
}

// WithFulfilment wires the services that webhook checkouts complete.
func (s *Service) WithFulfilment(orders OrderPayments, deposits DepositPayments) *Service {
	s.orders = orders
	s.deposits = deposits
	return s
}

// PlanOffer is a plan with the intervals that can be bought online.
type PlanOffer struct {
	tenant.PlanConfig
	Intervals []Interval `json:"intervals"`
}

// Plans lists every tier. Starter is free and has no intervals.
func (s *Service) Plans() []PlanOffer {
	var out []PlanOffer
	for _, pc := range tenant.OrderedPlans() {
		offer := PlanOffer{PlanConfig: pc, Intervals: []Interval{}}
		for _, iv := range []Interval{IntervalMonth, IntervalYear} {
			if s.prices[PriceKey(pc.Plan, iv)] != "" {
				offer.Intervals = append(offer.Intervals, iv)
			}
		}
		out = append(out, offer)
	}
	return out
}

// planForPrice maps a Stripe price back to its plan.
func (s *Service) planForPrice(priceID string) (tenant.Plan, Interval, bool) {
	if priceID == "" {
		return "", "", false
	}
	for key, id := range s.prices {
		if id != priceID {
			continue
		}
		plan, interval, ok := strings.Cut(key, "_")
		if ok {
			return tenant.Plan(plan), Interval(interval), true
		}
	}
	return "", "", false
}

// Checkout starts a subscription checkout for the owner of t.
func (s *Service) Checkout(ctx context.Context, userID, email string, t *tenant.Tenant, plan tenant.Plan, interval Interval) (string, error) {
	if err := validation.Validate(
		validation.Required("plan", string(plan)),
		validation.OneOf("plan", string(plan), string(tenant.PlanPro), string(tenant.PlanPremium)),
		validation.Required("interval", string(interval)),
		validation.OneOf("interval", string(interval), string(IntervalMonth), string(IntervalYear)),
	); err != nil {
		return "", err
	}
	if !s.payments.Enabled() {
		return "", payments.ErrPaymentsDisabled
	}
	priceID := s.prices[PriceKey(plan, interval)]
	if priceID == "" {
		return "", ErrPriceNotConfigured
	}

	req := payments.SubscriptionCheckoutRequest{
		PriceID:       priceID,
		CustomerEmail: email,
		SuccessURL:    s.appURL + "/dashboard/billing?success=1",
		CancelURL:     s.appURL + "/dashboard/billing?cancelled=1",
		Metadata: map[string]string{
			payments.MetaKind:     payments.KindSubscription,
			payments.MetaUserID:   userID,
			payments.MetaTenantID: t.ID,
			payments.MetaPlan:     string(plan),
			payments.MetaInterval: string(interval),
		},
	}
	if existing, err := s.subs.GetByUserID(ctx, userID); err == nil {
		req.CustomerID = existing.StripeCustomerID
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return "", err
	}

	session, err := s.payments.CreateSubscriptionCheckout(ctx, req)
	if err != nil {
		logging.L(ctx).Warn("subscription checkout failed", "tenant", t.Slug, "error", err)
		return "", err
	}
	return session.URL, nil
}

// Portal opens the Stripe billing portal for the user's customer.
func (s *Service) Portal(ctx context.Context, userID string) (string, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub.StripeCustomerID == "" {
		return "", ErrSubscriptionNotFound
	}
	return s.payments.CreatePortalSession(ctx, sub.StripeCustomerID, s.appURL+"/dashboard/billing")
}

// Subscription returns the user's subscription, if any.
func (s *Service) Subscription(ctx context.Context, userID string) (*Subscription, error) {
	return s.subs.GetByUserID(ctx, userID)
}

// ConnectStatus is the Connect onboarding view of a shop.
type ConnectStatus struct {
	State            tenant.ConnectState `json:"state"`
	ChargesEnabled   bool                `json:"chargesEnabled"`
	PayoutsEnabled   bool                `json:"payoutsEnabled"`
	DetailsSubmitted bool                `json:"detailsSubmitted"`
	OnboardingURL    string              `json:"onboardingUrl,omitempty"`
}

func statusOf(a tenant.StripeAccount) *ConnectStatus {
	return &ConnectStatus{
		State:            a.State(),
		ChargesEnabled:   a.ChargesEnabled,
		PayoutsEnabled:   a.PayoutsEnabled,
		DetailsSubmitted: a.DetailsSubmitted,
	}
}

// Connect creates the shop's Connect account if needed and returns an
// onboarding link.
func (s *Service) Connect(ctx context.Context, t *tenant.Tenant, email string) (*ConnectStatus, error) {
	if !s.payments.Enabled() {
		return nil, payments.ErrPaymentsDisabled
	}
	if t.Stripe.AccountID == "" {
		acct, err := s.payments.CreateConnectAccount(ctx, email)
		if err != nil {
			logging.L(ctx).Warn("connect account creation failed", "tenant", t.Slug, "error", err)
			return nil, err
		}
		t.Stripe = tenant.StripeAccount{
			AccountID:        acct.ID,
			ChargesEnabled:   acct.ChargesEnabled,
			PayoutsEnabled:   acct.PayoutsEnabled,
			DetailsSubmitted: acct.DetailsSubmitted,
		}
		if err := s.tenants.Update(ctx, t); err != nil {
			return nil, fmt.Errorf("save connect account: %w", err)
		}
		logging.L(ctx).Info("connect account created", "tenant", t.Slug, "account", acct.ID)
	}

	base := s.appURL + "/dashboard/settings/payments"
	link, err := s.payments.AccountLink(ctx, t.Stripe.AccountID, base+"?refresh=1", base+"?connected=1")
	if err != nil {
		logging.L(ctx).Warn("connect onboarding link failed", "tenant", t.Slug, "error", err)
		return nil, err
	}
	status := statusOf(t.Stripe)
	status.OnboardingURL = link
	return status, nil
}

// RefreshConnect reloads the Connect flags from Stripe.
func (s *Service) RefreshConnect(ctx context.Context, t *tenant.Tenant) (*ConnectStatus, error) {
	if t.Stripe.AccountID == "" || !s.payments.Enabled() {
		return statusOf(t.Stripe), nil
	}
	acct, err := s.payments.GetAccount(ctx, t.Stripe.AccountID)
	if err != nil {
		logging.L(ctx).Warn("connect status refresh failed", "tenant", t.Slug, "error", err)
		return nil, err
	}
	if err := s.applyAccount(ctx, t, acct); err != nil {
		return nil, err
	}
	return statusOf(t.Stripe), nil
}

func (s *Service) applyAccount(ctx context.Context, t *tenant.Tenant, acct *payments.Account) error {
	next := tenant.StripeAccount{
		AccountID:        t.Stripe.AccountID,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
	}
	if next == t.Stripe {
		return nil
	}
	prev := t.Stripe.State()
	t.Stripe = next
	if err := s.tenants.Update(ctx, t); err != nil {
		return fmt.Errorf("save connect flags: %w", err)
	}
	logging.L(ctx).Info("connect state changed", "tenant", t.Slug, "from", prev, "to", next.State())
	return nil
}

// setPlan moves the tenant to plan, logging the change.
func (s *Service) setPlan(ctx context.Context, tenantID string, plan tenant.Plan) error {
	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	if t.Plan == plan {
		return nil
	}
	prev := t.Plan
	t.Plan = plan
	if err := s.tenants.Update(ctx, t); err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	logging.L(ctx).Info("plan changed", "tenant", t.Slug, "from", prev, "to", plan)
	return nil
}

func newSubscriptionID() string {
	return idgen.WithPrefix("sub_")
}
