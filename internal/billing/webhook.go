package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/metrics"
	"github.com/patissio/patissio/internal/payments"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/traces"
	"github.com/tidwall/gjson"
)

// Stripe event types the platform reacts to.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventAccountUpdated      = "account.updated"
)

// HandleWebhook verifies and applies one Stripe event. Unknown events are
// acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (err error) {
	ev, err := s.payments.ParseWebhook(payload, signature)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		return err
	}

	ctx, span := traces.StartSpan(ctx, "billing.Webhook", traces.EventType(ev.Type))
	defer func() { traces.End(span, err) }()
	log := logging.L(ctx).With("event_id", ev.ID, "event_type", ev.Type)

	obj := gjson.GetBytes(ev.Payload, "data.object")
	switch ev.Type {
	case EventCheckoutCompleted:
		err = s.checkoutCompleted(ctx, obj)
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		err = s.subscriptionChanged(ctx, obj, ev.Type == EventSubscriptionDeleted)
	case EventAccountUpdated:
		err = s.accountUpdated(ctx, obj)
	default:
		metrics.WebhookEventsTotal.WithLabelValues(ev.Type, "ignored").Inc()
		log.Debug("webhook event ignored")
		return nil
	}

	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(ev.Type, "error").Inc()
		log.Error("webhook event failed", "error", err)
		return err
	}
	metrics.WebhookEventsTotal.WithLabelValues(ev.Type, "processed").Inc()
	log.Info("webhook event processed")
	return nil
}

func (s *Service) checkoutCompleted(ctx context.Context, obj gjson.Result) error {
	meta := obj.Get("metadata")
	sessionID := obj.Get("id").String()
	tenantID := meta.Get(payments.MetaTenantID).String()

	kind := meta.Get(payments.MetaKind).String()
	if kind != payments.KindSubscription && obj.Get("payment_status").String() == "unpaid" {
		logging.L(ctx).Info("checkout completed without payment", "session_id", sessionID, "kind", kind)
		return nil
	}

	switch kind {
	case payments.KindSubscription:
		return s.subscriptionCheckout(ctx, obj)
	case payments.KindOrder:
		if s.orders == nil {
			return nil
		}
		scope, err := s.scope(ctx, tenantID)
		if err != nil {
			return err
		}
		return s.orders.MarkPaid(ctx, scope, meta.Get(payments.MetaOrderID).String(), sessionID)
	case payments.KindBookingDeposit:
		if s.deposits == nil {
			return nil
		}
		scope, err := s.scope(ctx, tenantID)
		if err != nil {
			return err
		}
		return s.deposits.ConfirmDeposit(ctx, scope, meta.Get(payments.MetaBookingID).String(), sessionID)
	default:
		logging.L(ctx).Warn("checkout with unknown kind", "session_id", sessionID, "kind", kind)
		return nil
	}
}

func (s *Service) scope(ctx context.Context, tenantID string) (tenant.Scope, error) {
	if tenantID == "" {
		return tenant.Scope{}, errors.New("billing: checkout metadata has no tenant")
	}
	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return tenant.Scope{}, fmt.Errorf("load tenant %s: %w", tenantID, err)
	}
	return tenant.ScopeOf(t), nil
}

func (s *Service) subscriptionCheckout(ctx context.Context, obj gjson.Result) error {
	meta := obj.Get("metadata")
	userID := meta.Get(payments.MetaUserID).String()
	tenantID := meta.Get(payments.MetaTenantID).String()
	plan := tenant.Plan(meta.Get(payments.MetaPlan).String())
	if userID == "" || tenantID == "" || !tenant.ValidPlan(plan) {
		return fmt.Errorf("billing: incomplete subscription metadata (user=%q tenant=%q plan=%q)", userID, tenantID, plan)
	}
	interval := Interval(meta.Get(payments.MetaInterval).String())
	if interval != IntervalYear {
		interval = IntervalMonth
	}

	now := s.now().UTC()
	sub := &Subscription{
		ID:                   newSubscriptionID(),
		UserID:               userID,
		TenantID:             tenantID,
		StripeCustomerID:     obj.Get("customer").String(),
		StripeSubscriptionID: obj.Get("subscription").String(),
		Plan:                 plan,
		Interval:             interval,
		Status:               "active",
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return s.setPlan(ctx, tenantID, plan)
}

// subscriptionChanged mirrors Stripe's status. A subscription that no longer
// grants its plan drops the tenant to starter.
func (s *Service) subscriptionChanged(ctx context.Context, obj gjson.Result, deleted bool) error {
	stripeID := obj.Get("id").String()
	sub, err := s.subs.GetByStripeID(ctx, stripeID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		logging.L(ctx).Warn("subscription event for unknown subscription", "subscription", stripeID)
		return nil
	}
	if err != nil {
		return err
	}

	sub.Status = obj.Get("status").String()
	if deleted {
		sub.Status = "canceled"
	}
	if end := obj.Get("current_period_end").Int(); end > 0 {
		t := time.Unix(end, 0).UTC()
		sub.CurrentPeriodEnd = &t
	}
	if plan, interval, ok := s.planForPrice(obj.Get("items.data.0.price.id").String()); ok {
		sub.Plan = plan
		sub.Interval = interval
	}
	sub.UpdatedAt = s.now().UTC()
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}

	if sub.Active() {
		return s.setPlan(ctx, sub.TenantID, sub.Plan)
	}
	return s.setPlan(ctx, sub.TenantID, tenant.PlanStarter)
}

func (s *Service) accountUpdated(ctx context.Context, obj gjson.Result) error {
	accountID := obj.Get("id").String()
	t, err := s.tenants.GetByStripeAccount(ctx, accountID)
	if errors.Is(err, tenant.ErrTenantNotFound) {
		logging.L(ctx).Warn("account event for unknown account", "account", accountID)
		return nil
	}
	if err != nil {
		return err
	}
	return s.applyAccount(ctx, t, &payments.Account{
		ID:               accountID,
		ChargesEnabled:   obj.Get("charges_enabled").Bool(),
		PayoutsEnabled:   obj.Get("payouts_enabled").Bool(),
		DetailsSubmitted: obj.Get("details_submitted").Bool(),
	})
}
