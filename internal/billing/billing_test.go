package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/patissio/patissio/internal/payments"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/testutil"
	"github.com/patissio/patissio/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPrices = map[string]string{
	"pro_month":     "price_pro_m",
	"pro_year":      "price_pro_y",
	"premium_month": "price_premium_m",
}

type recordingFulfilment struct {
	paid      []string
	deposits  []string
	tenantIDs []string
}

func (r *recordingFulfilment) MarkPaid(_ context.Context, scope tenant.Scope, orderID, sessionID string) error {
	r.paid = append(r.paid, orderID+"/"+sessionID)
	r.tenantIDs = append(r.tenantIDs, scope.ID())
	return nil
}

func (r *recordingFulfilment) ConfirmDeposit(_ context.Context, scope tenant.Scope, bookingID, sessionID string) error {
	r.deposits = append(r.deposits, bookingID+"/"+sessionID)
	r.tenantIDs = append(r.tenantIDs, scope.ID())
	return nil
}

type fixture struct {
	svc     *Service
	subs    *MemoryStore
	tenants *tenant.MemoryStore
	fake    *payments.Fake
	done    *recordingFulfilment
	shop    *tenant.Tenant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		subs:    NewMemoryStore(),
		tenants: tenant.NewMemoryStore(),
		fake:    payments.NewFake(),
		done:    &recordingFulfilment{},
		shop:    testutil.Tenant("ten_1", "maison-sucre", tenant.PlanStarter),
	}
	require.NoError(t, f.tenants.Create(context.Background(), f.shop))
	f.svc = NewService(f.subs, f.tenants, f.fake, testPrices, "https://app.test/").WithFulfilment(f.done, f.done)
	return f
}

func (f *fixture) webhook(t *testing.T, payload string) error {
	t.Helper()
	return f.svc.HandleWebhook(context.Background(), []byte(payload), payments.FakeSignature)
}

func (f *fixture) plan(t *testing.T) tenant.Plan {
	t.Helper()
	got, err := f.tenants.Get(context.Background(), f.shop.ID)
	require.NoError(t, err)
	return got.Plan
}

func TestPlans_ListsConfiguredIntervals(t *testing.T) {
	f := newFixture(t)

	offers := f.svc.Plans()
	require.Len(t, offers, 3)

	byPlan := map[tenant.Plan][]Interval{}
	for _, o := range offers {
		byPlan[o.Plan] = o.Intervals
	}
	assert.Empty(t, byPlan[tenant.PlanStarter])
	assert.Equal(t, []Interval{IntervalMonth, IntervalYear}, byPlan[tenant.PlanPro])
	assert.Equal(t, []Interval{IntervalMonth}, byPlan[tenant.PlanPremium])
}

func TestCheckout_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, "usr_1", "a@b.fr", f.shop, tenant.PlanStarter, IntervalMonth)
	require.ErrorIs(t, err, validation.ErrInvalid)
	assert.Equal(t, "plan", validation.Fields(err)[0].Field)

	_, err = f.svc.Checkout(ctx, "usr_1", "a@b.fr", f.shop, tenant.PlanPro, "week")
	require.ErrorIs(t, err, validation.ErrInvalid)
	assert.Equal(t, "interval", validation.Fields(err)[0].Field)

	_, err = f.svc.Checkout(ctx, "usr_1", "a@b.fr", f.shop, tenant.PlanPremium, IntervalYear)
	assert.ErrorIs(t, err, ErrPriceNotConfigured)
}

func TestCheckout_Metadata(t *testing.T) {
	f := newFixture(t)

	url, err := f.svc.Checkout(context.Background(), "usr_1", "a@b.fr", f.shop, tenant.PlanPro, IntervalYear)
	require.NoError(t, err)
	assert.Contains(t, url, "https://checkout.stripe.test/")

	require.Len(t, f.fake.SubscriptionCheckouts, 1)
	req := f.fake.SubscriptionCheckouts[0]
	assert.Equal(t, "price_pro_y", req.PriceID)
	assert.Equal(t, "a@b.fr", req.CustomerEmail)
	assert.Empty(t, req.CustomerID)
	assert.Equal(t, payments.KindSubscription, req.Metadata[payments.MetaKind])
	assert.Equal(t, "ten_1", req.Metadata[payments.MetaTenantID])
	assert.Equal(t, "pro", req.Metadata[payments.MetaPlan])
	assert.Equal(t, "year", req.Metadata[payments.MetaInterval])
	assert.Equal(t, "https://app.test/dashboard/billing?success=1", req.SuccessURL)
}

func TestCheckout_ReusesCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.subs.Upsert(ctx, &Subscription{ID: "sub_1", UserID: "usr_1", TenantID: "ten_1", StripeCustomerID: "cus_9", Plan: tenant.PlanPro, Interval: IntervalMonth, Status: "canceled"}))

	_, err := f.svc.Checkout(ctx, "usr_1", "a@b.fr", f.shop, tenant.PlanPremium, IntervalMonth)
	require.NoError(t, err)
	assert.Equal(t, "cus_9", f.fake.SubscriptionCheckouts[0].CustomerID)
}

func TestCheckout_PaymentsDisabled(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.subs, f.tenants, payments.Disabled{}, testPrices, "https://app.test")

	_, err := svc.Checkout(context.Background(), "usr_1", "a@b.fr", f.shop, tenant.PlanPro, IntervalMonth)
	assert.ErrorIs(t, err, payments.ErrPaymentsDisabled)
}

func TestPortal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Portal(ctx, "usr_1")
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)

	require.NoError(t, f.subs.Upsert(ctx, &Subscription{ID: "sub_1", UserID: "usr_1", TenantID: "ten_1", StripeCustomerID: "cus_9", Status: "active"}))
	url, err := f.svc.Portal(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.test/cus_9", url)
}

func TestConnect_Onboarding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	status, err := f.svc.Connect(ctx, f.shop, "owner@shop.fr")
	require.NoError(t, err)
	assert.Equal(t, tenant.ConnectOnboarding, status.State)
	assert.Contains(t, status.OnboardingURL, "https://connect.stripe.test/setup/acct_")

	stored, err := f.tenants.Get(ctx, f.shop.ID)
	require.NoError(t, err)
	accountID := stored.Stripe.AccountID
	require.NotEmpty(t, accountID)

	// A second call reuses the account.
	_, err = f.svc.Connect(ctx, stored, "owner@shop.fr")
	require.NoError(t, err)
	assert.Len(t, f.fake.Accounts, 1)

	f.fake.SetAccount(payments.Account{ID: accountID, ChargesEnabled: true, PayoutsEnabled: true, DetailsSubmitted: true})
	status, err = f.svc.RefreshConnect(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, tenant.ConnectActive, status.State)

	stored, err = f.tenants.Get(ctx, f.shop.ID)
	require.NoError(t, err)
	assert.True(t, stored.Stripe.ChargesEnabled)
}

func TestRefreshConnect_NotConnected(t *testing.T) {
	f := newFixture(t)

	status, err := f.svc.RefreshConnect(context.Background(), f.shop)
	require.NoError(t, err)
	assert.Equal(t, tenant.ConnectNotConnected, status.State)
}

func TestConnect_UpstreamError(t *testing.T) {
	f := newFixture(t)
	f.fake.Err = errors.New("stripe down")

	_, err := f.svc.Connect(context.Background(), f.shop, "owner@shop.fr")
	require.Error(t, err)

	stored, err := f.tenants.Get(context.Background(), f.shop.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Stripe.AccountID)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	f := newFixture(t)

	err := f.svc.HandleWebhook(context.Background(), []byte(`{"id":"evt_1","type":"account.updated"}`), "t=1,v1=forged")
	assert.ErrorIs(t, err, payments.ErrInvalidSignature)
}

func TestWebhook_UnknownEventIgnored(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.webhook(t, `{"id":"evt_1","type":"invoice.created","data":{"object":{}}}`))
}

func subscriptionCompleted(userID, tenantID, plan string) string {
	return fmt.Sprintf(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{
		"id":"cs_1","customer":"cus_1","subscription":"sub_stripe_1","payment_status":"paid",
		"metadata":{"kind":"subscription","user_id":%q,"tenant_id":%q,"plan":%q,"interval":"month"}}}}`, userID, tenantID, plan)
}

func TestWebhook_SubscriptionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.webhook(t, subscriptionCompleted("usr_1", "ten_1", "pro")))
	assert.Equal(t, tenant.PlanPro, f.plan(t))

	sub, err := f.subs.GetByUserID(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, "sub_stripe_1", sub.StripeSubscriptionID)
	assert.Equal(t, "cus_1", sub.StripeCustomerID)
	assert.True(t, sub.Active())

	// Upgrade through the portal.
	end := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	require.NoError(t, f.webhook(t, fmt.Sprintf(`{"id":"evt_2","type":"customer.subscription.updated","data":{"object":{
		"id":"sub_stripe_1","status":"active","current_period_end":%d,
		"items":{"data":[{"price":{"id":"price_premium_m"}}]}}}}`, end)))
	assert.Equal(t, tenant.PlanPremium, f.plan(t))
	sub, err = f.subs.GetByUserID(ctx, "usr_1")
	require.NoError(t, err)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, end, sub.CurrentPeriodEnd.Unix())

	require.NoError(t, f.webhook(t, `{"id":"evt_3","type":"customer.subscription.deleted","data":{"object":{"id":"sub_stripe_1","status":"canceled"}}}`))
	assert.Equal(t, tenant.PlanStarter, f.plan(t))
	sub, err = f.subs.GetByUserID(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, "canceled", sub.Status)
}

func TestWebhook_PastDueKeepsPlan(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.webhook(t, subscriptionCompleted("usr_1", "ten_1", "pro")))
	require.NoError(t, f.webhook(t, `{"id":"evt_2","type":"customer.subscription.updated","data":{"object":{"id":"sub_stripe_1","status":"past_due"}}}`))
	assert.Equal(t, tenant.PlanPro, f.plan(t))

	require.NoError(t, f.webhook(t, `{"id":"evt_3","type":"customer.subscription.updated","data":{"object":{"id":"sub_stripe_1","status":"unpaid"}}}`))
	assert.Equal(t, tenant.PlanStarter, f.plan(t))
}

func TestWebhook_UnknownSubscriptionIgnored(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.webhook(t, `{"id":"evt_1","type":"customer.subscription.updated","data":{"object":{"id":"sub_nobody","status":"active"}}}`))
	assert.Equal(t, tenant.PlanStarter, f.plan(t))
}

func TestWebhook_IncompleteSubscriptionMetadata(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.webhook(t, subscriptionCompleted("", "ten_1", "pro")))
	assert.Error(t, f.webhook(t, subscriptionCompleted("usr_1", "ten_1", "gold")))
}

func TestWebhook_OrderAndDepositCheckouts(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.webhook(t, `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{
		"id":"cs_order","payment_status":"paid","metadata":{"kind":"order","tenant_id":"ten_1","order_id":"ord_1"}}}}`))
	require.NoError(t, f.webhook(t, `{"id":"evt_2","type":"checkout.session.completed","data":{"object":{
		"id":"cs_dep","payment_status":"paid","metadata":{"kind":"booking_deposit","tenant_id":"ten_1","booking_id":"bkg_1"}}}}`))

	assert.Equal(t, []string{"ord_1/cs_order"}, f.done.paid)
	assert.Equal(t, []string{"bkg_1/cs_dep"}, f.done.deposits)
	assert.Equal(t, []string{"ten_1", "ten_1"}, f.done.tenantIDs)
}

func TestWebhook_UnpaidCheckoutSkipped(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.webhook(t, `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{
		"id":"cs_order","payment_status":"unpaid","metadata":{"kind":"order","tenant_id":"ten_1","order_id":"ord_1"}}}}`))
	assert.Empty(t, f.done.paid)
}

func TestWebhook_OrderForUnknownTenant(t *testing.T) {
	f := newFixture(t)

	err := f.webhook(t, `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{
		"id":"cs_order","payment_status":"paid","metadata":{"kind":"order","tenant_id":"ten_missing","order_id":"ord_1"}}}}`)
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	assert.Empty(t, f.done.paid)
}

func TestWebhook_AccountUpdated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.shop.Stripe = tenant.StripeAccount{AccountID: "acct_42"}
	require.NoError(t, f.tenants.Update(ctx, f.shop))

	require.NoError(t, f.webhook(t, `{"id":"evt_1","type":"account.updated","data":{"object":{
		"id":"acct_42","charges_enabled":false,"payouts_enabled":false,"details_submitted":true}}}`))

	stored, err := f.tenants.Get(ctx, f.shop.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.ConnectRestricted, stored.Stripe.State())

	// Accounts nobody owns are acknowledged.
	assert.NoError(t, f.webhook(t, `{"id":"evt_2","type":"account.updated","data":{"object":{"id":"acct_other"}}}`))
}

func TestPriceKey(t *testing.T) {
	assert.Equal(t, "premium_year", PriceKey(tenant.PlanPremium, IntervalYear))
}
