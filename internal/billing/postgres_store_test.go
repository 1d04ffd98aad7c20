//go:build integration

package billing

import (
	"context"
	"testing"
	"time"

	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_Upsert(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	tn := testutil.Tenant("t1", "maboulangerie", tenant.PlanStarter)
	testutil.SeedTenant(t, db, tn)
	ctx := context.Background()
	store := NewPostgresStore(db)

	_, err := store.GetByUserID(ctx, tn.UserID)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)

	now := time.Now().UTC().Truncate(time.Second)
	sub := &Subscription{
		ID: "sub_a", UserID: tn.UserID, TenantID: tn.ID, StripeCustomerID: "cus_1",
		Plan: tenant.PlanPro, Interval: IntervalMonth, Status: "active", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.Upsert(ctx, sub))

	// A second checkout replaces the row but keeps its identity.
	again := &Subscription{
		ID: "sub_b", UserID: tn.UserID, TenantID: tn.ID, StripeCustomerID: "cus_1", StripeSubscriptionID: "sub_stripe",
		Plan: tenant.PlanPremium, Interval: IntervalYear, Status: "active", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.Upsert(ctx, again))
	assert.Equal(t, "sub_a", again.ID)

	got, err := store.GetByStripeID(ctx, "sub_stripe")
	require.NoError(t, err)
	assert.Equal(t, tenant.PlanPremium, got.Plan)
	assert.Equal(t, IntervalYear, got.Interval)
	assert.Nil(t, got.CurrentPeriodEnd)
}
