//go:build integration

package notification

import (
	"context"
	"testing"

	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_Inbox(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	ctx := context.Background()

	mine := testutil.Tenant("t1", "chez-alice", tenant.PlanPro)
	other := testutil.Tenant("t2", "chez-bruno", tenant.PlanPro)
	testutil.SeedTenant(t, db, mine)
	testutil.SeedTenant(t, db, other)
	scope, otherScope := tenant.ScopeOf(mine), tenant.ScopeOf(other)

	svc := NewService(NewPostgresStore(db))
	for _, title := range []string{"Commande 1", "Commande 2", "Commande 3"} {
		require.NoError(t, svc.Notify(ctx, scope, TypeNewOrder, title, "", "/orders"))
	}
	require.NoError(t, svc.Notify(ctx, otherScope, TypeNewBooking, "Atelier", "", ""))

	n, err := svc.UnreadCount(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := svc.List(ctx, scope, "", 2)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 2)
	require.True(t, page.HasMore)

	rest, err := svc.List(ctx, scope, page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, rest.Notifications, 1)
	assert.False(t, rest.HasMore)

	first := page.Notifications[0].ID
	assert.ErrorIs(t, svc.MarkRead(ctx, otherScope, first), ErrNotificationNotFound)
	require.NoError(t, svc.MarkRead(ctx, scope, first))

	// Read notifications sort after unread ones.
	page, err = svc.List(ctx, scope, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 3)
	assert.Equal(t, first, page.Notifications[2].ID)
	assert.True(t, page.Notifications[2].Read)

	updated, err := svc.MarkAllRead(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	n, err = svc.UnreadCount(ctx, otherScope)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
