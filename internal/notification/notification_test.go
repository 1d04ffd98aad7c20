package notification

import (
	"context"
	"testing"
	"time"

	"github.com/patissio/patissio/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	tenantID, eventType string
	data                any
}

type recordingPublisher struct{ events []published }

func (r *recordingPublisher) Publish(tenantID, eventType string, data any) {
	r.events = append(r.events, published{tenantID, eventType, data})
}

func scopeFor(id string) tenant.Scope {
	return tenant.ScopeOf(&tenant.Tenant{ID: id})
}

// newTestService returns a service whose clock advances one minute per call.
func newTestService() (*Service, *MemoryStore, *recordingPublisher) {
	store := NewMemoryStore()
	pub := &recordingPublisher{}
	svc := NewService(store).WithPublisher(pub)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc, store, pub
}

func TestNotify_StoresAndPublishes(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.Notify(ctx, scopeFor("t1"), TypeNewOrder, "Nouvelle commande", "CMD-1", "/dashboard/orders/1"))

	require.Len(t, pub.events, 1)
	assert.Equal(t, "t1", pub.events[0].tenantID)
	assert.Equal(t, "new_order", pub.events[0].eventType)

	n, err := svc.UnreadCount(ctx, scopeFor("t1"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNotify_RequiresScope(t *testing.T) {
	svc, _, pub := newTestService()
	err := svc.Notify(context.Background(), tenant.Scope{}, TypeNewOrder, "x", "", "")
	assert.Error(t, err)
	assert.Empty(t, pub.events)
}

func TestList_UnreadFirstThenNewest(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	s := scopeFor("t1")

	for _, title := range []string{"first", "second", "third"} {
		require.NoError(t, svc.Notify(ctx, s, TypeNewBooking, title, "", ""))
	}
	page, err := svc.List(ctx, s, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 3)
	assert.Equal(t, "third", page.Notifications[0].Title)

	// Reading the newest pushes it below the unread ones.
	require.NoError(t, svc.MarkRead(ctx, s, page.Notifications[0].ID))
	page, err = svc.List(ctx, s, "", 10)
	require.NoError(t, err)
	titles := []string{page.Notifications[0].Title, page.Notifications[1].Title, page.Notifications[2].Title}
	assert.Equal(t, []string{"second", "first", "third"}, titles)
}

func TestList_CursorWalk(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	s := scopeFor("t1")
	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Notify(ctx, s, TypeNewOrder, "n", "", ""))
	}

	seen := map[string]bool{}
	cursor := ""
	for pages := 0; pages < 5; pages++ {
		page, err := svc.List(ctx, s, cursor, 2)
		require.NoError(t, err)
		for _, n := range page.Notifications {
			assert.False(t, seen[n.ID], "duplicate %s", n.ID)
			seen[n.ID] = true
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}
	assert.Len(t, seen, 5)
}

func TestStore_TenantIsolation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.Notify(ctx, scopeFor("t1"), TypeNewOrder, "mine", "", ""))
	page, err := svc.List(ctx, scopeFor("t2"), "", 10)
	require.NoError(t, err)
	assert.Empty(t, page.Notifications)

	mine, err := svc.List(ctx, scopeFor("t1"), "", 10)
	require.NoError(t, err)
	id := mine.Notifications[0].ID

	assert.ErrorIs(t, svc.MarkRead(ctx, scopeFor("t2"), id), ErrNotificationNotFound)

	n, err := svc.MarkAllRead(ctx, scopeFor("t2"))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.MarkAllRead(ctx, scopeFor("t1"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
