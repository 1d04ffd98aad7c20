package notification

import (
	"context"
	"sort"
	"sync"

	"github.com/patissio/patissio/internal/pagination"
	"github.com/patissio/patissio/internal/tenant"
)

// MemoryStore keeps notifications in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Notification)}
}

func (m *MemoryStore) Create(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	m.items[n.ID] = &cp
	return nil
}

func (m *MemoryStore) List(_ context.Context, scope tenant.Scope, after *pagination.Cursor, limit int) ([]*Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Notification
	for _, n := range m.items {
		if n.TenantID != scope.ID() {
			continue
		}
		if after != nil && !after.Less(n.Key()) {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) MarkRead(_ context.Context, scope tenant.Scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok || n.TenantID != scope.ID() {
		return ErrNotificationNotFound
	}
	n.Read = true
	return nil
}

func (m *MemoryStore) MarkAllRead(_ context.Context, scope tenant.Scope) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.items {
		if n.TenantID == scope.ID() && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CountUnread(_ context.Context, scope tenant.Scope) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, n := range m.items {
		if n.TenantID == scope.ID() && !n.Read {
			count++
		}
	}
	return count, nil
}
