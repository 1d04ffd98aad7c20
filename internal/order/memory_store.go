package order

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/patissio/patissio/internal/pagination"
	"github.com/patissio/patissio/internal/tenant"
)

// MemoryStore is an in-memory order store for demo/development.
type MemoryStore struct {
	mu       sync.RWMutex
	orders   map[string]*Order
	byNumber map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[string]*Order),
		byNumber: make(map[string]string),
	}
}

func clone(o *Order) *Order {
	cp := *o
	cp.Items = append([]Item{}, o.Items...)
	if o.PickupDate != nil {
		d := *o.PickupDate
		cp.PickupDate = &d
	}
	return &cp
}

func (m *MemoryStore) Create(_ context.Context, scope tenant.Scope, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byNumber[o.Number]; taken {
		return errDuplicateNumber
	}
	o.TenantID = scope.ID()
	m.orders[o.ID] = clone(o)
	m.byNumber[o.Number] = o.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, scope tenant.Scope, id string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok || o.TenantID != scope.ID() {
		return nil, ErrOrderNotFound
	}
	return clone(o), nil
}

func (m *MemoryStore) Update(_ context.Context, scope tenant.Scope, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.orders[o.ID]
	if !ok || existing.TenantID != scope.ID() {
		return ErrOrderNotFound
	}
	o.UpdatedAt = time.Now().UTC()
	m.orders[o.ID] = clone(o)
	return nil
}

func (m *MemoryStore) SetCheckoutSession(_ context.Context, scope tenant.Scope, orderID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.TenantID != scope.ID() {
		return ErrOrderNotFound
	}
	o.StripeSessionID = sessionID
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) List(_ context.Context, scope tenant.Scope, status Status, after *pagination.Cursor, limit int) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Order
	for _, o := range m.orders {
		if o.TenantID != scope.ID() || (status != "" && o.Status != status) {
			continue
		}
		if after != nil && !after.Less(o.Key()) {
			continue
		}
		out = append(out, clone(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) FindForClient(_ context.Context, number, email string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byNumber[number]
	if !ok {
		return nil, ErrOrderNotFound
	}
	o := m.orders[id]
	if !strings.EqualFold(o.ClientEmail, strings.TrimSpace(email)) {
		return nil, ErrOrderNotFound
	}
	return clone(o), nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders), nil
}
