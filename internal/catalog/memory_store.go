package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/patissio/patissio/internal/tenant"
)

// MemoryStore is an in-memory catalogue store for demo/development.
type MemoryStore struct {
	mu         sync.RWMutex
	categories map[string]*Category
	creations  map[string]*Creation
	products   map[string]*Product
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		categories: make(map[string]*Category),
		creations:  make(map[string]*Creation),
		products:   make(map[string]*Product),
	}
}

// --- categories ---

func (m *MemoryStore) CreateCategory(_ context.Context, scope tenant.Scope, c *Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.TenantID = scope.ID()
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

func (m *MemoryStore) GetCategory(_ context.Context, scope tenant.Scope, id string) (*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.categories[id]
	if !ok || c.TenantID != scope.ID() {
		return nil, ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) ListCategories(_ context.Context, scope tenant.Scope) ([]*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Category
	for _, c := range m.categories {
		if c.TenantID == scope.ID() {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return byPosition(out[i].Position, out[j].Position, out[i].CreatedAt, out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) UpdateCategory(_ context.Context, scope tenant.Scope, c *Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.categories[c.ID]
	if !ok || existing.TenantID != scope.ID() {
		return ErrCategoryNotFound
	}
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteCategory(_ context.Context, scope tenant.Scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok || c.TenantID != scope.ID() {
		return ErrCategoryNotFound
	}
	delete(m.categories, id)
	for _, p := range m.products {
		if p.CategoryID == id {
			p.CategoryID = ""
		}
	}
	for _, cr := range m.creations {
		if cr.CategoryID == id {
			cr.CategoryID = ""
		}
	}
	return nil
}

// --- creations ---

func (m *MemoryStore) CreateCreation(_ context.Context, scope tenant.Scope, c *Creation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.TenantID = scope.ID()
	cp := *c
	m.creations[c.ID] = &cp
	return nil
}

func (m *MemoryStore) GetCreation(_ context.Context, scope tenant.Scope, id string) (*Creation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.creations[id]
	if !ok || c.TenantID != scope.ID() {
		return nil, ErrCreationNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) ListCreations(_ context.Context, scope tenant.Scope) ([]*Creation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Creation
	for _, c := range m.creations {
		if c.TenantID == scope.ID() {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return byPosition(out[i].Position, out[j].Position, out[i].CreatedAt, out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) UpdateCreation(_ context.Context, scope tenant.Scope, c *Creation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.creations[c.ID]
	if !ok || existing.TenantID != scope.ID() {
		return ErrCreationNotFound
	}
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	m.creations[c.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteCreation(_ context.Context, scope tenant.Scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creations[id]
	if !ok || c.TenantID != scope.ID() {
		return ErrCreationNotFound
	}
	delete(m.creations, id)
	return nil
}

// --- products ---

func (m *MemoryStore) CreateProduct(_ context.Context, scope tenant.Scope, p *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.TenantID = scope.ID()
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *MemoryStore) GetProduct(_ context.Context, scope tenant.Scope, id string) (*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok || p.TenantID != scope.ID() {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) ListProducts(_ context.Context, scope tenant.Scope, availableOnly bool) ([]*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Product
	for _, p := range m.products {
		if p.TenantID != scope.ID() || (availableOnly && !p.IsAvailable) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return byPosition(out[i].Position, out[j].Position, out[i].CreatedAt, out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) GetProducts(_ context.Context, scope tenant.Scope, ids []string) (map[string]*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok && p.TenantID == scope.ID() {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateProduct(_ context.Context, scope tenant.Scope, p *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.products[p.ID]
	if !ok || existing.TenantID != scope.ID() {
		return ErrProductNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteProduct(_ context.Context, scope tenant.Scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || p.TenantID != scope.ID() {
		return ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *MemoryStore) CountProducts(_ context.Context, scope tenant.Scope) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.products {
		if p.TenantID == scope.ID() {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ReorderProducts(_ context.Context, scope tenant.Scope, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if p, ok := m.products[id]; !ok || p.TenantID != scope.ID() {
			return ErrProductNotFound
		}
	}
	for i, id := range ids {
		m.products[id].Position = i
	}
	return nil
}

func byPosition(pi, pj int, ci, cj time.Time) bool {
	if pi != pj {
		return pi < pj
	}
	return ci.Before(cj)
}
