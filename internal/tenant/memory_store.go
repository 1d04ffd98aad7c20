package tenant

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory tenant store for demo/development.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant // by ID
	slugs   map[string]string  // slug → ID
	domains map[string]string  // custom domain → ID
}

// NewMemoryStore creates a new in-memory tenant store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[string]*Tenant),
		slugs:   make(map[string]string),
		domains: make(map[string]string),
	}
}

func (m *MemoryStore) Create(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.slugs[t.Slug]; exists {
		return ErrSlugTaken
	}
	if t.CustomDomain != "" {
		if _, exists := m.domains[t.CustomDomain]; exists {
			return ErrDomainTaken
		}
		m.domains[t.CustomDomain] = t.ID
	}

	cp := *t
	m.tenants[t.ID] = &cp
	m.slugs[t.Slug] = t.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) GetBySlug(_ context.Context, slug string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lookup(m.slugs, slug)
}

func (m *MemoryStore) GetByCustomDomain(_ context.Context, domain string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lookup(m.domains, strings.ToLower(domain))
}

func (m *MemoryStore) lookup(index map[string]string, key string) (*Tenant, error) {
	id, ok := index[key]
	if !ok {
		return nil, ErrTenantNotFound
	}
	cp := *m.tenants[id]
	return &cp, nil
}

func (m *MemoryStore) GetByUserID(_ context.Context, userID string) (*Tenant, error) {
	return m.find(func(t *Tenant) bool { return t.UserID == userID })
}

func (m *MemoryStore) GetByStripeAccount(_ context.Context, accountID string) (*Tenant, error) {
	if accountID == "" {
		return nil, ErrTenantNotFound
	}
	return m.find(func(t *Tenant) bool { return t.Stripe.AccountID == accountID })
}

func (m *MemoryStore) find(match func(*Tenant) bool) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.tenants {
		if match(t) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTenantNotFound
}

func (m *MemoryStore) Update(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.tenants[t.ID]
	if !ok {
		return ErrTenantNotFound
	}
	if t.Slug != old.Slug {
		if _, taken := m.slugs[t.Slug]; taken {
			return ErrSlugTaken
		}
	}
	if t.CustomDomain != "" && t.CustomDomain != old.CustomDomain {
		if _, taken := m.domains[t.CustomDomain]; taken {
			return ErrDomainTaken
		}
	}

	delete(m.slugs, old.Slug)
	if old.CustomDomain != "" {
		delete(m.domains, old.CustomDomain)
	}
	m.slugs[t.Slug] = t.ID
	if t.CustomDomain != "" {
		m.domains[t.CustomDomain] = t.ID
	}

	t.UpdatedAt = time.Now().UTC()
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *MemoryStore) List(_ context.Context, f ListFilter) ([]*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(f.Query)
	var out []*Tenant
	for _, t := range m.tenants {
		if q != "" && !strings.Contains(strings.ToLower(t.BusinessName), q) && !strings.Contains(t.Slug, q) {
			continue
		}
		if f.Plan != "" && t.Plan != f.Plan {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*Tenant{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) CountByPlan(_ context.Context) (map[Plan]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[Plan]int, len(Plans))
	for _, t := range m.tenants {
		counts[t.Plan]++
	}
	return counts, nil
}

var _ Store = (*MemoryStore)(nil)
