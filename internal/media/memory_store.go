package media

import (
	"context"
	"sort"
	"sync"

	"github.com/patissio/patissio/internal/tenant"
)

// MemoryStore keeps image metadata in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	images map[string]*Image
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{images: make(map[string]*Image)}
}

func (m *MemoryStore) Create(_ context.Context, img *Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *img
	m.images[img.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, scope tenant.Scope, id string) (*Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	img, ok := m.images[id]
	if !ok || img.TenantID != scope.ID() {
		return nil, ErrImageNotFound
	}
	cp := *img
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context, scope tenant.Scope, kind Kind) ([]*Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*Image{}
	for _, img := range m.images {
		if img.TenantID != scope.ID() || (kind != "" && img.Kind != kind) {
			continue
		}
		cp := *img
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, scope tenant.Scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[id]
	if !ok || img.TenantID != scope.ID() {
		return ErrImageNotFound
	}
	delete(m.images, id)
	return nil
}
