package billing

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory subscription store for demo/development.
type MemoryStore struct {
	mu     sync.RWMutex
	byUser map[string]*Subscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUser: make(map[string]*Subscription)}
}

func (m *MemoryStore) Upsert(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byUser[s.UserID]; ok {
		s.ID = existing.ID
		s.CreatedAt = existing.CreatedAt
	}
	cp := *s
	m.byUser[s.UserID] = &cp
	return nil
}

func (m *MemoryStore) GetByUserID(_ context.Context, userID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byUser[userID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) GetByStripeID(_ context.Context, stripeSubscriptionID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.byUser {
		if s.StripeSubscriptionID == stripeSubscriptionID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}
