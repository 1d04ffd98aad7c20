package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count        int
	start        time.Time
	blockedUntil time.Time
}

// MemoryBackend keeps counters in process. A janitor goroutine drops
// expired entries.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]*window
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryBackend creates a memory backend and starts its janitor.
func NewMemoryBackend(cleanupInterval time.Duration) *MemoryBackend {
	m := &MemoryBackend{
		entries: make(map[string]*window),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go m.cleanup(cleanupInterval)
	return m
}

func (m *MemoryBackend) Hit(_ context.Context, b Bucket, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	k := b.Name + ":" + key
	w, ok := m.entries[k]
	if !ok {
		w = &window{start: now}
		m.entries[k] = w
	}

	if now.Before(w.blockedUntil) {
		return Decision{RetryAfter: w.blockedUntil.Sub(now)}, nil
	}
	if now.Sub(w.start) >= b.Window {
		w.start = now
		w.count = 0
	}

	w.count++
	if w.count > b.Requests {
		w.blockedUntil = now.Add(b.Block)
		w.count = 0
		return Decision{RetryAfter: b.Block}, nil
	}
	return Decision{Allowed: true}, nil
}

// cleanup removes entries whose window and block have both lapsed.
func (m *MemoryBackend) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

// The longest window in use bounds how long an idle entry can matter.
const maxWindow = time.Hour

func (m *MemoryBackend) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, w := range m.entries {
		if now.After(w.blockedUntil) && now.Sub(w.start) > maxWindow {
			delete(m.entries, k)
		}
	}
}

// Stop stops the cleanup goroutine
func (m *MemoryBackend) Stop() {
	m.once.Do(func() { close(m.stop) })
}

var _ Backend = (*MemoryBackend)(nil)
