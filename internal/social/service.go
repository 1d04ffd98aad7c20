package social

import (
	"context"
	"sync"
	"time"

	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/tenant"
)

// CacheTTL is how long a shop's feed is served from memory.
const CacheTTL = 10 * time.Minute

type cached struct {
	handle  string
	posts   []Post
	expires time.Time
}

// Service serves storefront feeds. It never fails: any problem yields an
// empty list.
type Service struct {
	feed Feed
	now  func() time.Time

	mu    sync.Mutex
	cache map[string]cached
}

func NewService(feed Feed) *Service {
	return &Service{feed: feed, now: time.Now, cache: make(map[string]cached)}
}

// Posts returns the shop's recent posts, or an empty list when the shop is
// below premium, has no handle, or the upstream fails.
func (s *Service) Posts(ctx context.Context, t *tenant.Tenant) []Post {
	if !t.Plan.Features().InstagramFeed || t.InstagramHandle == "" {
		return []Post{}
	}

	now := s.now()
	s.mu.Lock()
	entry, ok := s.cache[t.ID]
	s.mu.Unlock()
	if ok && entry.handle == t.InstagramHandle && now.Before(entry.expires) {
		return entry.posts
	}

	posts, err := s.feed.Recent(ctx, t.InstagramHandle, MaxPosts)
	if err != nil {
		logging.L(ctx).Warn("instagram feed unavailable", "handle", t.InstagramHandle, "error", err)
		return []Post{}
	}

	s.mu.Lock()
	s.cache[t.ID] = cached{handle: t.InstagramHandle, posts: posts, expires: now.Add(CacheTTL)}
	s.mu.Unlock()
	return posts
}

// Sweep drops expired entries.
func (s *Service) Sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.cache {
		if !now.Before(e.expires) {
			delete(s.cache, id)
		}
	}
}

// RunSweeper calls Sweep every CacheTTL until ctx is done.
func (s *Service) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(CacheTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
