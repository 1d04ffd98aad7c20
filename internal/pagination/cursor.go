// Package pagination provides keyset cursors for dashboard listings.
//
// Listings are ordered by (Rank asc, CreatedAt desc, ID desc). Rank lets a
// listing float a group to the top, e.g. unread notifications; it is zero
// for plain newest-first listings.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patissio/patissio/internal/validation"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Cursor represents a position in a paginated result set.
type Cursor struct {
	Rank      int
	CreatedAt time.Time
	ID        string
}

// Less reports whether c sorts before o.
func (c Cursor) Less(o Cursor) bool {
	if c.Rank != o.Rank {
		return c.Rank < o.Rank
	}
	if !c.CreatedAt.Equal(o.CreatedAt) {
		return c.CreatedAt.After(o.CreatedAt)
	}
	return c.ID > o.ID
}

// Encode returns an opaque cursor string.
func Encode(c Cursor) string {
	raw := fmt.Sprintf("%d|%d|%s", c.Rank, c.CreatedAt.UnixNano(), c.ID)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

var errInvalid = validation.Invalid("cursor", "is an invalid cursor")

// Decode parses an opaque cursor string. Returns nil for empty input.
func Decode(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, errInvalid
	}
	parts := strings.SplitN(string(raw), "|", 3)
	if len(parts) != 3 || parts[2] == "" {
		return nil, errInvalid
	}
	rank, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, errInvalid
	}
	nanos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, errInvalid
	}
	return &Cursor{
		Rank:      rank,
		CreatedAt: time.Unix(0, nanos).UTC(),
		ID:        parts[2],
	}, nil
}

// ParseLimit reads a ?limit= value, falling back to DefaultLimit and
// clamping to MaxLimit.
func ParseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return DefaultLimit
	}
	return min(n, MaxLimit)
}

// ComputePage takes a slice of items (fetched with limit+1), the requested limit,
// and a function to extract the sort key of an item.
// Returns the trimmed items, next cursor, and has_more flag.
func ComputePage[T any](items []T, limit int, key func(T) Cursor) ([]T, string, bool) {
	if len(items) <= limit {
		return items, "", false
	}
	items = items[:limit]
	return items, Encode(key(items[len(items)-1])), true
}
