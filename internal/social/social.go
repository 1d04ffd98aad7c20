// Package social shows a premium shop's recent Instagram posts on its
// storefront.
package social

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/patissio/patissio/internal/circuitbreaker"
	"github.com/patissio/patissio/internal/metrics"
	"github.com/patissio/patissio/internal/retry"
	"github.com/tidwall/gjson"
)

const upstreamName = "instagram"

// MaxPosts is how many posts a storefront shows.
const MaxPosts = 12

// ErrNotConfigured is returned when no feed API URL is set.
var ErrNotConfigured = errors.New("social: instagram api url not configured")

// Post is one media item of the feed.
type Post struct {
	ID        string    `json:"id"`
	Caption   string    `json:"caption,omitempty"`
	MediaType string    `json:"mediaType"`
	MediaURL  string    `json:"mediaUrl"`
	Permalink string    `json:"permalink"`
	Timestamp time.Time `json:"timestamp"`
}

// Feed returns recent posts for an Instagram handle.
type Feed interface {
	Recent(ctx context.Context, handle string, limit int) ([]Post, error)
}

// InstagramClient reads {baseURL}/users/{handle}/media.
type InstagramClient struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.Breaker
}

func NewInstagramClient(baseURL string, breaker *circuitbreaker.Breaker) *InstagramClient {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = 10 * time.Second
	return &InstagramClient{baseURL: strings.TrimRight(baseURL, "/"), http: client, breaker: breaker}
}

func (c *InstagramClient) Recent(ctx context.Context, handle string, limit int) ([]Post, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	var posts []Post
	err := c.breaker.Call(ctx, upstreamName, func(ctx context.Context) error {
		return retry.Do(ctx, fetchAttempts, 200*time.Millisecond, func(ctx context.Context) error {
			var err error
			posts, err = c.fetch(ctx, handle, limit)
			return err
		})
	})
	if err != nil {
		metrics.UpstreamFailuresTotal.WithLabelValues(upstreamName).Inc()
		return nil, err
	}
	return posts, nil
}

// fetchAttempts bounds retries of 5xx and transport failures within one
// breaker call.
const fetchAttempts = 2

func (c *InstagramClient) fetch(ctx context.Context, handle string, limit int) ([]Post, error) {
	u := fmt.Sprintf("%s/users/%s/media?limit=%d", c.baseURL, url.PathEscape(handle), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode/100 != 2 {
		err := fmt.Errorf("instagram: status %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(raw) {
		return nil, retry.Permanent(errors.New("instagram: malformed response"))
	}
	return parsePosts(gjson.GetBytes(raw, "data"), limit), nil
}

// parsePosts skips items without a media URL; carousels and videos keep
// their thumbnail.
func parsePosts(data gjson.Result, limit int) []Post {
	posts := []Post{}
	data.ForEach(func(_, item gjson.Result) bool {
		media := item.Get("media_url").String()
		if t := item.Get("media_type").String(); t == "VIDEO" && item.Get("thumbnail_url").Exists() {
			media = item.Get("thumbnail_url").String()
		}
		if media == "" {
			return true
		}
		ts, _ := time.Parse("2006-01-02T15:04:05-0700", item.Get("timestamp").String())
		posts = append(posts, Post{
			ID:        item.Get("id").String(),
			Caption:   item.Get("caption").String(),
			MediaType: item.Get("media_type").String(),
			MediaURL:  media,
			Permalink: item.Get("permalink").String(),
			Timestamp: ts.UTC(),
		})
		return len(posts) < limit
	})
	return posts
}

var _ Feed = (*InstagramClient)(nil)
