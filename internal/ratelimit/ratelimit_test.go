package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBackend(t *testing.T) (*MemoryBackend, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMemoryBackend(time.Hour)
	m.now = clk.now
	t.Cleanup(m.Stop)
	return m, clk
}

func TestMemoryBackend_WindowAndBlock(t *testing.T) {
	m, clk := newTestBackend(t)
	ctx := context.Background()
	b := Bucket{Name: "test", Requests: 3, Window: time.Minute, Block: 10 * time.Minute}

	for i := 0; i < 3; i++ {
		d, err := m.Hit(ctx, b, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "hit %d", i+1)
	}

	d, _ := m.Hit(ctx, b, "1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, 10*time.Minute, d.RetryAfter)

	// The window rolling over does not lift the block.
	clk.advance(2 * time.Minute)
	d, _ = m.Hit(ctx, b, "1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, 8*time.Minute, d.RetryAfter)

	// Other keys and buckets are independent.
	d, _ = m.Hit(ctx, b, "5.6.7.8")
	assert.True(t, d.Allowed)
	d, _ = m.Hit(ctx, Bucket{Name: "other", Requests: 1, Window: time.Minute, Block: time.Minute}, "1.2.3.4")
	assert.True(t, d.Allowed)

	clk.advance(8 * time.Minute)
	d, _ = m.Hit(ctx, b, "1.2.3.4")
	assert.True(t, d.Allowed)
}

func TestMemoryBackend_WindowResets(t *testing.T) {
	m, clk := newTestBackend(t)
	ctx := context.Background()
	b := Bucket{Name: "test", Requests: 2, Window: time.Minute, Block: time.Hour}

	m.Hit(ctx, b, "k")
	m.Hit(ctx, b, "k")
	clk.advance(time.Minute)

	d, _ := m.Hit(ctx, b, "k")
	assert.True(t, d.Allowed)
}

func TestMemoryBackend_Sweep(t *testing.T) {
	m, clk := newTestBackend(t)
	b := Bucket{Name: "test", Requests: 1, Window: time.Minute, Block: time.Minute}
	m.Hit(context.Background(), b, "k")

	clk.advance(2 * time.Hour)
	m.sweep()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.entries)
}

func TestLimit_Returns429WithRetryAfter(t *testing.T) {
	m, _ := newTestBackend(t)
	l := NewWithBuckets(m, map[string]Bucket{
		"tiny": {Name: "tiny", Requests: 1, Window: time.Minute, Block: 90 * time.Second},
	})

	r := gin.New()
	r.POST("/auth/login", l.Limit("tiny"), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.Header.Set("CF-Connecting-IP", "203.0.113.9")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send().Code)

	w := send()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "90", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
}

type failingBackend struct{}

func (failingBackend) Hit(context.Context, Bucket, string) (Decision, error) {
	return Decision{}, errors.New("connection refused")
}

func TestLimit_FailsOpen(t *testing.T) {
	l := New(failingBackend{})
	r := gin.New()
	r.GET("/x", l.Limit(BucketGlobal), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLimit_UnknownBucketPanics(t *testing.T) {
	assert.Panics(t, func() { New(failingBackend{}).Limit("nope") })
}

func TestDefaultBuckets(t *testing.T) {
	assert.Equal(t, 5, DefaultBuckets[BucketAuthStrict].Requests)
	assert.Equal(t, time.Hour, DefaultBuckets[BucketAuthStrict].Block)
	assert.Equal(t, 20, DefaultBuckets[BucketUploads].Requests)
	assert.Equal(t, time.Hour, DefaultBuckets[BucketUploads].Window)
	assert.Equal(t, 1000, DefaultBuckets[BucketGlobal].Requests)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"cloudflare wins", map[string]string{"CF-Connecting-IP": "1.1.1.1", "X-Real-IP": "2.2.2.2", "X-Forwarded-For": "3.3.3.3"}, "9.9.9.9:1234", "1.1.1.1"},
		{"real ip", map[string]string{"X-Real-IP": "2.2.2.2", "X-Forwarded-For": "3.3.3.3"}, "9.9.9.9:1234", "2.2.2.2"},
		{"first forwarded", map[string]string{"X-Forwarded-For": " 3.3.3.3 , 4.4.4.4"}, "9.9.9.9:1234", "3.3.3.3"},
		{"remote addr", nil, "9.9.9.9:1234", "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
