package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int) (*Breaker, *clock) {
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := New(threshold, time.Minute)
	b.now = c.now
	return b, c
}

var errBoom = errors.New("boom")

func fail(context.Context) error { return errBoom }
func ok(context.Context) error   { return nil }

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Call(ctx, "hosting", fail), errBoom)
	}
	assert.Equal(t, StateClosed, b.State("hosting"))

	assert.ErrorIs(t, b.Call(ctx, "hosting", fail), errBoom)
	assert.Equal(t, StateOpen, b.State("hosting"))

	called := false
	err := b.Call(ctx, "hosting", func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)

	// Other upstreams are unaffected.
	assert.NoError(t, b.Call(ctx, "instagram", ok))
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(2)
	ctx := context.Background()

	_ = b.Call(ctx, "hosting", fail)
	require.NoError(t, b.Call(ctx, "hosting", ok))
	_ = b.Call(ctx, "hosting", fail)
	assert.Equal(t, StateClosed, b.State("hosting"))
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, c := newTestBreaker(1)
	ctx := context.Background()

	_ = b.Call(ctx, "hosting", fail)
	require.Equal(t, StateOpen, b.State("hosting"))

	c.advance(time.Minute)
	assert.True(t, b.Allow("hosting"))
	assert.Equal(t, StateHalfOpen, b.State("hosting"))
	assert.False(t, b.Allow("hosting"), "only one trial request while half-open")

	b.RecordFailure("hosting")
	assert.Equal(t, StateOpen, b.State("hosting"))

	c.advance(time.Minute)
	require.NoError(t, b.Call(ctx, "hosting", ok))
	assert.Equal(t, StateClosed, b.State("hosting"))
}

func TestBreaker_CancelledProbeDoesNotCount(t *testing.T) {
	b, c := newTestBreaker(1)
	_ = b.Call(context.Background(), "hosting", fail)
	c.advance(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Call(ctx, "hosting", func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, StateOpen, b.State("hosting"))
	assert.True(t, b.Allow("hosting"), "next caller may try immediately")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
