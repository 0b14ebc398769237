package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apatheia-labs/docscribe/internal/extract"
)

func newTestRetrier(t *testing.T, delays *[]time.Duration) *Retrier {
	t.Helper()
	r := NewRetrier(DefaultBackoffPolicy(), testLogger())
	r.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
	return r
}

func TestRetrier_SuccessFirstAttempt(t *testing.T) {
	var delays []time.Duration
	r := newTestRetrier(t, &delays)

	calls := 0
	text, degraded, err := r.Run(context.Background(), 1, func(ctx context.Context) (extract.PageResult, error) {
		calls++
		return extract.PageResult{Text: "<div>hello</div>"}, nil
	})

	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, "<div>hello</div>", text)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays, "no backoff on success")
}

func TestRetrier_ExhaustionProducesFallback(t *testing.T) {
	var delays []time.Duration
	r := newTestRetrier(t, &delays)

	calls := 0
	text, degraded, err := r.Run(context.Background(), 7, func(ctx context.Context) (extract.PageResult, error) {
		calls++
		return extract.PageResult{}, errors.New("boom: connection reset")
	})

	require.NoError(t, err, "page-level failure must never propagate")
	assert.True(t, degraded)
	assert.Equal(t, 3, calls, "exactly maxAttempts tries, never a fourth")
	assert.Equal(t, "<!-- Error processing page 7: boom: connection reset -->", text)
	// Two sleeps (between the three attempts), linear backoff.
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, delays)
}

func TestRetrier_RecoversMidway(t *testing.T) {
	var delays []time.Duration
	r := newTestRetrier(t, &delays)

	calls := 0
	text, degraded, err := r.Run(context.Background(), 2, func(ctx context.Context) (extract.PageResult, error) {
		calls++
		if calls < 3 {
			return extract.PageResult{}, errors.New("transient")
		}
		return extract.PageResult{Text: "page two"}, nil
	})

	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, "page two", text)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, delays)
}

func TestRetrier_RateLimitFlatDelay(t *testing.T) {
	var delays []time.Duration
	r := newTestRetrier(t, &delays)

	calls := 0
	text, degraded, err := r.Run(context.Background(), 1, func(ctx context.Context) (extract.PageResult, error) {
		calls++
		return extract.PageResult{}, errors.New("gemini: status 429 (RESOURCE_EXHAUSTED): quota exceeded")
	})

	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Equal(t, 3, calls)
	assert.Contains(t, text, "page 1")
	assert.Contains(t, text, "429")
	// Flat 30s regardless of attempt number, even the first.
	assert.Equal(t, []time.Duration{30 * time.Second, 30 * time.Second}, delays)
}

func TestRetrier_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetrier(DefaultBackoffPolicy(), testLogger())
	r.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, _, err := r.Run(ctx, 1, func(ctx context.Context) (extract.PageResult, error) {
		return extract.PageResult{}, errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffPolicy_Delay(t *testing.T) {
	p := DefaultBackoffPolicy()

	tests := []struct {
		name    string
		attempt int
		err     error
		want    time.Duration
	}{
		{"first failure", 0, errors.New("timeout"), 5 * time.Second},
		{"second failure", 1, errors.New("timeout"), 10 * time.Second},
		{"third failure", 2, errors.New("timeout"), 15 * time.Second},
		{"rate limit first attempt", 0, errors.New("HTTP 429 Too Many Requests"), 30 * time.Second},
		{"rate limit later attempt", 2, errors.New("Resource exhausted"), 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Delay(tt.attempt, tt.err))
		})
	}
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("connection refused"), false},
		{"status 429", errors.New("gemini: status 429 (RESOURCE_EXHAUSTED): slow down"), true},
		{"resource exhausted sentence case", errors.New("Resource exhausted: quota"), true},
		{"api status token", errors.New("rpc error: RESOURCE_EXHAUSTED"), true},
		{"500 is not rate limiting", errors.New("gemini: status 500 (INTERNAL): oops"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimited(tt.err))
		})
	}
}

func TestFallbackMarker(t *testing.T) {
	m := FallbackMarker(12, errors.New("no route to host"))
	assert.Equal(t, "<!-- Error processing page 12: no route to host -->", m)
}
