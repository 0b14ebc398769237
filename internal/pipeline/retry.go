package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/apatheia-labs/docscribe/internal/extract"
)

// BackoffPolicy maps an attempt number and a failed attempt's error to a
// delay. Pure; no clock access.
type BackoffPolicy struct {
	MaxAttempts    int           // total tries, default 3
	BaseDelay      time.Duration // linear backoff unit, default 5s
	RateLimitDelay time.Duration // flat delay on rate-limit errors, default 30s
}

func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts:    3,
		BaseDelay:      5 * time.Second,
		RateLimitDelay: 30 * time.Second,
	}
}

// Delay returns the wait before retrying after a failure on the given
// zero-based attempt. Rate-limited errors always get the flat delay,
// regardless of attempt number; everything else backs off linearly.
func (p BackoffPolicy) Delay(attempt int, err error) time.Duration {
	if IsRateLimited(err) {
		return p.RateLimitDelay
	}
	return p.BaseDelay * time.Duration(attempt+1)
}

// IsRateLimited reports whether err carries the service's rate-limit /
// resource-exhaustion signal. The service does not guarantee structured
// error codes, so this inspects the error text. The rule is deliberately
// narrow: a "429" status code or a RESOURCE_EXHAUSTED status.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") ||
		strings.Contains(s, "resource exhausted") ||
		strings.Contains(s, "resource_exhausted")
}

// FallbackMarker is the inline placeholder written when a page's retries
// are exhausted.
func FallbackMarker(pageIndex int, err error) string {
	return fmt.Sprintf("<!-- Error processing page %d: %v -->", pageIndex, err)
}

// SleepFunc waits for d or until ctx is done. Injected so retry tests run
// without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retrier wraps a single page's extraction call with bounded retry.
// Page-level failure never escapes it: on exhaustion the result is the
// fallback marker, so one unreadable page cannot abort the document. The
// only error it returns is context cancellation, which abandons the page.
type Retrier struct {
	policy BackoffPolicy
	sleep  SleepFunc
	log    *slog.Logger
}

func NewRetrier(policy BackoffPolicy, logger *slog.Logger) *Retrier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 5 * time.Second
	}
	if policy.RateLimitDelay <= 0 {
		policy.RateLimitDelay = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{policy: policy, sleep: sleepContext, log: logger}
}

// Run executes op up to MaxAttempts times. It returns the page text on
// success, or the fallback marker (degraded=true) once attempts are
// exhausted.
func (r *Retrier) Run(ctx context.Context, pageIndex int, op func(ctx context.Context) (extract.PageResult, error)) (text string, degraded bool, err error) {
	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		res, opErr := op(ctx)
		if opErr == nil {
			return res.Text, false, nil
		}
		lastErr = opErr

		delay := r.policy.Delay(attempt, opErr)
		r.log.Warn("retry.attempt_failed",
			"page", pageIndex,
			"attempt", attempt+1,
			"max_attempts", r.policy.MaxAttempts,
			"rate_limited", IsRateLimited(opErr),
			"delay_ms", delay.Milliseconds(),
			"error", opErr,
		)

		if attempt < r.policy.MaxAttempts-1 {
			if serr := r.sleep(ctx, delay); serr != nil {
				return "", false, serr
			}
		}
	}

	r.log.Error("retry.exhausted", "page", pageIndex, "error", lastErr)
	return FallbackMarker(pageIndex, lastErr), true, nil
}
