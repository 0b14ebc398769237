package pipeline

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces successive page requests to stay under the service's
// steady-state rate limit. Independent of retry backoff: it applies even
// when every call succeeds.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewPacer returns a token-bucket pacer with the given inter-page
// interval. Burst 1 means the first page never waits. A non-positive
// interval disables pacing.
func NewPacer(interval time.Duration) Pacer {
	if interval <= 0 {
		return noopPacer{}
	}
	return &intervalPacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

type intervalPacer struct {
	limiter *rate.Limiter
}

func (p *intervalPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

type noopPacer struct{}

func (noopPacer) Wait(ctx context.Context) error { return ctx.Err() }
