package dispatch

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces outbound sends so the transport stays under the chat API
// rate limit. One token per SendDelay, burst of one.
type Pacer struct {
	limiter *rate.Limiter
}

func NewPacer(delay time.Duration) *Pacer {
	if delay <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}

	return &Pacer{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
