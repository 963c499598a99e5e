package common

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Throttle paces outbound venue requests.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle allows rps requests per second with the given burst.
// A non-positive rps disables throttling.
func NewThrottle(rps float64, burst int) *Throttle {
	if rps <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a request may be sent or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle: %w", err)
	}
	return nil
}
