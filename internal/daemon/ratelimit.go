package daemon

import (
	"context"
	"time"

	"go.uber.org/ratelimit"
	"golang.org/x/time/rate"
)

// LimiterWrapper adapts a token-bucket limiter to the blocking Take
// interface the sweeper consumes, so bursty catch-up sweeps stay within
// the configured write rate.
type LimiterWrapper struct {
	Limiter *rate.Limiter
}

func (l LimiterWrapper) Take() time.Time {
	_ = l.Limiter.Wait(context.Background())
	return time.Now()
}

var _ ratelimit.Limiter = LimiterWrapper{}
