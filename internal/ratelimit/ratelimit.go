// Package ratelimit provides a wrapper around golang.org/x/time/rate.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/nouns-dao/nouns-onchain/internal/apperror"
)

// Limiter gates outbound requests.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing requestsPerMinute with a 10% burst.
// A non-positive rate disables limiting.
func New(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}

	rps := float64(requestsPerMinute) / 60.0
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Wait blocks until a token is available. It fails fast when the token
// would arrive after ctx's deadline. Context errors stay reachable through
// errors.Is.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err))
	}
	return nil
}

// Allow reports whether a request may happen now.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

