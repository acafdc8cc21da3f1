package embed

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// LimiterConfig bounds calls into an embedding provider.
type LimiterConfig struct {
	// RequestsPerSecond caps the request rate. If 0, unlimited.
	RequestsPerSecond float64

	// Burst is the number of requests allowed at once under the rate
	// limit. If 0, defaults to 1.
	Burst int

	// MaxConcurrent caps in-flight requests. If 0, unlimited.
	MaxConcurrent int64
}

// Limiter throttles provider calls. A nil *Limiter allows everything.
type Limiter struct {
	sem      *semaphore.Weighted // nil if unlimited
	limiter  *rate.Limiter       // nil if unlimited
	inFlight atomic.Int64
}

// NewLimiter returns a Limiter for cfg, or nil when cfg sets no limit.
func NewLimiter(cfg LimiterConfig) *Limiter {
	if cfg.RequestsPerSecond <= 0 && cfg.MaxConcurrent <= 0 {
		return nil
	}
	l := &Limiter{}
	if cfg.MaxConcurrent > 0 {
		l.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return l
}

// Acquire blocks until a request may start or ctx is canceled. Every
// successful Acquire must be paired with Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			if l.sem != nil {
				l.sem.Release(1)
			}
			return err
		}
	}
	l.inFlight.Add(1)
	return nil
}

// Release ends a request started by Acquire.
func (l *Limiter) Release() {
	if l == nil {
		return
	}
	l.inFlight.Add(-1)
	if l.sem != nil {
		l.sem.Release(1)
	}
}

// InFlight returns the number of requests currently between Acquire and
// Release.
func (l *Limiter) InFlight() int64 {
	if l == nil {
		return 0
	}
	return l.inFlight.Load()
}
