package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for pacing calls against a rate-sensitive collaborator
type Limiter interface {
	// Allow reports whether a call may proceed now, consuming the slot if so
	Allow() bool
	// Wait blocks until a call may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset forgets previous calls so the next one proceeds immediately
	Reset()
}

// Pacer spaces calls at least interval apart. The first call never waits.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	limiter  *rate.Limiter
}

// NewPacer creates a pacer; an interval of zero or less disables pacing
func NewPacer(interval time.Duration) *Pacer {
	p := &Pacer{interval: interval}
	p.limiter = p.newLimiter()
	return p
}

func (p *Pacer) newLimiter() *rate.Limiter {
	if p.interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(p.interval), 1)
}

func (p *Pacer) current() *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limiter
}

// Allow checks if a call can proceed without waiting
func (p *Pacer) Allow() bool {
	return p.current().Allow()
}

// Wait blocks until the next slot is available
func (p *Pacer) Wait(ctx context.Context) error {
	return p.current().Wait(ctx)
}

// Reset makes the next call proceed immediately
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limiter = p.newLimiter()
}

// Interval returns the configured minimum spacing
func (p *Pacer) Interval() time.Duration {
	return p.interval
}
