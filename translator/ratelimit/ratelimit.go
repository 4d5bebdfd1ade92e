package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter implements rate limiting for tokens per minute (TPM) and requests per minute (RPM).
// A limit <= 0 disables that dimension.
type Limiter struct {
	tokens   *rate.Limiter
	requests *rate.Limiter

	mu          sync.Mutex
	pausedUntil time.Time
}

// NewLimiter creates a new rate limiter with specified TPM and RPM limits
func NewLimiter(tpm, rpm int) *Limiter {
	return &Limiter{
		tokens:   rate.NewLimiter(perMinute(tpm), burst(tpm)),
		requests: rate.NewLimiter(perMinute(rpm), burst(rpm)),
	}
}

func perMinute(n int) rate.Limit {
	if n <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(n) / 60)
}

func burst(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// Wait blocks until the request can proceed within rate limits
func (l *Limiter) Wait(ctx context.Context, tokensNeeded int) error {
	if err := l.waitPause(ctx); err != nil {
		return err
	}

	if err := l.requests.Wait(ctx); err != nil {
		return err
	}

	if tokensNeeded <= 0 || l.tokens.Limit() == rate.Inf {
		return nil
	}
	// A request larger than the whole budget waits for a full bucket
	if b := l.tokens.Burst(); tokensNeeded > b {
		tokensNeeded = b
	}
	return l.tokens.WaitN(ctx, tokensNeeded)
}

// Pause blocks every caller of Wait for d, typically after a 429 reply
func (l *Limiter) Pause(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	until := time.Now().Add(d)
	if until.After(l.pausedUntil) {
		l.pausedUntil = until
	}
}

func (l *Limiter) waitPause(ctx context.Context) error {
	l.mu.Lock()
	wait := time.Until(l.pausedUntil)
	l.mu.Unlock()

	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SetTPM updates the tokens per minute limit
func (l *Limiter) SetTPM(tpm int) {
	l.tokens.SetLimit(perMinute(tpm))
	l.tokens.SetBurst(burst(tpm))
}

// SetRPM updates the requests per minute limit
func (l *Limiter) SetRPM(rpm int) {
	l.requests.SetLimit(perMinute(rpm))
	l.requests.SetBurst(burst(rpm))
}

// Pacer spaces consecutive calls at least delay apart. The first call is not delayed.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer; a delay <= 0 never waits
func NewPacer(delay time.Duration) *Pacer {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Pacer{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next call may start
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
