package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"harvester/internal/logger"
)

// ErrRateLimitExceeded is returned when a slot cannot be reserved within
// the acquire timeout. Callers get an explicit failure instead of blocking
// forever.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Status is a point-in-time snapshot of the limiter.
type Status struct {
	InFlight           int `json:"in_flight"`
	RequestsLastMinute int `json:"requests_last_minute"`
	MaxConcurrent      int `json:"max_concurrent"`
	MaxRequestsPerMin  int `json:"max_requests_per_minute"`
}

// Limiter gates scraping work behind two budgets at once: a concurrency
// cap on in-flight jobs and a sliding one-minute request budget. Both are
// reserved atomically by Acquire.
type Limiter struct {
	log *logger.Logger

	mu       sync.Mutex
	inFlight int
	window   []time.Time

	maxConcurrent  int
	maxRequests    int
	acquireTimeout time.Duration
	pollInterval   time.Duration
	now            func() time.Time
}

func New(maxConcurrent, maxRequestsPerMinute int, acquireTimeout time.Duration) *Limiter {
	return &Limiter{
		log:            logger.New("RateLimiter"),
		maxConcurrent:  maxConcurrent,
		maxRequests:    maxRequestsPerMinute,
		acquireTimeout: acquireTimeout,
		pollInterval:   100 * time.Millisecond,
		now:            time.Now,
	}
}

// Acquire blocks until both a concurrency slot and a request-budget entry
// are available, then reserves both. It fails with ErrRateLimitExceeded
// once the acquire timeout elapses, or with the context error if the
// caller gives up first.
func (l *Limiter) Acquire(ctx context.Context) error {
	deadline := l.now().Add(l.acquireTimeout)
	for {
		if l.tryAcquire() {
			return nil
		}
		if l.now().After(deadline) {
			l.log.LogWarnf("acquire timed out after %s", l.acquireTimeout)
			return ErrRateLimitExceeded
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}
}

func (l *Limiter) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()
	if l.inFlight >= l.maxConcurrent || len(l.window) >= l.maxRequests {
		return false
	}
	l.inFlight++
	l.window = append(l.window, l.now())
	return true
}

// Release frees the concurrency slot only. The request-count entry expires
// naturally as the minute window slides.
func (l *Limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight > 0 {
		l.inFlight--
	}
}

func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()
	return Status{
		InFlight:           l.inFlight,
		RequestsLastMinute: len(l.window),
		MaxConcurrent:      l.maxConcurrent,
		MaxRequestsPerMin:  l.maxRequests,
	}
}

func (l *Limiter) pruneLocked() {
	cutoff := l.now().Add(-time.Minute)
	i := 0
	for i < len(l.window) && l.window[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		l.window = append(l.window[:0], l.window[i:]...)
	}
}
