package reconcile

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a leading-edge throttle over a one-token bucket. The first
// call in a window is allowed, later calls inside the same window are
// dropped and do not extend it.
//
// Thread-safety: safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	inner   *rate.Limiter
	now     func() time.Time
	dropped int
}

// NewLimiter creates a limiter with the given window. now may be nil, in
// which case time.Now is used. A window of zero or less never drops.
func NewLimiter(window time.Duration, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	limit := rate.Inf
	if window > 0 {
		limit = rate.Every(window)
	}
	return &Limiter{inner: rate.NewLimiter(limit, 1), now: now}
}

// Allow reports whether the caller may run now.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inner.AllowN(l.now(), 1) {
		return true
	}
	l.dropped++
	return false
}

// Dropped returns the number of calls rejected so far.
func (l *Limiter) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}
