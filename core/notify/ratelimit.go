package notify

import (
	"fmt"
	"sync"
	"time"
)

// LimitResult reports the state of a rate-limit window after a successful
// consume.
type LimitResult struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// RateLimitError is returned when a window has no capacity left. It is a
// caller-facing rejection, not a fault.
type RateLimitError struct {
	Key        string
	Limit      int
	RetryAfter time.Duration
	ResetAt    time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: retry in %ds (limit %d)",
		e.Key, int(e.RetryAfter.Seconds()+0.999), e.Limit)
}

type limitWindow struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a fixed-window counter keyed by an arbitrary string.
// Windows are independent per key and purely process-local.
type RateLimiter struct {
	window   time.Duration
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	windows map[string]*limitWindow
}

// NewRateLimiter creates a limiter allowing capacity consumes per window.
func NewRateLimiter(window time.Duration, capacity int) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if capacity <= 0 {
		capacity = 100
	}
	return &RateLimiter{
		window:   window,
		capacity: capacity,
		now:      time.Now,
		windows:  make(map[string]*limitWindow),
	}
}

// CheckAndConsume atomically consumes amount units from the key's current
// window. An expired window is reset before the check. When the consume would
// exceed capacity the window is left untouched and a *RateLimitError is
// returned.
func (l *RateLimiter) CheckAndConsume(key string, amount int) (LimitResult, error) {
	if amount <= 0 {
		amount = 1
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &limitWindow{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}
	if w.count+amount > l.capacity {
		return LimitResult{}, &RateLimitError{
			Key:        key,
			Limit:      l.capacity,
			RetryAfter: w.resetAt.Sub(now),
			ResetAt:    w.resetAt,
		}
	}
	w.count += amount
	return LimitResult{Limit: l.capacity, Remaining: l.capacity - w.count, ResetAt: w.resetAt}, nil
}

// Reset clears the window for the given key.
func (l *RateLimiter) Reset(key string) {
	l.mu.Lock()
	delete(l.windows, key)
	l.mu.Unlock()
}
