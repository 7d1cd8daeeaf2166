package notify

import (
	"errors"
	"testing"
	"time"
)

func TestRateLimiterConsumesToCapacity(t *testing.T) {
	l := NewRateLimiter(time.Minute, 3)
	for i := 0; i < 3; i++ {
		res, err := l.CheckAndConsume("push", 1)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if res.Remaining != 2-i {
			t.Errorf("consume %d: remaining = %d, want %d", i, res.Remaining, 2-i)
		}
	}
	_, err := l.CheckAndConsume("push", 1)
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rl.Limit != 3 {
		t.Errorf("limit = %d, want 3", rl.Limit)
	}
	if rl.RetryAfter <= 0 || rl.RetryAfter > time.Minute {
		t.Errorf("retry after = %v, want within the window", rl.RetryAfter)
	}
}

func TestRateLimiterRejectionDoesNotConsume(t *testing.T) {
	l := NewRateLimiter(time.Minute, 5)
	if _, err := l.CheckAndConsume("bulk", 4); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if _, err := l.CheckAndConsume("bulk", 3); err == nil {
		t.Fatal("expected rejection for oversized consume")
	}
	// The rejected consume must not have touched the window.
	res, err := l.CheckAndConsume("bulk", 1)
	if err != nil {
		t.Fatalf("consume after rejection: %v", err)
	}
	if res.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", res.Remaining)
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	l := NewRateLimiter(time.Minute, 1)
	base := time.Now()
	l.now = func() time.Time { return base }

	if _, err := l.CheckAndConsume("sms", 1); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := l.CheckAndConsume("sms", 1); err == nil {
		t.Fatal("expected rejection within window")
	}

	l.now = func() time.Time { return base.Add(time.Minute) }
	if _, err := l.CheckAndConsume("sms", 1); err != nil {
		t.Fatalf("consume after window reset: %v", err)
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	l := NewRateLimiter(time.Minute, 1)
	if _, err := l.CheckAndConsume("a", 1); err != nil {
		t.Fatalf("consume a: %v", err)
	}
	if _, err := l.CheckAndConsume("b", 1); err != nil {
		t.Fatalf("consume b: %v", err)
	}
	l.Reset("a")
	if _, err := l.CheckAndConsume("a", 1); err != nil {
		t.Fatalf("consume a after reset: %v", err)
	}
}
