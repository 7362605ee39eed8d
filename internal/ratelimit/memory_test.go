package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_EnforcesWindowLimit(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2026, 3, 15, 12, 0, 5, 0, time.UTC)
	key := SpendKey(42)

	for i := 0; i < 3; i++ {
		res, errAllow := limiter.Allow(context.Background(), key, 3, now)
		if errAllow != nil {
			t.Fatalf("Allow: %v", errAllow)
		}
		if !res.Allowed {
			t.Fatalf("request %d denied under limit", i+1)
		}
		if res.Remaining != 3-(i+1) {
			t.Fatalf("remaining = %d after request %d", res.Remaining, i+1)
		}
	}

	res, _ := limiter.Allow(context.Background(), key, 3, now)
	if res.Allowed {
		t.Fatalf("fourth request allowed over limit")
	}
	if res.Reset.Before(now) {
		t.Fatalf("reset %s before now %s", res.Reset, now)
	}
}

func TestMemoryLimiter_NewWindowResetsCount(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2026, 3, 15, 12, 0, 30, 0, time.UTC)
	key := SpendKey(7)

	for i := 0; i < 2; i++ {
		limiter.Allow(context.Background(), key, 2, now)
	}
	if res, _ := limiter.Allow(context.Background(), key, 2, now); res.Allowed {
		t.Fatalf("third request in window allowed")
	}

	later := now.Add(time.Minute)
	res, _ := limiter.Allow(context.Background(), key, 2, later)
	if !res.Allowed {
		t.Fatalf("request in fresh window denied")
	}
}

func TestMemoryLimiter_ZeroLimitDisables(t *testing.T) {
	limiter := NewMemoryLimiter()
	for i := 0; i < 100; i++ {
		res, _ := limiter.Allow(context.Background(), SpendKey(1), 0, time.Now())
		if !res.Allowed {
			t.Fatalf("zero limit must disable limiting")
		}
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Now()

	limiter.Allow(context.Background(), SpendKey(1), 1, now)
	if res, _ := limiter.Allow(context.Background(), SpendKey(1), 1, now); res.Allowed {
		t.Fatalf("second request for same key allowed")
	}
	if res, _ := limiter.Allow(context.Background(), SpendKey(2), 1, now); !res.Allowed {
		t.Fatalf("other key denied")
	}
}
