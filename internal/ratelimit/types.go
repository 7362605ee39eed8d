package ratelimit

import (
	"context"
	"strconv"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter bounds how often a key may act inside a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}

// SpendKey builds the limiter key for a user's spend attempts.
func SpendKey(userID uint64) string {
	return "spend:user:" + strconv.FormatUint(userID, 10)
}
