package ratelimit

import (
	"context"
	"fmt"
	"time"
)

const loginWindow = time.Minute

// WindowStore is a fixed-window counter backend.
type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	WindowState(ctx context.Context, key string) (int64, time.Duration, error)
}

// Limiter throttles login attempts per identifier and per client IP with a
// fixed one-minute window. A zero perMinute disables the limiter.
type Limiter struct {
	store     WindowStore
	perMinute int
}

func NewLimiter(store WindowStore, perMinute int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}
	return &Limiter{store: store, perMinute: perMinute}
}

// AllowLogin counts one login attempt against both the identifier and IP
// windows. It returns allowed=false with the seconds to wait when either
// window is exhausted.
func (l *Limiter) AllowLogin(ctx context.Context, identifier, ip string) (int64, bool, error) {
	if l == nil || l.store == nil || l.perMinute == 0 {
		return 0, true, nil
	}
	if identifier == "" {
		return 0, false, fmt.Errorf("rate limit identifier is required")
	}

	retryAfterSec := int64(0)

	count, ttl, err := l.store.IncrementWindow(ctx, identifierKey(identifier), loginWindow)
	if err != nil {
		return 0, false, err
	}
	if count > int64(l.perMinute) {
		retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
	}

	if ip != "" {
		count, ttl, err := l.store.IncrementWindow(ctx, ipKey(ip), loginWindow)
		if err != nil {
			return 0, false, err
		}
		if count > int64(l.perMinute) {
			retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if retryAfterSec > 0 {
		return retryAfterSec, false, nil
	}
	return 0, true, nil
}

func identifierKey(identifier string) string {
	return "rate:login:id:" + identifier
}

func ipKey(ip string) string {
	return "rate:login:ip:" + ip
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
