// Package ratelimit is the abuse-control layer: per-client request budgets
// and per-key failed-attempt lockouts, both backed by redis so multiple
// server instances enforce the same limits.
package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// fixedWindowScript counts a hit and reports the window state in one round
// trip. Returns {count, pttl_ms}; the TTL is set only when the key is fresh
// so the window boundary stays fixed.
const fixedWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

// Result is one limiter decision.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type WindowLimiter struct {
	client *redis.Client
	script *redis.Script
}

func NewWindowLimiter(client *redis.Client) *WindowLimiter {
	if client == nil {
		return nil
	}
	return &WindowLimiter{
		client: client,
		script: redis.NewScript(fixedWindowScript),
	}
}

// Allow consumes one unit from the window identified by key.
func (w *WindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if w == nil || w.client == nil {
		return nil, errors.New("rate limiter not configured")
	}
	if key == "" {
		return nil, errors.New("rate limiter key is empty")
	}
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter budget must be positive")
	}

	res, err := w.script.Run(ctx, w.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, errors.New("invalid rate limit script response")
	}

	count := int(res[0])
	ttl := time.Duration(res[1]) * time.Millisecond
	resetAt := time.Now().Add(ttl)

	out := &Result{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   resetAt,
	}
	if out.Remaining < 0 {
		out.Remaining = 0
	}
	if !out.Allowed {
		out.RetryAfter = ttl
	}
	return out, nil
}
