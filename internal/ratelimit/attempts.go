package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	keyAttempts      = "keygate:attempts:"
	keyAttemptsLevel = "keygate:attempts:level:"
	keyAttemptsLock  = "keygate:attempts:lock:"
)

// recordFailureScript counts a failed attempt against a license key. When
// the counter crosses the threshold the key is locked out, the counter
// resets, and an escalation level (its own longer-lived key) doubles the
// next lockout up to the cap.
//
// KEYS: {counter, level, lock}
// ARGV: {window_ms, threshold, base_ms, max_ms}
// Returns {locked, lock_ttl_ms}.
const recordFailureScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if count < tonumber(ARGV[2]) then
  return {0, 0}
end

local level = redis.call("INCR", KEYS[2])
redis.call("PEXPIRE", KEYS[2], tonumber(ARGV[4]) * 2)

local lockout = math.floor(tonumber(ARGV[3]) * 2 ^ (level - 1))
if lockout > tonumber(ARGV[4]) then
  lockout = tonumber(ARGV[4])
end

redis.call("SET", KEYS[3], level, "PX", lockout)
redis.call("DEL", KEYS[1])
return {1, lockout}
`

// AttemptTracker slows key-guessing attacks independently of the caller's
// IP: every failed prerequisite check during activation counts against the
// license key itself.
type AttemptTracker struct {
	client *redis.Client
	script *redis.Script
}

func NewAttemptTracker(client *redis.Client) *AttemptTracker {
	if client == nil {
		return nil
	}
	return &AttemptTracker{
		client: client,
		script: redis.NewScript(recordFailureScript),
	}
}

// Locked reports whether the key currently sits in a lockout window and for
// how much longer.
func (t *AttemptTracker) Locked(ctx context.Context, licenseKey string) (bool, time.Duration, error) {
	if t == nil || t.client == nil {
		return false, 0, errors.New("attempt tracker not configured")
	}
	ttl, err := t.client.PTTL(ctx, keyAttemptsLock+licenseKey).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl <= 0 {
		return false, 0, nil
	}
	return true, ttl, nil
}

// RecordFailure counts one failed prerequisite check. It returns whether
// this failure tripped a lockout and the lockout duration.
func (t *AttemptTracker) RecordFailure(ctx context.Context, licenseKey string, policy AttemptBudget) (bool, time.Duration, error) {
	if t == nil || t.client == nil {
		return false, 0, errors.New("attempt tracker not configured")
	}

	res, err := t.script.Run(ctx, t.client,
		[]string{
			keyAttempts + licenseKey,
			keyAttemptsLevel + licenseKey,
			keyAttemptsLock + licenseKey,
		},
		policy.Window.Milliseconds(),
		policy.Threshold,
		policy.LockoutBase.Milliseconds(),
		policy.LockoutMax.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(res) < 2 {
		return false, 0, errors.New("invalid attempt script response")
	}
	return res[0] == 1, time.Duration(res[1]) * time.Millisecond, nil
}

// Reset clears attempt state after a successful activation so legitimate
// customers recovering from typos start clean.
func (t *AttemptTracker) Reset(ctx context.Context, licenseKey string) error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Del(ctx,
		keyAttempts+licenseKey,
		keyAttemptsLevel+licenseKey,
		keyAttemptsLock+licenseKey,
	).Err()
}

// AttemptBudget mirrors the config policy knobs the tracker consumes.
type AttemptBudget struct {
	Window      time.Duration
	Threshold   int
	LockoutBase time.Duration
	LockoutMax  time.Duration
}
