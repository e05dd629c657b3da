package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/keygate/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	l, err := NewLimiter(config.Config{}, nil, nil)
	require.NoError(t, err)
	require.False(t, l.Enabled())

	ctx := context.Background()
	require.True(t, l.AllowRequest(ctx, "203.0.113.7", ClassActivation).Allowed)
	require.True(t, l.KeyLocked(ctx, "ABCD-EFGH-1234-5678").Allowed)

	// No-ops, must not panic without a backend.
	l.RecordFailedAttempt(ctx, "ABCD-EFGH-1234-5678", "license_not_found")
	l.ResetAttempts(ctx, "ABCD-EFGH-1234-5678")
}

func TestNewLimiterRequiresRedisAddr(t *testing.T) {
	cfg := config.Config{}
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RedisAddr = "   "

	_, err := NewLimiter(cfg, nil, nil)
	require.ErrorIs(t, err, errEmptyRedisAddr)
}

func newRedisLimiter(t *testing.T) *Limiter {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	holder, err := config.NewRateLimitPolicyHolder()
	require.NoError(t, err)

	return &Limiter{
		enabled:  true,
		windows:  NewWindowLimiter(client),
		attempts: NewAttemptTracker(client),
		policy:   holder,
	}
}

func TestAllowRequestActivationBudgetBoundary(t *testing.T) {
	l := newRedisLimiter(t)
	ctx := context.Background()
	budget := l.policy.Get().Activation

	for i := 1; i <= budget.Limit; i++ {
		res := l.AllowRequest(ctx, "203.0.113.7", ClassActivation)
		require.True(t, res.Allowed, "request %d", i)
		require.Equal(t, budget.Limit, res.Limit)
		require.Equal(t, budget.Limit-i, res.Remaining)
	}

	res := l.AllowRequest(ctx, "203.0.113.7", ClassActivation)
	require.False(t, res.Allowed)
	require.Zero(t, res.Remaining)
	require.Positive(t, res.RetryAfter)
	require.LessOrEqual(t, res.RetryAfter, budget.Window)

	// Budgets are per client and per class.
	require.True(t, l.AllowRequest(ctx, "198.51.100.9", ClassActivation).Allowed)
	require.True(t, l.AllowRequest(ctx, "203.0.113.7", ClassGeneral).Allowed)
}

func TestFailedAttemptsTripLockout(t *testing.T) {
	l := newRedisLimiter(t)
	ctx := context.Background()
	key := "ABCD-EFGH-1234-5678"

	threshold := l.policy.Get().Attempts.Threshold
	for i := 0; i < threshold-1; i++ {
		l.RecordFailedAttempt(ctx, key, "license_not_found")
		require.True(t, l.KeyLocked(ctx, key).Allowed, "attempt %d", i+1)
	}

	l.RecordFailedAttempt(ctx, key, "license_not_found")
	lock := l.KeyLocked(ctx, key)
	require.False(t, lock.Allowed)
	require.Positive(t, lock.RetryAfter)

	// Other keys are unaffected, and a successful activation clears the
	// state entirely.
	require.True(t, l.KeyLocked(ctx, "WXYZ-WXYZ-1234-5678").Allowed)
	l.ResetAttempts(ctx, key)
	require.True(t, l.KeyLocked(ctx, key).Allowed)
}

func TestDegradedLimiterFailMode(t *testing.T) {
	// A limiter whose backend calls error out: fail open by default.
	open := &Limiter{enabled: true}
	res := open.degraded(context.Background(), "test", context.DeadlineExceeded)
	require.True(t, res.Allowed)

	closed := &Limiter{enabled: true, failClosed: true}
	res = closed.degraded(context.Background(), "test", context.DeadlineExceeded)
	require.False(t, res.Allowed)
	require.Positive(t, res.RetryAfter)
}
