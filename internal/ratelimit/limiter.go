package ratelimit

import (
	"context"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/keygate/internal/config"
	"github.com/smallbiznis/keygate/internal/observability/logger"
	"github.com/smallbiznis/keygate/internal/observability/metrics"
	"go.uber.org/zap"
)

// Class separates the generous read budget from the stricter activation
// budget.
type Class string

const (
	ClassGeneral    Class = "general"
	ClassActivation Class = "activation"
)

const (
	keyWindowGeneral    = "keygate:window:general:"
	keyWindowActivation = "keygate:window:activation:"
)

// Limiter is the advisory abuse-control facade the HTTP layer consults.
// When the redis backend is unreachable it fails open by default: traffic
// passes, the outage is logged and counted. FailClosed flips that.
type Limiter struct {
	enabled    bool
	failClosed bool

	windows  *WindowLimiter
	attempts *AttemptTracker
	policy   *config.RateLimitPolicyHolder
	metrics  *metrics.Metrics
}

func NewLimiter(cfg config.Config, policy *config.RateLimitPolicyHolder, m *metrics.Metrics) (*Limiter, error) {
	if !cfg.RateLimit.Enabled {
		return &Limiter{}, nil
	}

	addr := strings.TrimSpace(cfg.RateLimit.RedisAddr)
	if addr == "" {
		return nil, errEmptyRedisAddr
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RateLimit.RedisPassword),
		DB:       cfg.RateLimit.RedisDB,
	})

	return &Limiter{
		enabled:    true,
		failClosed: cfg.RateLimit.FailClosed,
		windows:    NewWindowLimiter(client),
		attempts:   NewAttemptTracker(client),
		policy:     policy,
		metrics:    m,
	}, nil
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowRequest consumes one unit of the client's budget for the given
// class. A nil error with Allowed=true is also what a disabled or degraded
// limiter returns, so callers never branch on limiter availability.
func (l *Limiter) AllowRequest(ctx context.Context, clientID string, class Class) *Result {
	if !l.Enabled() {
		return allowAll()
	}

	budget, prefix := l.budgetFor(class)
	res, err := l.windows.Allow(ctx, prefix+clientID, budget.Limit, budget.Window)
	if err != nil {
		return l.degraded(ctx, "request window", err)
	}

	if res.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, string(class), "")
	} else {
		l.metrics.RecordRateLimitDenied(ctx, string(class), "", "window_exceeded")
	}
	return res
}

// KeyLocked reports an active brute-force lockout for the license key.
func (l *Limiter) KeyLocked(ctx context.Context, licenseKey string) *Result {
	if !l.Enabled() {
		return allowAll()
	}

	locked, ttl, err := l.attempts.Locked(ctx, licenseKey)
	if err != nil {
		return l.degraded(ctx, "attempt lock check", err)
	}
	if !locked {
		return allowAll()
	}

	l.metrics.RecordRateLimitDenied(ctx, "attempts", "", "key_locked")
	return &Result{
		Allowed:    false,
		ResetAt:    time.Now().Add(ttl),
		RetryAfter: ttl,
	}
}

// RecordFailedAttempt counts a failed prerequisite check against the key.
func (l *Limiter) RecordFailedAttempt(ctx context.Context, licenseKey, code string) {
	if !l.Enabled() {
		return
	}

	l.metrics.RecordFailedAttempt(ctx, code)

	p := l.policy.Get().Attempts
	tripped, lockout, err := l.attempts.RecordFailure(ctx, licenseKey, AttemptBudget{
		Window:      p.Window,
		Threshold:   p.Threshold,
		LockoutBase: p.LockoutBase,
		LockoutMax:  p.LockoutMax,
	})
	if err != nil {
		logger.FromContext(ctx).Warn("failed to record brute-force attempt",
			zap.Error(err),
		)
		return
	}
	if tripped {
		logger.FromContext(ctx).Warn("license key locked out after repeated failures",
			zap.String("license_key", licenseKey),
			zap.Duration("lockout", lockout),
		)
	}
}

// ResetAttempts clears brute-force state after a successful activation.
func (l *Limiter) ResetAttempts(ctx context.Context, licenseKey string) {
	if !l.Enabled() {
		return
	}
	if err := l.attempts.Reset(ctx, licenseKey); err != nil {
		logger.FromContext(ctx).Warn("failed to reset attempt state",
			zap.Error(err),
		)
	}
}

func (l *Limiter) budgetFor(class Class) (config.ClassBudget, string) {
	p := l.policy.Get()
	if class == ClassActivation {
		return p.Activation, keyWindowActivation
	}
	return p.General, keyWindowGeneral
}

func (l *Limiter) degraded(ctx context.Context, op string, err error) *Result {
	logger.FromContext(ctx).Error("rate limiter backend unavailable",
		zap.String("operation", op),
		zap.Bool("fail_closed", l.failClosed),
		zap.Error(err),
	)
	if l.failClosed {
		l.metrics.RecordRateLimitDenied(ctx, "degraded", "", "backend_unavailable")
		return &Result{Allowed: false, RetryAfter: time.Second}
	}
	return allowAll()
}

func allowAll() *Result {
	return &Result{Allowed: true, Remaining: -1}
}
