package ratelimit

import (
	"errors"

	"github.com/smallbiznis/keygate/internal/config"
	"go.uber.org/fx"
)

var errEmptyRedisAddr = errors.New("rate limit redis addr is required")

var Module = fx.Module("ratelimit",
	fx.Provide(config.NewRateLimitPolicyHolder),
	fx.Provide(NewLimiter),
)
