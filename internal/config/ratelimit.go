package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RateLimitPolicy is the tunable part of the abuse-control layer: request
// budgets per operation class and the failed-attempt lockout curve. It is a
// policy knob, not a contract, so it lives in a hot-reloadable file rather
// than the environment.
type RateLimitPolicy struct {
	General    ClassBudget   `mapstructure:"general"`
	Activation ClassBudget   `mapstructure:"activation"`
	Attempts   AttemptPolicy `mapstructure:"attempts"`
}

// ClassBudget is a fixed-window request budget for one operation class.
type ClassBudget struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// AttemptPolicy controls per-license-key brute-force friction: after
// Threshold failed prerequisite checks inside Window, the key is locked out
// for LockoutBase doubled per further failure, capped at LockoutMax.
type AttemptPolicy struct {
	Window      time.Duration `mapstructure:"window"`
	Threshold   int           `mapstructure:"threshold"`
	LockoutBase time.Duration `mapstructure:"lockoutBase"`
	LockoutMax  time.Duration `mapstructure:"lockoutMax"`
}

func DefaultRateLimitPolicy() RateLimitPolicy {
	return RateLimitPolicy{
		General:    ClassBudget{Limit: 60, Window: time.Minute},
		Activation: ClassBudget{Limit: 10, Window: time.Minute},
		Attempts: AttemptPolicy{
			Window:      15 * time.Minute,
			Threshold:   5,
			LockoutBase: time.Minute,
			LockoutMax:  time.Hour,
		},
	}
}

type RateLimitPolicyHolder struct {
	current atomic.Value // holds RateLimitPolicy
}

// NewRateLimitPolicyHolder loads ratelimit.yml and watches it for changes.
// A missing file means defaults; an invalid reload is ignored and logged.
func NewRateLimitPolicyHolder() (*RateLimitPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("ratelimit")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/keygate/config")
	v.AddConfigPath("/etc/keygate")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KEYGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg := DefaultRateLimitPolicy()
	if fileFound {
		if err := v.UnmarshalKey("ratelimit", &cfg); err != nil {
			return nil, err
		}
		if err := validateRateLimitPolicy(cfg); err != nil {
			return nil, err
		}
	}

	holder := &RateLimitPolicyHolder{}
	holder.current.Store(cfg)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated := DefaultRateLimitPolicy()
			if err := v.UnmarshalKey("ratelimit", &updated); err != nil {
				log.Printf("[ratelimit-config] reload failed: %v", err)
				return
			}
			if err := validateRateLimitPolicy(updated); err != nil {
				log.Printf("[ratelimit-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[ratelimit-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *RateLimitPolicyHolder) Get() RateLimitPolicy {
	return h.current.Load().(RateLimitPolicy)
}

func validateRateLimitPolicy(cfg RateLimitPolicy) error {
	if cfg.General.Limit <= 0 || cfg.General.Window <= 0 {
		return errors.New("ratelimit.general limit and window must be positive")
	}
	if cfg.Activation.Limit <= 0 || cfg.Activation.Window <= 0 {
		return errors.New("ratelimit.activation limit and window must be positive")
	}
	if cfg.Attempts.Threshold <= 0 || cfg.Attempts.Window <= 0 {
		return errors.New("ratelimit.attempts threshold and window must be positive")
	}
	if cfg.Attempts.LockoutBase <= 0 || cfg.Attempts.LockoutMax < cfg.Attempts.LockoutBase {
		return errors.New("ratelimit.attempts lockout curve is inconsistent")
	}
	return nil
}
