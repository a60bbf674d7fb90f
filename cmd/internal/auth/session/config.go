package session

import (
	"os"
	"strconv"
	"time"

	"pedex/cmd/identity"
)

// Config defines the runtime policy of the session controller.
//
// It controls how often expiry is checked, how early tokens are renewed,
// how identity lookups are throttled, and the moderation thresholds applied
// at login.
type Config struct {
	// ExpiryCheckInterval is the period of the background expiry watcher.
	ExpiryCheckInterval time.Duration

	// RefreshLeeway renews the access token this long before it expires.
	RefreshLeeway time.Duration

	// IdentityBudget is the number of failed identity lookups tolerated
	// over a session's lifetime before the session is ended.
	IdentityBudget int

	// IdentityMinInterval spaces identity lookups. Zero disables throttling.
	IdentityMinInterval time.Duration

	// Violation thresholds. A zero value disables the check.
	ReviewSticks  int
	SuspendSticks int

	// LogoutTimeout bounds the best-effort server logout.
	LogoutTimeout time.Duration

	// NoticeBuffer is the capacity of the Notices channel.
	NoticeBuffer int
}

// DefaultConfig returns the production session policy.
func DefaultConfig() Config {
	p := identity.DefaultStandingPolicy()
	return Config{
		ExpiryCheckInterval: 30 * time.Second,
		RefreshLeeway:       60 * time.Second,
		IdentityBudget:      3,
		IdentityMinInterval: 2 * time.Second,
		ReviewSticks:        p.ReviewAt,
		SuspendSticks:       p.SuspendAt,
		LogoutTimeout:       5 * time.Second,
		NoticeBuffer:        32,
	}
}

// StandingPolicy returns the thresholds as an identity.StandingPolicy.
func (c Config) StandingPolicy() identity.StandingPolicy {
	return identity.StandingPolicy{ReviewAt: c.ReviewSticks, SuspendAt: c.SuspendSticks}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional (durations must be valid Go duration strings):
//   - PEDEX_SESSION_EXPIRY_CHECK
//   - PEDEX_SESSION_REFRESH_LEEWAY
//   - PEDEX_SESSION_IDENTITY_BUDGET
//   - PEDEX_SESSION_IDENTITY_INTERVAL
//   - PEDEX_SESSION_REVIEW_STICKS
//   - PEDEX_SESSION_SUSPEND_STICKS
//   - PEDEX_SESSION_LOGOUT_TIMEOUT
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("PEDEX_SESSION_EXPIRY_CHECK"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.ExpiryCheckInterval = d
	}

	if v := os.Getenv("PEDEX_SESSION_REFRESH_LEEWAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshLeeway = d
	}

	if v := os.Getenv("PEDEX_SESSION_IDENTITY_BUDGET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, ErrConfig
		}
		cfg.IdentityBudget = n
	}

	if v := os.Getenv("PEDEX_SESSION_IDENTITY_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.IdentityMinInterval = d
	}

	if v := os.Getenv("PEDEX_SESSION_REVIEW_STICKS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, ErrConfig
		}
		cfg.ReviewSticks = n
	}

	if v := os.Getenv("PEDEX_SESSION_SUSPEND_STICKS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, ErrConfig
		}
		cfg.SuspendSticks = n
	}

	if v := os.Getenv("PEDEX_SESSION_LOGOUT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.LogoutTimeout = d
	}

	// Invariant: review must trigger no later than suspension, or it is unreachable.
	if cfg.ReviewSticks > 0 && cfg.SuspendSticks > 0 && cfg.ReviewSticks > cfg.SuspendSticks {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
