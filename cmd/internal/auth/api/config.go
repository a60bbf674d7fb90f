package authapi

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrConfig is returned when configuration values are invalid.
var ErrConfig = errors.New("authapi config invalid")

// Config controls REST client behavior.
type Config struct {
	// BaseURL is the API root, e.g. https://api.example.com/api.
	BaseURL string

	// Timeout bounds every request end to end.
	Timeout time.Duration

	// MaxBodyBytes caps response bodies.
	MaxBodyBytes int64

	// UserAgent is sent on every request.
	UserAgent string

	// InstanceID identifies this client process (X-Pedex-Instance).
	InstanceID string
}

// DefaultConfig returns defaults for a local backend.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://localhost:5000/api",
		Timeout:      30 * time.Second,
		MaxBodyBytes: 4 << 20, // 4 MiB
		UserAgent:    "pedex-client/1",
	}
}

// LoadConfigFromEnv loads client config from environment variables with safe defaults.
//
// Optional:
//   - PEDEX_API_URL
//   - PEDEX_HTTP_TIMEOUT
//   - PEDEX_HTTP_MAX_BODY_BYTES
//
// Returns ErrConfig if PEDEX_API_URL is not an absolute http(s) URL.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = envString("PEDEX_API_URL", cfg.BaseURL)
	cfg.Timeout = envDuration("PEDEX_HTTP_TIMEOUT", cfg.Timeout)
	cfg.MaxBodyBytes = envInt64("PEDEX_HTTP_MAX_BODY_BYTES", cfg.MaxBodyBytes)

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Config{}, ErrConfig
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return cfg, nil
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
