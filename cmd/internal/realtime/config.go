package realtime

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	v1 "pedex/shared/contracts/live/v1"
)

// ErrConfig is returned when configuration values are invalid.
var ErrConfig = errors.New("realtime config invalid")

// Config controls the live channel.
type Config struct {
	// URL is the websocket endpoint (ws:// or wss://).
	URL string

	Subprotocol string

	// MaxRetries bounds consecutive reconnect attempts before the channel fails.
	MaxRetries int
	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration

	ConnectTimeout time.Duration
	WriteTimeout   time.Duration

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	ReadLimit int64
}

// DefaultConfig returns the production reconnect policy against a local backend.
func DefaultConfig() Config {
	return Config{
		URL:               "ws://localhost:5000/live",
		Subprotocol:       v1.Subprotocol,
		MaxRetries:        defaultMaxRetries,
		RetryDelay:        defaultRetryDelay,
		ConnectTimeout:    defaultConnectTimeout,
		WriteTimeout:      defaultWriteTimeout,
		HeartbeatInterval: heartbeatInterval,
		HeartbeatTimeout:  heartbeatTimeout,
		ReadLimit:         maxFrameBytes,
	}
}

// LoadConfigFromEnv loads live channel config from environment variables.
//
// Optional:
//   - PEDEX_LIVE_URL
//   - PEDEX_LIVE_MAX_RETRIES
//   - PEDEX_LIVE_RETRY_DELAY
//   - PEDEX_LIVE_CONNECT_TIMEOUT
//   - PEDEX_LIVE_HEARTBEAT_INTERVAL
//
// Returns ErrConfig if PEDEX_LIVE_URL is not a ws(s) URL.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if v := strings.TrimSpace(os.Getenv("PEDEX_LIVE_URL")); v != "" {
		cfg.URL = v
	}
	cfg.MaxRetries = envIntWS("PEDEX_LIVE_MAX_RETRIES", cfg.MaxRetries)
	cfg.RetryDelay = envDurationWS("PEDEX_LIVE_RETRY_DELAY", cfg.RetryDelay)
	cfg.ConnectTimeout = envDurationWS("PEDEX_LIVE_CONNECT_TIMEOUT", cfg.ConnectTimeout)
	cfg.HeartbeatInterval = envDurationWS("PEDEX_LIVE_HEARTBEAT_INTERVAL", cfg.HeartbeatInterval)

	if err := validateWSURL(cfg.URL); err != nil {
		return Config{}, ErrConfig
	}
	return cfg, nil
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.New("unsupported scheme: " + u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func envIntWS(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envDurationWS(key string, def time.Duration) time.Duration {
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
