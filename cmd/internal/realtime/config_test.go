package realtime

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("PEDEX_LIVE_URL", "")
	t.Setenv("PEDEX_LIVE_MAX_RETRIES", "")
	t.Setenv("PEDEX_LIVE_RETRY_DELAY", "")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxRetries != 5 {
		t.Fatalf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.RetryDelay != time.Second {
		t.Fatalf("RetryDelay = %s, want 1s", cfg.RetryDelay)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("PEDEX_LIVE_URL", "wss://live.example.com/ws")
	t.Setenv("PEDEX_LIVE_MAX_RETRIES", "2")
	t.Setenv("PEDEX_LIVE_RETRY_DELAY", "250ms")
	t.Setenv("PEDEX_LIVE_HEARTBEAT_INTERVAL", "not-a-duration")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.URL != "wss://live.example.com/ws" || cfg.MaxRetries != 2 || cfg.RetryDelay != 250*time.Millisecond {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.HeartbeatInterval != heartbeatInterval {
		t.Fatalf("invalid duration should keep default, got %s", cfg.HeartbeatInterval)
	}
}

func TestLoadConfigFromEnv_RejectsNonWebsocketURL(t *testing.T) {
	t.Setenv("PEDEX_LIVE_URL", "https://live.example.com")

	_, err := LoadConfigFromEnv()
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}
