package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"pedex/cmd/internal/auth/credential"
)

func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "explicit localhost", in: "127.0.0.1:7070", want: "http://127.0.0.1:7070"},
		{name: "bind all v4", in: "0.0.0.0:7070", want: "http://127.0.0.1:7070"},
		{name: "bind all v6", in: "[::]:9090", want: "http://127.0.0.1:9090"},
		{name: "empty host", in: ":7070", want: "http://127.0.0.1:7070"},
		{name: "ipv6 host", in: "[2001:db8::1]:9090", want: "http://[2001:db8::1]:9090"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := RuntimeBaseURL(tc.in)
			if got != tc.want {
				t.Fatalf("RuntimeBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func sessionTierConfig(t *testing.T) Config {
	t.Helper()
	isolateEnv(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.StatusAddr = ""
	return cfg
}

func TestNew_SessionTierRunsWithoutCredential(t *testing.T) {
	cfg := sessionTierConfig(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if a.Controller().IsAuthenticated() {
		t.Fatalf("fresh app must not be authenticated")
	}
	if _, ok := a.Credentials().Read(context.Background()); ok {
		t.Fatalf("session tier must start empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}

	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestNew_RejectsUnsealedPersistentTier(t *testing.T) {
	cfg := sessionTierConfig(t)
	cfg.Credential.Tier = credential.TierPersistent
	cfg.Credential.Path = filepath.Join(t.TempDir(), "creds.db")
	cfg.Credential.RequireSealed = true
	t.Setenv("PEDEX_CREDENTIAL_KEY", "")

	if _, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatalf("expected security policy error")
	}
}
