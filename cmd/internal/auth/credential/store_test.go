package credential_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pedex/cmd/internal/auth/credential"
	"pedex/cmd/internal/auth/credential/credentialtest"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestStore_IsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := credential.New(credential.NewMemoryBackend(), credential.WithLogger(quiet), credential.WithClock(fixedClock(now)))

	t.Run("past", func(t *testing.T) {
		require.True(t, s.IsExpired(credentialtest.MintJWT(t, "u1", now.Add(-time.Second))))
	})
	t.Run("future", func(t *testing.T) {
		require.False(t, s.IsExpired(credentialtest.MintJWT(t, "u1", now.Add(time.Hour))))
	})
	t.Run("exactly now", func(t *testing.T) {
		require.False(t, s.IsExpired(credentialtest.MintJWT(t, "u1", now)))
	})
	t.Run("garbage", func(t *testing.T) {
		require.True(t, s.IsExpired("not-a-jwt"))
		require.True(t, s.IsExpired(""))
		require.True(t, s.IsExpired("a.b.c"))
	})
	t.Run("missing exp", func(t *testing.T) {
		require.True(t, s.IsExpired(credentialtest.MintJWTWithoutExp(t, "u1")))
		_, err := s.ExpiresAt(credentialtest.MintJWTWithoutExp(t, "u1"))
		require.ErrorIs(t, err, credential.ErrDecode)
	})
}

func TestStore_ExpiresWithin(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := credential.New(credential.NewMemoryBackend(), credential.WithLogger(quiet), credential.WithClock(fixedClock(now)))

	tok := credentialtest.MintJWT(t, "u1", now.Add(30*time.Second))
	require.True(t, s.ExpiresWithin(tok, time.Minute))
	require.False(t, s.ExpiresWithin(tok, 10*time.Second))
}

func TestStore_SaveReadClear(t *testing.T) {
	ctx := context.Background()
	s := credential.New(credential.NewMemoryBackend(), credential.WithLogger(quiet))

	_, ok := s.Read(ctx)
	require.False(t, ok)

	require.ErrorIs(t, s.Save(ctx, credential.Credential{}), credential.ErrInvalidCredential)

	want := credential.Credential{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, s.Save(ctx, want))

	got, ok := s.Read(ctx)
	require.True(t, ok)
	require.Equal(t, want, got)

	s.Clear(ctx)
	s.Clear(ctx)
	_, ok = s.Read(ctx)
	require.False(t, ok)
}

func TestStore_TokenSource(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := credential.New(credential.NewMemoryBackend(), credential.WithLogger(quiet))

	_, err := s.Token()
	require.ErrorIs(t, err, credential.ErrNoCredential)

	access := credentialtest.MintJWT(t, "u1", now.Add(time.Hour))
	require.NoError(t, s.Save(ctx, credential.Credential{AccessToken: access}))

	tok, err := s.Token()
	require.NoError(t, err)
	require.Equal(t, access, tok.AccessToken)
	require.Equal(t, "Bearer", tok.Type())
	require.WithinDuration(t, now.Add(time.Hour), tok.Expiry, time.Second)
}

type failingBackend struct{ *credential.MemoryBackend }

func (failingBackend) Load(context.Context, string) (credential.Credential, error) {
	return credential.Credential{}, errors.New("disk on fire")
}

func (failingBackend) Delete(context.Context, string) error {
	return errors.New("disk on fire")
}

func TestStore_FailClosed(t *testing.T) {
	ctx := context.Background()
	s := credential.New(failingBackend{credential.NewMemoryBackend()}, credential.WithLogger(quiet))

	_, ok := s.Read(ctx)
	require.False(t, ok)

	// Clear must swallow backend errors.
	s.Clear(ctx)
}
