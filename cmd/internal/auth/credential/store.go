package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"pedex/cmd/security/token"
)

// Store is the credential store used by the session controller.
// It is safe for concurrent use; serialization is delegated to the Backend.
type Store struct {
	backend Backend
	slot    string
	log     *slog.Logger
	now     func() time.Time
	parser  *jwt.Parser
}

var _ oauth2.TokenSource = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithSlot selects the backend slot (default "default").
func WithSlot(slot string) Option {
	return func(s *Store) {
		if slot != "" {
			s.slot = slot
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		slot:    "default",
		log:     slog.New(slog.NewJSONHandler(os.Stdout, nil)),
		now:     time.Now,
		parser:  jwt.NewParser(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists c. An empty access token is rejected.
func (s *Store) Save(ctx context.Context, c Credential) error {
	if c.Empty() {
		return ErrInvalidCredential
	}
	if err := s.backend.Store(ctx, s.slot, c); err != nil {
		s.log.Error("credential.save.fail", "slot", s.slot, "err", err)
		return fmt.Errorf("save credential: %w", err)
	}
	s.log.Debug("credential.save",
		"slot", s.slot,
		"access_fp", token.Fingerprint(c.AccessToken),
		"refresh_fp", token.Fingerprint(c.RefreshToken),
	)
	return nil
}

// Read returns the stored credential. Absent or unreadable state reports false.
func (s *Store) Read(ctx context.Context) (Credential, bool) {
	c, err := s.backend.Load(ctx, s.slot)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn("credential.read.fail", "slot", s.slot, "err", err)
		}
		return Credential{}, false
	}
	if c.Empty() {
		return Credential{}, false
	}
	return c, true
}

// Clear removes the stored credential. It is idempotent and never fails;
// backend errors are logged.
func (s *Store) Clear(ctx context.Context) {
	if err := s.backend.Delete(ctx, s.slot); err != nil {
		s.log.Error("credential.clear.fail", "slot", s.slot, "err", err)
		return
	}
	s.log.Debug("credential.clear", "slot", s.slot)
}

// ExpiresAt decodes the exp claim of tok without verifying its signature.
// A token without exp is an ErrDecode.
func (s *Store) ExpiresAt(tok string) (time.Time, error) {
	if tok == "" {
		return time.Time{}, fmt.Errorf("%w: empty token", ErrDecode)
	}

	var claims jwt.RegisteredClaims
	if _, _, err := s.parser.ParseUnverified(tok, &claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: missing exp", ErrDecode)
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether tok's expiry lies strictly before now.
// Any decode failure counts as expired.
func (s *Store) IsExpired(tok string) bool {
	exp, err := s.ExpiresAt(tok)
	if err != nil {
		return true
	}
	return exp.Before(s.now())
}

// ExpiresWithin reports whether tok expires before now+d (or cannot be decoded).
func (s *Store) ExpiresWithin(tok string, d time.Duration) bool {
	exp, err := s.ExpiresAt(tok)
	if err != nil {
		return true
	}
	return exp.Before(s.now().Add(d))
}

// Token implements oauth2.TokenSource over the stored access token.
func (s *Store) Token() (*oauth2.Token, error) {
	c, ok := s.Read(context.Background())
	if !ok {
		return nil, ErrNoCredential
	}
	t := &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
	}
	if exp, err := s.ExpiresAt(c.AccessToken); err == nil {
		t.Expiry = exp
	}
	return t, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
