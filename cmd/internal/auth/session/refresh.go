package session

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	authapi "pedex/cmd/internal/auth/api"
	"pedex/cmd/internal/auth/credential"
	"pedex/cmd/internal/metrics"
	"pedex/cmd/security/token"
)

// RefreshAuthToken renews the access token. Concurrent calls share one
// in-flight refresh and observe the same result.
//
// Without a refresh token, or when the platform rejects it, the session is
// ended and ErrAuthInvalid returned. A network failure returns
// ErrNetworkUnavailable and keeps the session. On success the new token is
// rotated onto the open live connection in place.
func (c *Controller) RefreshAuthToken(ctx context.Context) error {
	// The shared refresh must outlive any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		return nil, c.refresh(shared)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (c *Controller) refresh(ctx context.Context) error {
	gen := c.state.Generation()

	cred, ok := c.creds.Read(ctx)
	if !ok || cred.RefreshToken == "" {
		metrics.RecordRefresh("no_refresh_token")
		c.log.Warn("session.refresh.fail", "reason", "no_refresh_token")
		c.logout(ctx, "no_refresh_token")
		return ErrAuthInvalid
	}

	toks, err := c.api.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		if authapi.IsRejected(err) || errors.Is(err, authapi.ErrMalformed) {
			metrics.RecordRefresh("rejected")
			c.log.Warn("session.refresh.fail", "reason", "rejected", "err", err)
			c.logout(ctx, "refresh_rejected")
			return fmt.Errorf("%w: %w", ErrAuthInvalid, err)
		}
		metrics.RecordRefresh("network")
		c.log.Warn("session.refresh.fail", "reason", "network", "err", err)
		return fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
	}

	next := credential.Credential{
		AccessToken:  toks.AccessToken,
		RefreshToken: cmp.Or(toks.RefreshToken, cred.RefreshToken),
	}

	c.mu.Lock()
	if c.bgCtx.Err() != nil {
		c.mu.Unlock()
		c.log.Info("session.refresh.discard", "reason", "shutdown")
		return c.bgCtx.Err()
	}
	if c.state.Generation() != gen {
		c.mu.Unlock()
		c.log.Info("session.refresh.discard", "reason", "session_changed")
		return ErrNotAuthenticated
	}
	if _, still := c.creds.Read(ctx); !still {
		c.mu.Unlock()
		c.log.Info("session.refresh.discard", "reason", "credential_cleared")
		return ErrNotAuthenticated
	}
	err = c.creds.Save(ctx, next)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save refreshed credential: %w", err)
	}

	metrics.RecordRefresh("ok")
	c.log.Info("session.refresh", "access_fp", token.Fingerprint(next.AccessToken))

	if err := c.live.UpdateToken(ctx, next.AccessToken); err != nil {
		// The channel keeps the token for its next dial.
		c.log.Warn("session.refresh.live_update_fail", "err", err)
	}
	return nil
}

// ensureFresh renews the access token if it has already lapsed.
func (c *Controller) ensureFresh(ctx context.Context) error {
	cred, ok := c.creds.Read(ctx)
	if !ok {
		return ErrNotAuthenticated
	}

	exp, err := c.creds.ExpiresAt(cred.AccessToken)
	switch {
	case err != nil:
		c.log.Info("session.token.undecodable", "err", err)
	case exp.Before(c.now()):
	default:
		return nil
	}

	if rerr := c.RefreshAuthToken(ctx); rerr != nil {
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDecode, rerr)
		}
		return fmt.Errorf("%w: %w", ErrAuthExpired, rerr)
	}
	return nil
}

// HandleUnauthorized reacts to a 401 from a protected call by scheduling a
// coalesced refresh. It never blocks, and does nothing after Shutdown.
func (c *Controller) HandleUnauthorized() {
	c.goBackground(func(ctx context.Context) {
		if err := c.RefreshAuthToken(ctx); err != nil {
			c.log.Info("session.unauthorized.refresh_fail", "err", err)
		}
	})
}

func (c *Controller) watchExpiry(ctx context.Context) {
	t := time.NewTicker(c.cfg.ExpiryCheckInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.checkExpiry(ctx)
		}
	}
}

// checkExpiry renews tokens that are about to lapse and retries a session
// that could not be resumed earlier. Retries draw on the identity failure
// budget; once it is spent the credential is cleared and retries stop.
func (c *Controller) checkExpiry(ctx context.Context) {
	cred, ok := c.creds.Read(ctx)
	if !ok {
		return
	}

	if c.creds.ExpiresWithin(cred.AccessToken, c.cfg.RefreshLeeway) {
		if err := c.RefreshAuthToken(ctx); err != nil {
			c.log.Info("session.expiry.refresh_fail", "err", err)
			return
		}
	}

	if !c.state.IsAuthenticated() {
		if err := c.resume(ctx); err != nil {
			c.log.Info("session.expiry.resume_fail", "err", err)
		}
	}
}
