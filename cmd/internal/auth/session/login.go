package session

import (
	"context"
	"errors"
	"fmt"

	authapi "pedex/cmd/internal/auth/api"
	"pedex/cmd/internal/auth/credential"
	"pedex/cmd/internal/metrics"
	"pedex/cmd/internal/realtime"
	"pedex/cmd/security/token"
)

// Login authenticates with email and password.
//
// When a non-expired credential is already stored the attempt is refused with
// OutcomeAlreadyAuthenticated and no error. Accounts that are blocked or over
// a violation threshold are logged out again immediately and reported as
// OutcomeRestricted with a *RestrictedError.
func (c *Controller) Login(ctx context.Context, email, password string) (LoginOutcome, error) {
	if cred, ok := c.creds.Read(ctx); ok && !c.creds.IsExpired(cred.AccessToken) {
		c.log.Info("session.login.refused", "reason", "already_authenticated")
		c.notify(NoticeAlreadyAuthenticated, "You are already signed in.")
		return OutcomeAlreadyAuthenticated, nil
	}

	res, err := c.api.Login(ctx, email, password)
	if err != nil {
		c.log.Warn("session.login.fail", "err", err)
		return OutcomeFailed, classifyAuthErr(err)
	}

	cred := credential.Credential{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}

	// A lapsed session from before is replaced, not merged.
	c.mu.Lock()
	c.teardownLocked()
	gen := c.state.Generation()
	err = c.creds.Save(ctx, cred)
	c.mu.Unlock()
	if err != nil {
		return OutcomeFailed, fmt.Errorf("save credential: %w", err)
	}

	id := res.Identity
	if id == nil {
		id = c.fetch.FetchIdentity(ctx)
	}
	if id == nil {
		c.logoutAt(ctx, gen, "identity_unavailable")
		return OutcomeFailed, ErrIdentityUnavailable
	}

	if standing := c.policy.Evaluate(id); standing.Restricted() {
		c.log.Warn("session.login.restricted", "user_id", id.ID, "standing", standing.String(), "sticks", id.Sticks)
		if c.logoutAt(ctx, gen, "restricted") {
			c.notify(NoticeAccountRestricted, standing.Message())
		}
		return OutcomeRestricted, &RestrictedError{Standing: standing}
	}

	if !c.establish(ctx, gen, id, cred.AccessToken) {
		c.log.Info("session.login.superseded", "user_id", id.ID)
		return OutcomeFailed, ErrNotAuthenticated
	}
	c.log.Info("session.login", "user_id", id.ID, "access_fp", token.Fingerprint(cred.AccessToken))
	c.notify(NoticeLoggedIn, "Welcome back.")
	return OutcomeLoggedIn, nil
}

// Logout ends the session. The live channel is closed, the credential cleared
// and the read model reset before the platform is told; a failed server call
// never prevents local cleanup. Without an active session it does nothing.
func (c *Controller) Logout(ctx context.Context) {
	c.logout(ctx, "user")
}

func (c *Controller) logout(ctx context.Context, reason string) {
	c.mu.Lock()
	tok := c.endLocked(ctx, reason)
	c.mu.Unlock()

	c.notifyServerLogout(tok)
}

// endLocked tears the session down and returns the access token that was in
// use, or "" when nothing was active.
func (c *Controller) endLocked(ctx context.Context, reason string) string {
	cred, hasCred := c.creds.Read(ctx)
	if !hasCred && !c.state.IsAuthenticated() && c.live.State() == realtime.StateDisconnected {
		c.log.Debug("session.logout.noop", "reason", reason)
		return ""
	}

	c.live.Close()
	c.creds.Clear(ctx)
	c.state.Reset()
	c.identityFails.Store(0)

	metrics.SetAuthenticated(false)
	metrics.RecordLogout(reason)
	c.log.Info("session.logout", "reason", reason)
	c.notify(NoticeSessionEnded, reason)

	if !hasCred {
		return ""
	}
	return cred.AccessToken
}

// teardownLocked drops any session state without touching the credential and
// starts a new generation, so work still in flight for an earlier login or
// resume is discarded.
func (c *Controller) teardownLocked() {
	if c.live.State() != realtime.StateDisconnected {
		c.live.Close()
	}
	c.state.Reset()
	c.identityFails.Store(0)
	metrics.SetAuthenticated(false)
}

// notifyServerLogout revokes tok on the platform, best effort.
func (c *Controller) notifyServerLogout(tok string) {
	if tok == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.LogoutTimeout)
	defer cancel()

	if err := c.api.Logout(ctx, tok); err != nil {
		c.log.Info("session.logout.server_fail", "access_fp", token.Fingerprint(tok), "err", err)
	}
}

// classifyAuthErr maps REST failures onto session errors.
func classifyAuthErr(err error) error {
	switch {
	case errors.Is(err, authapi.ErrNetwork):
		return fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
	case authapi.IsRejected(err):
		return fmt.Errorf("%w: %w", ErrAuthInvalid, err)
	default:
		return err
	}
}
