package authapi

import (
	"context"
	"fmt"
	"net/http"

	"pedex/cmd/identity"
)

// LoginResult is a successful login. Identity is nil when the response omits the user.
type LoginResult struct {
	Identity     *identity.Identity
	AccessToken  string
	RefreshToken string
}

// Tokens is a refresh result. RefreshToken is empty unless the platform rotated it.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Login exchanges credentials for a token pair. The email is normalized first.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	const op = "authapi.Login"

	body, err := c.do(ctx, op, http.MethodPost, "/auth/login",
		loginRequest{Email: identity.NormalizeEmail(email), Password: password}, false, "")
	if err != nil {
		return LoginResult{}, err
	}

	var resp loginResponse
	if err := decodeInto(op, body, &resp); err != nil {
		return LoginResult{}, err
	}
	if resp.AccessToken == "" {
		return LoginResult{}, fmt.Errorf("%s: %w: missing access_token", op, ErrMalformed)
	}

	out := LoginResult{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if len(resp.User) > 0 && string(resp.User) != "null" {
		id, err := identity.DecodeIdentity(resp.User)
		if err != nil {
			c.log.Warn("api.login.user.decode_fail", "err", err)
		} else {
			out.Identity = id
		}
	}
	return out, nil
}

// Refresh exchanges a refresh token for a new access token.
// The refresh token is sent both as bearer and in the body.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	const op = "authapi.Refresh"

	body, err := c.do(ctx, op, http.MethodPost, "/auth/refresh-token",
		refreshRequest{RefreshToken: refreshToken}, false, refreshToken)
	if err != nil {
		return Tokens{}, err
	}

	var resp refreshResponse
	if err := decodeInto(op, body, &resp); err != nil {
		return Tokens{}, err
	}
	if resp.AccessToken == "" {
		return Tokens{}, fmt.Errorf("%s: %w: missing access_token", op, ErrMalformed)
	}
	return Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}

// Logout tells the platform to revoke accessToken.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	_, err := c.do(ctx, "authapi.Logout", http.MethodPost, "/auth/logout", nil, false, accessToken)
	return err
}
