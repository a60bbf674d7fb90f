package session

import (
	"errors"
	"fmt"

	"pedex/cmd/identity"
)

var (
	// ErrAuthExpired is returned when the access token has lapsed and could not be renewed.
	ErrAuthExpired = errors.New("auth expired")

	// ErrAuthInvalid is returned when the platform rejects the credentials or the refresh token.
	// The session has been ended by the time the caller sees it.
	ErrAuthInvalid = errors.New("auth invalid")

	// ErrDecode is returned when a stored token cannot be decoded. It is treated as expired.
	ErrDecode = fmt.Errorf("%w: token undecodable", ErrAuthExpired)

	// ErrNetworkUnavailable is returned when the platform could not be reached.
	// The session is kept; the operation is retried on the next trigger.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrConnectionDropped reports that the live channel is reconnecting.
	ErrConnectionDropped = errors.New("live connection dropped")

	// ErrConnectionFailed reports that the live channel gave up reconnecting.
	ErrConnectionFailed = errors.New("live connection failed")

	// ErrAccountRestricted is returned when the account may not hold a session.
	ErrAccountRestricted = errors.New("account restricted")

	// ErrNotAuthenticated is returned when an operation needs an active session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrIdentityUnavailable is returned when the profile could not be loaded.
	ErrIdentityUnavailable = errors.New("identity unavailable")

	// ErrRateLimited is returned when identity lookups are requested too frequently.
	ErrRateLimited = errors.New("rate limited")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// RestrictedError carries the standing that ended a session.
type RestrictedError struct {
	Standing identity.Standing
}

func (e *RestrictedError) Error() string {
	if msg := e.Standing.Message(); msg != "" {
		return fmt.Sprintf("%s: %s", ErrAccountRestricted.Error(), msg)
	}
	return fmt.Sprintf("%s: %s", ErrAccountRestricted.Error(), e.Standing)
}

func (e *RestrictedError) Unwrap() error { return ErrAccountRestricted }
