package credential

import "errors"

var (
	// ErrNotFound is returned by a Backend when the slot holds no credential.
	ErrNotFound = errors.New("credential not found")
	// ErrNoCredential is returned by Token when no access token is stored.
	ErrNoCredential = errors.New("no credential")
	// ErrInvalidCredential is returned by Save for an empty access token.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrDecode is returned when a token's expiry cannot be decoded.
	ErrDecode = errors.New("token decode failed")
	// ErrConfig is returned when configuration values are invalid.
	ErrConfig = errors.New("credential config invalid")
)
