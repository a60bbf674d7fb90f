package token

import "errors"

// Public, stable errors for callers.
var (
	ErrSealKeyMissing  = errors.New("credential seal key missing")
	ErrSealKeyTooShort = errors.New("credential seal key too short")
	ErrSealedInvalid   = errors.New("sealed data invalid")
)
