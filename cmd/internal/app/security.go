package app

import (
	"errors"
	"fmt"

	"pedex/cmd/internal/auth/credential"
	"pedex/cmd/security/token"
)

// ValidateSecurityConfig enforces the credential sealing policy at startup.
//
// With PEDEX_REQUIRE_SEALED_CREDENTIALS=true a persisted tier must have a
// usable PEDEX_CREDENTIAL_KEY; the process refuses to start rather than write
// tokens in plaintext.
func ValidateSecurityConfig(cfg Config) error {
	cc := cfg.Credential
	if !cc.RequireSealed || cc.Tier == credential.TierSession {
		return nil
	}

	if _, err := token.SealKeyFromEnv(cc.SealKeyMinBytes); err != nil {
		switch {
		case errors.Is(err, token.ErrSealKeyMissing):
			return errors.New("security policy: PEDEX_REQUIRE_SEALED_CREDENTIALS=true but PEDEX_CREDENTIAL_KEY is missing")
		case errors.Is(err, token.ErrSealKeyTooShort):
			return fmt.Errorf("security policy: PEDEX_REQUIRE_SEALED_CREDENTIALS=true but PEDEX_CREDENTIAL_KEY is too short (min %d bytes)", cc.SealKeyMinBytes)
		default:
			return err
		}
	}

	if !token.SealEnabled() {
		return errors.New("security policy: PEDEX_REQUIRE_SEALED_CREDENTIALS=true but sealing is not enabled")
	}

	return nil
}
