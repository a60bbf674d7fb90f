package token

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

const (
	// SealEnvKey is the env var name for the credential sealing secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	SealEnvKey = "PEDEX_CREDENTIAL_KEY"

	fingerprintLen = 12
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns a short SHA-256 prefix of tok suitable for logs.
// Empty input yields "".
func Fingerprint(tok string) string {
	if tok == "" {
		return ""
	}
	return HashSHA256Hex(tok)[:fingerprintLen]
}

// SealKeyFromEnv returns the configured sealing secret (trimmed), enforcing a minimum byte length.
// If the env var is missing/blank -> ErrSealKeyMissing.
// If too short -> ErrSealKeyTooShort.
func SealKeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(SealEnvKey))
	if raw == "" {
		return nil, ErrSealKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrSealKeyTooShort
	}
	return b, nil
}

// SealEnabled reports whether the env key is present (non-empty after trim).
// This does not enforce minimum length. Use SealKeyFromEnv for policy checks.
func SealEnabled() bool {
	return strings.TrimSpace(os.Getenv(SealEnvKey)) != ""
}
