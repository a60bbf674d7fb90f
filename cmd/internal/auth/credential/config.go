package credential

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Tier selects the storage backend.
type Tier string

const (
	// TierSession keeps the credential in memory for the life of the process.
	TierSession Tier = "session"
	// TierPersistent keeps the credential in a local bbolt file.
	TierPersistent Tier = "persistent"
	// TierPostgres keeps the credential in PostgreSQL (server-hosted clients).
	TierPostgres Tier = "postgres"
)

// Config defines credential storage configuration.
type Config struct {
	// Tier is the storage tier.
	Tier Tier

	// Path is the bbolt file used by TierPersistent.
	Path string

	// Slot names the credential within the backend.
	Slot string

	// RequireSealed refuses to persist plaintext when true (TierPersistent and TierPostgres).
	RequireSealed bool

	// SealKeyMinBytes is the minimum accepted size of PEDEX_CREDENTIAL_KEY.
	SealKeyMinBytes int
}

// DefaultConfig returns the persistent tier under the user's config directory.
func DefaultConfig() Config {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return Config{
		Tier:            TierPersistent,
		Path:            filepath.Join(dir, "pedex", "credentials.db"),
		Slot:            "default",
		SealKeyMinBytes: 32,
	}
}

// LoadConfigFromEnv loads credential configuration from environment variables.
//
// Optional:
//   - PEDEX_CREDENTIAL_TIER (session|persistent|postgres)
//   - PEDEX_CREDENTIAL_PATH
//   - PEDEX_CREDENTIAL_SLOT
//   - PEDEX_REQUIRE_SEALED_CREDENTIALS (bool)
//   - PEDEX_CREDENTIAL_KEY_MIN_BYTES
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("PEDEX_CREDENTIAL_TIER")); v != "" {
		switch t := Tier(strings.ToLower(v)); t {
		case TierSession, TierPersistent, TierPostgres:
			cfg.Tier = t
		default:
			return Config{}, ErrConfig
		}
	}

	if v := strings.TrimSpace(os.Getenv("PEDEX_CREDENTIAL_PATH")); v != "" {
		cfg.Path = v
	}

	if v := strings.TrimSpace(os.Getenv("PEDEX_CREDENTIAL_SLOT")); v != "" {
		cfg.Slot = v
	}

	if v := strings.TrimSpace(os.Getenv("PEDEX_REQUIRE_SEALED_CREDENTIALS")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.RequireSealed = b
	}

	if v := strings.TrimSpace(os.Getenv("PEDEX_CREDENTIAL_KEY_MIN_BYTES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 16 {
			return Config{}, ErrConfig
		}
		cfg.SealKeyMinBytes = n
	}

	if cfg.Tier == TierPersistent && cfg.Path == "" {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
