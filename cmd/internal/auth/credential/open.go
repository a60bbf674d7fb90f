package credential

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"pedex/cmd/security/token"
)

// OpenBackend builds the Backend for cfg.Tier. pool is only used by TierPostgres.
//
// When PEDEX_CREDENTIAL_KEY is set, persisted tiers seal values at rest. If
// cfg.RequireSealed is true a missing or short key is an error.
func OpenBackend(cfg Config, pool *pgxpool.Pool) (Backend, error) {
	if cfg.Tier == TierSession {
		return NewMemoryBackend(), nil
	}

	sealer, err := sealerFor(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Tier {
	case TierPersistent:
		return OpenBoltBackend(cfg.Path, sealer)
	case TierPostgres:
		if pool == nil {
			return nil, fmt.Errorf("%w: postgres tier requires a database pool", ErrConfig)
		}
		return NewPostgresBackend(pool, sealer), nil
	default:
		return nil, fmt.Errorf("%w: unknown tier %q", ErrConfig, cfg.Tier)
	}
}

func sealerFor(cfg Config) (*token.Sealer, error) {
	if !cfg.RequireSealed && !token.SealEnabled() {
		return nil, nil
	}
	key, err := token.SealKeyFromEnv(cfg.SealKeyMinBytes)
	if err != nil {
		if !cfg.RequireSealed && errors.Is(err, token.ErrSealKeyMissing) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return token.NewSealer(key)
}
