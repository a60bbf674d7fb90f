package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pedex/cmd/security/token"
)

// PostgresBackend implements Backend using PostgreSQL (pedex.client_credentials).
//
// Schema:
//
//	CREATE TABLE pedex.client_credentials (
//	  slot       text PRIMARY KEY,
//	  payload    bytea NOT NULL,
//	  updated_at timestamptz NOT NULL
//	);
type PostgresBackend struct {
	pool  *pgxpool.Pool
	codec codec
	now   func() time.Time
}

var _ Backend = (*PostgresBackend)(nil)

// NewPostgresBackend creates a Postgres-backed credential tier. sealer may be nil.
func NewPostgresBackend(pool *pgxpool.Pool, sealer *token.Sealer) *PostgresBackend {
	return &PostgresBackend{pool: pool, codec: codec{sealer: sealer}, now: time.Now}
}

func (p *PostgresBackend) Load(ctx context.Context, slot string) (Credential, error) {
	var payload []byte
	err := p.pool.QueryRow(ctx, `
		SELECT payload
		FROM pedex.client_credentials
		WHERE slot = $1
	`, slot).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, fmt.Errorf("%s: %w", slot, ErrNotFound)
	}
	if err != nil {
		return Credential{}, err
	}
	return p.codec.decode(slot, payload)
}

func (p *PostgresBackend) Store(ctx context.Context, slot string, c Credential) error {
	payload, err := p.codec.encode(slot, c)
	if err != nil {
		return fmt.Errorf("encode %s: %w", slot, err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO pedex.client_credentials (slot, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (slot) DO UPDATE
		SET payload = EXCLUDED.payload,
		    updated_at = EXCLUDED.updated_at
	`, slot, payload, p.now().UTC())
	return err
}

func (p *PostgresBackend) Delete(ctx context.Context, slot string) error {
	_, err := p.pool.Exec(ctx, `
		DELETE FROM pedex.client_credentials
		WHERE slot = $1
	`, slot)
	return err
}

// Close is a no-op: the pool is owned by the caller.
func (p *PostgresBackend) Close() error { return nil }
