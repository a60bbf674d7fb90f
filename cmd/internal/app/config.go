package app

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"

	"pedex/cmd/identity/ids"
	authapi "pedex/cmd/internal/auth/api"
	"pedex/cmd/internal/auth/credential"
	"pedex/cmd/internal/auth/session"
	"pedex/cmd/internal/realtime"
)

// ErrConfig is returned when the aggregated configuration is inconsistent.
var ErrConfig = errors.New("app config invalid")

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	// StatusAddr is the local status listener. Empty disables it.
	StatusAddr string
	LogLevel   string
	LogFormat  string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz also requires a connected live channel.
	ReadinessRequireLive bool

	API        authapi.Config
	Live       realtime.Config
	Credential credential.Config
	Session    session.Config
}

// LoadConfig loads Config from environment variables with defaults.
// A .env file in the working directory (or PEDEX_ENV_FILE) is applied first
// without overriding variables already set.
func LoadConfig() (Config, error) {
	if err := loadDotEnv(EnvString("PEDEX_ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}

	cfg := Config{
		StatusAddr: EnvString("PEDEX_STATUS_ADDR", "127.0.0.1:7070"),
		LogLevel:   EnvString("PEDEX_LOG_LEVEL", "info"),
		LogFormat:  EnvString("PEDEX_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("PEDEX_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("PEDEX_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("PEDEX_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("PEDEX_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("PEDEX_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("PEDEX_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("PEDEX_DB_MAX_CONNS", 4),
		DBMinConns:  EnvInt32("PEDEX_DB_MIN_CONNS", 0),

		ReadinessRequireLive: EnvBool("PEDEX_READINESS_REQUIRE_LIVE", false),
	}
	if EnvBool("PEDEX_STATUS_DISABLED", false) {
		cfg.StatusAddr = ""
	}

	var err error
	if cfg.API, err = authapi.LoadConfigFromEnv(); err != nil {
		return Config{}, err
	}
	cfg.API.InstanceID = ids.NewInstanceID()

	if cfg.Live, err = realtime.LoadConfigFromEnv(); err != nil {
		return Config{}, err
	}
	if cfg.Credential, err = credential.LoadConfigFromEnv(); err != nil {
		return Config{}, err
	}
	if cfg.Session, err = session.LoadConfigFromEnv(); err != nil {
		return Config{}, err
	}

	if cfg.Credential.Tier == credential.TierPostgres && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("%w: PEDEX_CREDENTIAL_TIER=postgres requires PEDEX_DATABASE_URL", ErrConfig)
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
}
