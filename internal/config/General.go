package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/elys-network/flywheel/internal/state"
	"github.com/elys-network/flywheel/internal/vault"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	// Calendar year 2026, UTC.
	DefaultEpochStart int64 = 1_767_225_600
	DefaultEpochEnd   int64 = 1_798_761_599
)

// AppConfig holds all application configuration loaded from environment variables.
type AppConfig struct {
	LogLevel string
	WebPort  string

	// Store selects the ledger backend: memory, postgres or sqlite.
	Store      string
	DB         state.DBConfig
	SQLitePath string

	TokenMint  solana.PublicKey
	FeeVault   solana.PublicKey
	EpochStart int64
	EpochEnd   int64

	EventRetention      int
	EventCacheTTL       time.Duration
	DistributionTimeout time.Duration

	// KeeperSchedule is a six-field cron spec. Empty disables the keeper.
	KeeperSchedule string
	KeeperIdentity solana.PublicKey

	InitialSupply uint64
	SolanaRPCURL  string

	RateLimitPerMinute int
	RateLimitBurst     int
}

// LoadConfig loads configuration from environment variables, applying defaults for anything unset.
func LoadConfig() (*AppConfig, error) {
	log.Info().Msg("Loading application configuration from environment variables...")

	cfg := &AppConfig{
		LogLevel:   getEnvDefault("LOG_LEVEL", "info"),
		WebPort:    getEnvDefault("WEB_PORT", "8080"),
		Store:      strings.ToLower(getEnvDefault("FLYWHEEL_STORE", StoreMemory)),
		SQLitePath: getEnvDefault("SQLITE_PATH", "flywheel.db"),

		KeeperSchedule: os.Getenv("FLYWHEEL_KEEPER_SCHEDULE"),
		SolanaRPCURL:   os.Getenv("SOLANA_RPC_URL"),
	}

	var err error

	if cfg.EpochStart, err = getEnvAsInt64Default("FLYWHEEL_EPOCH_START", DefaultEpochStart); err != nil {
		return nil, err
	}
	if cfg.EpochEnd, err = getEnvAsInt64Default("FLYWHEEL_EPOCH_END", DefaultEpochEnd); err != nil {
		return nil, err
	}
	if cfg.EpochStart > cfg.EpochEnd {
		return nil, fmt.Errorf("FLYWHEEL_EPOCH_START (%d) must not be after FLYWHEEL_EPOCH_END (%d)", cfg.EpochStart, cfg.EpochEnd)
	}

	retention, err := getEnvAsUint64Default("FLYWHEEL_EVENT_RETENTION", 100)
	if err != nil {
		return nil, err
	}
	cfg.EventRetention = int(retention)

	if cfg.EventCacheTTL, err = getEnvAsDurationDefault("FLYWHEEL_EVENT_CACHE_TTL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.DistributionTimeout, err = getEnvAsDurationDefault("FLYWHEEL_DISTRIBUTION_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.InitialSupply, err = getEnvAsUint64Default("FLYWHEEL_INITIAL_SUPPLY", vault.DefaultInitialSupply); err != nil {
		return nil, err
	}

	perMinute, err := getEnvAsUint64Default("RATE_LIMIT_PER_MINUTE", 60)
	if err != nil {
		return nil, err
	}
	burst, err := getEnvAsUint64Default("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitPerMinute, cfg.RateLimitBurst = int(perMinute), int(burst)

	if cfg.TokenMint, err = getEnvAsPublicKey("FLYWHEEL_TOKEN_MINT"); err != nil {
		return nil, err
	}
	if cfg.FeeVault, err = getEnvAsPublicKey("FLYWHEEL_FEE_VAULT"); err != nil {
		return nil, err
	}
	if cfg.KeeperIdentity, err = getEnvAsPublicKey("FLYWHEEL_KEEPER_IDENTITY"); err != nil {
		return nil, err
	}
	if cfg.KeeperSchedule != "" && cfg.KeeperIdentity.IsZero() {
		return nil, errors.New("environment variable FLYWHEEL_KEEPER_IDENTITY is required when FLYWHEEL_KEEPER_SCHEDULE is set")
	}

	switch cfg.Store {
	case StoreMemory:
	case StoreSQLite:
		// Expand the tilde (~) in the database path to the user's home directory.
		if strings.HasPrefix(cfg.SQLitePath, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			cfg.SQLitePath = filepath.Join(home, cfg.SQLitePath[2:])
		}
	case StorePostgres:
		if cfg.DB, err = loadDBConfig(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("environment variable FLYWHEEL_STORE must be one of %s, %s, %s, got: %s",
			StoreMemory, StorePostgres, StoreSQLite, cfg.Store)
	}

	log.Debug().
		Str("store", cfg.Store).
		Str("webPort", cfg.WebPort).
		Int64("epochStart", cfg.EpochStart).
		Int64("epochEnd", cfg.EpochEnd).
		Bool("keeper", cfg.KeeperSchedule != "").
		Msg("Configuration loaded successfully.")

	return cfg, nil
}

// loadDBConfig reads the PostgreSQL connection settings. DB_USER and DB_NAME are required.
func loadDBConfig() (state.DBConfig, error) {
	var dbCfg state.DBConfig
	var err error

	if dbCfg.User, err = getEnv("DB_USER"); err != nil {
		return dbCfg, err
	}
	if dbCfg.DBName, err = getEnv("DB_NAME"); err != nil {
		return dbCfg, err
	}
	port, err := getEnvAsUint64Default("DB_PORT", 5432)
	if err != nil {
		return dbCfg, err
	}

	dbCfg.Host = getEnvDefault("DB_HOST", "localhost")
	dbCfg.Port = int(port)
	dbCfg.Password = os.Getenv("DB_PASSWORD")
	dbCfg.SSLMode = getEnvDefault("DB_SSLMODE", "disable")
	return dbCfg, nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvDefault retrieves a string environment variable, or def when unset or empty.
func getEnvDefault(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}

// getEnvAsUint64Default retrieves an environment variable as a uint64. Returns error if invalid.
func getEnvAsUint64Default(key string, def uint64) (uint64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return def, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt64Default retrieves an environment variable as an int64. Returns error if invalid.
func getEnvAsInt64Default(key string, def int64) (int64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return def, nil
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDurationDefault retrieves an environment variable as a time.Duration ("5s", "1m").
func getEnvAsDurationDefault(key string, def time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return def, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return 0, errors.New("environment variable " + key + " must be a positive duration, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsPublicKey retrieves an optional base58 public key. Unset yields the zero key.
func getEnvAsPublicKey(key string) (solana.PublicKey, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return solana.PublicKey{}, nil
	}
	pk, err := solana.PublicKeyFromBase58(valueStr)
	if err != nil {
		return solana.PublicKey{}, errors.New("environment variable " + key + " must be a base58 public key, got: " + valueStr)
	}
	return pk, nil
}
