// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver
)

// Dialect selects the SQL flavour spoken by a connection.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// DSN returns the lib/pq connection string for the config.
func (cfg DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// InitDB opens and verifies a PostgreSQL connection pool.
func InitDB(cfg DBConfig) (*sql.DB, error) {
	return OpenPostgres(cfg.DSN())
}

// OpenPostgres opens a PostgreSQL pool from a DSN or URL.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return db, nil
}

// InitSQLite opens a SQLite database file in WAL mode.
// A single connection serializes all transactions.
func InitSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	log.Info().Str("path", path).Msg("Successfully opened the SQLite database!")
	return db, nil
}

// CloseDB closes the database connection pool.
func CloseDB(db *sql.DB) {
	if db != nil {
		log.Info().Msg("Closing database connection...")
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema(db *sql.DB, dialect Dialect) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	var schemaSQL string
	switch dialect {
	case DialectPostgres:
		schemaSQL = postgresSchema
	case DialectSQLite:
		schemaSQL = sqliteSchema
	default:
		return fmt.Errorf("unsupported dialect %q", dialect)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Str("dialect", string(dialect)).Msg("Database schema ensured.")
	return nil
}

// ResetSchema drops every flywheel table and recreates the schema.
func ResetSchema(db *sql.DB, dialect Dialect) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	dropTablesQuery := `
		DROP TABLE IF EXISTS flywheel_events;
		DROP TABLE IF EXISTS vault_account;
		DROP TABLE IF EXISTS flywheel_config;
	`
	if _, err := db.Exec(dropTablesQuery); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	log.Warn().Msg("Dropped all flywheel tables")
	return EnsureSchema(db, dialect)
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

var placeholderPattern = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders into the dialect's form.
func rebind(dialect Dialect, query string) string {
	if dialect == DialectSQLite {
		return placeholderPattern.ReplaceAllString(query, "?$1")
	}
	return query
}

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS flywheel_config (
		id INTEGER PRIMARY KEY DEFAULT 1,
		admin VARCHAR(64) NOT NULL,
		token_mint VARCHAR(64) NOT NULL,
		fee_vault VARCHAR(64) NOT NULL,
		treasury_wallet VARCHAR(64),
		buyback_bps INTEGER NOT NULL,
		burn_bps INTEGER NOT NULL,
		lp_add_bps INTEGER NOT NULL,
		epoch_start BIGINT NOT NULL,
		epoch_end BIGINT NOT NULL,
		min_interval_seconds BIGINT NOT NULL,
		last_execution BIGINT NOT NULL DEFAULT 0,
		total_fees_collected BIGINT NOT NULL DEFAULT 0,
		total_bought_back BIGINT NOT NULL DEFAULT 0,
		total_burned BIGINT NOT NULL DEFAULT 0,
		total_lp_added BIGINT NOT NULL DEFAULT 0,
		total_buyback_burned BIGINT NOT NULL DEFAULT 0,
		total_withdrawn BIGINT NOT NULL DEFAULT 0,
		initialized_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		CONSTRAINT single_row_check CHECK (id = 1),
		CONSTRAINT bps_sum_check CHECK (buyback_bps + burn_bps + lp_add_bps <= 10000),
		CONSTRAINT epoch_check CHECK (epoch_start <= epoch_end)
	);

	-- The vault row always exists and doubles as the row lock for every update.
	CREATE TABLE IF NOT EXISTS vault_account (
		id INTEGER PRIMARY KEY DEFAULT 1,
		balance BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT single_row_check CHECK (id = 1),
		CONSTRAINT balance_check CHECK (balance >= 0)
	);
	INSERT INTO vault_account (id, balance)
	VALUES (1, 0)
	ON CONFLICT (id) DO NOTHING;

	CREATE TABLE IF NOT EXISTS flywheel_events (
		seq BIGSERIAL PRIMARY KEY,
		event_type VARCHAR(32) NOT NULL,
		tx_hash VARCHAR(64) NOT NULL,
		event_timestamp BIGINT NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_flywheel_events_type ON flywheel_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_flywheel_events_timestamp ON flywheel_events(event_timestamp DESC);
`

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS flywheel_config (
		id INTEGER PRIMARY KEY DEFAULT 1,
		admin TEXT NOT NULL,
		token_mint TEXT NOT NULL,
		fee_vault TEXT NOT NULL,
		treasury_wallet TEXT,
		buyback_bps INTEGER NOT NULL,
		burn_bps INTEGER NOT NULL,
		lp_add_bps INTEGER NOT NULL,
		epoch_start INTEGER NOT NULL,
		epoch_end INTEGER NOT NULL,
		min_interval_seconds INTEGER NOT NULL,
		last_execution INTEGER NOT NULL DEFAULT 0,
		total_fees_collected INTEGER NOT NULL DEFAULT 0,
		total_bought_back INTEGER NOT NULL DEFAULT 0,
		total_burned INTEGER NOT NULL DEFAULT 0,
		total_lp_added INTEGER NOT NULL DEFAULT 0,
		total_buyback_burned INTEGER NOT NULL DEFAULT 0,
		total_withdrawn INTEGER NOT NULL DEFAULT 0,
		initialized_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		CHECK (id = 1),
		CHECK (buyback_bps + burn_bps + lp_add_bps <= 10000),
		CHECK (epoch_start <= epoch_end)
	);

	CREATE TABLE IF NOT EXISTS vault_account (
		id INTEGER PRIMARY KEY DEFAULT 1,
		balance INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CHECK (id = 1),
		CHECK (balance >= 0)
	);
	INSERT INTO vault_account (id, balance)
	VALUES (1, 0)
	ON CONFLICT (id) DO NOTHING;

	CREATE TABLE IF NOT EXISTS flywheel_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		tx_hash TEXT NOT NULL,
		event_timestamp INTEGER NOT NULL,
		payload TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_flywheel_events_type ON flywheel_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_flywheel_events_timestamp ON flywheel_events(event_timestamp DESC);
`
