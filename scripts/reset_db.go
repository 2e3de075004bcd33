package main

import (
	"database/sql"

	"github.com/elys-network/flywheel/internal/config"
	"github.com/elys-network/flywheel/internal/logger"
	"github.com/elys-network/flywheel/internal/state"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found or error loading .env file. Relying on OS environment variables.")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Initialize(cfg.LogLevel)
	log.Info().Msg("Starting database reset script...")

	var db *sql.DB
	var dialect state.Dialect

	switch cfg.Store {
	case config.StorePostgres:
		log.Info().
			Str("host", cfg.DB.Host).
			Int("port", cfg.DB.Port).
			Str("user", cfg.DB.User).
			Str("dbname", cfg.DB.DBName).
			Msg("Connecting to database")
		db, err = state.InitDB(cfg.DB)
		dialect = state.DialectPostgres
	case config.StoreSQLite:
		db, err = state.InitSQLite(cfg.SQLitePath)
		dialect = state.DialectSQLite
	default:
		log.Fatal().Str("store", cfg.Store).Msg("FLYWHEEL_STORE must be postgres or sqlite; the memory store has nothing to reset")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database connection")
	}
	defer state.CloseDB(db)

	log.Info().Msg("Connected to database. Dropping and recreating the flywheel schema...")
	if err := state.ResetSchema(db, dialect); err != nil {
		log.Fatal().Err(err).Msg("Failed to reset database schema")
	}

	log.Info().Msg("Database reset complete!")
}
