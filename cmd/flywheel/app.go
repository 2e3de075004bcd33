package main

import (
	"context"
	"fmt"

	"github.com/elys-network/flywheel/internal/config"
	"github.com/elys-network/flywheel/internal/eventlog"
	"github.com/elys-network/flywheel/internal/flywheel"
	"github.com/elys-network/flywheel/internal/state"
	"github.com/elys-network/flywheel/internal/vault"

	"github.com/rs/zerolog/log"
)

// app wires the store, event log, distributor and engine from configuration.
type app struct {
	cfg         *config.AppConfig
	store       state.Store
	events      *eventlog.Log
	distributor *vault.Simulated
	engine      *flywheel.Engine
}

func openApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	events := eventlog.New(cfg.EventRetention)
	recent, err := store.RecentEvents(ctx, events.Retention())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load recent events: %w", err)
	}
	events.Hydrate(recent)

	distributor := vault.NewSimulated(cfg.InitialSupply)
	if cfg.SolanaRPCURL != "" && !cfg.TokenMint.IsZero() {
		source := vault.NewRPCSupplySource(cfg.SolanaRPCURL, cfg.TokenMint)
		if err := distributor.SyncSupply(ctx, source); err != nil {
			log.Warn().Err(err).Str("endpoint", cfg.SolanaRPCURL).Msg("Failed to sync token supply, using configured initial supply")
		}
	}

	engine, err := flywheel.NewEngine(flywheel.Config{
		Store:               store,
		Distributor:         distributor,
		Events:              events,
		DistributionTimeout: cfg.DistributionTimeout,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{cfg: cfg, store: store, events: events, distributor: distributor, engine: engine}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}
}

func openStore(cfg *config.AppConfig) (state.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		log.Info().
			Str("host", cfg.DB.Host).
			Int("port", cfg.DB.Port).
			Str("dbname", cfg.DB.DBName).
			Msg("Connecting to database")
		db, err := state.InitDB(cfg.DB)
		if err != nil {
			return nil, err
		}
		store, err := state.NewSQLStore(db, state.DialectPostgres, cfg.EventRetention)
		if err != nil {
			state.CloseDB(db)
			return nil, err
		}
		return store, nil
	case config.StoreSQLite:
		log.Info().Str("path", cfg.SQLitePath).Msg("Opening SQLite store")
		db, err := state.InitSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store, err := state.NewSQLStore(db, state.DialectSQLite, cfg.EventRetention)
		if err != nil {
			state.CloseDB(db)
			return nil, err
		}
		return store, nil
	default:
		log.Warn().Msg("Using in-memory store; state is lost on exit")
		return state.NewMemoryStore(cfg.EventRetention), nil
	}
}
