package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/elys-network/flywheel/internal/logger"
	"github.com/elys-network/flywheel/internal/types"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

// SQLStore persists the ledger in PostgreSQL or SQLite.
// Every Update runs in one transaction that first locks the vault row.
type SQLStore struct {
	db        *sql.DB
	dialect   Dialect
	retention int
	logger    zerolog.Logger
}

// NewSQLStore wraps an open connection and ensures the schema exists.
// retention bounds the stored event history (0 keeps all).
func NewSQLStore(db *sql.DB, dialect Dialect, retention int) (*SQLStore, error) {
	if err := EnsureSchema(db, dialect); err != nil {
		return nil, err
	}
	return &SQLStore{
		db:        db,
		dialect:   dialect,
		retention: retention,
		logger:    logger.GetForComponent("sql_store"),
	}, nil
}

// DB exposes the underlying pool for maintenance scripts.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) Load(ctx context.Context) (Ledger, error) {
	return s.loadLedger(ctx, s.db, false)
}

func (s *SQLStore) Update(ctx context.Context, fn UpdateFunc) (_ []types.Event, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	ledger, err := s.loadLedger(ctx, tx, true)
	if err != nil {
		return nil, err
	}
	before := ledger.VaultBalance

	events, err := fn(&ledger)
	if err != nil {
		return nil, err
	}

	if ledger.Config != nil {
		if err = s.saveConfig(ctx, tx, ledger.Config); err != nil {
			return nil, err
		}
	}
	if ledger.VaultBalance != before {
		if err = s.saveBalance(ctx, tx, ledger.VaultBalance); err != nil {
			return nil, err
		}
	}

	committed, err := s.insertEvents(ctx, tx, events)
	if err != nil {
		return nil, err
	}
	if err = s.trimEvents(ctx, tx); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug().
		Uint64("vaultBalance", ledger.VaultBalance).
		Int("events", len(committed)).
		Msg("Ledger update committed")
	return committed, nil
}

func (s *SQLStore) RecentEvents(ctx context.Context, limit int) ([]types.Event, error) {
	query := `
		SELECT seq, event_type, tx_hash, event_timestamp, payload
		FROM flywheel_events
		ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, rebind(s.dialect, query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		var ev types.Event
		var eventType string
		var payload []byte
		if err := rows.Scan(&ev.Seq, &eventType, &ev.TxHash, &ev.Timestamp, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		ev.Type = types.EventType(eventType)
		if err := ev.DecodePayload(payload); err != nil {
			s.logger.Error().Err(err).Int64("seq", ev.Seq).Msg("Skipping undecodable event")
			continue
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during event iteration: %w", err)
	}
	return events, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return TestDBConnection(ctx, s.db)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) loadLedger(ctx context.Context, q queryer, lock bool) (Ledger, error) {
	balanceQuery := `SELECT balance FROM vault_account WHERE id = 1`
	if lock && s.dialect == DialectPostgres {
		balanceQuery += ` FOR UPDATE`
	}

	var ledger Ledger
	var balance int64
	err := q.QueryRowContext(ctx, balanceQuery).Scan(&balance)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Ledger{}, fmt.Errorf("failed to load vault balance: %w", err)
	}
	ledger.VaultBalance = uint64(balance)

	cfg, err := s.loadConfig(ctx, q)
	if err != nil {
		return Ledger{}, err
	}
	ledger.Config = cfg
	return ledger, nil
}

func (s *SQLStore) loadConfig(ctx context.Context, q queryer) (*types.FlywheelConfig, error) {
	query := `
		SELECT admin, token_mint, fee_vault, treasury_wallet,
			buyback_bps, burn_bps, lp_add_bps,
			epoch_start, epoch_end, min_interval_seconds, last_execution,
			total_fees_collected, total_bought_back, total_burned, total_lp_added,
			total_buyback_burned, total_withdrawn,
			initialized_at, updated_at
		FROM flywheel_config WHERE id = 1`

	var (
		admin, mint, feeVault                       string
		treasury                                    sql.NullString
		buybackBps, burnBps, lpAddBps               int64
		fees, boughtBack, burned, lpAdded, bbBurned int64
		withdrawn                                   int64
		cfg                                         types.FlywheelConfig
	)
	err := q.QueryRowContext(ctx, query).Scan(
		&admin, &mint, &feeVault, &treasury,
		&buybackBps, &burnBps, &lpAddBps,
		&cfg.EpochStart, &cfg.EpochEnd, &cfg.MinIntervalSeconds, &cfg.LastExecution,
		&fees, &boughtBack, &burned, &lpAdded,
		&bbBurned, &withdrawn,
		&cfg.InitializedAt, &cfg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load flywheel config: %w", err)
	}

	if cfg.Admin, err = solana.PublicKeyFromBase58(admin); err != nil {
		return nil, fmt.Errorf("failed to parse admin %q: %w", admin, err)
	}
	if cfg.TokenMint, err = solana.PublicKeyFromBase58(mint); err != nil {
		return nil, fmt.Errorf("failed to parse token mint %q: %w", mint, err)
	}
	if cfg.FeeVault, err = solana.PublicKeyFromBase58(feeVault); err != nil {
		return nil, fmt.Errorf("failed to parse fee vault %q: %w", feeVault, err)
	}
	if treasury.Valid {
		tw, err := solana.PublicKeyFromBase58(treasury.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse treasury wallet %q: %w", treasury.String, err)
		}
		cfg.TreasuryWallet = &tw
	}

	cfg.BuybackBps = uint16(buybackBps)
	cfg.BurnBps = uint16(burnBps)
	cfg.LpAddBps = uint16(lpAddBps)
	cfg.TotalFeesCollected = uint64(fees)
	cfg.TotalBoughtBack = uint64(boughtBack)
	cfg.TotalBurned = uint64(burned)
	cfg.TotalLpAdded = uint64(lpAdded)
	cfg.TotalBuybackBurned = uint64(bbBurned)
	cfg.TotalWithdrawn = uint64(withdrawn)
	return &cfg, nil
}

func (s *SQLStore) saveConfig(ctx context.Context, q queryer, cfg *types.FlywheelConfig) error {
	stmt := `
		INSERT INTO flywheel_config (
			id, admin, token_mint, fee_vault, treasury_wallet,
			buyback_bps, burn_bps, lp_add_bps,
			epoch_start, epoch_end, min_interval_seconds, last_execution,
			total_fees_collected, total_bought_back, total_burned, total_lp_added,
			total_buyback_burned, total_withdrawn,
			initialized_at, updated_at
		) VALUES (
			1, $1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15,
			$16, $17,
			$18, $19
		)
		ON CONFLICT (id) DO UPDATE SET
			treasury_wallet = excluded.treasury_wallet,
			buyback_bps = excluded.buyback_bps,
			burn_bps = excluded.burn_bps,
			lp_add_bps = excluded.lp_add_bps,
			min_interval_seconds = excluded.min_interval_seconds,
			last_execution = excluded.last_execution,
			total_fees_collected = excluded.total_fees_collected,
			total_bought_back = excluded.total_bought_back,
			total_burned = excluded.total_burned,
			total_lp_added = excluded.total_lp_added,
			total_buyback_burned = excluded.total_buyback_burned,
			total_withdrawn = excluded.total_withdrawn,
			updated_at = excluded.updated_at`

	var treasury sql.NullString
	if cfg.TreasuryWallet != nil {
		treasury = sql.NullString{String: cfg.TreasuryWallet.String(), Valid: true}
	}

	_, err := q.ExecContext(ctx, rebind(s.dialect, stmt),
		cfg.Admin.String(), cfg.TokenMint.String(), cfg.FeeVault.String(), treasury,
		int64(cfg.BuybackBps), int64(cfg.BurnBps), int64(cfg.LpAddBps),
		cfg.EpochStart, cfg.EpochEnd, cfg.MinIntervalSeconds, cfg.LastExecution,
		int64(cfg.TotalFeesCollected), int64(cfg.TotalBoughtBack), int64(cfg.TotalBurned), int64(cfg.TotalLpAdded),
		int64(cfg.TotalBuybackBurned), int64(cfg.TotalWithdrawn),
		cfg.InitializedAt, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save flywheel config: %w", err)
	}
	return nil
}

func (s *SQLStore) saveBalance(ctx context.Context, q queryer, balance uint64) error {
	stmt := `
		INSERT INTO vault_account (id, balance) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET balance = excluded.balance, updated_at = CURRENT_TIMESTAMP`
	if _, err := q.ExecContext(ctx, rebind(s.dialect, stmt), int64(balance)); err != nil {
		return fmt.Errorf("failed to save vault balance: %w", err)
	}
	return nil
}

func (s *SQLStore) insertEvents(ctx context.Context, q queryer, events []types.Event) ([]types.Event, error) {
	stmt := rebind(s.dialect, `
		INSERT INTO flywheel_events (event_type, tx_hash, event_timestamp, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING seq`)

	committed := make([]types.Event, len(events))
	for i, ev := range events {
		payload, err := ev.EncodePayload()
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", ev.Type, err)
		}
		if err := q.QueryRowContext(ctx, stmt, string(ev.Type), ev.TxHash, ev.Timestamp, string(payload)).Scan(&ev.Seq); err != nil {
			return nil, fmt.Errorf("failed to insert %s event: %w", ev.Type, err)
		}
		committed[i] = ev
	}
	return committed, nil
}

func (s *SQLStore) trimEvents(ctx context.Context, q queryer) error {
	if s.retention <= 0 {
		return nil
	}
	stmt := `DELETE FROM flywheel_events WHERE seq <= (SELECT MAX(seq) FROM flywheel_events) - $1`
	if _, err := q.ExecContext(ctx, rebind(s.dialect, stmt), s.retention); err != nil {
		return fmt.Errorf("failed to trim event history: %w", err)
	}
	return nil
}
