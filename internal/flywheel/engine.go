package flywheel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elys-network/flywheel/internal/eventlog"
	"github.com/elys-network/flywheel/internal/logger"
	"github.com/elys-network/flywheel/internal/metrics"
	"github.com/elys-network/flywheel/internal/planner"
	"github.com/elys-network/flywheel/internal/state"
	"github.com/elys-network/flywheel/internal/types"
	"github.com/elys-network/flywheel/internal/utils"
	"github.com/elys-network/flywheel/internal/vault"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// DefaultDistributionTimeout bounds each external distribution call.
const DefaultDistributionTimeout = 30 * time.Second

// Phase is the execution state of the engine.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseGating
	PhaseSplitting
	PhaseDistributing
	PhaseRecording
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseGating:
		return "gating"
	case PhaseSplitting:
		return "splitting"
	case PhaseDistributing:
		return "distributing"
	case PhaseRecording:
		return "recording"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// Config holds the dependencies for creating a new Engine
type Config struct {
	Store               state.Store
	Distributor         vault.Distributor
	Events              *eventlog.Log
	Clock               clockwork.Clock
	DistributionTimeout time.Duration
}

// Engine owns every mutation of the flywheel ledger. Mutations are serialized and each one
// commits atomically through the store before its events become visible in the log.
type Engine struct {
	logger      zerolog.Logger
	store       state.Store
	distributor vault.Distributor
	events      *eventlog.Log
	clock       clockwork.Clock
	timeout     time.Duration

	mu    sync.Mutex
	phase atomic.Int32
}

// NewEngine creates a new Engine with dependency injection
func NewEngine(cfg Config) (*Engine, error) {
	if err := validateEngineConfig(&cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}

	e := &Engine{
		logger:      logger.GetForComponent("flywheel_engine"),
		store:       cfg.Store,
		distributor: cfg.Distributor,
		events:      cfg.Events,
		clock:       cfg.Clock,
		timeout:     cfg.DistributionTimeout,
	}

	e.logger.Info().
		Dur("distributionTimeout", e.timeout).
		Int("eventRetention", e.events.Retention()).
		Msg("Flywheel engine created")
	return e, nil
}

func validateEngineConfig(cfg *Config) error {
	if cfg.Store == nil {
		return fmt.Errorf("store cannot be nil")
	}
	if cfg.Distributor == nil {
		return fmt.Errorf("distributor cannot be nil")
	}
	if cfg.Events == nil {
		return fmt.Errorf("event log cannot be nil")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.DistributionTimeout < 0 {
		return fmt.Errorf("distribution timeout must not be negative")
	}
	if cfg.DistributionTimeout == 0 {
		cfg.DistributionTimeout = DefaultDistributionTimeout
	}
	return nil
}

// Phase returns the current execution phase.
func (e *Engine) Phase() Phase {
	return Phase(e.phase.Load())
}

func (e *Engine) setPhase(p Phase) {
	e.phase.Store(int32(p))
}

// Ping checks that the backing store is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// Ledger returns a snapshot of the config and vault balance.
func (e *Engine) Ledger(ctx context.Context) (state.Ledger, error) {
	return e.store.Load(ctx)
}

// Config returns the current config and vault balance, or ErrNotFound before initialization.
func (e *Engine) Config(ctx context.Context) (*types.FlywheelConfig, uint64, error) {
	ledger, err := e.store.Load(ctx)
	if err != nil {
		return nil, 0, err
	}
	if ledger.Config == nil {
		return nil, 0, ErrNotFound
	}
	return ledger.Config, ledger.VaultBalance, nil
}

// Initialize creates the config singleton. The caller named in params becomes the admin.
func (e *Engine) Initialize(ctx context.Context, params types.InitParams) (*types.FlywheelConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now().Unix()
	txHash := uuid.New().String()
	var created *types.FlywheelConfig

	events, err := e.store.Update(ctx, func(l *state.Ledger) ([]types.Event, error) {
		if err := Authorize(l.Config, params.Admin, ActionInitialize); err != nil {
			return nil, err
		}
		if l.Config != nil {
			return nil, ErrAlreadyInitialized
		}
		cfg, err := NewConfig(params, now)
		if err != nil {
			return nil, err
		}
		l.Config = cfg
		l.VaultBalance = 0
		created = cfg.Clone()

		return []types.Event{{
			Type:      types.EventConfigInitialized,
			Timestamp: now,
			TxHash:    txHash,
			ConfigInitialized: &types.ConfigInitializedData{
				Admin:      cfg.Admin,
				TokenMint:  cfg.TokenMint,
				FeeVault:   cfg.FeeVault,
				BuybackBps: cfg.BuybackBps,
				BurnBps:    cfg.BurnBps,
				LpAddBps:   cfg.LpAddBps,
				EpochStart: cfg.EpochStart,
				EpochEnd:   cfg.EpochEnd,
			},
		}}, nil
	})
	e.observe("initialize", err)
	if err != nil {
		return nil, err
	}
	e.events.Append(events...)
	metrics.VaultBalance.Set(0)

	e.logger.Info().
		Str("admin", created.Admin.String()).
		Str("buyback", utils.FormatBps(created.BuybackBps)).
		Str("burn", utils.FormatBps(created.BurnBps)).
		Str("lpAdd", utils.FormatBps(created.LpAddBps)).
		Int64("epochStart", created.EpochStart).
		Int64("epochEnd", created.EpochEnd).
		Msg("Flywheel config initialized")
	return created, nil
}

// UpdateConfig applies an admin-only partial update. Either every field applies or none does.
func (e *Engine) UpdateConfig(ctx context.Context, caller solana.PublicKey, params types.UpdateParams) (*types.FlywheelConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now().Unix()
	txHash := uuid.New().String()
	var updated *types.FlywheelConfig

	events, err := e.store.Update(ctx, func(l *state.Ledger) ([]types.Event, error) {
		if l.Config == nil {
			return nil, ErrNotFound
		}
		if err := Authorize(l.Config, caller, ActionUpdateConfig); err != nil {
			return nil, err
		}
		next, err := ApplyUpdate(l.Config, params, now)
		if err != nil {
			return nil, err
		}
		l.Config = next
		updated = next.Clone()

		return []types.Event{{
			Type:          types.EventConfigUpdated,
			Timestamp:     now,
			TxHash:        txHash,
			ConfigUpdated: &types.ConfigUpdatedData{Admin: caller, Update: params},
		}}, nil
	})
	e.observe("update_config", err)
	if err != nil {
		return nil, err
	}
	e.events.Append(events...)

	e.logger.Info().
		Str("buyback", utils.FormatBps(updated.BuybackBps)).
		Str("burn", utils.FormatBps(updated.BurnBps)).
		Str("lpAdd", utils.FormatBps(updated.LpAddBps)).
		Int64("minIntervalSeconds", updated.MinIntervalSeconds).
		Msg("Flywheel config updated")
	return updated, nil
}

// Deposit credits amount to the fee vault. Anyone may deposit.
func (e *Engine) Deposit(ctx context.Context, depositor solana.PublicKey, amount uint64) (*types.DepositReceipt, error) {
	if err := ValidateAmount(amount); err != nil {
		e.observe("deposit", err)
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now().Unix()
	txHash := uuid.New().String()
	var balance uint64

	events, err := e.store.Update(ctx, func(l *state.Ledger) ([]types.Event, error) {
		if l.Config == nil {
			return nil, ErrNotFound
		}
		if err := Authorize(l.Config, depositor, ActionDeposit); err != nil {
			return nil, err
		}
		next, err := checkedAdd(l.VaultBalance, amount)
		if err != nil {
			return nil, err
		}
		l.VaultBalance = next
		balance = next

		return []types.Event{{
			Type:      types.EventDeposit,
			Timestamp: now,
			TxHash:    txHash,
			Deposit:   &types.DepositData{Depositor: depositor, Amount: amount, VaultBalance: next},
		}}, nil
	})
	e.observe("deposit", err)
	if err != nil {
		return nil, err
	}
	e.events.Append(events...)
	metrics.DistributedAmount.WithLabelValues(metrics.DestinationDeposit).Add(float64(amount))
	metrics.VaultBalance.Set(utils.AmountToFloat64(balance, types.TokenDecimals))

	e.logger.Info().
		Str("depositor", depositor.String()).
		Str("amount", utils.FormatAmount(amount, types.TokenDecimals)).
		Uint64("vaultBalance", balance).
		Msg("Fees deposited")
	return &types.DepositReceipt{Amount: amount, VaultBalance: balance, TxHash: txHash}, nil
}

// Execute runs one flywheel cycle: gate, split the vault balance, distribute, record.
// Anyone may execute. An external failure aborts the cycle with nothing committed.
func (e *Engine) Execute(ctx context.Context, executor solana.PublicKey) (*types.ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.setPhase(PhaseIdle)

	start := e.clock.Now()
	now := start.Unix()
	txHash := uuid.New().String()

	// Generate unique cycle ID for tracing logs across the entire cycle
	cycleLogger := e.logger.With().Str("cycle_id", txHash).Logger()
	cycleLogger.Info().Str("executor", executor.String()).Msg("--- Starting flywheel cycle ---")

	var result types.ExecutionResult
	events, err := e.store.Update(ctx, func(l *state.Ledger) ([]types.Event, error) {
		// --- Step 1: Gating ---
		e.setPhase(PhaseGating)
		if l.Config == nil {
			return nil, ErrNotFound
		}
		if err := Authorize(l.Config, executor, ActionExecute); err != nil {
			return nil, err
		}
		if err := CanExecute(*l.Config, now); err != nil {
			return nil, err
		}

		// --- Step 2: Splitting ---
		e.setPhase(PhaseSplitting)
		fees := l.VaultBalance
		if fees == 0 {
			return nil, ErrNothingToExecute
		}
		split, err := planner.ComputeSplit(fees, l.Config.BuybackBps, l.Config.BurnBps, l.Config.LpAddBps)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBpsSum, err)
		}
		cycleLogger.Info().
			Str("fees", utils.FormatAmount(fees, types.TokenDecimals)).
			Uint64("buyback", split.Buyback).
			Uint64("burn", split.Burn).
			Uint64("lpAdd", split.LpAdd).
			Uint64("remainder", split.Remainder).
			Msg("Step 2: Split computed")

		// --- Step 3: Distributing ---
		e.setPhase(PhaseDistributing)
		acquired, burned, supply, err := e.distribute(ctx, cycleLogger, split)
		if err != nil {
			return nil, err
		}

		// --- Step 4: Recording ---
		e.setPhase(PhaseRecording)
		next := l.Config.Clone()
		if err := accumulate(
			accumulation{&next.TotalFeesCollected, fees},
			accumulation{&next.TotalBoughtBack, split.Buyback},
			accumulation{&next.TotalBurned, burned},
			accumulation{&next.TotalLpAdded, split.LpAdd},
			accumulation{&next.TotalBuybackBurned, acquired},
		); err != nil {
			return nil, err
		}
		balance, err := checkedSub(l.VaultBalance, split.Distributed())
		if err != nil {
			return nil, err
		}
		next.LastExecution = now
		l.Config = next
		l.VaultBalance = balance

		result = types.ExecutionResult{
			FeesProcessed: fees,
			BuybackAmount: split.Buyback,
			BurnAmount:    split.Burn,
			LpAddAmount:   split.LpAdd,
			Remainder:     split.Remainder,
			Acquired:      acquired,
			Burned:        burned,
			TotalSupply:   supply,
			VaultBalance:  balance,
			ExecutedAt:    now,
			TxHash:        txHash,
		}

		var emitted []types.Event
		if burned > 0 {
			emitted = append(emitted, types.Event{
				Type:      types.EventBurn,
				Timestamp: now,
				TxHash:    txHash,
				Burn:      &types.BurnData{Amount: burned, TotalSupply: supply},
			})
		}
		emitted = append(emitted, types.Event{
			Type:      types.EventExecute,
			Timestamp: now,
			TxHash:    txHash,
			Execute: &types.ExecuteData{
				Executor:      executor,
				FeesProcessed: fees,
				BuybackAmount: split.Buyback,
				BurnAmount:    split.Burn,
				LpAddAmount:   split.LpAdd,
			},
		})
		return emitted, nil
	})
	e.observe("execute", err)
	metrics.ExecutionDuration.Observe(e.clock.Since(start).Seconds())
	if err != nil {
		cycleLogger.Warn().Err(err).Str("code", Code(err)).Msg("Flywheel cycle rejected")
		return nil, err
	}

	// --- Step 5: Emit ---
	e.events.Append(events...)
	metrics.DistributedAmount.WithLabelValues(metrics.DestinationBuyback).Add(float64(result.BuybackAmount))
	metrics.DistributedAmount.WithLabelValues(metrics.DestinationBurn).Add(float64(result.Burned))
	metrics.DistributedAmount.WithLabelValues(metrics.DestinationLpAdd).Add(float64(result.LpAddAmount))
	metrics.VaultBalance.Set(utils.AmountToFloat64(result.VaultBalance, types.TokenDecimals))
	if result.Burned > 0 {
		metrics.TokenSupply.Set(utils.AmountToFloat64(result.TotalSupply, types.TokenDecimals))
	}

	cycleLogger.Info().
		Str("feesProcessed", utils.FormatAmount(result.FeesProcessed, types.TokenDecimals)).
		Str("burned", utils.FormatAmount(result.Burned, types.TokenDecimals)).
		Uint64("vaultBalance", result.VaultBalance).
		Dur("duration", e.clock.Since(start)).
		Msg("--- Flywheel cycle completed ---")
	return &result, nil
}

// distribute performs the external buyback, burn and liquidity add for a split.
// The burn covers the direct burn share plus every token the buyback acquired.
func (e *Engine) distribute(ctx context.Context, cycleLogger zerolog.Logger, split planner.Split) (acquired, burned, supply uint64, err error) {
	if split.Buyback > 0 {
		err = e.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			acquired, err = e.distributor.Buyback(ctx, split.Buyback)
			return err
		})
		if err != nil {
			return 0, 0, 0, aborted("buyback", err)
		}
		cycleLogger.Info().Uint64("spent", split.Buyback).Uint64("acquired", acquired).Msg("Step 3: Buyback complete")
	}

	burned, err = checkedAdd(acquired, split.Burn)
	if err != nil {
		return 0, 0, 0, err
	}
	if burned > 0 {
		err = e.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			supply, err = e.distributor.Burn(ctx, burned)
			return err
		})
		if err != nil {
			return 0, 0, 0, aborted("burn", err)
		}
		cycleLogger.Info().Uint64("burned", burned).Uint64("totalSupply", supply).Msg("Step 3: Burn complete")
	}

	if split.LpAdd > 0 {
		err = e.withTimeout(ctx, func(ctx context.Context) error {
			return e.distributor.AddLiquidity(ctx, split.LpAdd)
		})
		if err != nil {
			return 0, 0, 0, aborted("lp_add", err)
		}
		cycleLogger.Info().Uint64("lpAdded", split.LpAdd).Msg("Step 3: Liquidity add complete")
	}
	return acquired, burned, supply, nil
}

// EmergencyWithdraw moves the whole vault balance to recipient. Admin only, not epoch-gated.
func (e *Engine) EmergencyWithdraw(ctx context.Context, caller, recipient solana.PublicKey) (*types.WithdrawReceipt, error) {
	if recipient.IsZero() {
		e.observe("withdraw", ErrInvalidIdentity)
		return nil, fmt.Errorf("%w: recipient", ErrInvalidIdentity)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now().Unix()
	txHash := uuid.New().String()
	var amount uint64

	events, err := e.store.Update(ctx, func(l *state.Ledger) ([]types.Event, error) {
		if l.Config == nil {
			return nil, ErrNotFound
		}
		if err := Authorize(l.Config, caller, ActionWithdraw); err != nil {
			return nil, err
		}
		amount = l.VaultBalance
		if amount == 0 {
			return nil, ErrNothingToExecute
		}
		if err := e.withTimeout(ctx, func(ctx context.Context) error {
			return e.distributor.Withdraw(ctx, recipient, amount)
		}); err != nil {
			return nil, aborted("withdraw", err)
		}

		next := l.Config.Clone()
		if err := accumulate(accumulation{&next.TotalWithdrawn, amount}); err != nil {
			return nil, err
		}
		next.UpdatedAt = now
		l.Config = next
		l.VaultBalance = 0

		return []types.Event{{
			Type:      types.EventWithdraw,
			Timestamp: now,
			TxHash:    txHash,
			Withdraw:  &types.WithdrawData{Amount: amount, Recipient: recipient},
		}}, nil
	})
	e.observe("withdraw", err)
	if err != nil {
		return nil, err
	}
	e.events.Append(events...)
	metrics.DistributedAmount.WithLabelValues(metrics.DestinationWithdraw).Add(float64(amount))
	metrics.VaultBalance.Set(0)

	e.logger.Warn().
		Str("recipient", recipient.String()).
		Str("amount", utils.FormatAmount(amount, types.TokenDecimals)).
		Msg("Emergency withdrawal executed")
	return &types.WithdrawReceipt{Amount: amount, Recipient: recipient, TxHash: txHash}, nil
}

func (e *Engine) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return fn(ctx)
}

func (e *Engine) observe(operation string, err error) {
	code := Code(err)
	if code == "" {
		code = "ok"
	}
	metrics.OperationsTotal.WithLabelValues(operation, code).Inc()
}
