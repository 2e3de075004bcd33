package keeper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/elys-network/flywheel/internal/flywheel"
	"github.com/elys-network/flywheel/internal/logger"
	"github.com/elys-network/flywheel/internal/metrics"
	"github.com/elys-network/flywheel/internal/types"
	"github.com/elys-network/flywheel/internal/utils"

	"github.com/gagliardetto/solana-go"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Executor runs one flywheel cycle on behalf of a caller.
type Executor interface {
	Execute(ctx context.Context, executor solana.PublicKey) (*types.ExecutionResult, error)
}

// Config holds the configuration for creating a new Keeper
type Config struct {
	Executor Executor
	Identity solana.PublicKey

	// Schedule is a six-field cron spec (seconds first).
	Schedule string

	// RunOnStart triggers one run as soon as Run is called.
	RunOnStart bool

	// OnExecuted is called after every committed cycle, e.g. to refresh dashboard caches.
	OnExecuted func(*types.ExecutionResult)
}

// Keeper triggers permissionless executions on a cron schedule.
type Keeper struct {
	cron       *cron.Cron
	executor   Executor
	identity   solana.PublicKey
	runOnStart bool
	onExecuted func(*types.ExecutionResult)
	logger     zerolog.Logger

	mu  sync.Mutex
	ctx context.Context
	run int
}

// New creates a keeper and registers its schedule.
func New(cfg Config) (*Keeper, error) {
	if err := validateKeeperConfig(cfg); err != nil {
		return nil, fmt.Errorf("keeper configuration validation failed: %w", err)
	}

	k := &Keeper{
		cron:       cron.New(cron.WithSeconds()),
		executor:   cfg.Executor,
		identity:   cfg.Identity,
		runOnStart: cfg.RunOnStart,
		onExecuted: cfg.OnExecuted,
		logger:     logger.GetForComponent("keeper"),
		ctx:        context.Background(),
	}

	if _, err := k.cron.AddFunc(cfg.Schedule, k.tick); err != nil {
		return nil, fmt.Errorf("register keeper task: %w", err)
	}
	return k, nil
}

func validateKeeperConfig(cfg Config) error {
	if cfg.Executor == nil {
		return fmt.Errorf("executor cannot be nil")
	}
	if cfg.Identity.IsZero() {
		return fmt.Errorf("keeper identity cannot be empty")
	}
	if cfg.Schedule == "" {
		return fmt.Errorf("schedule cannot be empty")
	}
	return nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a running cycle to finish.
func (k *Keeper) Run(ctx context.Context) error {
	k.mu.Lock()
	k.ctx = ctx
	k.mu.Unlock()

	k.logger.Info().Str("identity", k.identity.String()).Msg("Starting keeper")
	k.cron.Start()

	if k.runOnStart {
		k.tick()
	}

	<-ctx.Done()
	k.logger.Info().Msg("Keeper stopped due to context cancellation")
	<-k.cron.Stop().Done()
	return nil
}

func (k *Keeper) tick() {
	k.mu.Lock()
	ctx := k.ctx
	k.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	_, _ = k.RunOnce(ctx)
}

// RunOnce attempts a single execution. Gating rejections are expected and are not logged as failures.
func (k *Keeper) RunOnce(ctx context.Context) (*types.ExecutionResult, error) {
	k.mu.Lock()
	k.run++
	run := k.run
	k.mu.Unlock()

	runLogger := k.logger.With().Int("run", run).Logger()

	result, err := k.executor.Execute(ctx, k.identity)
	code := flywheel.Code(err)
	if code == "" {
		code = "ok"
	}
	metrics.KeeperRunsTotal.WithLabelValues(code).Inc()

	switch {
	case err == nil:
		runLogger.Info().
			Str("fees", utils.FormatAmount(result.FeesProcessed, types.TokenDecimals)).
			Uint64("burned", result.Burned).
			Str("txHash", result.TxHash).
			Msg("Keeper executed flywheel cycle")
		if k.onExecuted != nil {
			k.onExecuted(result)
		}
	case skipped(err):
		runLogger.Debug().Str("reason", code).Msg("Keeper run skipped")
	default:
		runLogger.Error().Err(err).Str("code", code).Msg("Keeper run failed")
	}
	return result, err
}

func skipped(err error) bool {
	return errors.Is(err, flywheel.ErrOutsideEpoch) ||
		errors.Is(err, flywheel.ErrInsufficientInterval) ||
		errors.Is(err, flywheel.ErrNothingToExecute) ||
		errors.Is(err, flywheel.ErrNotFound)
}
