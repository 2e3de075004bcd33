package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/elys-network/flywheel/internal/logger"
	"github.com/elys-network/flywheel/internal/types"
	"github.com/elys-network/flywheel/internal/utils"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

var (
	ErrBurnExceedsSupply = errors.New("burn amount exceeds token supply")
)

// DefaultInitialSupply is one billion tokens at six decimals.
const DefaultInitialSupply uint64 = 1_000_000_000_000_000

// Simulated is an in-process Distributor. Buybacks swap 1:1, burns reduce an in-memory supply,
// and liquidity adds and withdrawals are only tallied.
type Simulated struct {
	mu          sync.Mutex
	logger      zerolog.Logger
	supply      uint64
	liquidity   uint64
	withdrawals map[solana.PublicKey]uint64
}

// NewSimulated creates a simulated distributor starting from initialSupply tokens.
func NewSimulated(initialSupply uint64) *Simulated {
	return &Simulated{
		logger:      logger.GetForComponent("simulated_vault"),
		supply:      initialSupply,
		withdrawals: make(map[solana.PublicKey]uint64),
	}
}

// SyncSupply replaces the simulated supply with the value reported by src.
func (s *Simulated) SyncSupply(ctx context.Context, src SupplySource) error {
	supply, err := src.TotalSupply(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync token supply: %w", err)
	}
	s.mu.Lock()
	s.supply = supply
	s.mu.Unlock()
	s.logger.Info().Uint64("supply", supply).Msg("Simulated supply synced from source")
	return nil
}

func (s *Simulated) Buyback(ctx context.Context, amount uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.logger.Debug().Str("amount", utils.FormatAmount(amount, types.TokenDecimals)).Msg("Simulated buyback at 1:1")
	return amount, nil
}

func (s *Simulated) Burn(ctx context.Context, amount uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount > s.supply {
		return 0, fmt.Errorf("%w: burn %d, supply %d", ErrBurnExceedsSupply, amount, s.supply)
	}
	s.supply -= amount
	s.logger.Debug().Uint64("amount", amount).Uint64("supply", s.supply).Msg("Simulated burn")
	return s.supply, nil
}

func (s *Simulated) AddLiquidity(ctx context.Context, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.liquidity += amount
	s.mu.Unlock()
	return nil
}

func (s *Simulated) Withdraw(ctx context.Context, recipient solana.PublicKey, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.withdrawals[recipient] += amount
	s.mu.Unlock()
	return nil
}

// Supply returns the current simulated token supply.
func (s *Simulated) Supply() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supply
}

// TotalSupply lets the simulation act as its own SupplySource.
func (s *Simulated) TotalSupply(_ context.Context) (uint64, error) {
	return s.Supply(), nil
}

// Liquidity returns the total amount added to liquidity.
func (s *Simulated) Liquidity() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liquidity
}

// Withdrawn returns the total withdrawn to recipient.
func (s *Simulated) Withdrawn(recipient solana.PublicKey) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withdrawals[recipient]
}
