package flywheel

import (
	"fmt"

	"github.com/elys-network/flywheel/internal/types"
)

// NewConfig validates initialization parameters and builds the initial config.
// Accumulators and LastExecution start at zero.
func NewConfig(params types.InitParams, now int64) (*types.FlywheelConfig, error) {
	if params.Admin.IsZero() {
		return nil, fmt.Errorf("%w: admin", ErrInvalidIdentity)
	}
	if err := validateRatios(params.BuybackBps, params.BurnBps, 0); err != nil {
		return nil, err
	}
	lpAddBps := uint16(types.BpsDenominator) - params.BuybackBps - params.BurnBps
	if params.LpAddBps != nil {
		lpAddBps = *params.LpAddBps
		if err := validateRatios(params.BuybackBps, params.BurnBps, lpAddBps); err != nil {
			return nil, err
		}
	}
	if params.EpochStart > params.EpochEnd {
		return nil, fmt.Errorf("%w: start=%d end=%d", ErrInvalidEpoch, params.EpochStart, params.EpochEnd)
	}
	if params.MinIntervalSeconds < 0 {
		return nil, fmt.Errorf("%w: min interval %d is negative", ErrInvalidAmount, params.MinIntervalSeconds)
	}

	cfg := &types.FlywheelConfig{
		Admin:              params.Admin,
		TokenMint:          params.TokenMint,
		FeeVault:           params.FeeVault,
		BuybackBps:         params.BuybackBps,
		BurnBps:            params.BurnBps,
		LpAddBps:           lpAddBps,
		EpochStart:         params.EpochStart,
		EpochEnd:           params.EpochEnd,
		MinIntervalSeconds: params.MinIntervalSeconds,
		InitializedAt:      now,
		UpdatedAt:          now,
	}
	if params.TreasuryWallet != nil {
		tw := *params.TreasuryWallet
		cfg.TreasuryWallet = &tw
	}
	return cfg, nil
}

// ApplyUpdate returns a copy of cfg with the update applied, or an error and no change.
// The ratio check uses the current LpAddBps unless the update sets a new one.
func ApplyUpdate(cfg *types.FlywheelConfig, params types.UpdateParams, now int64) (*types.FlywheelConfig, error) {
	next := cfg.Clone()
	if params.BuybackBps != nil {
		next.BuybackBps = *params.BuybackBps
	}
	if params.BurnBps != nil {
		next.BurnBps = *params.BurnBps
	}
	if params.LpAddBps != nil {
		next.LpAddBps = *params.LpAddBps
	}
	if err := validateRatios(next.BuybackBps, next.BurnBps, next.LpAddBps); err != nil {
		return nil, err
	}
	if params.MinIntervalSeconds != nil {
		if *params.MinIntervalSeconds < 0 {
			return nil, fmt.Errorf("%w: min interval %d is negative", ErrInvalidAmount, *params.MinIntervalSeconds)
		}
		next.MinIntervalSeconds = *params.MinIntervalSeconds
	}
	if params.TreasuryWallet != nil {
		tw := *params.TreasuryWallet
		next.TreasuryWallet = &tw
	}
	next.UpdatedAt = now
	return next, nil
}

func validateRatios(buyback, burn, lpAdd uint16) error {
	if int(buyback)+int(burn)+int(lpAdd) > types.BpsDenominator {
		return fmt.Errorf("%w: %d + %d + %d", ErrInvalidBpsSum, buyback, burn, lpAdd)
	}
	return nil
}
