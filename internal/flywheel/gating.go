package flywheel

import (
	"fmt"

	"github.com/elys-network/flywheel/internal/types"
)

// CanExecute decides whether a cycle may run at now (Unix seconds).
// The epoch bounds are inclusive. The interval check is skipped before the first execution.
func CanExecute(cfg types.FlywheelConfig, now int64) error {
	if now < cfg.EpochStart || now > cfg.EpochEnd {
		return fmt.Errorf("%w: now=%d epoch=[%d, %d]", ErrOutsideEpoch, now, cfg.EpochStart, cfg.EpochEnd)
	}
	if cfg.LastExecution != 0 && now-cfg.LastExecution < cfg.MinIntervalSeconds {
		return fmt.Errorf("%w: %ds since last execution, need %ds",
			ErrInsufficientInterval, now-cfg.LastExecution, cfg.MinIntervalSeconds)
	}
	return nil
}

// NextExecutionAt returns the earliest time at which the interval check passes.
func NextExecutionAt(cfg types.FlywheelConfig) int64 {
	if cfg.LastExecution == 0 {
		return cfg.EpochStart
	}
	next := cfg.LastExecution + cfg.MinIntervalSeconds
	if next < cfg.EpochStart {
		return cfg.EpochStart
	}
	return next
}
