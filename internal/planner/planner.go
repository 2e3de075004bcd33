package planner

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/flywheel/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidRatios     = errors.New("split ratios exceed 10000 basis points")
	ErrMathematicalError = errors.New("mathematical calculation error")
)

// Split is the distribution plan for one flywheel cycle.
// Buyback + Burn + LpAdd + Remainder always equals Fees.
type Split struct {
	Fees      uint64 `json:"fees"`
	Buyback   uint64 `json:"buyback"`
	Burn      uint64 `json:"burn"`
	LpAdd     uint64 `json:"lpAdd"`
	Remainder uint64 `json:"remainder"`
}

// Distributed is the part of the fees that leaves the vault.
func (s Split) Distributed() uint64 {
	return s.Buyback + s.Burn + s.LpAdd
}

// ComputeSplit divides fees by the given basis-point ratios, rounding each share down.
// The rounding remainder is not distributed and stays in the vault.
func ComputeSplit(fees uint64, buybackBps, burnBps, lpAddBps uint16) (Split, error) {
	if int(buybackBps)+int(burnBps)+int(lpAddBps) > types.BpsDenominator {
		return Split{}, fmt.Errorf("%w: %d + %d + %d", ErrInvalidRatios, buybackBps, burnBps, lpAddBps)
	}

	total := sdkmath.NewIntFromUint64(fees)
	buyback := share(total, buybackBps)
	burn := share(total, burnBps)
	lpAdd := share(total, lpAddBps)

	distributed := buyback.Add(burn).Add(lpAdd)
	if distributed.GT(total) {
		return Split{}, fmt.Errorf("%w: distributed %s exceeds fees %s", ErrMathematicalError, distributed, total)
	}

	return Split{
		Fees:      fees,
		Buyback:   buyback.Uint64(),
		Burn:      burn.Uint64(),
		LpAdd:     lpAdd.Uint64(),
		Remainder: total.Sub(distributed).Uint64(),
	}, nil
}

func share(total sdkmath.Int, bps uint16) sdkmath.Int {
	return total.MulRaw(int64(bps)).QuoRaw(types.BpsDenominator)
}
