package flywheel

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/flywheel/internal/types"
)

var maxAmount = sdkmath.NewIntFromUint64(types.MaxAmount)

// ValidateAmount rejects zero amounts and amounts the ledger cannot represent.
func ValidateAmount(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if amount > types.MaxAmount {
		return fmt.Errorf("%w: %d exceeds %d", ErrInvalidAmount, amount, types.MaxAmount)
	}
	return nil
}

// checkedAdd adds b to a, failing if the sum leaves the representable range.
func checkedAdd(a, b uint64) (uint64, error) {
	sum := sdkmath.NewIntFromUint64(a).Add(sdkmath.NewIntFromUint64(b))
	if sum.GT(maxAmount) {
		return 0, fmt.Errorf("%w: %d + %d", ErrMathOverflow, a, b)
	}
	return sum.Uint64(), nil
}

// checkedSub subtracts b from a, failing on underflow.
func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%w: %d - %d", ErrMathOverflow, a, b)
	}
	return a - b, nil
}

// accumulate applies a list of checked additions, stopping at the first overflow.
// Targets are only written once every addition has succeeded.
func accumulate(pairs ...accumulation) error {
	results := make([]uint64, len(pairs))
	for i, p := range pairs {
		sum, err := checkedAdd(*p.target, p.delta)
		if err != nil {
			return err
		}
		results[i] = sum
	}
	for i, p := range pairs {
		*p.target = results[i]
	}
	return nil
}

type accumulation struct {
	target *uint64
	delta  uint64
}
