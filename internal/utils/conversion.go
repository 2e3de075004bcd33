/*
This file contains common utility functions for converting token amounts between their
smallest-unit integer form and human readable forms, using SDK math for precision handling.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// SDKIntToFloat64 converts an SDK Int to float64 with proper precision handling
func SDKIntToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	decAmount := sdkmath.LegacyNewDecFromInt(amount)
	result := decAmount.Quo(sdkmath.LegacyNewDecFromInt(pow10(precision)))
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}

// AmountToFloat64 converts a smallest-unit amount to whole tokens, for gauges and logs.
func AmountToFloat64(amount uint64, precision int) float64 {
	f, err := SDKIntToFloat64(sdkmath.NewIntFromUint64(amount), precision)
	if err != nil {
		return 0
	}
	return f
}

// FormatAmount renders a smallest-unit amount as a fixed-point decimal string, e.g. 2500000 -> "2.500000".
func FormatAmount(amount uint64, precision int) string {
	if precision <= 0 {
		return sdkmath.NewIntFromUint64(amount).String()
	}
	value := sdkmath.NewIntFromUint64(amount)
	factor := pow10(precision)
	whole := value.Quo(factor)
	frac := value.Mod(factor).String()
	return whole.String() + "." + strings.Repeat("0", precision-len(frac)) + frac
}

// ParseAmount parses a fixed-point decimal string into a smallest-unit amount.
// Digits beyond the precision are rejected rather than rounded.
func ParseAmount(s string, precision int) (uint64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return 0, ErrAmountNegative
	}
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > precision {
		return 0, fmt.Errorf("%w: %q has more than %d decimals", ErrConversionFailed, s, precision)
	}
	digits := whole + frac + strings.Repeat("0", precision-len(frac))
	value, ok := sdkmath.NewIntFromString(digits)
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a number", ErrConversionFailed, s)
	}
	if !value.IsUint64() {
		return 0, fmt.Errorf("%w: %q overflows", ErrConversionFailed, s)
	}
	return value.Uint64(), nil
}

// FormatBps renders basis points as a percentage, e.g. 2550 -> "25.50%".
func FormatBps(bps uint16) string {
	return fmt.Sprintf("%d.%02d%%", bps/100, bps%100)
}

func pow10(precision int) sdkmath.Int {
	factor := sdkmath.OneInt()
	for i := 0; i < precision; i++ {
		factor = factor.MulRaw(10)
	}
	return factor
}
