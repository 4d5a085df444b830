/*
This file contains common utility functions for converting between
human-readable token amounts and base (wei-like) units, with decimal
arithmetic throughout so raw uint256 values never pass through float64.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidDecimals  = errors.New("token decimals are invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrAmountInvalid    = errors.New("amount is not a decimal number")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// HumanToBase converts a human-readable decimal amount string (e.g. "100.5")
// into base units for a token with the given decimals. Excess fractional
// digits are truncated, never rounded up.
func HumanToBase(amount string, decimals int) (*big.Int, error) {
	if decimals < 0 || decimals > 18 {
		return nil, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidDecimals, decimals)
	}

	decAmount, err := sdkmath.LegacyNewDecFromStr(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrAmountInvalid, amount, err)
	}
	if decAmount.IsNegative() {
		return nil, fmt.Errorf("%w: %q", ErrAmountNegative, amount)
	}

	result := decAmount.Mul(pow10(decimals)).TruncateInt()
	return result.BigInt(), nil
}

// BaseToHuman converts base units back to a human-readable float for display
// and comparison. Not suitable for re-encoding into transactions.
func BaseToHuman(amount *big.Int, decimals int) (float64, error) {
	if decimals < 0 || decimals > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidDecimals, decimals)
	}
	if amount == nil {
		return 0, ErrAmountNil
	}
	if amount.Sign() < 0 {
		return 0, ErrAmountNegative
	}

	decAmount := sdkmath.LegacyNewDecFromBigInt(amount)
	result, err := decAmount.Quo(pow10(decimals)).Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, result)
	}

	return result, nil
}

func pow10(decimals int) sdkmath.LegacyDec {
	factor := sdkmath.LegacyNewDec(1)
	for i := 0; i < decimals; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}
	return factor
}
