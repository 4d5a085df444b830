/*
This file contains rate conversion math shared by the protocol adapters,
particularly ray (1e27) and WAD (1e18) fixed-point handling with
arbitrary-precision decimals.
*/

package ratemath

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/demether/sxe/internal/logger"
)

var rateLogger = logger.GetForComponent("ratemath")

// Error definitions for zero-tolerance error handling
var (
	ErrValueNil       = errors.New("value is nil")
	ErrValueNegative  = errors.New("value is negative")
	ErrNotFinite      = errors.New("value is not finite")
	ErrRateOutOfRange = errors.New("rate is out of plausible range")
)

const (
	// SecondsPerYear is the compounding horizon for per-second rates.
	SecondsPerYear = 31_536_000

	// MaxPlausibleAPY is a sanity cap: any converted rate at or above
	// 1000% is treated as a misdecoded tuple and reported as 0, trading
	// monotonicity at the extreme for not ranking garbage rates first.
	MaxPlausibleAPY = 1000.0
)

// rayPercentDivisor is 1e25: ray / 1e27 * 100.
var rayPercentDivisor = sdkmath.LegacyNewDecFromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(25), nil))

// wadDec is 1e18 as a decimal.
var wadDec = sdkmath.LegacyNewDec(1).MulInt64(1e18)

// RayToAPY converts an Aave ray-encoded rate (1e27 fixed point) to a
// percentage APY. Conversion problems are logged and collapse to 0 rather
// than aborting a whole yield sweep.
func RayToAPY(value *big.Int) float64 {
	apy, err := rayToAPY(value)
	if err != nil {
		rateLogger.Warn().Err(err).Msg("Ray rate conversion failed, reporting 0")
		return 0
	}
	return apy
}

func rayToAPY(value *big.Int) (float64, error) {
	if value == nil {
		return 0, ErrValueNil
	}
	if value.Sign() < 0 {
		return 0, ErrValueNegative
	}
	if value.Sign() == 0 {
		return 0, nil
	}

	pct := sdkmath.LegacyNewDecFromBigInt(value).Quo(rayPercentDivisor)
	apy, err := pct.Float64()
	if err != nil {
		return 0, err
	}
	if math.IsNaN(apy) || math.IsInf(apy, 0) {
		return 0, fmt.Errorf("%w: %f", ErrNotFinite, apy)
	}
	if apy >= MaxPlausibleAPY {
		return 0, fmt.Errorf("%w: %f%%", ErrRateOutOfRange, apy)
	}
	return apy, nil
}

// UtilizationRate computes totalBorrowed / totalSupplied as a percentage.
// An empty market has zero utilization.
func UtilizationRate(totalSupplied, totalBorrowed *big.Int) float64 {
	if totalSupplied == nil || totalBorrowed == nil || totalSupplied.Sign() == 0 {
		return 0
	}

	ratio := sdkmath.LegacyNewDecFromBigInt(totalBorrowed).
		Quo(sdkmath.LegacyNewDecFromBigInt(totalSupplied)).
		MulInt64(100)
	pct, err := ratio.Float64()
	if err != nil || math.IsNaN(pct) || math.IsInf(pct, 0) {
		rateLogger.Warn().Err(err).Msg("Utilization conversion failed, reporting 0")
		return 0
	}
	return pct
}

// PerSecondRateToAPY compounds a Morpho IRM per-second WAD rate over a
// year: ((1 + r/1e18)^SecondsPerYear - 1) * 100.
func PerSecondRateToAPY(ratePerSecondWAD *big.Int) float64 {
	if ratePerSecondWAD == nil || ratePerSecondWAD.Sign() < 0 {
		rateLogger.Warn().Msg("Per-second rate missing or negative, reporting 0")
		return 0
	}
	if ratePerSecondWAD.Sign() == 0 {
		return 0
	}

	rate, err := sdkmath.LegacyNewDecFromBigInt(ratePerSecondWAD).Quo(wadDec).Float64()
	if err != nil {
		rateLogger.Warn().Err(err).Msg("Per-second rate conversion failed, reporting 0")
		return 0
	}

	apy := (math.Pow(1+rate, SecondsPerYear) - 1) * 100
	if math.IsNaN(apy) || math.IsInf(apy, 0) || apy >= MaxPlausibleAPY {
		rateLogger.Warn().Float64("apy", apy).Msg("Compounded APY out of plausible range, reporting 0")
		return 0
	}
	return apy
}

// SupplyAPYFromBorrow derives the supplier-side APY from the borrow APY,
// the market utilization (percentage) and the protocol fee (WAD fraction).
func SupplyAPYFromBorrow(borrowAPY, utilizationPct float64, feeWAD *big.Int) float64 {
	fee := 0.0
	if feeWAD != nil && feeWAD.Sign() > 0 {
		f, err := sdkmath.LegacyNewDecFromBigInt(feeWAD).Quo(wadDec).Float64()
		if err != nil {
			rateLogger.Warn().Err(err).Msg("Fee conversion failed, assuming 0")
		} else {
			fee = f
		}
	}
	return borrowAPY * (utilizationPct / 100) * (1 - fee)
}
