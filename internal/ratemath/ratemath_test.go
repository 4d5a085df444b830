package ratemath

import (
	"math/big"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demether/sxe/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Initialize("error")
	os.Exit(m.Run())
}

func ray(mantissa int64, exp int64) *big.Int {
	v := new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil)
	return v.Mul(v, big.NewInt(mantissa))
}

func TestRayToAPY_Zero(t *testing.T) {
	assert.Equal(t, 0.0, RayToAPY(big.NewInt(0)))
}

func TestRayToAPY_OneRayIs100Percent(t *testing.T) {
	assert.Equal(t, 100.0, RayToAPY(ray(1, 27)))
}

func TestRayToAPY_TypicalRate(t *testing.T) {
	// 5.25% encoded as ray
	assert.InDelta(t, 5.25, RayToAPY(ray(525, 23)), 1e-9)
}

func TestRayToAPY_Monotonic(t *testing.T) {
	low := RayToAPY(ray(3, 25))
	mid := RayToAPY(ray(4, 25))
	high := RayToAPY(ray(5, 25))
	assert.Less(t, low, mid)
	assert.Less(t, mid, high)
}

func TestRayToAPY_BadInput(t *testing.T) {
	assert.Equal(t, 0.0, RayToAPY(nil))
	assert.Equal(t, 0.0, RayToAPY(big.NewInt(-1)))
	// 10x a full ray reads as 1000%, which only happens on a misdecoded tuple
	assert.Equal(t, 0.0, RayToAPY(ray(1, 28)))
}

func TestUtilizationRate(t *testing.T) {
	assert.Equal(t, 0.0, UtilizationRate(big.NewInt(0), big.NewInt(100)))
	assert.Equal(t, 0.0, UtilizationRate(nil, big.NewInt(100)))
	assert.InDelta(t, 50.0, UtilizationRate(big.NewInt(200), big.NewInt(100)), 1e-9)
	assert.InDelta(t, 100.0, UtilizationRate(big.NewInt(100), big.NewInt(100)), 1e-9)
}

func TestPerSecondRateToAPY(t *testing.T) {
	assert.Equal(t, 0.0, PerSecondRateToAPY(big.NewInt(0)))
	assert.Equal(t, 0.0, PerSecondRateToAPY(nil))

	// ln(1.05)/31536000 in WAD compounds back to roughly 5% over a year
	apy := PerSecondRateToAPY(big.NewInt(1_547_125_957))
	assert.InDelta(t, 5.0, apy, 0.01)
}

func TestSupplyAPYFromBorrow(t *testing.T) {
	// borrow 10%, utilization 80%, fee 10% of interest
	fee := new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil)
	assert.InDelta(t, 7.2, SupplyAPYFromBorrow(10, 80, fee), 1e-9)

	// no fee
	assert.InDelta(t, 8.0, SupplyAPYFromBorrow(10, 80, nil), 1e-9)
}

func TestLayoutFor(t *testing.T) {
	std := LayoutFor(42161)
	assert.False(t, std.RawPoolCall)
	assert.Equal(t, 5, std.LiquidityRate)
	assert.Equal(t, 6, std.VariableBorrowRate)

	core := LayoutFor(1116)
	assert.True(t, core.RawPoolCall)
	assert.Equal(t, 2, core.LiquidityRate)
	assert.Equal(t, 4, core.VariableBorrowRate)

	// unknown chains fall back to the canonical tuple order
	assert.Equal(t, std, LayoutFor(999999))
}

func TestReserveLayoutDecode_Standard(t *testing.T) {
	words := make([]*big.Int, 12)
	for i := range words {
		words[i] = big.NewInt(int64(i + 1))
	}

	data, err := LayoutFor(42161).Decode(words)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(3), data.TotalAToken)
	assert.Equal(t, big.NewInt(4), data.TotalStableDebt)
	assert.Equal(t, big.NewInt(5), data.TotalVariableDebt)
	assert.Equal(t, big.NewInt(6), data.LiquidityRate)
	assert.Equal(t, big.NewInt(7), data.VariableBorrowRate)
	assert.Equal(t, big.NewInt(12), data.LastUpdateTimestamp)
}

func TestReserveLayoutDecode_Core(t *testing.T) {
	words := make([]*big.Int, 7)
	for i := range words {
		words[i] = big.NewInt(int64(i + 1))
	}

	data, err := LayoutFor(1116).Decode(words)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(3), data.LiquidityRate)
	assert.Equal(t, big.NewInt(5), data.VariableBorrowRate)
	assert.Equal(t, big.NewInt(7), data.LastUpdateTimestamp)
	// the raw Pool struct has no totals, only indexes and rates
	assert.Equal(t, big.NewInt(0), data.TotalAToken)
	assert.Equal(t, big.NewInt(0), data.TotalStableDebt)
	assert.Equal(t, big.NewInt(0), data.TotalVariableDebt)
}

func TestReserveLayoutDecode_CoreUtilizationIsZero(t *testing.T) {
	// realistic raw Pool words: liquidity index 1.05 ray at word 1,
	// 5% borrow rate at word 4. The index must never be mistaken for a
	// supply total, which would read as ~4.76% utilization.
	words := make([]*big.Int, 7)
	for i := range words {
		words[i] = big.NewInt(0)
	}
	words[1] = ray(105, 25)
	words[2] = ray(4, 25)
	words[4] = ray(5, 25)

	data, err := LayoutFor(1116).Decode(words)
	require.NoError(t, err)
	assert.Equal(t, 0.0, UtilizationRate(data.TotalAToken, data.TotalVariableDebt))
	assert.InDelta(t, 4.0, RayToAPY(data.LiquidityRate), 1e-9)
	assert.InDelta(t, 5.0, RayToAPY(data.VariableBorrowRate), 1e-9)
}

func TestReserveLayoutDecode_TooShort(t *testing.T) {
	_, err := LayoutFor(42161).Decode([]*big.Int{big.NewInt(1)})
	assert.Error(t, err)
}
