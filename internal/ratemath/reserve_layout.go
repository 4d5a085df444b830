/*
This file contains the per-chain field layouts for Aave V3 reserve data.
Canonical deployments expose the 12-field DataProvider tuple; the Core
deployment returns a different word order from a raw Pool call, so the
adapter decodes by index against the layout registered here.
*/

package ratemath

import (
	"fmt"
	"math/big"

	"github.com/demether/sxe/internal/types"
)

// FieldMissing marks a tuple position the deployment does not report.
const FieldMissing = -1

// ReserveLayout maps named reserve-data fields to word indexes in the
// decoded tuple. FieldMissing fields decode to zero.
type ReserveLayout struct {
	Unbacked            int
	AccruedToTreasury   int
	TotalAToken         int
	TotalStableDebt     int
	TotalVariableDebt   int
	LiquidityRate       int
	VariableBorrowRate  int
	StableBorrowRate    int
	AvgStableBorrowRate int
	LiquidityIndex      int
	VariableBorrowIndex int
	LastUpdateTimestamp int

	// MinWords is the minimum tuple length the layout is valid against.
	MinWords int

	// RawPoolCall selects decoding from a raw Pool getReserveData call
	// instead of the DataProvider tuple.
	RawPoolCall bool
}

// standardLayout is the canonical AaveProtocolDataProvider getReserveData
// tuple order.
var standardLayout = ReserveLayout{
	Unbacked:            0,
	AccruedToTreasury:   1,
	TotalAToken:         2,
	TotalStableDebt:     3,
	TotalVariableDebt:   4,
	LiquidityRate:       5,
	VariableBorrowRate:  6,
	StableBorrowRate:    7,
	AvgStableBorrowRate: 8,
	LiquidityIndex:      9,
	VariableBorrowIndex: 10,
	LastUpdateTimestamp: 11,
	MinWords:            12,
}

// coreLayout covers the Core deployment, which has no DataProvider with a
// decodable tuple. Word positions were established against the protocol UI:
// word 2 is the supply rate, word 4 the variable borrow rate. The raw Pool
// struct carries indexes, not totals, so the totals are absent and Core
// reserves report zero utilization.
var coreLayout = ReserveLayout{
	Unbacked:            FieldMissing,
	AccruedToTreasury:   FieldMissing,
	TotalAToken:         FieldMissing,
	TotalStableDebt:     FieldMissing,
	TotalVariableDebt:   FieldMissing,
	LiquidityRate:       2,
	VariableBorrowRate:  4,
	StableBorrowRate:    FieldMissing,
	AvgStableBorrowRate: FieldMissing,
	LiquidityIndex:      FieldMissing,
	VariableBorrowIndex: FieldMissing,
	LastUpdateTimestamp: 6,
	MinWords:            7,
	RawPoolCall:         true,
}

var reserveLayouts = map[types.ChainID]ReserveLayout{
	types.ChainArbitrum: standardLayout,
	types.ChainCore:     coreLayout,
}

// LayoutFor returns the reserve-data layout for a chain, defaulting to the
// standard DataProvider layout for chains without a registered override.
func LayoutFor(chain types.ChainID) ReserveLayout {
	if layout, ok := reserveLayouts[chain]; ok {
		return layout
	}
	return standardLayout
}

// ReserveData is the named view over a decoded reserve-data tuple.
type ReserveData struct {
	TotalAToken         *big.Int
	TotalStableDebt     *big.Int
	TotalVariableDebt   *big.Int
	LiquidityRate       *big.Int
	VariableBorrowRate  *big.Int
	LastUpdateTimestamp *big.Int
}

// Decode maps a tuple of 32-byte words onto named fields using the layout.
func (l ReserveLayout) Decode(words []*big.Int) (ReserveData, error) {
	if len(words) < l.MinWords {
		return ReserveData{}, fmt.Errorf("reserve data has %d words, layout needs %d", len(words), l.MinWords)
	}
	return ReserveData{
		TotalAToken:         l.word(words, l.TotalAToken),
		TotalStableDebt:     l.word(words, l.TotalStableDebt),
		TotalVariableDebt:   l.word(words, l.TotalVariableDebt),
		LiquidityRate:       l.word(words, l.LiquidityRate),
		VariableBorrowRate:  l.word(words, l.VariableBorrowRate),
		LastUpdateTimestamp: l.word(words, l.LastUpdateTimestamp),
	}, nil
}

func (l ReserveLayout) word(words []*big.Int, idx int) *big.Int {
	if idx == FieldMissing || idx >= len(words) {
		return big.NewInt(0)
	}
	return new(big.Int).Set(words[idx])
}
