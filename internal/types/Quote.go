package types

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SwapQuote is the normalized output of a DEX adapter's quoting step.
// DstAmountMin is floor(DstAmount * (1 - slippage)).
type SwapQuote struct {
	SrcToken     common.Address `json:"src_token"`
	DstToken     common.Address `json:"dst_token"`
	SrcAmount    *big.Int       `json:"src_amount"`
	DstAmount    *big.Int       `json:"dst_amount"`
	DstAmountMin *big.Int       `json:"dst_amount_min"`
	Route        string         `json:"route,omitempty"`        // adapter-specific route description
	PriceImpact  float64        `json:"price_impact,omitempty"` // percentage, when the venue reports it
}

// ApplySlippage computes floor(amount * (1 - slippage)) for slippage in
// [0, 1). Integer arithmetic only; no float intermediates on the amount.
func ApplySlippage(amount *big.Int, slippage float64) *big.Int {
	if amount == nil {
		return nil
	}
	if slippage <= 0 {
		return new(big.Int).Set(amount)
	}
	// Scale slippage to parts-per-million to keep the multiply exact.
	keep := int64(math.Round((1 - slippage) * 1e6))
	if keep < 0 {
		keep = 0
	}
	out := new(big.Int).Mul(amount, big.NewInt(keep))
	return out.Div(out, big.NewInt(1e6))
}
