/*

This file contains the Sushi adapter for V2-style routers. The quote is a
getAmountsOut view against the router itself, so unlike Akka no external
API is involved.

*/

package adapters

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/demether/sxe/internal/config"
	"github.com/demether/sxe/internal/logger"
	"github.com/demether/sxe/internal/types"
)

const sushiRouterFragmentJSON = `[
	{"name":"getAmountsOut","type":"function","stateMutability":"view","inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
	{"name":"swapExactTokensForTokens","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

var sushiRouterABI = mustParseABI("sushi router", sushiRouterFragmentJSON)

var sushiLogger = logger.GetForComponent("sushi")

const (
	sushiSwapGasLimit    = 1_200_000
	sushiDefaultSlippage = 0.03
	sushiDeadlineWindow  = 10 * time.Minute
)

// SushiAdapter builds swap strategy calls against a Sushi V2 router.
type SushiAdapter struct {
	// routers is the per-chain router table, injected so tests do not
	// depend on the environment.
	routers map[types.ChainID]common.Address
}

// NewSushiAdapter wires the adapter from configured router addresses.
func NewSushiAdapter() *SushiAdapter {
	routers := make(map[types.ChainID]common.Address)
	if common.IsHexAddress(config.SushiRouterKatana) {
		routers[types.ChainKatana] = common.HexToAddress(config.SushiRouterKatana)
	}
	return &SushiAdapter{routers: routers}
}

// NewSushiAdapterWithRouters builds the adapter over an explicit table.
func NewSushiAdapterWithRouters(routers map[types.ChainID]common.Address) *SushiAdapter {
	return &SushiAdapter{routers: routers}
}

func (s *SushiAdapter) Protocol() types.Protocol {
	return types.ProtocolSushi
}

func (s *SushiAdapter) BuildSupply(ctx context.Context, bctx BuildContext, req SupplyRequest) (*types.StrategyCall, error) {
	return nil, errUnsupportedOp(s.Protocol(), "supply")
}

func (s *SushiAdapter) BuildWithdraw(ctx context.Context, bctx BuildContext, req SupplyRequest) (*types.StrategyCall, error) {
	return nil, errUnsupportedOp(s.Protocol(), "withdraw")
}

func (s *SushiAdapter) GetYield(ctx context.Context, bctx BuildContext, token types.Token) (*types.YieldSnapshot, error) {
	return nil, errUnsupportedOp(s.Protocol(), "yield")
}

// BuildSwap quotes the pair on chain and encodes swapExactTokensForTokens
// with the slippage-adjusted minimum.
func (s *SushiAdapter) BuildSwap(ctx context.Context, bctx BuildContext, req SwapRequest) (*types.StrategyCall, error) {
	router, err := s.router(bctx.Chain)
	if err != nil {
		return nil, err
	}

	quote, err := s.Quote(ctx, bctx, req)
	if err != nil {
		return nil, err
	}

	path := []common.Address{quote.SrcToken, quote.DstToken}
	deadline := big.NewInt(time.Now().Add(sushiDeadlineWindow).Unix())

	callData, err := packCall(sushiRouterABI, "swapExactTokensForTokens",
		req.Amount, quote.DstAmountMin, path, bctx.Vault, deadline)
	if err != nil {
		return nil, err
	}

	sushiLogger.Debug().
		Str("src", quote.SrcToken.Hex()).
		Str("dst", quote.DstToken.Hex()).
		Str("amount_out_min", quote.DstAmountMin.String()).
		Msg("Encoded swap")

	return &types.StrategyCall{
		Vault:    bctx.Vault,
		Target:   router,
		CallData: callData,
		Approvals: []types.Approval{
			{Token: quote.SrcToken, Amount: new(big.Int).Set(req.Amount)},
		},
		GasLimit: sushiSwapGasLimit,
	}, nil
}

// Quote reads getAmountsOut for the direct pair.
func (s *SushiAdapter) Quote(ctx context.Context, bctx BuildContext, req SwapRequest) (*types.SwapQuote, error) {
	router, err := s.router(bctx.Chain)
	if err != nil {
		return nil, err
	}
	srcAddr, err := requireTokenAddress(req.SrcToken, bctx.Chain)
	if err != nil {
		return nil, err
	}
	dstAddr, err := requireTokenAddress(req.DstToken, bctx.Chain)
	if err != nil {
		return nil, err
	}

	out, err := viewCall(ctx, bctx.Caller, sushiRouterABI, router, "getAmountsOut",
		req.Amount, []common.Address{srcAddr, dstAddr})
	if err != nil {
		return nil, fmt.Errorf("%w: sushi quote failed: %w", types.ErrQuote, err)
	}

	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return nil, fmt.Errorf("%w: unexpected getAmountsOut response", types.ErrQuote)
	}
	dstAmount := amounts[len(amounts)-1]

	slippage := req.Slippage
	if slippage <= 0 {
		slippage = config.DefaultSlippage
	}
	if slippage <= 0 {
		slippage = sushiDefaultSlippage
	}

	return &types.SwapQuote{
		SrcToken:     srcAddr,
		DstToken:     dstAddr,
		SrcAmount:    new(big.Int).Set(req.Amount),
		DstAmount:    dstAmount,
		DstAmountMin: types.ApplySlippage(dstAmount, slippage),
	}, nil
}

func (s *SushiAdapter) router(chain types.ChainID) (common.Address, error) {
	router, ok := s.routers[chain]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: no sushi router configured for chain %d", types.ErrConfiguration, chain)
	}
	return router, nil
}
