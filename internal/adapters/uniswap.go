/*

This file contains the Uniswap V3 adapter. The default encoding targets the
Universal Router's execute() with a V3_SWAP_EXACT_IN command and a packed
single-hop path; a SwapRouter exactInputSingle encoding is selectable per
request for chains where only the legacy router is deployed.

*/

package adapters

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/demether/sxe/internal/config"
	"github.com/demether/sxe/internal/types"
)

const universalRouterFragmentJSON = `[
	{"name":"execute","type":"function","stateMutability":"payable","inputs":[{"name":"commands","type":"bytes"},{"name":"inputs","type":"bytes[]"},{"name":"deadline","type":"uint256"}],"outputs":[]}
]`

const swapRouterFragmentJSON = `[
	{"name":"exactInputSingle","type":"function","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"fee","type":"uint24"},{"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"},{"name":"amountIn","type":"uint256"},{"name":"amountOutMinimum","type":"uint256"},{"name":"sqrtPriceLimitX96","type":"uint160"}]}],"outputs":[{"name":"amountOut","type":"uint256"}]}
]`

var (
	universalRouterABI = mustParseABI("uniswap universal router", universalRouterFragmentJSON)
	swapRouterABI      = mustParseABI("uniswap swap router", swapRouterFragmentJSON)

	// v3SwapInputArgs is the argument layout the Universal Router decodes
	// for a V3_SWAP_EXACT_IN command input.
	v3SwapInputArgs = abi.Arguments{
		{Type: mustNewABIType("address")},
		{Type: mustNewABIType("uint256")},
		{Type: mustNewABIType("uint256")},
		{Type: mustNewABIType("bytes")},
		{Type: mustNewABIType("bool")},
	}
)

// Universal Router command byte for an exact-in V3 swap.
const commandV3SwapExactIn = 0x00

const (
	uniswapDefaultFeeTier = 3000
	uniswapDeadlineWindow = 10 * time.Minute
)

// exactInputSingleParams mirrors the SwapRouter's param struct.
type exactInputSingleParams struct {
	TokenIn           common.Address `abi:"tokenIn"`
	TokenOut          common.Address `abi:"tokenOut"`
	Fee               *big.Int       `abi:"fee"`
	Recipient         common.Address `abi:"recipient"`
	Deadline          *big.Int       `abi:"deadline"`
	AmountIn          *big.Int       `abi:"amountIn"`
	AmountOutMinimum  *big.Int       `abi:"amountOutMinimum"`
	SqrtPriceLimitX96 *big.Int       `abi:"sqrtPriceLimitX96"`
}

// UniswapAdapter builds swap strategy calls against Uniswap V3 routers.
type UniswapAdapter struct{}

func NewUniswapAdapter() *UniswapAdapter {
	return &UniswapAdapter{}
}

func (u *UniswapAdapter) Protocol() types.Protocol {
	return types.ProtocolUniswapV3
}

func (u *UniswapAdapter) BuildSupply(ctx context.Context, bctx BuildContext, req SupplyRequest) (*types.StrategyCall, error) {
	return nil, errUnsupportedOp(u.Protocol(), "supply")
}

func (u *UniswapAdapter) BuildWithdraw(ctx context.Context, bctx BuildContext, req SupplyRequest) (*types.StrategyCall, error) {
	return nil, errUnsupportedOp(u.Protocol(), "withdraw")
}

func (u *UniswapAdapter) GetYield(ctx context.Context, bctx BuildContext, token types.Token) (*types.YieldSnapshot, error) {
	return nil, errUnsupportedOp(u.Protocol(), "yield")
}

// BuildSwap encodes a single-hop exact-in swap. The input token approval
// always matches the swap amount exactly.
func (u *UniswapAdapter) BuildSwap(ctx context.Context, bctx BuildContext, req SwapRequest) (*types.StrategyCall, error) {
	tokenIn, err := requireTokenAddress(req.SrcToken, bctx.Chain)
	if err != nil {
		return nil, err
	}
	tokenOut, err := requireTokenAddress(req.DstToken, bctx.Chain)
	if err != nil {
		return nil, err
	}

	feeTier, err := paramUint(req.Params, "fee", uniswapDefaultFeeTier)
	if err != nil {
		return nil, err
	}
	amountOutMin, err := paramBigInt(req.Params, "amount_out_min")
	if err != nil {
		return nil, err
	}

	var (
		target   common.Address
		callData []byte
	)
	if firstParam(req.Params, "encoding") == "exact_input_single" {
		target, callData, err = u.encodeSwapRouterCall(bctx, req.Params, tokenIn, tokenOut, feeTier, req.Amount, amountOutMin)
	} else {
		target, callData, err = u.encodeUniversalRouterCall(bctx, tokenIn, tokenOut, feeTier, req.Amount, amountOutMin)
	}
	if err != nil {
		return nil, err
	}

	return &types.StrategyCall{
		Vault:    bctx.Vault,
		Target:   target,
		CallData: callData,
		Approvals: []types.Approval{
			{Token: tokenIn, Amount: new(big.Int).Set(req.Amount)},
		},
	}, nil
}

func (u *UniswapAdapter) encodeUniversalRouterCall(bctx BuildContext, tokenIn, tokenOut common.Address, feeTier uint64, amountIn, amountOutMin *big.Int) (common.Address, []byte, error) {
	router, err := config.ContractFor(config.UniswapUniversalRouterAddresses, bctx.Chain, "uniswap universal router")
	if err != nil {
		return common.Address{}, nil, err
	}

	path := packV3Path(tokenIn, feeTier, tokenOut)

	// payerIsUser: the vault is msg.sender to the router and pays the input.
	swapInput, err := v3SwapInputArgs.Pack(bctx.Vault, amountIn, amountOutMin, path, true)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("%w: packing v3 swap input: %w", types.ErrEncoding, err)
	}

	deadline := big.NewInt(time.Now().Add(uniswapDeadlineWindow).Unix())
	callData, err := packCall(universalRouterABI, "execute",
		[]byte{commandV3SwapExactIn}, [][]byte{swapInput}, deadline)
	if err != nil {
		return common.Address{}, nil, err
	}
	return router, callData, nil
}

func (u *UniswapAdapter) encodeSwapRouterCall(bctx BuildContext, params map[string]string, tokenIn, tokenOut common.Address, feeTier uint64, amountIn, amountOutMin *big.Int) (common.Address, []byte, error) {
	raw := firstParam(params, "router_address")
	if !common.IsHexAddress(raw) {
		return common.Address{}, nil, fmt.Errorf("%w: exact_input_single encoding requires a router_address parameter", types.ErrConfiguration)
	}
	router := common.HexToAddress(raw)

	callData, err := packCall(swapRouterABI, "exactInputSingle", exactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Fee:               new(big.Int).SetUint64(feeTier),
		Recipient:         bctx.Vault,
		Deadline:          big.NewInt(time.Now().Add(uniswapDeadlineWindow).Unix()),
		AmountIn:          amountIn,
		AmountOutMinimum:  amountOutMin,
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return common.Address{}, nil, err
	}
	return router, callData, nil
}

// packV3Path builds the packed (token, fee, token) path for a single hop.
func packV3Path(tokenIn common.Address, feeTier uint64, tokenOut common.Address) []byte {
	path := make([]byte, 0, 20+3+20)
	path = append(path, tokenIn.Bytes()...)
	path = append(path, byte(feeTier>>16), byte(feeTier>>8), byte(feeTier))
	path = append(path, tokenOut.Bytes()...)
	return path
}

// mustNewABIType resolves an elementary ABI type at init.
func mustNewABIType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("invalid abi type %s: %v", t, err))
	}
	return typ
}

// paramUint parses an optional integer parameter.
func paramUint(params map[string]string, key string, defaultValue uint64) (uint64, error) {
	raw := firstParam(params, key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %s=%q is not an unsigned integer", types.ErrConfiguration, key, raw)
	}
	return value, nil
}

// paramBigInt parses an optional big integer parameter, zero when absent.
func paramBigInt(params map[string]string, key string) (*big.Int, error) {
	raw := firstParam(params, key)
	if raw == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%w: parameter %s=%q is not an integer", types.ErrConfiguration, key, raw)
	}
	return value, nil
}
