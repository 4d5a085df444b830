package adapters

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demether/sxe/internal/config"
	"github.com/demether/sxe/internal/types"
)

func TestUniswapBuildSwap_UniversalRouter(t *testing.T) {
	adapter := NewUniswapAdapter()
	bctx := BuildContext{Chain: types.ChainArbitrum, Vault: testVault}
	amount := big.NewInt(5_000_000)

	call, err := adapter.BuildSwap(context.Background(), bctx, SwapRequest{
		SrcToken: usdcToken(t),
		DstToken: usdtToken(t),
		Amount:   amount,
		Params:   map[string]string{"amount_out_min": "4900000"},
	})
	require.NoError(t, err)

	assert.Equal(t, config.UniswapUniversalRouterAddresses[types.ChainArbitrum], call.Target)
	assert.Equal(t, selectorOf("execute(bytes,bytes[],uint256)"), call.CallData[:4])

	require.Len(t, call.Approvals, 1)
	usdcArb := common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	assert.Equal(t, usdcArb, call.Approvals[0].Token)
	assert.Equal(t, amount, call.Approvals[0].Amount)

	args, err := universalRouterABI.Methods["execute"].Inputs.Unpack(call.CallData[4:])
	require.NoError(t, err)

	commands := args[0].([]byte)
	require.Len(t, commands, 1)
	assert.Equal(t, byte(commandV3SwapExactIn), commands[0])

	inputs := args[1].([][]byte)
	require.Len(t, inputs, 1)

	swapArgs, err := v3SwapInputArgs.Unpack(inputs[0])
	require.NoError(t, err)
	assert.Equal(t, testVault, swapArgs[0])
	assert.Equal(t, amount, swapArgs[1])
	assert.Equal(t, big.NewInt(4_900_000), swapArgs[2])
	assert.Equal(t, true, swapArgs[4])

	// single-hop path is token(20) + fee(3) + token(20)
	path := swapArgs[3].([]byte)
	require.Len(t, path, 43)
	assert.Equal(t, usdcArb.Bytes(), path[:20])
	assert.Equal(t, []byte{0x00, 0x0b, 0xb8}, path[20:23]) // fee tier 3000
}

func TestUniswapBuildSwap_CustomFeeTier(t *testing.T) {
	adapter := NewUniswapAdapter()
	bctx := BuildContext{Chain: types.ChainArbitrum, Vault: testVault}

	call, err := adapter.BuildSwap(context.Background(), bctx, SwapRequest{
		SrcToken: usdcToken(t),
		DstToken: usdtToken(t),
		Amount:   big.NewInt(1_000_000),
		Params:   map[string]string{"fee": "500"},
	})
	require.NoError(t, err)

	args, err := universalRouterABI.Methods["execute"].Inputs.Unpack(call.CallData[4:])
	require.NoError(t, err)
	swapArgs, err := v3SwapInputArgs.Unpack(args[1].([][]byte)[0])
	require.NoError(t, err)

	path := swapArgs[3].([]byte)
	assert.Equal(t, []byte{0x00, 0x01, 0xf4}, path[20:23]) // fee tier 500
}

func TestUniswapBuildSwap_ExactInputSingle(t *testing.T) {
	router := common.HexToAddress("0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45")

	adapter := NewUniswapAdapter()
	bctx := BuildContext{Chain: types.ChainArbitrum, Vault: testVault}
	amount := big.NewInt(5_000_000)

	call, err := adapter.BuildSwap(context.Background(), bctx, SwapRequest{
		SrcToken: usdcToken(t),
		DstToken: usdtToken(t),
		Amount:   amount,
		Params: map[string]string{
			"encoding":       "exact_input_single",
			"router_address": router.Hex(),
			"amount_out_min": "4900000",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, router, call.Target)
	// canonical SwapRouter selector, 0x414bf389
	assert.Equal(t,
		selectorOf("exactInputSingle((address,address,uint24,address,uint256,uint256,uint256,uint160))"),
		call.CallData[:4])

	args, err := swapRouterABI.Methods["exactInputSingle"].Inputs.Unpack(call.CallData[4:])
	require.NoError(t, err)
	params := args[0].(struct {
		TokenIn           common.Address `json:"tokenIn"`
		TokenOut          common.Address `json:"tokenOut"`
		Fee               *big.Int       `json:"fee"`
		Recipient         common.Address `json:"recipient"`
		Deadline          *big.Int       `json:"deadline"`
		AmountIn          *big.Int       `json:"amountIn"`
		AmountOutMinimum  *big.Int       `json:"amountOutMinimum"`
		SqrtPriceLimitX96 *big.Int       `json:"sqrtPriceLimitX96"`
	})
	assert.Equal(t, testVault, params.Recipient)
	assert.Equal(t, amount, params.AmountIn)
	assert.Equal(t, big.NewInt(4_900_000), params.AmountOutMinimum)
	assert.Greater(t, params.Deadline.Int64(), time.Now().Unix())
}

func TestUniswapBuildSwap_ExactInputSingleNeedsRouter(t *testing.T) {
	adapter := NewUniswapAdapter()
	bctx := BuildContext{Chain: types.ChainArbitrum, Vault: testVault}

	_, err := adapter.BuildSwap(context.Background(), bctx, SwapRequest{
		SrcToken: usdcToken(t),
		DstToken: usdtToken(t),
		Amount:   big.NewInt(1),
		Params:   map[string]string{"encoding": "exact_input_single"},
	})
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestUniswapBuildSwap_UnsupportedChain(t *testing.T) {
	adapter := NewUniswapAdapter()
	bctx := BuildContext{Chain: types.ChainKatana, Vault: testVault}

	_, err := adapter.BuildSwap(context.Background(), bctx, SwapRequest{
		SrcToken: usdcToken(t),
		DstToken: usdtToken(t),
		Amount:   big.NewInt(1),
	})
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
