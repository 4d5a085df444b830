package adapters

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demether/sxe/internal/types"
)

var testSushiRouter = common.HexToAddress("0x33d91116e0370970444B0281AB117e161fEbFcdD")

func sushiTestAdapter(chain types.ChainID) *SushiAdapter {
	return NewSushiAdapterWithRouters(map[types.ChainID]common.Address{
		chain: testSushiRouter,
	})
}

func respondAmountsOut(t *testing.T, caller *fakeCaller, amounts ...*big.Int) {
	t.Helper()
	caller.respond(testSushiRouter, selectorOf("getAmountsOut(uint256,address[])"),
		packOutputs(t, sushiRouterABI, "getAmountsOut", amounts))
}

func TestSushiQuote(t *testing.T) {
	caller := newFakeCaller()
	respondAmountsOut(t, caller, big.NewInt(10_000_000), big.NewInt(9_950_000))

	adapter := sushiTestAdapter(types.ChainCore)
	bctx := BuildContext{Chain: types.ChainCore, Vault: testVault, Caller: caller}

	quote, err := adapter.Quote(context.Background(), bctx, SwapRequest{
		SrcToken: usdcToken(t),
		DstToken: usdtToken(t),
		Amount:   big.NewInt(10_000_000),
		Slippage: 0.01,
	})
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(9_950_000), quote.DstAmount)
	assert.Equal(t, big.NewInt(9_850_500), quote.DstAmountMin)
}

func TestSushiBuildSwap(t *testing.T) {
	caller := newFakeCaller()
	respondAmountsOut(t, caller, big.NewInt(10_000_000), big.NewInt(9_000_000))

	adapter := sushiTestAdapter(types.ChainCore)
	bctx := BuildContext{Chain: types.ChainCore, Vault: testVault, Caller: caller}
	amount := big.NewInt(10_000_000)

	call, err := adapter.BuildSwap(context.Background(), bctx, SwapRequest{
		SrcToken: usdcToken(t),
		DstToken: usdtToken(t),
		Amount:   amount,
		Slippage: 0.03,
	})
	require.NoError(t, err)

	assert.Equal(t, testSushiRouter, call.Target)
	assert.Equal(t,
		selectorOf("swapExactTokensForTokens(uint256,uint256,address[],address,uint256)"),
		call.CallData[:4])
	assert.Equal(t, uint64(1_200_000), call.GasLimit)

	require.Len(t, call.Approvals, 1)
	usdcCore := common.HexToAddress("0xa4151B2B3e269645181dCcF2D426cE75fcbDeca9")
	assert.Equal(t, usdcCore, call.Approvals[0].Token)
	assert.Equal(t, amount, call.Approvals[0].Amount)

	args, err := sushiRouterABI.Methods["swapExactTokensForTokens"].Inputs.Unpack(call.CallData[4:])
	require.NoError(t, err)
	assert.Equal(t, amount, args[0])
	assert.Equal(t, big.NewInt(8_730_000), args[1]) // 9_000_000 less 3%

	path := args[2].([]common.Address)
	require.Len(t, path, 2)
	assert.Equal(t, usdcCore, path[0])

	assert.Equal(t, testVault, args[3]) // proceeds return to the vault
}

func TestSushiBuildSwap_NoRouterConfigured(t *testing.T) {
	adapter := NewSushiAdapterWithRouters(nil)
	bctx := BuildContext{Chain: types.ChainCore, Vault: testVault}

	_, err := adapter.BuildSwap(context.Background(), bctx, SwapRequest{
		SrcToken: usdcToken(t),
		DstToken: usdtToken(t),
		Amount:   big.NewInt(1),
	})
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestSushiQuote_BadResponse(t *testing.T) {
	caller := newFakeCaller()
	respondAmountsOut(t, caller, big.NewInt(10_000_000)) // single-element path

	adapter := sushiTestAdapter(types.ChainCore)
	bctx := BuildContext{Chain: types.ChainCore, Vault: testVault, Caller: caller}

	_, err := adapter.Quote(context.Background(), bctx, SwapRequest{
		SrcToken: usdcToken(t),
		DstToken: usdtToken(t),
		Amount:   big.NewInt(10_000_000),
	})
	assert.ErrorIs(t, err, types.ErrQuote)
}
