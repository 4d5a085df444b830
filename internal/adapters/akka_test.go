package adapters

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demether/sxe/internal/config"
	"github.com/demether/sxe/internal/types"
)

const multiPathSwapSignature = "multiPathSwap(uint256,uint256,(uint256,uint256,uint256,uint256,(address,address,address,uint256,uint256,uint256,uint256,uint256,uint256)[])[],address,uint256,uint8,bytes32,bytes32)"

func usdtToken(t *testing.T) types.Token {
	t.Helper()
	token, err := config.TokenBySymbol("USDT")
	require.NoError(t, err)
	return token
}

// akkaQuoteFixture renders a pks-quote body for a single-path, single-pool
// route between the Core stablecoins.
func akkaQuoteFixture(outputAmount string, isFromNative, isToNative int) string {
	src := "0xa4151B2B3e269645181dCcF2D426cE75fcbDeca9"
	dst := "0x900101d06A7426441Ae63e9AB3B9b0F63Be145F1"
	pair := "0x1234567890123456789012345678901234567890"
	return fmt.Sprintf(`{
		"inputAmount": {"currency": "%s", "value": "10000000"},
		"outputAmount": {"currency": "%s", "value": "%s"},
		"swapData": {
			"amountIn": "10000000",
			"amountOutMin": "9700000",
			"data": [["10000000", "9700000", %d, %d,
				[["%s", "%s", "%s", 3000, "10000000", "9700000", 0, 0, 1]]
			]],
			"akkaFee": {
				"fee": "0",
				"v": 27,
				"r": "0x1111111111111111111111111111111111111111111111111111111111111111",
				"s": "0x2222222222222222222222222222222222222222222222222222222222222222"
			}
		}
	}`, src, dst, outputAmount, isFromNative, isToNative, src, dst, pair)
}

func TestAkkaBuildSwap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1116/pks-quote", r.URL.Path)
		assert.Equal(t, "10000000", r.URL.Query().Get("amount"))
		fmt.Fprint(w, akkaQuoteFixture("9950000", 0, 0))
	}))
	defer server.Close()

	adapter := NewAkkaAdapter(server.URL, false)
	bctx := BuildContext{Chain: types.ChainCore, Vault: testVault}

	call, err := adapter.BuildSwap(context.Background(), bctx, SwapRequest{
		SrcToken: usdcToken(t),
		DstToken: usdtToken(t),
		Amount:   big.NewInt(10_000_000),
	})
	require.NoError(t, err)

	assert.Equal(t, config.AkkaRouterAddresses[types.ChainCore], call.Target)
	assert.Equal(t, selectorOf(multiPathSwapSignature), call.CallData[:4])
	assert.Equal(t, uint64(1_500_000), call.GasLimit)

	require.Len(t, call.Approvals, 1)
	usdcCore := common.HexToAddress("0xa4151B2B3e269645181dCcF2D426cE75fcbDeca9")
	assert.Equal(t, usdcCore, call.Approvals[0].Token)
	assert.Equal(t, big.NewInt(10_000_000), call.Approvals[0].Amount)

	// the route survives a decode round trip
	args, err := akkaRouterABI.Methods["multiPathSwap"].Inputs.Unpack(call.CallData[4:])
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000_000), args[0])
	assert.Equal(t, big.NewInt(9_700_000), args[1])
	assert.Equal(t, testVault, args[3])
	assert.Equal(t, uint8(27), args[5])
}

func TestAkkaQuoteSlippage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, akkaQuoteFixture("9950000", 0, 0))
	}))
	defer server.Close()

	adapter := NewAkkaAdapter(server.URL, false)
	bctx := BuildContext{Chain: types.ChainCore, Vault: testVault}

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

func TestAkkaBuildSwap_NativeLegRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, akkaQuoteFixture("9950000", 1, 0))
	}))
	defer server.Close()

	adapter := NewAkkaAdapter(server.URL, false)
	bctx := BuildContext{Chain: types.ChainCore, Vault: testVault}

	_, err := adapter.BuildSwap(context.Background(), bctx, SwapRequest{
		SrcToken: usdcToken(t),
		DstToken: usdtToken(t),
		Amount:   big.NewInt(10_000_000),
	})
	assert.ErrorIs(t, err, types.ErrUnsupported)
}

func TestAkkaBuildSwap_SwapAPIPassthrough(t *testing.T) {
	routeTarget := common.HexToAddress("0x7C5Af181D9e9e91B15660830B52f7B7076Be0d64")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/1116/swap", r.URL.Path)
		assert.Equal(t, testVault.Hex(), r.URL.Query().Get("from"))
		assert.Equal(t, "3", r.URL.Query().Get("slippage"))
		fmt.Fprintf(w, `{"tx": {"to": "%s", "data": "0xdeadbeef"}}`, routeTarget.Hex())
	}))
	defer server.Close()

	adapter := NewAkkaAdapter(server.URL, true)
	bctx := BuildContext{Chain: types.ChainCore, Vault: testVault}

	call, err := adapter.BuildSwap(context.Background(), bctx, SwapRequest{
		SrcToken: usdcToken(t),
		DstToken: usdtToken(t),
		Amount:   big.NewInt(10_000_000),
	})
	require.NoError(t, err)

	assert.Equal(t, routeTarget, call.Target)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, call.CallData)
	require.Len(t, call.Approvals, 1)
}

func TestAkkaBuildSwap_SwapAPISubPercentSlippage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 0.005 must reach the API as half a percent, not truncate to 0
		assert.Equal(t, "0.5", r.URL.Query().Get("slippage"))
		fmt.Fprint(w, `{"tx": {"to": "", "data": "0xdeadbeef"}}`)
	}))
	defer server.Close()

	adapter := NewAkkaAdapter(server.URL, true)
	bctx := BuildContext{Chain: types.ChainCore, Vault: testVault}

	_, err := adapter.BuildSwap(context.Background(), bctx, SwapRequest{
		SrcToken: usdcToken(t),
		DstToken: usdtToken(t),
		Amount:   big.NewInt(10_000_000),
		Slippage: 0.005,
	})
	require.NoError(t, err)
}

func TestAkkaBuildSwap_SwapAPIFallsBackToQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/1116/swap" {
			http.Error(w, "no route", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, akkaQuoteFixture("9950000", 0, 0))
	}))
	defer server.Close()

	adapter := NewAkkaAdapter(server.URL, true)
	bctx := BuildContext{Chain: types.ChainCore, Vault: testVault}

	call, err := adapter.BuildSwap(context.Background(), bctx, SwapRequest{
		SrcToken: usdcToken(t),
		DstToken: usdtToken(t),
		Amount:   big.NewInt(10_000_000),
	})
	require.NoError(t, err)
	assert.Equal(t, selectorOf(multiPathSwapSignature), call.CallData[:4])
}

func TestAkkaBuildSwap_UnsupportedChain(t *testing.T) {
	adapter := NewAkkaAdapter("http://127.0.0.1:1", false)
	bctx := BuildContext{Chain: types.ChainKatana, Vault: testVault}

	_, err := adapter.BuildSwap(context.Background(), bctx, SwapRequest{
		SrcToken: usdcToken(t),
		DstToken: usdtToken(t),
		Amount:   big.NewInt(1),
	})
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
