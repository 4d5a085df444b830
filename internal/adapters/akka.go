/*

This file contains the Akka DEX aggregator adapter. Routing comes from the
Akka REST API; the quote response carries the full path set plus a signed
fee tuple, and the adapter re-encodes it into a multiPathSwap call. An
optional mode takes prebuilt calldata from the aggregator's /swap endpoint
instead.

*/

package adapters

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/demether/sxe/internal/config"
	"github.com/demether/sxe/internal/logger"
	"github.com/demether/sxe/internal/types"
)

const akkaRouterFragmentJSON = `[
	{"name":"multiPathSwap","type":"function","stateMutability":"payable","inputs":[
		{"name":"amountIn","type":"uint256"},
		{"name":"amountOutMin","type":"uint256"},
		{"name":"data","type":"tuple[]","components":[
			{"name":"srcAmount","type":"uint256"},
			{"name":"dstMinAmount","type":"uint256"},
			{"name":"isFromNative","type":"uint256"},
			{"name":"isToNative","type":"uint256"},
			{"name":"pools","type":"tuple[]","components":[
				{"name":"srcToken","type":"address"},
				{"name":"dstToken","type":"address"},
				{"name":"pairAddr","type":"address"},
				{"name":"fee","type":"uint256"},
				{"name":"srcAmount","type":"uint256"},
				{"name":"dstMinAmount","type":"uint256"},
				{"name":"feeSrc","type":"uint256"},
				{"name":"feeDst","type":"uint256"},
				{"name":"liquidityType","type":"uint256"}
			]}
		]},
		{"name":"to","type":"address"},
		{"name":"fee","type":"uint256"},
		{"name":"v","type":"uint8"},
		{"name":"r","type":"bytes32"},
		{"name":"s","type":"bytes32"}
	],"outputs":[]}
]`

var akkaRouterABI = mustParseABI("akka router", akkaRouterFragmentJSON)

const (
	akkaDefaultSlippage = 0.03
	akkaHTTPTimeout     = 30 * time.Second
)

// akkaPool mirrors one hop of an Akka route.
type akkaPool struct {
	SrcToken      common.Address `abi:"srcToken"`
	DstToken      common.Address `abi:"dstToken"`
	PairAddr      common.Address `abi:"pairAddr"`
	Fee           *big.Int       `abi:"fee"`
	SrcAmount     *big.Int       `abi:"srcAmount"`
	DstMinAmount  *big.Int       `abi:"dstMinAmount"`
	FeeSrc        *big.Int       `abi:"feeSrc"`
	FeeDst        *big.Int       `abi:"feeDst"`
	LiquidityType *big.Int       `abi:"liquidityType"`
}

// akkaPath is one parallel path of the split route.
type akkaPath struct {
	SrcAmount    *big.Int   `abi:"srcAmount"`
	DstMinAmount *big.Int   `abi:"dstMinAmount"`
	IsFromNative *big.Int   `abi:"isFromNative"`
	IsToNative   *big.Int   `abi:"isToNative"`
	Pools        []akkaPool `abi:"pools"`
}

// akkaQuote is the pks-quote response. Numeric fields arrive as strings or
// numbers depending on magnitude, hence json.RawMessage with coercion.
type akkaQuote struct {
	InputAmount  akkaAmount `json:"inputAmount"`
	OutputAmount akkaAmount `json:"outputAmount"`
	PriceImpact  float64    `json:"priceImpact,omitempty"`
	Route        string     `json:"route,omitempty"`
	SwapData     struct {
		AmountIn     json.RawMessage     `json:"amountIn"`
		AmountOutMin json.RawMessage     `json:"amountOutMin"`
		Data         [][]json.RawMessage `json:"data"`
		AkkaFee      struct {
			Fee json.RawMessage `json:"fee"`
			V   json.RawMessage `json:"v"`
			R   string          `json:"r"`
			S   string          `json:"s"`
		} `json:"akkaFee"`
	} `json:"swapData"`
}

type akkaAmount struct {
	Currency string          `json:"currency"`
	Value    json.RawMessage `json:"value"`
}

// akkaSwapTx is the /swap response's transaction envelope.
type akkaSwapTx struct {
	Tx struct {
		To   string `json:"to"`
		Data string `json:"data"`
	} `json:"tx"`
}

// AkkaAdapter builds swap strategy calls through the Akka aggregator.
type AkkaAdapter struct {
	baseURL    string
	httpClient *http.Client
	useSwapAPI bool
}

// NewAkkaAdapter builds the adapter. An empty baseURL falls back to the
// configured endpoint.
func NewAkkaAdapter(baseURL string, useSwapAPI bool) *AkkaAdapter {
	if baseURL == "" {
		baseURL = config.AkkaAPIBase
	}
	return &AkkaAdapter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: akkaHTTPTimeout},
		useSwapAPI: useSwapAPI,
	}
}

func (a *AkkaAdapter) Protocol() types.Protocol {
	return types.ProtocolAkka
}

func (a *AkkaAdapter) BuildSupply(ctx context.Context, bctx BuildContext, req SupplyRequest) (*types.StrategyCall, error) {
	return nil, errUnsupportedOp(a.Protocol(), "supply")
}

func (a *AkkaAdapter) BuildWithdraw(ctx context.Context, bctx BuildContext, req SupplyRequest) (*types.StrategyCall, error) {
	return nil, errUnsupportedOp(a.Protocol(), "withdraw")
}

// Aggregators route, they do not hold deposits.
func (a *AkkaAdapter) GetYield(ctx context.Context, bctx BuildContext, token types.Token) (*types.YieldSnapshot, error) {
	return nil, errUnsupportedOp(a.Protocol(), "yield")
}

// BuildSwap fetches a route and encodes the router call. The source token
// approval always matches the input amount exactly.
func (a *AkkaAdapter) BuildSwap(ctx context.Context, bctx BuildContext, req SwapRequest) (*types.StrategyCall, error) {
	router, err := config.ContractFor(config.AkkaRouterAddresses, bctx.Chain, "akka router")
	if err != nil {
		return nil, err
	}
	srcAddr, err := requireTokenAddress(req.SrcToken, bctx.Chain)
	if err != nil {
		return nil, err
	}
	if _, err := requireTokenAddress(req.DstToken, bctx.Chain); err != nil {
		return nil, err
	}

	slippage := req.Slippage
	if slippage <= 0 {
		slippage = akkaDefaultSlippage
	}

	log := logger.GetForComponent("akka")

	var callData []byte
	target := router

	if a.useSwapAPI {
		callData, target, err = a.swapAPICallData(ctx, bctx, req, slippage)
		if err != nil {
			log.Warn().Err(err).Msg("Swap API failed, falling back to quote-based encoding")
			callData = nil
			target = router
		}
	}

	if callData == nil {
		quote, err := a.fetchQuote(ctx, bctx.Chain, req)
		if err != nil {
			return nil, err
		}
		callData, err = a.encodeMultiPathSwap(quote, bctx.Vault)
		if err != nil {
			return nil, err
		}
	}

	return &types.StrategyCall{
		Vault:    bctx.Vault,
		Target:   target,
		CallData: callData,
		Approvals: []types.Approval{
			{Token: srcAddr, Amount: new(big.Int).Set(req.Amount)},
		},
		// aggregator routes are too branchy for reliable estimation;
		// the configured swap ceiling is used directly
		GasLimit: config.SwapGasLimit,
	}, nil
}

// Quote fetches a route and reports it without encoding, for estimates.
func (a *AkkaAdapter) Quote(ctx context.Context, bctx BuildContext, req SwapRequest) (*types.SwapQuote, error) {
	srcAddr, err := requireTokenAddress(req.SrcToken, bctx.Chain)
	if err != nil {
		return nil, err
	}
	dstAddr, err := requireTokenAddress(req.DstToken, bctx.Chain)
	if err != nil {
		return nil, err
	}

	quote, err := a.fetchQuote(ctx, bctx.Chain, req)
	if err != nil {
		return nil, err
	}

	dstAmount, err := akkaBigInt(quote.OutputAmount.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: output amount: %w", types.ErrQuote, err)
	}

	slippage := req.Slippage
	if slippage <= 0 {
		slippage = akkaDefaultSlippage
	}

	return &types.SwapQuote{
		SrcToken:     srcAddr,
		DstToken:     dstAddr,
		SrcAmount:    new(big.Int).Set(req.Amount),
		DstAmount:    dstAmount,
		DstAmountMin: types.ApplySlippage(dstAmount, slippage),
		Route:        quote.Route,
		PriceImpact:  quote.PriceImpact,
	}, nil
}

// fetchQuote performs GET /{chainId}/pks-quote.
func (a *AkkaAdapter) fetchQuote(ctx context.Context, chainID types.ChainID, req SwapRequest) (*akkaQuote, error) {
	srcAddr, _ := req.SrcToken.AddressOn(chainID)
	dstAddr, _ := req.DstToken.AddressOn(chainID)

	query := url.Values{}
	query.Set("src", srcAddr.Hex())
	query.Set("dst", dstAddr.Hex())
	query.Set("amount", req.Amount.String())

	endpoint := fmt.Sprintf("%s/%d/pks-quote?%s", a.baseURL, chainID, query.Encode())
	body, err := a.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var quote akkaQuote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("%w: decoding akka quote: %w", types.ErrQuote, err)
	}
	return &quote, nil
}

// swapAPICallData performs GET /{chainId}/swap and takes its prebuilt
// transaction payload.
func (a *AkkaAdapter) swapAPICallData(ctx context.Context, bctx BuildContext, req SwapRequest, slippage float64) ([]byte, common.Address, error) {
	srcAddr, _ := req.SrcToken.AddressOn(bctx.Chain)
	dstAddr, _ := req.DstToken.AddressOn(bctx.Chain)

	query := url.Values{}
	query.Set("src", srcAddr.Hex())
	query.Set("dst", dstAddr.Hex())
	query.Set("amount", req.Amount.String())
	query.Set("from", bctx.Vault.Hex())
	// the swap API takes slippage in percent; sub-percent values like
	// 0.005 must survive as "0.5", not truncate to "0"
	query.Set("slippage", strconv.FormatFloat(slippage*100, 'f', -1, 64))

	endpoint := fmt.Sprintf("%s/%d/swap?%s", a.baseURL, bctx.Chain, query.Encode())
	body, err := a.get(ctx, endpoint)
	if err != nil {
		return nil, common.Address{}, err
	}

	var swapTx akkaSwapTx
	if err := json.Unmarshal(body, &swapTx); err != nil {
		return nil, common.Address{}, fmt.Errorf("%w: decoding akka swap response: %w", types.ErrQuote, err)
	}
	if !strings.HasPrefix(swapTx.Tx.Data, "0x") {
		return nil, common.Address{}, fmt.Errorf("%w: akka swap response carries no calldata", types.ErrQuote)
	}

	callData, err := hex.DecodeString(swapTx.Tx.Data[2:])
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("%w: akka swap calldata is not hex: %w", types.ErrQuote, err)
	}

	target, err := config.ContractFor(config.AkkaRouterAddresses, bctx.Chain, "akka router")
	if err != nil {
		return nil, common.Address{}, err
	}
	if common.IsHexAddress(swapTx.Tx.To) {
		target = common.HexToAddress(swapTx.Tx.To)
	}
	return callData, target, nil
}

func (a *AkkaAdapter) get(ctx context.Context, endpoint string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building akka request: %w", types.ErrQuote, err)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: akka api unreachable: %w", types.ErrQuote, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading akka response: %w", types.ErrQuote, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: akka api returned %d: %s", types.ErrQuote, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// encodeMultiPathSwap re-encodes the quote's route into router calldata.
func (a *AkkaAdapter) encodeMultiPathSwap(quote *akkaQuote, receiver common.Address) ([]byte, error) {
	amountIn, err := akkaBigInt(quote.SwapData.AmountIn)
	if err != nil {
		return nil, fmt.Errorf("%w: amountIn: %w", types.ErrQuote, err)
	}
	amountOutMin, err := akkaBigInt(quote.SwapData.AmountOutMin)
	if err != nil {
		return nil, fmt.Errorf("%w: amountOutMin: %w", types.ErrQuote, err)
	}

	paths, err := parseAkkaPaths(quote.SwapData.Data)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: akka quote carries no route", types.ErrQuote)
	}

	fee, err := akkaBigInt(quote.SwapData.AkkaFee.Fee)
	if err != nil {
		return nil, fmt.Errorf("%w: akka fee: %w", types.ErrQuote, err)
	}
	vBig, err := akkaBigInt(quote.SwapData.AkkaFee.V)
	if err != nil {
		return nil, fmt.Errorf("%w: akka fee v: %w", types.ErrQuote, err)
	}

	var r, s [32]byte
	copy(r[:], common.FromHex(quote.SwapData.AkkaFee.R))
	copy(s[:], common.FromHex(quote.SwapData.AkkaFee.S))

	return packCall(akkaRouterABI, "multiPathSwap",
		amountIn, amountOutMin, paths, receiver, fee, uint8(vBig.Uint64()), r, s)
}

// parseAkkaPaths converts the quote's heterogeneous JSON arrays into typed
// path tuples, rejecting native-token legs the vault cannot fund.
func parseAkkaPaths(data [][]json.RawMessage) ([]akkaPath, error) {
	paths := make([]akkaPath, 0, len(data))
	for _, rawPath := range data {
		if len(rawPath) < 5 {
			return nil, fmt.Errorf("%w: akka path has %d elements, want 5", types.ErrQuote, len(rawPath))
		}

		path := akkaPath{}
		var err error
		if path.SrcAmount, err = akkaBigInt(rawPath[0]); err != nil {
			return nil, fmt.Errorf("%w: path srcAmount: %w", types.ErrQuote, err)
		}
		if path.DstMinAmount, err = akkaBigInt(rawPath[1]); err != nil {
			return nil, fmt.Errorf("%w: path dstMinAmount: %w", types.ErrQuote, err)
		}
		if path.IsFromNative, err = akkaBigInt(rawPath[2]); err != nil {
			return nil, fmt.Errorf("%w: path isFromNative: %w", types.ErrQuote, err)
		}
		if path.IsToNative, err = akkaBigInt(rawPath[3]); err != nil {
			return nil, fmt.Errorf("%w: path isToNative: %w", types.ErrQuote, err)
		}

		// The vault holds no native balance to attach as msg.value.
		if path.IsFromNative.Sign() != 0 || path.IsToNative.Sign() != 0 {
			return nil, fmt.Errorf("%w: akka routed through a native-token leg", types.ErrUnsupported)
		}

		var rawPools []json.RawMessage
		if err := json.Unmarshal(rawPath[4], &rawPools); err != nil {
			return nil, fmt.Errorf("%w: path pools: %w", types.ErrQuote, err)
		}
		for _, rawPool := range rawPools {
			pool, err := parseAkkaPool(rawPool)
			if err != nil {
				return nil, err
			}
			path.Pools = append(path.Pools, pool)
		}

		paths = append(paths, path)
	}
	return paths, nil
}

func parseAkkaPool(raw json.RawMessage) (akkaPool, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return akkaPool{}, fmt.Errorf("%w: akka pool: %w", types.ErrQuote, err)
	}
	if len(fields) < 9 {
		return akkaPool{}, fmt.Errorf("%w: akka pool has %d fields, want 9", types.ErrQuote, len(fields))
	}

	pool := akkaPool{}
	var err error
	if pool.SrcToken, err = akkaAddress(fields[0]); err != nil {
		return akkaPool{}, err
	}
	if pool.DstToken, err = akkaAddress(fields[1]); err != nil {
		return akkaPool{}, err
	}
	if pool.PairAddr, err = akkaAddress(fields[2]); err != nil {
		return akkaPool{}, err
	}

	nums := []**big.Int{&pool.Fee, &pool.SrcAmount, &pool.DstMinAmount, &pool.FeeSrc, &pool.FeeDst, &pool.LiquidityType}
	for i, dst := range nums {
		v, err := akkaBigInt(fields[3+i])
		if err != nil {
			return akkaPool{}, fmt.Errorf("%w: akka pool field %d: %w", types.ErrQuote, 3+i, err)
		}
		*dst = v
	}
	return pool, nil
}

// akkaBigInt coerces a JSON string or number into a big.Int.
func akkaBigInt(raw json.RawMessage) (*big.Int, error) {
	if len(raw) == 0 {
		return big.NewInt(0), nil
	}
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if text == "" || text == "null" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return nil, fmt.Errorf("%q is not an integer", text)
	}
	return value, nil
}

func akkaAddress(raw json.RawMessage) (common.Address, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return common.Address{}, fmt.Errorf("%w: akka address: %w", types.ErrQuote, err)
	}
	if !common.IsHexAddress(text) {
		return common.Address{}, fmt.Errorf("%w: %q is not an address", types.ErrQuote, text)
	}
	return common.HexToAddress(text), nil
}
