/*

This file contains the Aave V3 adapter. It also serves the Colend
deployment on Core, which shares the Pool interface but returns reserve
data in a different word order (handled through the ratemath layout table).

*/

package adapters

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/demether/sxe/internal/config"
	"github.com/demether/sxe/internal/logger"
	"github.com/demether/sxe/internal/ratemath"
	"github.com/demether/sxe/internal/types"
	"github.com/demether/sxe/internal/utils"
)

const aavePoolFragmentJSON = `[
	{"name":"supply","type":"function","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"onBehalfOf","type":"address"},{"name":"referralCode","type":"uint16"}],"outputs":[]},
	{"name":"withdraw","type":"function","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"to","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const aaveDataProviderFragmentJSON = `[
	{"name":"getReserveData","type":"function","stateMutability":"view","inputs":[{"name":"asset","type":"address"}],"outputs":[
		{"name":"unbacked","type":"uint256"},
		{"name":"accruedToTreasuryScaled","type":"uint256"},
		{"name":"totalAToken","type":"uint256"},
		{"name":"totalStableDebt","type":"uint256"},
		{"name":"totalVariableDebt","type":"uint256"},
		{"name":"liquidityRate","type":"uint256"},
		{"name":"variableBorrowRate","type":"uint256"},
		{"name":"stableBorrowRate","type":"uint256"},
		{"name":"averageStableBorrowRate","type":"uint256"},
		{"name":"liquidityIndex","type":"uint256"},
		{"name":"variableBorrowIndex","type":"uint256"},
		{"name":"lastUpdateTimestamp","type":"uint40"}
	]}
]`

var aaveLogger = logger.GetForComponent("aave")

var (
	aavePoolABI         = mustParseABI("aave pool", aavePoolFragmentJSON)
	aaveDataProviderABI = mustParseABI("aave data provider", aaveDataProviderFragmentJSON)

	// poolGetReserveDataSelector is keccak("getReserveData(address)")[:4],
	// used for the raw Pool call on deployments without a data provider.
	poolGetReserveDataSelector = crypto.Keccak256([]byte("getReserveData(address)"))[:4]
)

// AaveAdapter builds supply/withdraw strategy calls against Aave V3 pools.
type AaveAdapter struct{}

func NewAaveAdapter() *AaveAdapter {
	return &AaveAdapter{}
}

func (a *AaveAdapter) Protocol() types.Protocol {
	return types.ProtocolAave
}

// BuildSupply encodes supply(asset, amount, onBehalfOf, 0) with a matching
// approval of the asset to the pool.
func (a *AaveAdapter) BuildSupply(ctx context.Context, bctx BuildContext, req SupplyRequest) (*types.StrategyCall, error) {
	pool, err := config.ContractFor(config.AavePoolAddresses, bctx.Chain, "aave pool")
	if err != nil {
		return nil, err
	}
	asset, err := requireTokenAddress(req.Token, bctx.Chain)
	if err != nil {
		return nil, err
	}

	callData, err := packCall(aavePoolABI, "supply", asset, req.Amount, bctx.Vault, uint16(0))
	if err != nil {
		return nil, err
	}

	return &types.StrategyCall{
		Vault:    bctx.Vault,
		Target:   pool,
		CallData: callData,
		Approvals: []types.Approval{
			{Token: asset, Amount: new(big.Int).Set(req.Amount)},
		},
	}, nil
}

// BuildWithdraw encodes withdraw(asset, amount, to). Withdrawals move the
// protocol's own receipt tokens, so no approval is needed.
func (a *AaveAdapter) BuildWithdraw(ctx context.Context, bctx BuildContext, req SupplyRequest) (*types.StrategyCall, error) {
	pool, err := config.ContractFor(config.AavePoolAddresses, bctx.Chain, "aave pool")
	if err != nil {
		return nil, err
	}
	asset, err := requireTokenAddress(req.Token, bctx.Chain)
	if err != nil {
		return nil, err
	}

	callData, err := packCall(aavePoolABI, "withdraw", asset, req.Amount, bctx.Vault)
	if err != nil {
		return nil, err
	}

	return &types.StrategyCall{
		Vault:    bctx.Vault,
		Target:   pool,
		CallData: callData,
	}, nil
}

func (a *AaveAdapter) BuildSwap(ctx context.Context, bctx BuildContext, req SwapRequest) (*types.StrategyCall, error) {
	return nil, errUnsupportedOp(a.Protocol(), "swap")
}

// GetYield reads the reserve data for a token and converts it to a
// normalized snapshot.
func (a *AaveAdapter) GetYield(ctx context.Context, bctx BuildContext, token types.Token) (*types.YieldSnapshot, error) {
	asset, err := requireTokenAddress(token, bctx.Chain)
	if err != nil {
		return nil, err
	}

	layout := ratemath.LayoutFor(bctx.Chain)
	words, err := a.reserveDataWords(ctx, bctx, asset, layout)
	if err != nil {
		return nil, err
	}

	data, err := layout.Decode(words)
	if err != nil {
		return nil, fmt.Errorf("%w: %s reserve data on chain %d: %w", types.ErrEncoding, token.Symbol, bctx.Chain, err)
	}

	snapshot := &types.YieldSnapshot{
		Protocol:        a.Protocol(),
		Chain:           bctx.Chain,
		Token:           token.Symbol,
		SupplyAPY:       ratemath.RayToAPY(data.LiquidityRate),
		BorrowAPY:       ratemath.RayToAPY(data.VariableBorrowRate),
		UtilizationRate: ratemath.UtilizationRate(data.TotalAToken, data.TotalVariableDebt),
		AsOf:            time.Now().UTC(),
	}

	aaveLogger.Debug().
		Str("token", token.Symbol).
		Uint64("chain_id", bctx.Chain.Uint64()).
		Float64("supply_apy", snapshot.SupplyAPY).
		Msg("Fetched reserve data")

	return snapshot, nil
}

// Position reads the vault's deposit in the pool: the aToken balance, which
// accrues interest and so equals the withdrawable underlying amount.
func (a *AaveAdapter) Position(ctx context.Context, bctx BuildContext, token types.Token) (*types.ProtocolPosition, error) {
	aToken, ok := token.ATokenOn(bctx.Chain)
	if !ok {
		return nil, fmt.Errorf("%w: token %s has no aToken on chain %d", types.ErrConfiguration, token.Symbol, bctx.Chain)
	}

	balance, err := BalanceOf(ctx, bctx.Caller, aToken, bctx.Vault)
	if err != nil {
		return nil, err
	}

	value, err := utils.BaseToHuman(balance, token.Decimals)
	if err != nil {
		aaveLogger.Warn().Err(err).Str("token", token.Symbol).Msg("Position value conversion failed")
		value = 0
	}

	return &types.ProtocolPosition{
		Protocol:       a.Protocol(),
		Chain:          bctx.Chain,
		Token:          token.Symbol,
		Balance:        balance,
		EstimatedValue: value,
		AsOf:           time.Now().UTC(),
	}, nil
}

// reserveDataWords fetches the reserve tuple as raw words, either through
// the data provider or through a raw Pool call where the layout says so.
func (a *AaveAdapter) reserveDataWords(ctx context.Context, bctx BuildContext, asset common.Address, layout ratemath.ReserveLayout) ([]*big.Int, error) {
	if layout.RawPoolCall {
		pool, err := config.ContractFor(config.AavePoolAddresses, bctx.Chain, "aave pool")
		if err != nil {
			return nil, err
		}
		callData := append(append([]byte{}, poolGetReserveDataSelector...), common.LeftPadBytes(asset.Bytes(), 32)...)
		return rawWords(ctx, bctx.Caller, pool, callData)
	}

	provider, err := config.ContractFor(config.AaveDataProviderAddresses, bctx.Chain, "aave data provider")
	if err != nil {
		return nil, err
	}
	out, err := viewCall(ctx, bctx.Caller, aaveDataProviderABI, provider, "getReserveData", asset)
	if err != nil {
		return nil, err
	}

	words := make([]*big.Int, len(out))
	for i := range out {
		words[i] = abiBigInt(out, i)
	}
	return words, nil
}

// requireTokenAddress resolves a token's contract on the build chain.
func requireTokenAddress(token types.Token, chain types.ChainID) (common.Address, error) {
	addr, ok := token.AddressOn(chain)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: token %s is not deployed on chain %d", types.ErrConfiguration, token.Symbol, chain)
	}
	return addr, nil
}
