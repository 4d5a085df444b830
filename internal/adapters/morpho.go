/*

This file contains the Morpho adapter. It drives both Morpho Blue direct
markets (identified by a bytes32 market id) and MetaMorpho ERC-4626 vaults
(identified by a contract address). Which one the caller means is resolved
on chain: an address that answers asset() is a MetaMorpho vault.

*/

package adapters

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/demether/sxe/internal/config"
	"github.com/demether/sxe/internal/logger"
	"github.com/demether/sxe/internal/ratemath"
	"github.com/demether/sxe/internal/types"
)

const morphoFragmentJSON = `[
	{"name":"supply","type":"function","stateMutability":"nonpayable","inputs":[{"name":"marketParams","type":"tuple","components":[{"name":"loanToken","type":"address"},{"name":"collateralToken","type":"address"},{"name":"oracle","type":"address"},{"name":"irm","type":"address"},{"name":"lltv","type":"uint256"}]},{"name":"assets","type":"uint256"},{"name":"shares","type":"uint256"},{"name":"onBehalf","type":"address"},{"name":"data","type":"bytes"}],"outputs":[{"name":"assetsSupplied","type":"uint256"},{"name":"sharesSupplied","type":"uint256"}]},
	{"name":"withdraw","type":"function","stateMutability":"nonpayable","inputs":[{"name":"marketParams","type":"tuple","components":[{"name":"loanToken","type":"address"},{"name":"collateralToken","type":"address"},{"name":"oracle","type":"address"},{"name":"irm","type":"address"},{"name":"lltv","type":"uint256"}]},{"name":"assets","type":"uint256"},{"name":"shares","type":"uint256"},{"name":"onBehalf","type":"address"},{"name":"receiver","type":"address"}],"outputs":[{"name":"assetsWithdrawn","type":"uint256"},{"name":"sharesWithdrawn","type":"uint256"}]},
	{"name":"market","type":"function","stateMutability":"view","inputs":[{"name":"id","type":"bytes32"}],"outputs":[{"name":"totalSupplyAssets","type":"uint128"},{"name":"totalSupplyShares","type":"uint128"},{"name":"totalBorrowAssets","type":"uint128"},{"name":"totalBorrowShares","type":"uint128"},{"name":"lastUpdate","type":"uint128"},{"name":"fee","type":"uint128"}]},
	{"name":"idToMarketParams","type":"function","stateMutability":"view","inputs":[{"name":"id","type":"bytes32"}],"outputs":[{"name":"loanToken","type":"address"},{"name":"collateralToken","type":"address"},{"name":"oracle","type":"address"},{"name":"irm","type":"address"},{"name":"lltv","type":"uint256"}]},
	{"name":"position","type":"function","stateMutability":"view","inputs":[{"name":"id","type":"bytes32"},{"name":"user","type":"address"}],"outputs":[{"name":"supplyShares","type":"uint256"},{"name":"borrowShares","type":"uint128"},{"name":"collateral","type":"uint128"}]}
]`

const irmFragmentJSON = `[
	{"name":"borrowRateView","type":"function","stateMutability":"view","inputs":[{"name":"marketParams","type":"tuple","components":[{"name":"loanToken","type":"address"},{"name":"collateralToken","type":"address"},{"name":"oracle","type":"address"},{"name":"irm","type":"address"},{"name":"lltv","type":"uint256"}]},{"name":"market","type":"tuple","components":[{"name":"totalSupplyAssets","type":"uint128"},{"name":"totalSupplyShares","type":"uint128"},{"name":"totalBorrowAssets","type":"uint128"},{"name":"totalBorrowShares","type":"uint128"},{"name":"lastUpdate","type":"uint128"},{"name":"fee","type":"uint128"}]}],"outputs":[{"name":"","type":"uint256"}]}
]`

const vault4626FragmentJSON = `[
	{"name":"asset","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"name":"totalAssets","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"deposit","type":"function","stateMutability":"nonpayable","inputs":[{"name":"assets","type":"uint256"},{"name":"receiver","type":"address"}],"outputs":[{"name":"shares","type":"uint256"}]},
	{"name":"withdraw","type":"function","stateMutability":"nonpayable","inputs":[{"name":"assets","type":"uint256"},{"name":"receiver","type":"address"},{"name":"owner","type":"address"}],"outputs":[{"name":"shares","type":"uint256"}]},
	{"name":"convertToAssets","type":"function","stateMutability":"view","inputs":[{"name":"shares","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	morphoABI    = mustParseABI("morpho", morphoFragmentJSON)
	irmABI       = mustParseABI("morpho irm", irmFragmentJSON)
	vault4626ABI = mustParseABI("erc4626 vault", vault4626FragmentJSON)
)

// knownMorphoMarkets lists curated direct Morpho Blue markets per chain,
// scanned alongside the vaults when collecting yields. Direct-market APY
// comes live from the IRM, so entries here need only the market id. Empty
// until a direct market is curated; MetaMorpho vaults cover the current
// deployments.
var knownMorphoMarkets = map[types.ChainID][]common.Hash{}

// knownMetaMorphoVaults lists curated vaults per chain, used when scanning
// yields for a token without an explicit market parameter.
var knownMetaMorphoVaults = map[types.ChainID][]common.Address{
	types.ChainKatana: {
		common.HexToAddress("0x82c4C641CCc38719ae1f0FBd16A64808d838fDfD"), // Steakhouse Prime AUSD
		common.HexToAddress("0x9540441C503D763094921dbE4f13268E6d1d3B56"), // Gauntlet AUSD
	},
}

// knownVaultAPYs carries the last curated APY per vault. MetaMorpho APY is
// an aggregate over the vault's market queue and is not derivable from a
// single on-chain read, so curated numbers stand in until an indexer feed
// replaces them.
var knownVaultAPYs = map[common.Address]float64{
	common.HexToAddress("0x82c4C641CCc38719ae1f0FBd16A64808d838fDfD"): 3.87,
	common.HexToAddress("0x9540441C503D763094921dbE4f13268E6d1d3B56"): 3.24,
}

const fallbackVaultAPY = 3.0

// MorphoAdapter builds strategy calls for Morpho Blue and MetaMorpho.
type MorphoAdapter struct{}

func NewMorphoAdapter() *MorphoAdapter {
	return &MorphoAdapter{}
}

func (m *MorphoAdapter) Protocol() types.Protocol {
	return types.ProtocolMorpho
}

// morphoTarget is the resolved destination of a Morpho intent.
type morphoTarget struct {
	// MetaMorpho path
	VaultAddress common.Address
	Asset        common.Address

	// Direct market path
	MarketParams types.MarketParams

	IsVault bool
}

// resolveTarget turns the request's market parameter into a concrete
// destination, probing the chain to classify addresses.
func (m *MorphoAdapter) resolveTarget(ctx context.Context, bctx BuildContext, params map[string]string) (*morphoTarget, error) {
	raw := firstParam(params, "market", "market_id", "vault", "vault_address")
	if raw == "" {
		return nil, fmt.Errorf("%w: morpho requires a market id or vault address parameter", types.ErrConfiguration)
	}

	if common.IsHexAddress(raw) {
		vaultAddr := common.HexToAddress(raw)
		asset, err := m.vaultAsset(ctx, bctx, vaultAddr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s does not answer asset(), not a MetaMorpho vault: %w", types.ErrConfiguration, vaultAddr.Hex(), err)
		}
		return &morphoTarget{VaultAddress: vaultAddr, Asset: asset, IsVault: true}, nil
	}

	id, err := parseMarketID(raw)
	if err != nil {
		return nil, err
	}

	marketParams, err := m.marketParams(ctx, bctx, id)
	if err != nil {
		return nil, err
	}
	if marketParams.IsZero() {
		return nil, fmt.Errorf("%w: market %s is unknown to the Morpho singleton on chain %d", types.ErrConfiguration, id.Hex(), bctx.Chain)
	}
	return &morphoTarget{MarketParams: marketParams}, nil
}

// BuildSupply encodes either an ERC-4626 deposit or a direct market supply.
// shares stays 0 so the singleton computes them from the asset amount.
func (m *MorphoAdapter) BuildSupply(ctx context.Context, bctx BuildContext, req SupplyRequest) (*types.StrategyCall, error) {
	target, err := m.resolveTarget(ctx, bctx, req.Params)
	if err != nil {
		return nil, err
	}

	if target.IsVault {
		callData, err := packCall(vault4626ABI, "deposit", req.Amount, bctx.Vault)
		if err != nil {
			return nil, err
		}
		return &types.StrategyCall{
			Vault:    bctx.Vault,
			Target:   target.VaultAddress,
			CallData: callData,
			Approvals: []types.Approval{
				{Token: target.Asset, Amount: new(big.Int).Set(req.Amount)},
			},
		}, nil
	}

	singleton, err := m.singleton(bctx.Chain)
	if err != nil {
		return nil, err
	}
	callData, err := packCall(morphoABI, "supply", target.MarketParams, req.Amount, big.NewInt(0), bctx.Vault, []byte{})
	if err != nil {
		return nil, err
	}
	return &types.StrategyCall{
		Vault:    bctx.Vault,
		Target:   singleton,
		CallData: callData,
		Approvals: []types.Approval{
			{Token: target.MarketParams.LoanToken, Amount: new(big.Int).Set(req.Amount)},
		},
	}, nil
}

// BuildWithdraw encodes the matching withdrawal. Neither path needs an
// approval; the vault already owns the shares.
func (m *MorphoAdapter) BuildWithdraw(ctx context.Context, bctx BuildContext, req SupplyRequest) (*types.StrategyCall, error) {
	target, err := m.resolveTarget(ctx, bctx, req.Params)
	if err != nil {
		return nil, err
	}

	if target.IsVault {
		callData, err := packCall(vault4626ABI, "withdraw", req.Amount, bctx.Vault, bctx.Vault)
		if err != nil {
			return nil, err
		}
		return &types.StrategyCall{
			Vault:    bctx.Vault,
			Target:   target.VaultAddress,
			CallData: callData,
		}, nil
	}

	singleton, err := m.singleton(bctx.Chain)
	if err != nil {
		return nil, err
	}
	callData, err := packCall(morphoABI, "withdraw", target.MarketParams, req.Amount, big.NewInt(0), bctx.Vault, bctx.Vault)
	if err != nil {
		return nil, err
	}
	return &types.StrategyCall{
		Vault:    bctx.Vault,
		Target:   singleton,
		CallData: callData,
	}, nil
}

func (m *MorphoAdapter) BuildSwap(ctx context.Context, bctx BuildContext, req SwapRequest) (*types.StrategyCall, error) {
	return nil, errUnsupportedOp(m.Protocol(), "swap")
}

// GetYield scans the curated MetaMorpho vaults and direct markets on the
// chain for ones holding the token and reports the best APY among them.
// Vault APY is curated; direct-market APY is derived live from the IRM.
func (m *MorphoAdapter) GetYield(ctx context.Context, bctx BuildContext, token types.Token) (*types.YieldSnapshot, error) {
	tokenAddr, err := requireTokenAddress(token, bctx.Chain)
	if err != nil {
		return nil, err
	}

	log := logger.GetForComponent("morpho")
	var best *types.YieldSnapshot

	for _, marketID := range knownMorphoMarkets[bctx.Chain] {
		marketParams, err := m.marketParams(ctx, bctx, marketID)
		if err != nil || marketParams.IsZero() {
			log.Warn().Err(err).Str("market", marketID.Hex()).Msg("Skipping unresolvable market")
			continue
		}
		if marketParams.LoanToken != tokenAddr {
			continue
		}

		snapshot, err := m.marketYield(ctx, bctx, marketID, marketParams, token.Symbol)
		if err != nil {
			log.Warn().Err(err).Str("market", marketID.Hex()).Msg("Skipping market with unreadable rate")
			continue
		}
		if best == nil || snapshot.SupplyAPY > best.SupplyAPY {
			best = snapshot
		}
	}

	for _, vaultAddr := range knownMetaMorphoVaults[bctx.Chain] {
		asset, err := m.vaultAsset(ctx, bctx, vaultAddr)
		if err != nil {
			log.Warn().Err(err).Str("vault", vaultAddr.Hex()).Msg("Skipping unreachable vault")
			continue
		}
		if asset != tokenAddr {
			continue
		}

		apy, ok := knownVaultAPYs[vaultAddr]
		if !ok {
			apy = fallbackVaultAPY
			log.Warn().Str("vault", vaultAddr.Hex()).Msg("No curated APY for vault, using fallback estimate")
		}

		if best == nil || apy > best.SupplyAPY {
			best = &types.YieldSnapshot{
				Protocol:  m.Protocol(),
				Chain:     bctx.Chain,
				Token:     token.Symbol,
				SupplyAPY: apy,
				AsOf:      time.Now().UTC(),
			}
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: no morpho vaults hold %s on chain %d", types.ErrQuote, token.Symbol, bctx.Chain)
	}
	return best, nil
}

// MarketYield derives live supply and borrow APY for a direct market from
// the IRM's per-second rate and the market state.
func (m *MorphoAdapter) MarketYield(ctx context.Context, bctx BuildContext, marketID common.Hash, tokenSymbol string) (*types.YieldSnapshot, error) {
	marketParams, err := m.marketParams(ctx, bctx, marketID)
	if err != nil {
		return nil, err
	}
	if marketParams.IsZero() {
		return nil, fmt.Errorf("%w: market %s is unknown to the Morpho singleton on chain %d", types.ErrConfiguration, marketID.Hex(), bctx.Chain)
	}
	return m.marketYield(ctx, bctx, marketID, marketParams, tokenSymbol)
}

// marketYield computes the snapshot once the market params are resolved.
func (m *MorphoAdapter) marketYield(ctx context.Context, bctx BuildContext, marketID common.Hash, marketParams types.MarketParams, tokenSymbol string) (*types.YieldSnapshot, error) {
	state, err := m.marketState(ctx, bctx, marketID)
	if err != nil {
		return nil, err
	}

	rateOut, err := viewCall(ctx, bctx.Caller, irmABI, marketParams.IRM, "borrowRateView", marketParams, state)
	if err != nil {
		return nil, err
	}
	ratePerSecond := abiBigInt(rateOut, 0)

	borrowAPY := ratemath.PerSecondRateToAPY(ratePerSecond)
	utilization := ratemath.UtilizationRate(state.TotalSupplyAssets, state.TotalBorrowAssets)
	supplyAPY := ratemath.SupplyAPYFromBorrow(borrowAPY, utilization, state.Fee)

	return &types.YieldSnapshot{
		Protocol:        m.Protocol(),
		Chain:           bctx.Chain,
		Token:           tokenSymbol,
		SupplyAPY:       supplyAPY,
		BorrowAPY:       borrowAPY,
		UtilizationRate: utilization,
		AsOf:            time.Now().UTC(),
	}, nil
}

// Positions reads the vault's holdings across the curated MetaMorpho
// vaults for a token. Vaults with zero shares are omitted.
func (m *MorphoAdapter) Positions(ctx context.Context, bctx BuildContext, token types.Token) ([]*types.ProtocolPosition, error) {
	tokenAddr, err := requireTokenAddress(token, bctx.Chain)
	if err != nil {
		return nil, err
	}

	log := logger.GetForComponent("morpho")
	var positions []*types.ProtocolPosition

	for _, vaultAddr := range knownMetaMorphoVaults[bctx.Chain] {
		asset, err := m.vaultAsset(ctx, bctx, vaultAddr)
		if err != nil || asset != tokenAddr {
			continue
		}
		position, err := m.Position(ctx, bctx, vaultAddr, token.Symbol)
		if err != nil {
			log.Warn().Err(err).Str("vault", vaultAddr.Hex()).Msg("Skipping unreadable vault position")
			continue
		}
		if position.Shares.Sign() == 0 {
			continue
		}
		positions = append(positions, position)
	}
	return positions, nil
}

// Position reads the vault's holding in a MetaMorpho vault: raw shares and
// their current asset value.
func (m *MorphoAdapter) Position(ctx context.Context, bctx BuildContext, vaultAddr common.Address, tokenSymbol string) (*types.ProtocolPosition, error) {
	sharesOut, err := viewCall(ctx, bctx.Caller, vault4626ABI, vaultAddr, "balanceOf", bctx.Vault)
	if err != nil {
		return nil, err
	}
	shares := abiBigInt(sharesOut, 0)

	balance := big.NewInt(0)
	if shares.Sign() > 0 {
		assetsOut, err := viewCall(ctx, bctx.Caller, vault4626ABI, vaultAddr, "convertToAssets", shares)
		if err != nil {
			return nil, err
		}
		balance = abiBigInt(assetsOut, 0)
	}

	return &types.ProtocolPosition{
		Protocol: m.Protocol(),
		Chain:    bctx.Chain,
		Token:    tokenSymbol,
		Balance:  balance,
		Shares:   shares,
		AsOf:     time.Now().UTC(),
	}, nil
}

func (m *MorphoAdapter) singleton(chain types.ChainID) (common.Address, error) {
	if !config.MorphoChains[chain] {
		return common.Address{}, fmt.Errorf("%w: morpho is not deployed on chain %d", types.ErrConfiguration, chain)
	}
	return config.MorphoSingletonAddress, nil
}

func (m *MorphoAdapter) vaultAsset(ctx context.Context, bctx BuildContext, vaultAddr common.Address) (common.Address, error) {
	out, err := viewCall(ctx, bctx.Caller, vault4626ABI, vaultAddr, "asset")
	if err != nil {
		return common.Address{}, err
	}
	if len(out) == 0 {
		return common.Address{}, fmt.Errorf("%w: empty asset() response from %s", types.ErrQuote, vaultAddr.Hex())
	}
	asset, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: unexpected asset() output from %s", types.ErrEncoding, vaultAddr.Hex())
	}
	return asset, nil
}

func (m *MorphoAdapter) marketParams(ctx context.Context, bctx BuildContext, id common.Hash) (types.MarketParams, error) {
	singleton, err := m.singleton(bctx.Chain)
	if err != nil {
		return types.MarketParams{}, err
	}
	out, err := viewCall(ctx, bctx.Caller, morphoABI, singleton, "idToMarketParams", id)
	if err != nil {
		return types.MarketParams{}, err
	}
	if len(out) < 5 {
		return types.MarketParams{}, fmt.Errorf("%w: short idToMarketParams response", types.ErrEncoding)
	}

	params := types.MarketParams{LLTV: abiBigInt(out, 4)}
	params.LoanToken, _ = out[0].(common.Address)
	params.CollateralToken, _ = out[1].(common.Address)
	params.Oracle, _ = out[2].(common.Address)
	params.IRM, _ = out[3].(common.Address)
	return params, nil
}

func (m *MorphoAdapter) marketState(ctx context.Context, bctx BuildContext, id common.Hash) (types.MarketState, error) {
	singleton, err := m.singleton(bctx.Chain)
	if err != nil {
		return types.MarketState{}, err
	}
	out, err := viewCall(ctx, bctx.Caller, morphoABI, singleton, "market", id)
	if err != nil {
		return types.MarketState{}, err
	}
	if len(out) < 6 {
		return types.MarketState{}, fmt.Errorf("%w: short market response", types.ErrEncoding)
	}

	return types.MarketState{
		TotalSupplyAssets: abiBigInt(out, 0),
		TotalSupplyShares: abiBigInt(out, 1),
		TotalBorrowAssets: abiBigInt(out, 2),
		TotalBorrowShares: abiBigInt(out, 3),
		LastUpdate:        abiBigInt(out, 4),
		Fee:               abiBigInt(out, 5),
	}, nil
}

// parseMarketID validates a bytes32 hex market id.
func parseMarketID(raw string) (common.Hash, error) {
	cleaned := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if len(cleaned) != 64 {
		return common.Hash{}, fmt.Errorf("%w: market id %q is not a bytes32 hex string", types.ErrConfiguration, raw)
	}
	return common.HexToHash(raw), nil
}

// firstParam returns the first non-empty value among aliases of a parameter.
func firstParam(params map[string]string, keys ...string) string {
	for _, key := range keys {
		if v, ok := params[key]; ok && v != "" {
			return v
		}
	}
	return ""
}
