/*

This file contains the supported token registry with per-chain addresses.
It mirrors the frontend token list; keep the two in sync when listing a
new asset.

*/

package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/demether/sxe/internal/types"
)

var SupportedTokens = map[string]types.Token{
	"USDC": {
		Symbol:   "USDC",
		Name:     "USD Coin",
		Decimals: 6,
		Addresses: map[types.ChainID]common.Address{
			types.ChainArbitrum: common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"), // native USDC
			types.ChainCore:     common.HexToAddress("0xa4151B2B3e269645181dCcF2D426cE75fcbDeca9"),
		},
		ATokens: map[types.ChainID]common.Address{
			types.ChainArbitrum: common.HexToAddress("0x724dc807b04555b71ed48a6896b6F41593b8C637"), // aArbUSDC
			types.ChainCore:     common.HexToAddress("0x8f9d6649C4ac1d894BB8A26c3eed8f1C9C5f82Dd"),
		},
		CoingeckoID: "usd-coin",
	},
	"USDT": {
		Symbol:   "USDT",
		Name:     "Tether USD",
		Decimals: 6,
		Addresses: map[types.ChainID]common.Address{
			types.ChainArbitrum: common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9"),
			types.ChainCore:     common.HexToAddress("0x900101d06A7426441Ae63e9AB3B9b0F63Be145F1"),
		},
		ATokens: map[types.ChainID]common.Address{
			types.ChainArbitrum: common.HexToAddress("0x6ab707Aca953eDAeFBc4fD23bA73294241490620"), // aArbUSDT
			types.ChainCore:     common.HexToAddress("0x98cD652fD1f5324A1AF6D64b3F6c8DCF2d8cd0D3"), // aCoreUSDT
		},
		CoingeckoID: "tether",
	},
	"AUSD": {
		Symbol:   "AUSD",
		Name:     "Agora Dollar",
		Decimals: 18,
		Addresses: map[types.ChainID]common.Address{
			types.ChainKatana: common.HexToAddress("0x00000000eFE302BEAA2b3e6e1b18d08D69a9012a"),
		},
		CoingeckoID: "agora-dollar",
	},
	"SOLVBTC": {
		Symbol:   "SOLVBTC",
		Name:     "SolvBTC",
		Decimals: 18,
		Addresses: map[types.ChainID]common.Address{
			types.ChainCore: common.HexToAddress("0x5B1Fb849f1F76217246B8AAAC053b5C7b15b7dc3"),
		},
		ATokens: map[types.ChainID]common.Address{
			types.ChainCore: common.HexToAddress("0x58e95162dBc71650BCac4AeAD39fe2d758Fc967C"), // aCoreSOLVBTC
		},
		CoingeckoID: "solvbtc",
	},
	"BTCB": {
		Symbol:   "BTCB",
		Name:     "Bitcoin",
		Decimals: 18,
		Addresses: map[types.ChainID]common.Address{
			types.ChainCore: common.HexToAddress("0x7a6888c85edba8e38f6c7e0485212da602761c08"),
		},
		ATokens: map[types.ChainID]common.Address{
			types.ChainCore: common.HexToAddress("0x7a6888c85edba8e38f6c7e0485212da602761c08"),
		},
		CoingeckoID: "bitcoin",
	},
	"WBTC": {
		Symbol:   "WBTC",
		Name:     "Wrapped Bitcoin",
		Decimals: 18,
		Addresses: map[types.ChainID]common.Address{
			types.ChainCore: common.HexToAddress("0x5832f53d147b3d6Cd4578B9CBD62425C7ea9d0Bd"),
		},
		ATokens: map[types.ChainID]common.Address{
			types.ChainCore: common.HexToAddress("0x2e3ea6cf100632A4A4B34F26681A6f50347775C9"), // aCoreWBTC
		},
		CoingeckoID: "wrapped-bitcoin",
	},
}

// TokenBySymbol resolves a case-insensitive token symbol.
func TokenBySymbol(symbol string) (types.Token, error) {
	token, ok := SupportedTokens[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return types.Token{}, fmt.Errorf("%w: unsupported token %q", types.ErrConfiguration, symbol)
	}
	return token, nil
}

// TokenAddressOn resolves a token symbol to its contract on a chain.
func TokenAddressOn(symbol string, chain types.ChainID) (common.Address, error) {
	token, err := TokenBySymbol(symbol)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := token.AddressOn(chain)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: token %s is not deployed on chain %d", types.ErrConfiguration, token.Symbol, chain)
	}
	return addr, nil
}
