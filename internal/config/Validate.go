/*

This file contains the startup cross-checks over the static tables. Every
table is keyed by chain id; a token or contract referencing a chain the
engine does not support is a wiring mistake that must kill the process at
boot, not surface as a runtime lookup miss.

*/

package config

import (
	"fmt"

	"github.com/demether/sxe/internal/types"
)

// ValidateStartup cross-checks the static tables against the chain table
// and the loaded environment. Call after LoadConfig; any error is fatal.
func ValidateStartup() error {
	supported := make(map[types.ChainID]bool, len(SupportedChains))
	for _, chain := range SupportedChains {
		supported[chain.ID] = true
	}

	for _, chain := range SupportedChains {
		if url, ok := RPCEndpoints[chain.ID]; !ok || url == "" {
			return fmt.Errorf("%w: chain %s has no RPC endpoint", types.ErrConfiguration, chain.Name)
		}
	}

	for symbol, token := range SupportedTokens {
		if token.Decimals < 0 || token.Decimals > 18 {
			return fmt.Errorf("%w: token %s has invalid decimals %d", types.ErrConfiguration, symbol, token.Decimals)
		}
		if len(token.Addresses) == 0 {
			return fmt.Errorf("%w: token %s has no chain deployments", types.ErrConfiguration, symbol)
		}
		for chain := range token.Addresses {
			if !supported[chain] {
				return fmt.Errorf("%w: token %s references unsupported chain %d", types.ErrConfiguration, symbol, chain)
			}
		}
		for chain := range token.ATokens {
			if !supported[chain] {
				return fmt.Errorf("%w: token %s aToken references unsupported chain %d", types.ErrConfiguration, symbol, chain)
			}
		}
	}

	contractTables := map[string]map[types.ChainID]struct{}{
		"aave pool":                keysOf(AavePoolAddresses),
		"aave data provider":       keysOf(AaveDataProviderAddresses),
		"akka router":              keysOf(AkkaRouterAddresses),
		"uniswap universal router": keysOf(UniswapUniversalRouterAddresses),
	}

	for name, table := range contractTables {
		for chain := range table {
			if !supported[chain] {
				return fmt.Errorf("%w: %s table references unsupported chain %d", types.ErrConfiguration, name, chain)
			}
		}
	}

	for chain := range VaultAddresses {
		if !supported[chain] {
			return fmt.Errorf("%w: vault address references unsupported chain %d", types.ErrConfiguration, chain)
		}
	}

	return nil
}

func keysOf[V any](table map[types.ChainID]V) map[types.ChainID]struct{} {
	keys := make(map[types.ChainID]struct{}, len(table))
	for chain := range table {
		keys[chain] = struct{}{}
	}
	return keys
}
