/*

This is a custom type for ERC-20 tokens which carries the per-chain address
tables the adapters resolve against.

*/

package types

import "github.com/ethereum/go-ethereum/common"

type Token struct {
	Symbol      string                     `json:"symbol"`                 // e.g., "USDC"
	Name        string                     `json:"name"`                   // e.g., "USD Coin"
	Decimals    int                        `json:"decimals"`               // e.g., 6
	Addresses   map[ChainID]common.Address `json:"addresses"`              // token contract per chain
	ATokens     map[ChainID]common.Address `json:"atokens,omitempty"`      // Aave receipt token per chain, if listed
	CoingeckoID string                     `json:"coingecko_id,omitempty"` // external price reference
}

// AddressOn returns the token's contract address on the given chain.
func (t Token) AddressOn(chain ChainID) (common.Address, bool) {
	addr, ok := t.Addresses[chain]
	return addr, ok
}

// ATokenOn returns the Aave receipt token address on the given chain.
func (t Token) ATokenOn(chain ChainID) (common.Address, bool) {
	addr, ok := t.ATokens[chain]
	return addr, ok
}
