/*

This file contains the static chain table. Chain names are the
caller-facing identifiers; resolution to a chain id happens here and
nowhere else.

*/

package config

import (
	"fmt"
	"strings"

	"github.com/demether/sxe/internal/types"
)

// Chain describes one supported EVM network.
type Chain struct {
	ID           types.ChainID
	Name         string
	DefaultRPC   string
	NativeSymbol string
}

// SupportedChains lists every network the engine can target.
var SupportedChains = []Chain{
	{
		ID:           types.ChainArbitrum,
		Name:         "Arbitrum",
		DefaultRPC:   "https://arb1.arbitrum.io/rpc",
		NativeSymbol: "ETH",
	},
	{
		ID:           types.ChainCore,
		Name:         "Core",
		DefaultRPC:   "https://rpc.coredao.org",
		NativeSymbol: "CORE",
	},
	{
		ID:           types.ChainKatana,
		Name:         "Katana",
		DefaultRPC:   "https://rpc.katana.network",
		NativeSymbol: "ETH",
	},
}

// ChainByName resolves a case-insensitive chain name to its entry.
func ChainByName(name string) (Chain, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, chain := range SupportedChains {
		if strings.ToLower(chain.Name) == needle {
			return chain, nil
		}
	}
	return Chain{}, fmt.Errorf("%w: unknown chain %q", types.ErrConfiguration, name)
}

// ChainByID resolves a chain id to its entry.
func ChainByID(id types.ChainID) (Chain, error) {
	for _, chain := range SupportedChains {
		if chain.ID == id {
			return chain, nil
		}
	}
	return Chain{}, fmt.Errorf("%w: unsupported chain id %d", types.ErrConfiguration, id)
}
