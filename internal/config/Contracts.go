/*

This file contains the protocol contract addresses per chain. These are
deployment constants; anything operator-tunable lives in General.go.

*/

package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/demether/sxe/internal/types"
)

// Aave V3 pool deployments (Colend on Core is an Aave V3 fork with the
// same Pool interface).
var AavePoolAddresses = map[types.ChainID]common.Address{
	types.ChainArbitrum: common.HexToAddress("0x794a61358D6845594F94dc1DB02A252b5b4814aD"),
	types.ChainCore:     common.HexToAddress("0x0CEa9F0F49F30d376390e480ba32f903B43B19C5"),
}

// AaveDataProviderAddresses holds the AaveProtocolDataProvider per chain.
// Core has no provider with a decodable tuple; its yields come from a raw
// Pool call instead (see the reserve layout table).
var AaveDataProviderAddresses = map[types.ChainID]common.Address{
	types.ChainArbitrum: common.HexToAddress("0x69FA688f1Dc47d4B5d8029D5a35FB7a548310654"),
}

// MorphoSingletonAddress is the Morpho Blue singleton, deployed at the same
// vanity address on every supported chain.
var MorphoSingletonAddress = common.HexToAddress("0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb")

// MorphoChains lists the chains carrying a Morpho Blue deployment.
var MorphoChains = map[types.ChainID]bool{
	1:                   true,
	8453:                true,
	types.ChainArbitrum: true,
	types.ChainKatana:   true,
}

// AkkaRouterAddresses holds the Akka aggregator router per chain.
var AkkaRouterAddresses = map[types.ChainID]common.Address{
	types.ChainCore: common.HexToAddress("0x7C5Af181D9e9e91B15660830B52f7B7076Be0d64"),
}

// UniswapUniversalRouterAddresses holds the Uniswap Universal Router per chain.
var UniswapUniversalRouterAddresses = map[types.ChainID]common.Address{
	types.ChainArbitrum: common.HexToAddress("0xA51afAFe0263b40EdaEf0Df8781eA9aa03E381a3"),
	types.ChainCore:     common.HexToAddress("0x3429CF954b5A6993512e113614399b1A89269435"),
}

// ContractFor looks up a per-chain deployment table, wrapping misses in a
// configuration error so they surface before any network traffic.
func ContractFor(table map[types.ChainID]common.Address, chain types.ChainID, what string) (common.Address, error) {
	addr, ok := table[chain]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s is not deployed on chain %d", types.ErrConfiguration, what, chain)
	}
	return addr, nil
}
