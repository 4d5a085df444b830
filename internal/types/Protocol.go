/*

Closed enumerations for the protocols and chains the engine can drive.
Dispatch everywhere is keyed on these types, never on free-form strings.

*/

package types

import (
	"fmt"
	"strings"
)

// Protocol identifies a supported money market or DEX.
type Protocol string

const (
	ProtocolAave      Protocol = "aave_v3"
	ProtocolMorpho    Protocol = "morpho"
	ProtocolAkka      Protocol = "akka"
	ProtocolUniswapV3 Protocol = "uniswap_v3"
	ProtocolSushi     Protocol = "sushi"
)

// AllProtocols lists every protocol variant. Used by the registry to verify
// complete adapter coverage at startup.
var AllProtocols = []Protocol{
	ProtocolAave,
	ProtocolMorpho,
	ProtocolAkka,
	ProtocolUniswapV3,
	ProtocolSushi,
}

// ParseProtocol maps a caller-supplied protocol name to its variant.
func ParseProtocol(name string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "aave", "aave_v3", "aavev3", "colend":
		return ProtocolAave, nil
	case "morpho", "morpho_blue", "metamorpho":
		return ProtocolMorpho, nil
	case "akka":
		return ProtocolAkka, nil
	case "uniswap", "uniswap_v3", "uniswapv3":
		return ProtocolUniswapV3, nil
	case "sushi", "sushiswap":
		return ProtocolSushi, nil
	default:
		return "", fmt.Errorf("%w: unknown protocol %q", ErrConfiguration, name)
	}
}

func (p Protocol) String() string {
	return string(p)
}

// ChainID is an EVM chain identifier.
type ChainID uint64

const (
	ChainArbitrum ChainID = 42161
	ChainCore     ChainID = 1116
	ChainKatana   ChainID = 747474
)

func (c ChainID) Uint64() uint64 {
	return uint64(c)
}

// Action is the operation requested against a protocol.
type Action string

const (
	ActionSupply   Action = "supply"
	ActionWithdraw Action = "withdraw"
	ActionSwap     Action = "swap"
)

// ParseAction validates a caller-supplied action string.
func ParseAction(name string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "supply", "deposit", "lend":
		return ActionSupply, nil
	case "withdraw":
		return ActionWithdraw, nil
	case "swap":
		return ActionSwap, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrConfiguration, name)
	}
}
