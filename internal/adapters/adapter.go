/*

This file contains the protocol adapter interface and the registry used for
dispatch. Adapters translate protocol intents into vault strategy calls;
they never sign or broadcast anything themselves.

*/

package adapters

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/demether/sxe/internal/chain"
	"github.com/demether/sxe/internal/types"
)

// BuildContext carries the per-request environment an adapter needs: which
// chain it is encoding for, the vault the call executes through, and a
// read-only node connection for on-chain resolution.
type BuildContext struct {
	Chain  types.ChainID
	Vault  common.Address
	Caller chain.Caller
}

// SupplyRequest describes a supply or withdraw intent. Amount is base units.
// Params carries protocol-specific selectors such as a Morpho market id or
// MetaMorpho vault address.
type SupplyRequest struct {
	Token  types.Token
	Amount *big.Int
	Params map[string]string
}

// SwapRequest describes a swap intent. Slippage is a fraction in [0, 1).
type SwapRequest struct {
	SrcToken types.Token
	DstToken types.Token
	Amount   *big.Int
	Slippage float64
	Params   map[string]string
}

// ProtocolAdapter turns intents into fully-formed strategy calls. Not every
// protocol supports every operation; unsupported ones return an error
// wrapping types.ErrUnsupported.
type ProtocolAdapter interface {
	Protocol() types.Protocol
	BuildSupply(ctx context.Context, bctx BuildContext, req SupplyRequest) (*types.StrategyCall, error)
	BuildWithdraw(ctx context.Context, bctx BuildContext, req SupplyRequest) (*types.StrategyCall, error)
	BuildSwap(ctx context.Context, bctx BuildContext, req SwapRequest) (*types.StrategyCall, error)
	GetYield(ctx context.Context, bctx BuildContext, token types.Token) (*types.YieldSnapshot, error)
}

// errUnsupportedOp is the shared helper for capability misses.
func errUnsupportedOp(p types.Protocol, op string) error {
	return fmt.Errorf("%w: %s does not support %s", types.ErrUnsupported, p, op)
}

// Registry holds the adapter for each protocol. Dispatch is keyed on the
// closed Protocol enum so an unknown protocol can never reach an adapter.
type Registry struct {
	adapters map[types.Protocol]ProtocolAdapter
}

// NewRegistry builds a registry, rejecting duplicate registrations.
func NewRegistry(adapters ...ProtocolAdapter) (*Registry, error) {
	reg := &Registry{adapters: make(map[types.Protocol]ProtocolAdapter, len(adapters))}
	for _, adapter := range adapters {
		if _, exists := reg.adapters[adapter.Protocol()]; exists {
			return nil, fmt.Errorf("%w: duplicate adapter for %s", types.ErrConfiguration, adapter.Protocol())
		}
		reg.adapters[adapter.Protocol()] = adapter
	}
	return reg, nil
}

// Get returns the adapter for a protocol.
func (r *Registry) Get(p types.Protocol) (ProtocolAdapter, error) {
	adapter, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter registered for %s", types.ErrConfiguration, p)
	}
	return adapter, nil
}

// Protocols lists the registered protocols.
func (r *Registry) Protocols() []types.Protocol {
	out := make([]types.Protocol, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	return out
}
