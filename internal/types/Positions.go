/*

This file contains the types for positions which carry the state needed to
report what the vault currently holds across protocols.

*/

package types

import (
	"math/big"
	"time"
)

// ProtocolPosition is a single deposit held by the vault in a lending
// protocol or vault. Balance is base units of the underlying token; for
// Aave this is the aToken balance, for ERC-4626 vaults it is the asset
// value of the vault's shares.
type ProtocolPosition struct {
	Protocol       Protocol  `json:"protocol"`
	Chain          ChainID   `json:"chain_id"`
	Token          string    `json:"token"`
	Balance        *big.Int  `json:"balance"`
	Shares         *big.Int  `json:"shares,omitempty"`
	EstimatedValue float64   `json:"estimated_value,omitempty"`
	AsOf           time.Time `json:"as_of"`
}

// TokenPosition is the vault just holding a plain ERC-20 balance.
type TokenPosition struct {
	Symbol         string   `json:"symbol"`
	Chain          ChainID  `json:"chain_id"`
	Amount         *big.Int `json:"amount"` // base units
	EstimatedValue float64  `json:"estimated_value,omitempty"`
}
