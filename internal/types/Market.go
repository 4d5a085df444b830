/*

Morpho Blue market identification. A market is fully described by its
MarketParams tuple; the 32-byte market id is keccak256 of the ABI-encoded
tuple, derivable in both directions (params -> id locally, id -> params via
the singleton's idToMarketParams view).

*/

package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MarketParams identifies a Morpho Blue market.
type MarketParams struct {
	LoanToken       common.Address `json:"loan_token" abi:"loanToken"`
	CollateralToken common.Address `json:"collateral_token" abi:"collateralToken"`
	Oracle          common.Address `json:"oracle" abi:"oracle"`
	IRM             common.Address `json:"irm" abi:"irm"`
	LLTV            *big.Int       `json:"lltv" abi:"lltv"`
}

// ID derives the market id: keccak256(abi.encode(params)). Each component
// occupies a full 32-byte word, so the encoding is five padded words.
func (m MarketParams) ID() common.Hash {
	buf := make([]byte, 0, 5*32)
	buf = append(buf, common.LeftPadBytes(m.LoanToken.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(m.CollateralToken.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(m.Oracle.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(m.IRM.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(m.LLTV.Bytes(), 32)...)
	return common.BytesToHash(crypto.Keccak256(buf))
}

// IsZero reports whether the params are the empty tuple, which is what the
// singleton returns for an unknown market id.
func (m MarketParams) IsZero() bool {
	zero := common.Address{}
	return m.LoanToken == zero && m.CollateralToken == zero && m.Oracle == zero && m.IRM == zero
}

// MarketState mirrors the Morpho singleton's market(id) view output.
type MarketState struct {
	TotalSupplyAssets *big.Int `json:"total_supply_assets" abi:"totalSupplyAssets"`
	TotalSupplyShares *big.Int `json:"total_supply_shares" abi:"totalSupplyShares"`
	TotalBorrowAssets *big.Int `json:"total_borrow_assets" abi:"totalBorrowAssets"`
	TotalBorrowShares *big.Int `json:"total_borrow_shares" abi:"totalBorrowShares"`
	LastUpdate        *big.Int `json:"last_update" abi:"lastUpdate"`
	Fee               *big.Int `json:"fee" abi:"fee"`
}
