package types

import "time"

// YieldSnapshot is the normalized comparison unit across protocols with
// incompatible rate encodings. Computed on demand from on-chain reserve
// data; persistence is the state store's concern, not the adapters'.
type YieldSnapshot struct {
	Protocol        Protocol  `json:"protocol"`
	Chain           ChainID   `json:"chain_id"`
	Token           string    `json:"token"`
	SupplyAPY       float64   `json:"supply_apy"`       // percentage, e.g. 5.25
	BorrowAPY       float64   `json:"borrow_apy"`       // percentage
	UtilizationRate float64   `json:"utilization_rate"` // percentage
	AsOf            time.Time `json:"as_of"`
}
