/*

This file contains the value objects a single strategy execution flows
through: the request coming in from the caller, the fully-formed on-chain
call the executor consumes, and the structured result going back out.
None of these are mutated after construction.

*/

package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Approval is an amount of an ERC-20 token that must be approved from the
// vault to a spender before the main call. Amounts are base (wei-like)
// units, never human-readable.
type Approval struct {
	Token  common.Address `json:"token"`
	Amount *big.Int       `json:"amount"`
}

// StrategyCall is the fully-formed unit of work the executor consumes.
// GasLimit of zero means "estimate on submission".
type StrategyCall struct {
	Vault     common.Address `json:"vault"`
	Target    common.Address `json:"target"`
	CallData  []byte         `json:"call_data"`
	Approvals []Approval     `json:"approvals"`
	GasLimit  uint64         `json:"gas_limit,omitempty"`
}

// ExecutionStatus tracks a strategy call through the executor's state
// machine. Statuses advance monotonically; terminal states are CONFIRMED,
// REVERTED and FAILED.
type ExecutionStatus string

const (
	StatusPendingApprovals   ExecutionStatus = "PENDING_APPROVALS"
	StatusApprovalsSubmitted ExecutionStatus = "APPROVALS_SUBMITTED"
	StatusApprovalsConfirmed ExecutionStatus = "APPROVALS_CONFIRMED"
	StatusMainCallSubmitted  ExecutionStatus = "MAIN_CALL_SUBMITTED"
	StatusConfirmed          ExecutionStatus = "CONFIRMED"
	StatusReverted           ExecutionStatus = "REVERTED"
	StatusFailed             ExecutionStatus = "FAILED"
)

// Request is the facade-level description of a strategy to execute.
// Amount is human-readable (e.g., 100.5 USDC); the engine converts it to
// base units against the token's decimals before dispatch.
type Request struct {
	Protocol  string            `json:"protocol"`
	ChainName string            `json:"chain_name"`
	Token     string            `json:"token_symbol"`
	Amount    string            `json:"amount"` // decimal string, e.g. "100.5"
	Action    string            `json:"action"` // supply | withdraw | swap
	Params    map[string]string `json:"params,omitempty"`
}

// ExecutionResult is the structured outcome returned to the caller. The
// engine never lets raw errors escape; failures are folded into Status and
// Message.
type ExecutionResult struct {
	Status  string `json:"status"` // "success" or "error"
	TxHash  string `json:"tx_hash,omitempty"`
	Message string `json:"message,omitempty"`
}

// ExecutionReceipt records a completed (or failed) execution for the state
// store and the status server.
type ExecutionReceipt struct {
	ID         string          `json:"id"`
	Protocol   Protocol        `json:"protocol"`
	Chain      ChainID         `json:"chain_id"`
	Action     Action          `json:"action"`
	Token      string          `json:"token"`
	AmountBase string          `json:"amount_base"` // base units, decimal string
	Status     ExecutionStatus `json:"status"`
	TxHash     string          `json:"tx_hash,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}
