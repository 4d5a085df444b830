/*

This file contains the executor that turns a StrategyCall into on-chain
transactions: one vault approveToken transaction per approval, confirmed
sequentially, then the executeStrategy main call. The sequence is not
atomic; every status transition is recorded so a crash between the
approvals and the main call leaves an inspectable trail instead of a
silent half-executed strategy.

*/

package vaultexec

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/demether/sxe/internal/chain"
	"github.com/demether/sxe/internal/config"
	"github.com/demether/sxe/internal/logger"
	"github.com/demether/sxe/internal/types"
)

const vaultFragmentJSON = `[
	{"name":"executeStrategy","type":"function","stateMutability":"nonpayable","inputs":[{"name":"target","type":"address"},{"name":"callData","type":"bytes"},{"name":"approvals","type":"tuple[]","components":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}]},{"name":"gasLimit","type":"uint256"}],"outputs":[]},
	{"name":"approveToken","type":"function","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]}
]`

const allowanceFragmentJSON = `[
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	vaultABI     = mustParseABI("vault", vaultFragmentJSON)
	allowanceABI = mustParseABI("erc20 allowance", allowanceFragmentJSON)
)

// StatusRecorder receives every state-machine transition of an execution.
// Implementations persist them; the executor never blocks on a recorder
// error, it logs and moves on.
type StatusRecorder interface {
	RecordStatus(id string, status types.ExecutionStatus, txHash string, execErr error)
}

// nopRecorder discards transitions. Used when no state store is wired.
type nopRecorder struct{}

func (nopRecorder) RecordStatus(string, types.ExecutionStatus, string, error) {}

// Executor signs and submits strategy transactions for one controller key.
// One execution at a time per signer; the nonce sequence is not safe under
// concurrent Execute calls.
type Executor struct {
	key      *ecdsa.PrivateKey
	sender   common.Address
	recorder StatusRecorder
	log      zerolog.Logger
}

// NewExecutor builds an executor from the configured private key.
func NewExecutor(recorder StatusRecorder) (*Executor, error) {
	key, err := crypto.HexToECDSA(config.PrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing controller private key: %w", types.ErrConfiguration, err)
	}
	return NewExecutorWithKey(key, recorder), nil
}

// NewExecutorWithKey builds an executor over an explicit key, mainly for
// tests.
func NewExecutorWithKey(key *ecdsa.PrivateKey, recorder StatusRecorder) *Executor {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Executor{
		key:      key,
		sender:   crypto.PubkeyToAddress(key.PublicKey),
		recorder: recorder,
		log:      logger.GetForComponent("executor"),
	}
}

// Sender is the controller address transactions are signed from.
func (e *Executor) Sender() common.Address {
	return e.sender
}

// Execute runs the full approve-then-call sequence and returns the main
// transaction's hash once it is submitted. It does not await the main
// call's receipt; use ExecuteAndWait for that.
func (e *Executor) Execute(ctx context.Context, backend chain.Backend, chainID types.ChainID, call *types.StrategyCall) (common.Hash, error) {
	return e.run(ctx, backend, chainID, uuid.NewString(), call)
}

// ExecuteWithID is Execute with a caller-supplied execution id, so the
// caller's own receipt row and the recorder's transitions land on the
// same key.
func (e *Executor) ExecuteWithID(ctx context.Context, backend chain.Backend, chainID types.ChainID, id string, call *types.StrategyCall) (common.Hash, error) {
	return e.run(ctx, backend, chainID, id, call)
}

// ExecuteAndWait runs the sequence and then awaits the main call's receipt,
// resolving the terminal CONFIRMED or REVERTED status.
func (e *Executor) ExecuteAndWait(ctx context.Context, backend chain.Backend, chainID types.ChainID, call *types.StrategyCall) (common.Hash, error) {
	id := uuid.NewString()
	txHash, err := e.run(ctx, backend, chainID, id, call)
	if err != nil {
		return common.Hash{}, err
	}

	receipt, err := chain.WaitForReceipt(ctx, backend, txHash)
	if err != nil {
		e.transition(id, types.StatusFailed, txHash.Hex(), err)
		return txHash, err
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		err := fmt.Errorf("%w: strategy call %s reverted on chain", types.ErrExecution, txHash.Hex())
		e.transition(id, types.StatusReverted, txHash.Hex(), err)
		return txHash, err
	}

	e.transition(id, types.StatusConfirmed, txHash.Hex(), nil)
	return txHash, nil
}

func (e *Executor) run(ctx context.Context, backend chain.Backend, chainID types.ChainID, id string, call *types.StrategyCall) (common.Hash, error) {
	log := e.log.With().Str("execution_id", id).Str("target", call.Target.Hex()).Logger()

	e.transition(id, types.StatusPendingApprovals, "", nil)
	log.Info().Int("approvals", len(call.Approvals)).Msg("Starting strategy execution")

	if err := e.submitApprovals(ctx, backend, chainID, id, call, log); err != nil {
		e.transition(id, types.StatusFailed, "", err)
		return common.Hash{}, err
	}
	e.transition(id, types.StatusApprovalsConfirmed, "", nil)

	txHash, err := e.submitMainCall(ctx, backend, chainID, call, log)
	if err != nil {
		e.transition(id, types.StatusFailed, "", err)
		return common.Hash{}, err
	}

	e.transition(id, types.StatusMainCallSubmitted, txHash.Hex(), nil)
	log.Info().Str("tx_hash", txHash.Hex()).Msg("Strategy call submitted")
	return txHash, nil
}

// submitApprovals issues one vault approveToken transaction per approval,
// sequentially, waiting for each receipt. Approvals already covered by the
// current on-chain allowance are skipped.
func (e *Executor) submitApprovals(ctx context.Context, backend chain.Backend, chainID types.ChainID, id string, call *types.StrategyCall, log zerolog.Logger) error {
	for _, approval := range call.Approvals {
		current, err := e.allowance(ctx, backend, approval.Token, call.Vault, call.Target)
		if err != nil {
			log.Warn().Err(err).Str("token", approval.Token.Hex()).Msg("Allowance check failed, approving anyway")
			current = big.NewInt(0)
		}
		if current.Cmp(approval.Amount) >= 0 {
			log.Debug().
				Str("token", approval.Token.Hex()).
				Str("allowance", current.String()).
				Msg("Existing allowance is sufficient, skipping approval")
			continue
		}

		callData, err := vaultABI.Pack("approveToken", approval.Token, call.Target, approval.Amount)
		if err != nil {
			return fmt.Errorf("%w: packing approveToken: %w", types.ErrEncoding, err)
		}

		txHash, err := e.sendTx(ctx, backend, chainID, call.Vault, callData, config.ApprovalGasLimit)
		if err != nil {
			return err
		}
		e.transition(id, types.StatusApprovalsSubmitted, txHash.Hex(), nil)
		log.Info().
			Str("token", approval.Token.Hex()).
			Str("amount", approval.Amount.String()).
			Str("tx_hash", txHash.Hex()).
			Msg("Approval submitted, awaiting receipt")

		receipt, err := chain.WaitForReceipt(ctx, backend, txHash)
		if err != nil {
			return err
		}
		if receipt.Status != gethtypes.ReceiptStatusSuccessful {
			return fmt.Errorf("%w: approval %s reverted for token %s", types.ErrExecution, txHash.Hex(), approval.Token.Hex())
		}
	}
	return nil
}

// submitMainCall wraps the adapter's calldata in executeStrategy and
// broadcasts it.
func (e *Executor) submitMainCall(ctx context.Context, backend chain.Backend, chainID types.ChainID, call *types.StrategyCall, log zerolog.Logger) (common.Hash, error) {
	gasLimit, err := e.resolveGasLimit(ctx, backend, call, log)
	if err != nil {
		return common.Hash{}, err
	}

	callData, err := vaultABI.Pack("executeStrategy",
		call.Target, call.CallData, call.Approvals, new(big.Int).SetUint64(gasLimit))
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: packing executeStrategy: %w", types.ErrEncoding, err)
	}

	return e.sendTx(ctx, backend, chainID, call.Vault, callData, gasLimit)
}

// resolveGasLimit picks the gas for the main call: the adapter's explicit
// limit if set, else a node estimate scaled by the configured adjustment,
// else the static default when estimation fails.
func (e *Executor) resolveGasLimit(ctx context.Context, backend chain.Backend, call *types.StrategyCall, log zerolog.Logger) (uint64, error) {
	if call.GasLimit != 0 {
		return call.GasLimit, nil
	}

	probe, err := vaultABI.Pack("executeStrategy",
		call.Target, call.CallData, call.Approvals, big.NewInt(0))
	if err != nil {
		return 0, fmt.Errorf("%w: packing gas probe: %w", types.ErrEncoding, err)
	}

	estimate, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From: e.sender,
		To:   &call.Vault,
		Data: probe,
	})
	if err != nil {
		log.Warn().Err(err).
			Uint64("fallback", config.DefaultGasLimit).
			Msg("Gas estimation failed, using static default")
		return config.DefaultGasLimit, nil
	}

	adjusted := uint64(float64(estimate) * config.GasAdjustment)
	log.Debug().
		Uint64("estimate", estimate).
		Float64("adjustment", config.GasAdjustment).
		Uint64("gas_limit", adjusted).
		Msg("Gas estimated")
	return adjusted, nil
}

// sendTx signs and broadcasts a legacy transaction with a fresh nonce.
func (e *Executor) sendTx(ctx context.Context, backend chain.Backend, chainID types.ChainID, to common.Address, data []byte, gasLimit uint64) (common.Hash, error) {
	nonce, err := backend.PendingNonceAt(ctx, e.sender)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: fetching nonce: %w", types.ErrExecution, err)
	}
	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: fetching gas price: %w", types.ErrExecution, err)
	}

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signer := gethtypes.LatestSignerForChainID(new(big.Int).SetUint64(chainID.Uint64()))
	signed, err := gethtypes.SignTx(tx, signer, e.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: signing transaction: %w", types.ErrExecution, err)
	}

	if err := backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("%w: broadcasting transaction: %w", types.ErrExecution, err)
	}
	return signed.Hash(), nil
}

// allowance reads the vault's current ERC-20 allowance toward the spender.
func (e *Executor) allowance(ctx context.Context, backend chain.Backend, token, owner, spender common.Address) (*big.Int, error) {
	callData, err := allowanceABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("%w: packing allowance: %w", types.ErrEncoding, err)
	}
	raw, err := backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: callData}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: allowance call: %w", types.ErrExecution, err)
	}
	out, err := allowanceABI.Unpack("allowance", raw)
	if err != nil || len(out) == 0 {
		return nil, fmt.Errorf("%w: decoding allowance: %v", types.ErrEncoding, err)
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected allowance output", types.ErrEncoding)
	}
	return value, nil
}

func (e *Executor) transition(id string, status types.ExecutionStatus, txHash string, execErr error) {
	event := e.log.Info()
	if execErr != nil {
		event = e.log.Error().Err(execErr)
	}
	event.Str("execution_id", id).Str("status", string(status)).Str("tx_hash", txHash).Msg("Execution status")
	e.recorder.RecordStatus(id, status, txHash, execErr)
}
