/*

This file contains the strategy facade. It resolves a caller-level request
(protocol and chain names, token symbol, human-readable amount) into a
concrete adapter dispatch plus an executor invocation, and always returns a
structured result; no raw error or panic ever escapes to the scheduler.

*/

package engine

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/demether/sxe/internal/adapters"
	"github.com/demether/sxe/internal/chain"
	"github.com/demether/sxe/internal/config"
	"github.com/demether/sxe/internal/logger"
	"github.com/demether/sxe/internal/types"
	"github.com/demether/sxe/internal/utils"
	"github.com/demether/sxe/internal/vaultexec"
)

// Backends hands out a connected chain backend per chain id. Satisfied by
// chain.Manager in production and by fakes in tests.
type Backends interface {
	Backend(ctx context.Context, chainID types.ChainID) (chain.Backend, error)
}

// ManagerBackends adapts a chain.Manager to the Backends interface.
type ManagerBackends struct {
	Manager *chain.Manager
}

func (m ManagerBackends) Backend(ctx context.Context, chainID types.ChainID) (chain.Backend, error) {
	return m.Manager.GetClient(ctx, chainID)
}

// Receipts persists execution receipts. Satisfied by the state store; nil
// disables persistence.
type Receipts interface {
	SaveReceipt(receipt types.ExecutionReceipt) error
}

// Engine is the facade callers drive. One Execute call is one strategy;
// concurrent calls against the same vault must be serialized by the caller
// because the signer nonce advances per transaction.
type Engine struct {
	registry *adapters.Registry
	backends Backends
	executor *vaultexec.Executor
	receipts Receipts
	log      zerolog.Logger
}

func New(registry *adapters.Registry, backends Backends, executor *vaultexec.Executor, receipts Receipts) *Engine {
	return &Engine{
		registry: registry,
		backends: backends,
		executor: executor,
		receipts: receipts,
		log:      logger.GetForComponent("engine"),
	}
}

// executionPlan is the fully-resolved form of a request, built before any
// network traffic so configuration failures surface first.
type executionPlan struct {
	protocol types.Protocol
	action   types.Action
	chainID  types.ChainID
	token    types.Token
	amount   *big.Int
	vault    common.Address
	adapter  adapters.ProtocolAdapter
}

// Execute resolves and runs one strategy request end to end.
func (e *Engine) Execute(ctx context.Context, req types.Request) types.ExecutionResult {
	plan, err := e.resolve(req)
	if err != nil {
		return e.errorResult(req, err)
	}

	backend, err := e.backends.Backend(ctx, plan.chainID)
	if err != nil {
		return e.errorResult(req, err)
	}

	bctx := adapters.BuildContext{Chain: plan.chainID, Vault: plan.vault, Caller: backend}

	call, err := e.buildCall(ctx, bctx, plan, req)
	if err != nil {
		return e.errorResult(req, err)
	}

	receipt := types.ExecutionReceipt{
		ID:         uuid.NewString(),
		Protocol:   plan.protocol,
		Chain:      plan.chainID,
		Action:     plan.action,
		Token:      plan.token.Symbol,
		AmountBase: plan.amount.String(),
		Status:     types.StatusPendingApprovals,
		StartedAt:  time.Now().UTC(),
	}
	e.saveReceipt(receipt)

	txHash, err := e.executor.ExecuteWithID(ctx, backend, plan.chainID, receipt.ID, call)
	if err != nil {
		receipt.Status = types.StatusFailed
		receipt.Error = err.Error()
		receipt.FinishedAt = time.Now().UTC()
		e.saveReceipt(receipt)
		return e.errorResult(req, err)
	}

	receipt.Status = types.StatusMainCallSubmitted
	receipt.TxHash = txHash.Hex()
	receipt.FinishedAt = time.Now().UTC()
	e.saveReceipt(receipt)

	e.log.Info().
		Str("protocol", string(plan.protocol)).
		Str("action", string(plan.action)).
		Str("token", plan.token.Symbol).
		Uint64("chain_id", plan.chainID.Uint64()).
		Str("tx_hash", txHash.Hex()).
		Msg("Strategy executed")

	return types.ExecutionResult{
		Status: "success",
		TxHash: txHash.Hex(),
		Message: fmt.Sprintf("%s %s %s on chain %d submitted",
			plan.action, req.Amount, plan.token.Symbol, plan.chainID),
	}
}

// resolve validates every configuration-level input. It performs no network
// calls, so an unknown chain or token fails before an RPC is touched.
func (e *Engine) resolve(req types.Request) (*executionPlan, error) {
	protocol, err := types.ParseProtocol(req.Protocol)
	if err != nil {
		return nil, err
	}
	action, err := types.ParseAction(req.Action)
	if err != nil {
		return nil, err
	}
	chainInfo, err := config.ChainByName(req.ChainName)
	if err != nil {
		return nil, err
	}
	token, err := config.TokenBySymbol(req.Token)
	if err != nil {
		return nil, err
	}
	if _, ok := token.AddressOn(chainInfo.ID); !ok {
		return nil, fmt.Errorf("%w: token %s is not deployed on %s",
			types.ErrConfiguration, token.Symbol, chainInfo.Name)
	}

	amount, err := utils.HumanToBase(req.Amount, token.Decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", types.ErrConfiguration)
	}

	vault, err := config.VaultFor(chainInfo.ID)
	if err != nil {
		return nil, err
	}

	adapter, err := e.registry.Get(protocol)
	if err != nil {
		return nil, err
	}

	return &executionPlan{
		protocol: protocol,
		action:   action,
		chainID:  chainInfo.ID,
		token:    token,
		amount:   amount,
		vault:    vault,
		adapter:  adapter,
	}, nil
}

// buildCall dispatches the resolved plan to the adapter.
func (e *Engine) buildCall(ctx context.Context, bctx adapters.BuildContext, plan *executionPlan, req types.Request) (*types.StrategyCall, error) {
	switch plan.action {
	case types.ActionSupply:
		return plan.adapter.BuildSupply(ctx, bctx, adapters.SupplyRequest{
			Token:  plan.token,
			Amount: plan.amount,
			Params: req.Params,
		})
	case types.ActionWithdraw:
		return plan.adapter.BuildWithdraw(ctx, bctx, adapters.SupplyRequest{
			Token:  plan.token,
			Amount: plan.amount,
			Params: req.Params,
		})
	case types.ActionSwap:
		swapReq, err := e.swapRequest(plan, req)
		if err != nil {
			return nil, err
		}
		return plan.adapter.BuildSwap(ctx, bctx, swapReq)
	default:
		return nil, fmt.Errorf("%w: action %s has no dispatch", types.ErrConfiguration, plan.action)
	}
}

// swapRequest resolves the destination token and slippage for a swap. The
// request's token is the source side.
func (e *Engine) swapRequest(plan *executionPlan, req types.Request) (adapters.SwapRequest, error) {
	dstSymbol := ""
	for _, key := range []string{"dst_token", "to_token", "dst"} {
		if v, ok := req.Params[key]; ok && v != "" {
			dstSymbol = v
			break
		}
	}
	if dstSymbol == "" {
		return adapters.SwapRequest{}, fmt.Errorf("%w: swap requires a dst_token parameter", types.ErrConfiguration)
	}

	dstToken, err := config.TokenBySymbol(dstSymbol)
	if err != nil {
		return adapters.SwapRequest{}, err
	}
	if _, ok := dstToken.AddressOn(plan.chainID); !ok {
		return adapters.SwapRequest{}, fmt.Errorf("%w: token %s is not deployed on chain %d",
			types.ErrConfiguration, dstToken.Symbol, plan.chainID)
	}

	slippage := config.DefaultSlippage
	if raw, ok := req.Params["slippage"]; ok && raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed >= 1 {
			return adapters.SwapRequest{}, fmt.Errorf("%w: slippage %q must be a fraction in [0, 1)",
				types.ErrConfiguration, raw)
		}
		slippage = parsed
	}

	return adapters.SwapRequest{
		SrcToken: plan.token,
		DstToken: dstToken,
		Amount:   plan.amount,
		Slippage: slippage,
		Params:   req.Params,
	}, nil
}

// saveReceipt persists a receipt if a store is wired. A store failure is
// logged, never surfaced; the strategy itself already happened on chain.
func (e *Engine) saveReceipt(receipt types.ExecutionReceipt) {
	if e.receipts == nil {
		return
	}
	if err := e.receipts.SaveReceipt(receipt); err != nil {
		e.log.Warn().Err(err).Str("execution_id", receipt.ID).Msg("Failed to persist execution receipt")
	}
}

// errorResult folds a failure into the structured result the caller sees.
func (e *Engine) errorResult(req types.Request, err error) types.ExecutionResult {
	e.log.Error().Err(err).
		Str("protocol", req.Protocol).
		Str("chain", req.ChainName).
		Str("token", req.Token).
		Str("action", req.Action).
		Msg("Strategy request failed")

	return types.ExecutionResult{
		Status:  "error",
		Message: err.Error(),
	}
}

// BestYield compares the token's supply APY across every protocol and chain
// it is deployed on and returns the highest snapshot. Per-protocol failures
// are skipped, not fatal; an error means no protocol produced a snapshot.
func (e *Engine) BestYield(ctx context.Context, tokenSymbol string) (*types.YieldSnapshot, error) {
	token, err := config.TokenBySymbol(tokenSymbol)
	if err != nil {
		return nil, err
	}

	var best *types.YieldSnapshot
	for chainID := range token.Addresses {
		backend, err := e.backends.Backend(ctx, chainID)
		if err != nil {
			e.log.Warn().Err(err).Uint64("chain_id", chainID.Uint64()).Msg("Skipping unreachable chain")
			continue
		}
		bctx := adapters.BuildContext{Chain: chainID, Caller: backend}

		for _, protocol := range e.registry.Protocols() {
			adapter, err := e.registry.Get(protocol)
			if err != nil {
				continue
			}
			snapshot, err := adapter.GetYield(ctx, bctx, token)
			if err != nil {
				e.log.Debug().Err(err).
					Str("protocol", string(protocol)).
					Uint64("chain_id", chainID.Uint64()).
					Msg("No yield from protocol")
				continue
			}
			if best == nil || snapshot.SupplyAPY > best.SupplyAPY {
				best = snapshot
			}
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: no protocol reported a yield for %s", types.ErrQuote, tokenSymbol)
	}
	return best, nil
}
