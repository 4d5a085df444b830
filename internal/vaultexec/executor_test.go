package vaultexec

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demether/sxe/internal/config"
	"github.com/demether/sxe/internal/logger"
	"github.com/demether/sxe/internal/types"
)

func TestMain(m *testing.M) {
	logger.Initialize("error")
	config.ApprovalGasLimit = 200_000
	config.DefaultGasLimit = 500_000
	config.GasAdjustment = 1.15
	os.Exit(m.Run())
}

var (
	testKey, _ = crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	vaultAddr  = common.HexToAddress("0x89a7F138951258087dbc0ADFf8fDD6b09B3584c3")
	targetAddr = common.HexToAddress("0x794a61358D6845594F94dc1DB02A252b5b4814aD")
	tokenAddr  = common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
)

// fakeBackend serves canned chain responses and records broadcast
// transactions.
type fakeBackend struct {
	allowance     *big.Int
	estimate      uint64
	estimateErr   error
	receiptStatus uint64

	sent          []*gethtypes.Transaction
	estimateCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		allowance:     big.NewInt(0),
		estimate:      200_000,
		receiptStatus: gethtypes.ReceiptStatusSuccessful,
	}
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if len(msg.Data) >= 4 {
		return common.LeftPadBytes(f.allowance.Bytes(), 32), nil
	}
	return nil, fmt.Errorf("unexpected call")
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.estimateCalls++
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return f.estimate, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	return &gethtypes.Receipt{Status: f.receiptStatus, TxHash: txHash}, nil
}

// recordingRecorder captures the status transitions in order.
type recordingRecorder struct {
	statuses []types.ExecutionStatus
}

func (r *recordingRecorder) RecordStatus(id string, status types.ExecutionStatus, txHash string, execErr error) {
	r.statuses = append(r.statuses, status)
}

func strategyCall(gasLimit uint64) *types.StrategyCall {
	return &types.StrategyCall{
		Vault:    vaultAddr,
		Target:   targetAddr,
		CallData: []byte{0x01, 0x02, 0x03, 0x04},
		Approvals: []types.Approval{
			{Token: tokenAddr, Amount: big.NewInt(100_000_000)},
		},
		GasLimit: gasLimit,
	}
}

func TestExecute_ApproveThenCall(t *testing.T) {
	backend := newFakeBackend()
	recorder := &recordingRecorder{}
	executor := NewExecutorWithKey(testKey, recorder)
	call := strategyCall(0)

	txHash, err := executor.Execute(context.Background(), backend, types.ChainArbitrum, call)
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, txHash)

	require.Len(t, backend.sent, 2)

	// first transaction is the vault approval for the exact amount
	approveTx := backend.sent[0]
	assert.Equal(t, vaultAddr, *approveTx.To())
	assert.Equal(t, uint64(200_000), approveTx.Gas())
	expectedApprove, err := vaultABI.Pack("approveToken", tokenAddr, targetAddr, big.NewInt(100_000_000))
	require.NoError(t, err)
	assert.Equal(t, expectedApprove, approveTx.Data())

	// second wraps the adapter calldata in executeStrategy with adjusted gas
	mainTx := backend.sent[1]
	assert.Equal(t, vaultAddr, *mainTx.To())
	assert.Equal(t, uint64(230_000), mainTx.Gas()) // 200_000 estimate x 1.15
	expectedMain, err := vaultABI.Pack("executeStrategy",
		targetAddr, call.CallData, call.Approvals, big.NewInt(230_000))
	require.NoError(t, err)
	assert.Equal(t, expectedMain, mainTx.Data())
	assert.Equal(t, mainTx.Hash(), txHash)

	// nonces advance sequentially
	assert.Equal(t, uint64(0), approveTx.Nonce())
	assert.Equal(t, uint64(1), mainTx.Nonce())

	assert.Equal(t, []types.ExecutionStatus{
		types.StatusPendingApprovals,
		types.StatusApprovalsSubmitted,
		types.StatusApprovalsConfirmed,
		types.StatusMainCallSubmitted,
	}, recorder.statuses)
}

func TestExecute_SkipsSufficientAllowance(t *testing.T) {
	backend := newFakeBackend()
	backend.allowance = big.NewInt(200_000_000)
	executor := NewExecutorWithKey(testKey, nil)

	_, err := executor.Execute(context.Background(), backend, types.ChainArbitrum, strategyCall(0))
	require.NoError(t, err)

	// only the main call went out
	require.Len(t, backend.sent, 1)
	assert.Equal(t, vaultABI.Methods["executeStrategy"].ID, backend.sent[0].Data()[:4])
}

func TestExecute_ExplicitGasLimitSkipsEstimation(t *testing.T) {
	backend := newFakeBackend()
	executor := NewExecutorWithKey(testKey, nil)

	_, err := executor.Execute(context.Background(), backend, types.ChainCore, strategyCall(1_500_000))
	require.NoError(t, err)

	require.Len(t, backend.sent, 2)
	assert.Equal(t, uint64(1_500_000), backend.sent[1].Gas())
	assert.Zero(t, backend.estimateCalls)
}

func TestExecute_EstimationFailureFallsBack(t *testing.T) {
	backend := newFakeBackend()
	backend.estimateErr = fmt.Errorf("node refused")
	executor := NewExecutorWithKey(testKey, nil)

	_, err := executor.Execute(context.Background(), backend, types.ChainArbitrum, strategyCall(0))
	require.NoError(t, err)

	require.Len(t, backend.sent, 2)
	assert.Equal(t, uint64(500_000), backend.sent[1].Gas())
}

func TestExecute_ApprovalRevertStops(t *testing.T) {
	backend := newFakeBackend()
	backend.receiptStatus = gethtypes.ReceiptStatusFailed
	recorder := &recordingRecorder{}
	executor := NewExecutorWithKey(testKey, recorder)

	_, err := executor.Execute(context.Background(), backend, types.ChainArbitrum, strategyCall(0))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrExecution)

	// the main call never went out
	require.Len(t, backend.sent, 1)
	assert.Equal(t, types.StatusFailed, recorder.statuses[len(recorder.statuses)-1])
}

func TestExecuteAndWait_Confirmed(t *testing.T) {
	backend := newFakeBackend()
	recorder := &recordingRecorder{}
	executor := NewExecutorWithKey(testKey, recorder)

	_, err := executor.ExecuteAndWait(context.Background(), backend, types.ChainArbitrum, strategyCall(0))
	require.NoError(t, err)
	assert.Equal(t, types.StatusConfirmed, recorder.statuses[len(recorder.statuses)-1])
}

func TestSenderDerivedFromKey(t *testing.T) {
	executor := NewExecutorWithKey(testKey, nil)
	assert.Equal(t, crypto.PubkeyToAddress(testKey.PublicKey), executor.Sender())
}
