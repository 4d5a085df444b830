package engine

import (
	"context"
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demether/sxe/internal/adapters"
	"github.com/demether/sxe/internal/chain"
	"github.com/demether/sxe/internal/config"
	"github.com/demether/sxe/internal/logger"
	"github.com/demether/sxe/internal/types"
	"github.com/demether/sxe/internal/vaultexec"
)

var testVault = common.HexToAddress("0x89a7F138951258087dbc0ADFf8fDD6b09B3584c3")

func TestMain(m *testing.M) {
	logger.Initialize("error")
	config.VaultAddresses = map[types.ChainID]common.Address{
		types.ChainArbitrum: testVault,
		types.ChainCore:     testVault,
	}
	config.ApprovalGasLimit = 200_000
	config.DefaultGasLimit = 500_000
	config.GasAdjustment = 1.15
	config.DefaultSlippage = 0.03
	os.Exit(m.Run())
}

// fakeBackend answers every view call with a zero word and confirms every
// transaction immediately.
type fakeBackend struct {
	sent []*gethtypes.Transaction
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return make([]byte, 32), nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 150_000, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	return &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful, TxHash: txHash}, nil
}

// fakeBackends counts how many times a backend was requested, so tests can
// assert configuration errors surface before any network access.
type fakeBackends struct {
	backend *fakeBackend
	calls   int
}

func (f *fakeBackends) Backend(ctx context.Context, chainID types.ChainID) (chain.Backend, error) {
	f.calls++
	return f.backend, nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeBackends) {
	t.Helper()

	registry, err := adapters.NewRegistry(adapters.NewAaveAdapter(), adapters.NewMorphoAdapter())
	require.NoError(t, err)

	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)

	backends := &fakeBackends{backend: &fakeBackend{}}
	return New(registry, backends, vaultexec.NewExecutorWithKey(key, nil), nil), backends
}

// memoryReceipts captures every receipt write in order.
type memoryReceipts struct {
	saved []types.ExecutionReceipt
}

func (m *memoryReceipts) SaveReceipt(receipt types.ExecutionReceipt) error {
	m.saved = append(m.saved, receipt)
	return nil
}

func TestExecute_ReceiptsRecorded(t *testing.T) {
	registry, err := adapters.NewRegistry(adapters.NewAaveAdapter())
	require.NoError(t, err)

	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)

	receipts := &memoryReceipts{}
	backends := &fakeBackends{backend: &fakeBackend{}}
	engine := New(registry, backends, vaultexec.NewExecutorWithKey(key, nil), receipts)

	result := engine.Execute(context.Background(), types.Request{
		Protocol:  "aave",
		ChainName: "arbitrum",
		Token:     "USDC",
		Amount:    "25",
		Action:    "supply",
	})
	require.Equal(t, "success", result.Status, result.Message)

	// one write when the strategy starts, one when it settles
	require.Len(t, receipts.saved, 2)
	assert.Equal(t, receipts.saved[0].ID, receipts.saved[1].ID)
	assert.Equal(t, types.StatusPendingApprovals, receipts.saved[0].Status)
	assert.Equal(t, types.StatusMainCallSubmitted, receipts.saved[1].Status)
	assert.Equal(t, "25000000", receipts.saved[1].AmountBase)
	assert.Equal(t, result.TxHash, receipts.saved[1].TxHash)
}

func TestExecute_SupplyHappyPath(t *testing.T) {
	engine, backends := newTestEngine(t)

	result := engine.Execute(context.Background(), types.Request{
		Protocol:  "aave",
		ChainName: "arbitrum",
		Token:     "USDC",
		Amount:    "100.5",
		Action:    "supply",
	})

	require.Equal(t, "success", result.Status, result.Message)
	assert.NotEmpty(t, result.TxHash)

	// approval then main call
	require.Len(t, backends.backend.sent, 2)

	// human 100.5 USDC became 100_500_000 base units in the approval
	approveData := backends.backend.sent[0].Data()
	assert.Equal(t, crypto.Keccak256([]byte("approveToken(address,address,uint256)"))[:4], approveData[:4])
	amount := new(big.Int).SetBytes(approveData[len(approveData)-32:])
	assert.Equal(t, big.NewInt(100_500_000), amount)
}

func TestExecute_UnknownChainFailsBeforeNetwork(t *testing.T) {
	engine, backends := newTestEngine(t)

	result := engine.Execute(context.Background(), types.Request{
		Protocol:  "aave",
		ChainName: "Mars",
		Token:     "USDC",
		Amount:    "100",
		Action:    "supply",
	})

	assert.Equal(t, "error", result.Status)
	assert.Empty(t, result.TxHash)
	assert.Zero(t, backends.calls) // no RPC touched
}

func TestExecute_UnknownToken(t *testing.T) {
	engine, backends := newTestEngine(t)

	result := engine.Execute(context.Background(), types.Request{
		Protocol:  "aave",
		ChainName: "arbitrum",
		Token:     "DOGE",
		Amount:    "100",
		Action:    "supply",
	})

	assert.Equal(t, "error", result.Status)
	assert.Zero(t, backends.calls)
}

func TestExecute_TokenNotOnChain(t *testing.T) {
	engine, backends := newTestEngine(t)

	result := engine.Execute(context.Background(), types.Request{
		Protocol:  "morpho",
		ChainName: "arbitrum",
		Token:     "AUSD", // Katana only
		Amount:    "50",
		Action:    "supply",
	})

	assert.Equal(t, "error", result.Status)
	assert.Zero(t, backends.calls)
}

func TestExecute_ZeroAmountRejected(t *testing.T) {
	engine, _ := newTestEngine(t)

	result := engine.Execute(context.Background(), types.Request{
		Protocol:  "aave",
		ChainName: "arbitrum",
		Token:     "USDC",
		Amount:    "0",
		Action:    "supply",
	})

	assert.Equal(t, "error", result.Status)
}

func TestExecute_SwapNeedsDestination(t *testing.T) {
	engine, _ := newTestEngine(t)

	result := engine.Execute(context.Background(), types.Request{
		Protocol:  "aave",
		ChainName: "arbitrum",
		Token:     "USDC",
		Amount:    "10",
		Action:    "swap",
	})

	assert.Equal(t, "error", result.Status)
	assert.Contains(t, result.Message, "dst_token")
}

func TestExecute_BadSlippageRejected(t *testing.T) {
	engine, _ := newTestEngine(t)

	result := engine.Execute(context.Background(), types.Request{
		Protocol:  "aave",
		ChainName: "arbitrum",
		Token:     "USDC",
		Amount:    "10",
		Action:    "swap",
		Params:    map[string]string{"dst_token": "USDT", "slippage": "1.5"},
	})

	assert.Equal(t, "error", result.Status)
	assert.Contains(t, result.Message, "slippage")
}
