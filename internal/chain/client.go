/*

This file contains the per-chain JSON-RPC client management. Adapters only
need view calls and the executor needs the transaction surface, so both are
expressed as narrow interfaces satisfied by ethclient.Client and by fakes
in tests.

*/

package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/demether/sxe/internal/logger"
	"github.com/demether/sxe/internal/types"
)

var chainLogger = logger.GetForComponent("chain")

// Caller is the read-only surface adapters use for view calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Backend adds the transaction surface the executor needs on top of Caller.
type Backend interface {
	Caller
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// Client binds an ethclient connection to its chain id.
type Client struct {
	*ethclient.Client
	Chain types.ChainID
}

// Manager hands out one connected client per chain, dialing lazily on
// first use.
type Manager struct {
	endpoints map[types.ChainID]string

	mu      sync.Mutex
	clients map[types.ChainID]*Client
}

// NewManager builds a manager over the configured RPC endpoints.
func NewManager(endpoints map[types.ChainID]string) *Manager {
	return &Manager{
		endpoints: endpoints,
		clients:   make(map[types.ChainID]*Client),
	}
}

// GetClient returns the connected client for a chain, dialing if needed.
// A chain without a configured endpoint is a configuration error.
func (m *Manager) GetClient(ctx context.Context, chain types.ChainID) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, ok := m.clients[chain]; ok {
		return client, nil
	}

	endpoint, ok := m.endpoints[chain]
	if !ok || endpoint == "" {
		return nil, fmt.Errorf("%w: no RPC endpoint configured for chain %d", types.ErrConfiguration, chain)
	}

	ec, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing chain %d: %w", types.ErrExecution, chain, err)
	}

	chainLogger.Info().
		Uint64("chain_id", chain.Uint64()).
		Str("endpoint", endpoint).
		Msg("Connected to RPC endpoint")

	client := &Client{Client: ec, Chain: chain}
	m.clients[chain] = client
	return client, nil
}

// Close disconnects every dialed client.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for chain, client := range m.clients {
		client.Client.Close()
		delete(m.clients, chain)
	}
}
