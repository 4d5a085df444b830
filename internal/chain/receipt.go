package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/demether/sxe/internal/types"
)

// receiptPollInterval is how often WaitForReceipt re-queries the node.
const receiptPollInterval = 2 * time.Second

// WaitForReceipt polls until the transaction is mined or the context ends.
func WaitForReceipt(ctx context.Context, backend Backend, txHash common.Hash) (*gethtypes.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("%w: fetching receipt for %s: %w", types.ErrExecution, txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for %s: %w", types.ErrExecution, txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
