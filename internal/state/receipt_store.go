// ./internal/state/receipt_store.go
package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/demether/sxe/internal/types"
)

// SaveExecutionReceipt upserts a full receipt row, metadata included. The
// engine calls this when a strategy starts and again when it settles, so
// the row always carries the request context even if the executor never
// reports a status.
func SaveExecutionReceipt(receipt types.ExecutionReceipt) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO execution_receipts (
			id, protocol, chain_id, action, token, amount_base,
			status, tx_hash, error, started_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			protocol = EXCLUDED.protocol,
			chain_id = EXCLUDED.chain_id,
			action = EXCLUDED.action,
			token = EXCLUDED.token,
			amount_base = EXCLUDED.amount_base,
			status = EXCLUDED.status,
			tx_hash = EXCLUDED.tx_hash,
			error = EXCLUDED.error,
			updated_at = CURRENT_TIMESTAMP;
	`

	_, err := DB.Exec(query,
		receipt.ID, string(receipt.Protocol), receipt.Chain.Uint64(), string(receipt.Action),
		receipt.Token, receipt.AmountBase,
		string(receipt.Status), receipt.TxHash, receipt.Error, receipt.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution receipt: %w", err)
	}
	return nil
}

// RecordExecutionStatus upserts only the status-machine columns of a
// receipt. Metadata columns are left alone so the executor's transitions
// never erase what the engine wrote.
func RecordExecutionStatus(id string, status types.ExecutionStatus, txHash string, execErr error) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	errMsg := ""
	if execErr != nil {
		errMsg = execErr.Error()
	}

	query := `
		INSERT INTO execution_receipts (id, status, tx_hash, error)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			tx_hash = CASE WHEN EXCLUDED.tx_hash <> '' THEN EXCLUDED.tx_hash ELSE execution_receipts.tx_hash END,
			error = CASE WHEN EXCLUDED.error <> '' THEN EXCLUDED.error ELSE execution_receipts.error END,
			updated_at = CURRENT_TIMESTAMP;
	`

	if _, err := DB.Exec(query, id, string(status), txHash, errMsg); err != nil {
		return fmt.Errorf("failed to record execution status: %w", err)
	}
	return nil
}

// GetRecentExecutions returns the newest receipts first.
func GetRecentExecutions(limit int) ([]types.ExecutionReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT id, COALESCE(protocol, ''), COALESCE(chain_id, 0), COALESCE(action, ''),
		       COALESCE(token, ''), COALESCE(amount_base::TEXT, ''),
		       status, COALESCE(tx_hash, ''), COALESCE(error, ''), started_at, updated_at
		FROM execution_receipts
		ORDER BY started_at DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.ExecutionReceipt
	for rows.Next() {
		var (
			r        types.ExecutionReceipt
			protocol string
			chainID  uint64
			action   string
			status   string
		)
		if err := rows.Scan(&r.ID, &protocol, &chainID, &action, &r.Token, &r.AmountBase,
			&status, &r.TxHash, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution receipt: %w", err)
		}
		r.Protocol = types.Protocol(protocol)
		r.Chain = types.ChainID(chainID)
		r.Action = types.Action(action)
		r.Status = types.ExecutionStatus(status)
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution receipts: %w", err)
	}
	return receipts, nil
}

// GetExecutionByID returns a single receipt.
func GetExecutionByID(id string) (*types.ExecutionReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT id, COALESCE(protocol, ''), COALESCE(chain_id, 0), COALESCE(action, ''),
		       COALESCE(token, ''), COALESCE(amount_base::TEXT, ''),
		       status, COALESCE(tx_hash, ''), COALESCE(error, ''), started_at, updated_at
		FROM execution_receipts
		WHERE id = $1;
	`

	var (
		r        types.ExecutionReceipt
		protocol string
		chainID  uint64
		action   string
		status   string
	)
	err := DB.QueryRow(query, id).Scan(&r.ID, &protocol, &chainID, &action, &r.Token, &r.AmountBase,
		&status, &r.TxHash, &r.Error, &r.StartedAt, &r.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("execution %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query execution receipt: %w", err)
	}
	r.Protocol = types.Protocol(protocol)
	r.Chain = types.ChainID(chainID)
	r.Action = types.Action(action)
	r.Status = types.ExecutionStatus(status)
	return &r, nil
}

// Recorder persists executor status transitions. It satisfies the
// executor's StatusRecorder interface; database failures are logged and
// swallowed because a lost status row must never abort an in-flight
// transaction sequence.
type Recorder struct{}

func (Recorder) RecordStatus(id string, status types.ExecutionStatus, txHash string, execErr error) {
	if err := RecordExecutionStatus(id, status, txHash, execErr); err != nil {
		log.Error().Err(err).
			Str("execution_id", id).
			Str("status", string(status)).
			Msg("Failed to persist execution status")
	}
}

// SaveReceipt satisfies the engine's receipt sink.
func (Recorder) SaveReceipt(receipt types.ExecutionReceipt) error {
	return SaveExecutionReceipt(receipt)
}
