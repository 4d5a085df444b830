// ./internal/state/snapshot_store.go
package state

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/demether/sxe/internal/types"
)

// SaveYieldSnapshots appends a batch of yield observations to the history
// table. One transaction per batch; a partial batch is never persisted.
func SaveYieldSnapshots(snapshots []types.YieldSnapshot) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO yield_snapshots (protocol, chain_id, token, supply_apy, borrow_apy, utilization_rate, as_of)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, snapshot := range snapshots {
		_, err := stmt.Exec(
			string(snapshot.Protocol), snapshot.Chain.Uint64(), snapshot.Token,
			snapshot.SupplyAPY, snapshot.BorrowAPY, snapshot.UtilizationRate, snapshot.AsOf,
		)
		if err != nil {
			return fmt.Errorf("failed to insert yield snapshot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit yield snapshots: %w", err)
	}

	log.Info().Int("count", len(snapshots)).Msg("Yield snapshots saved to database")
	return nil
}

// GetLatestYields returns the most recent snapshots, newest observation
// first. Passing an empty token returns every token.
func GetLatestYields(token string, limit int) ([]types.YieldSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT protocol, chain_id, token, supply_apy, borrow_apy, utilization_rate, as_of
		FROM yield_snapshots
		WHERE ($1 = '' OR token = $1)
		ORDER BY as_of DESC, supply_apy DESC
		LIMIT $2;
	`

	rows, err := DB.Query(query, token, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query yield snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.YieldSnapshot
	for rows.Next() {
		var (
			s        types.YieldSnapshot
			protocol string
			chainID  uint64
		)
		if err := rows.Scan(&protocol, &chainID, &s.Token,
			&s.SupplyAPY, &s.BorrowAPY, &s.UtilizationRate, &s.AsOf); err != nil {
			return nil, fmt.Errorf("failed to scan yield snapshot: %w", err)
		}
		s.Protocol = types.Protocol(protocol)
		s.Chain = types.ChainID(chainID)
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate yield snapshots: %w", err)
	}
	return snapshots, nil
}
