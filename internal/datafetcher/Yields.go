/*

This file contains the concurrent yield-snapshot collector. One lookup per
(token, chain, protocol) triple, fanned out under a bounded semaphore; a
single failing lookup is logged and dropped, never aborting the batch.

*/

package datafetcher

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/demether/sxe/internal/adapters"
	"github.com/demether/sxe/internal/engine"
	"github.com/demether/sxe/internal/logger"
	"github.com/demether/sxe/internal/types"
)

var yieldLogger = logger.GetForComponent("yield_collector")

// defaultConcurrency bounds the simultaneous RPC lookups.
const defaultConcurrency = 8

// Collector fans yield lookups out across every configured protocol.
type Collector struct {
	registry    *adapters.Registry
	backends    engine.Backends
	concurrency int
}

func NewCollector(registry *adapters.Registry, backends engine.Backends) *Collector {
	return &Collector{
		registry:    registry,
		backends:    backends,
		concurrency: defaultConcurrency,
	}
}

// CollectYields queries every (token, chain, protocol) combination and
// returns the snapshots that succeeded, ordered by descending supply APY.
func (c *Collector) CollectYields(ctx context.Context, tokens []types.Token) []types.YieldSnapshot {
	type lookup struct {
		token    types.Token
		chainID  types.ChainID
		protocol types.Protocol
	}

	var lookups []lookup
	for _, token := range tokens {
		for chainID := range token.Addresses {
			for _, protocol := range c.registry.Protocols() {
				lookups = append(lookups, lookup{token: token, chainID: chainID, protocol: protocol})
			}
		}
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		snapshots []types.YieldSnapshot
	)
	sem := make(chan struct{}, c.concurrency)

	for _, job := range lookups {
		wg.Add(1)
		go func(job lookup) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			snapshot, err := c.fetchOne(ctx, job.token, job.chainID, job.protocol)
			if err != nil {
				// lending yields simply do not exist on swap-only protocols
				if !errors.Is(err, types.ErrUnsupported) {
					yieldLogger.Debug().Err(err).
						Str("token", job.token.Symbol).
						Uint64("chain_id", job.chainID.Uint64()).
						Str("protocol", string(job.protocol)).
						Msg("Yield lookup failed")
				}
				return
			}

			mu.Lock()
			snapshots = append(snapshots, *snapshot)
			mu.Unlock()
		}(job)
	}
	wg.Wait()

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].SupplyAPY > snapshots[j].SupplyAPY
	})

	yieldLogger.Info().
		Int("lookups", len(lookups)).
		Int("snapshots", len(snapshots)).
		Msg("Yield collection completed")
	return snapshots
}

func (c *Collector) fetchOne(ctx context.Context, token types.Token, chainID types.ChainID, protocol types.Protocol) (*types.YieldSnapshot, error) {
	adapter, err := c.registry.Get(protocol)
	if err != nil {
		return nil, err
	}
	backend, err := c.backends.Backend(ctx, chainID)
	if err != nil {
		return nil, err
	}
	bctx := adapters.BuildContext{Chain: chainID, Caller: backend}
	return adapter.GetYield(ctx, bctx, token)
}
