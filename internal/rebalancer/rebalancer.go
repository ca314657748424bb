/*

The rebalancer is the autonomous driver of the index controller. On every
cycle it walks the managed pools and attempts the action the pool's cycle
slot calls for: a weight-only reweigh on slots 0-2, a membership reindex on
slot 3. Pools inside their cooldown window are skipped, not treated as
failures. Each cycle is persisted as a snapshot for the web API.

*/

package rebalancer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/indexed-finance/indexed-core-sub000/internal/controller"
	"github.com/indexed-finance/indexed-core-sub000/internal/logger"
	"github.com/indexed-finance/indexed-core-sub000/internal/state"
	"github.com/indexed-finance/indexed-core-sub000/internal/telemetry"
	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

const (
	actionReweigh = "reweigh"
	actionReindex = "reindex"
	actionSkipped = "skipped"
)

// Rebalancer drives reweigh/reindex actions across all managed pools.
type Rebalancer struct {
	logger zerolog.Logger
	ctrl   *controller.Controller

	// cycleCount is a fallback when the database counter is unavailable.
	cycleCount int
}

// Config holds the configuration for creating a new Rebalancer instance.
type Config struct {
	Controller *controller.Controller
}

// New creates a rebalancer bound to a controller.
func New(cfg Config) (*Rebalancer, error) {
	if cfg.Controller == nil {
		return nil, fmt.Errorf("controller cannot be nil")
	}

	return &Rebalancer{
		logger: logger.GetForComponent("rebalancer"),
		ctrl:   cfg.Controller,
	}, nil
}

// RunLoop starts the main rebalancer loop with the specified interval.
func (r *Rebalancer) RunLoop(ctx context.Context, interval time.Duration) {
	r.logger.Info().
		Dur("interval", interval).
		Msg("Starting rebalancer main loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first cycle immediately
	r.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Rebalancer loop stopped due to context cancellation")
			return
		case <-ticker.C:
			r.RunCycle(ctx)
		}
	}
}

// RunCycle executes one pass over every managed pool and returns the cycle
// snapshot that was (best-effort) persisted.
func (r *Rebalancer) RunCycle(ctx context.Context) types.CycleSnapshot {
	traceID := uuid.New().String()
	cycleLogger := r.logger.With().Str("trace_id", traceID).Logger()

	r.cycleCount++
	cycleNumber, err := state.IncrementCycleNumber()
	if err != nil {
		cycleLogger.Warn().Err(err).Msg("Failed to increment persistent cycle counter, using in-memory count")
		cycleNumber = r.cycleCount
	}

	snapshot := types.CycleSnapshot{
		CycleNumber: cycleNumber,
		TraceID:     traceID,
		StartedAt:   time.Now().UTC(),
	}

	cycleLogger.Info().Int("cycle_number", cycleNumber).Msg("--- Starting rebalance cycle ---")

	pools := r.ctrl.ListPools()
	telemetry.ManagedPools.Set(float64(len(pools)))

	for _, meta := range pools {
		select {
		case <-ctx.Done():
			cycleLogger.Warn().Msg("Cycle aborted by context cancellation")
			return r.finishCycle(cycleLogger, snapshot)
		default:
		}

		snapshot.PoolsSeen++
		result := r.runPool(cycleLogger, meta)
		snapshot.Results = append(snapshot.Results, result)

		switch {
		case result.Action == actionSkipped:
			snapshot.Skips++
		case !result.Succeeded:
			telemetry.Failures.Inc()
		case result.Action == actionReweigh:
			snapshot.Reweighs++
			telemetry.Reweighs.Inc()
		case result.Action == actionReindex:
			snapshot.Reindexes++
			telemetry.Reindexes.Inc()
		}
	}

	return r.finishCycle(cycleLogger, snapshot)
}

// runPool attempts the slot-appropriate action for one pool.
func (r *Rebalancer) runPool(cycleLogger zerolog.Logger, meta types.PoolMeta) types.PoolCycleResult {
	poolLogger := cycleLogger.With().Str("pool_id", string(meta.PoolID)).Logger()

	if !meta.Initialized {
		poolLogger.Debug().Msg("Pool not initialized yet, skipping")
		return skipResult(meta.PoolID, "not_initialized")
	}

	reindexing := meta.ReweighIndex == 3
	action := actionReweigh
	if reindexing {
		action = actionReindex
		// A reindex reads the category's top-N ranking, so refresh the
		// market-cap sort first.
		if err := r.ctrl.OrderCategoryTokensByMarketCap(meta.CategoryID); err != nil {
			poolLogger.Error().Err(err).Uint64("category_id", uint64(meta.CategoryID)).Msg("Category sort failed")
			return failResult(meta.PoolID, action, err)
		}
		telemetry.CategorySorts.Inc()
	}

	var err error
	if reindexing {
		err = r.ctrl.ReindexPool(meta.PoolID)
	} else {
		err = r.ctrl.ReweighPool(meta.PoolID)
	}

	switch {
	case err == nil:
		poolLogger.Info().Str("action", action).Msg("Pool rebalance action succeeded")
		r.recordPoolEvent(poolLogger, meta.PoolID, action)
		return types.PoolCycleResult{PoolID: meta.PoolID, Action: action, Succeeded: true}
	case errors.Is(err, controller.ErrRebalanceCooldown):
		poolLogger.Debug().Msg("Pool inside rebalance cooldown, skipping")
		return skipResult(meta.PoolID, "cooldown")
	case errors.Is(err, controller.ErrStaleSort):
		poolLogger.Warn().Msg("Category sort is stale, skipping")
		return skipResult(meta.PoolID, "stale_sort")
	case errors.Is(err, controller.ErrCategoryTooSmall):
		poolLogger.Warn().Msg("Category smaller than index size, skipping")
		return skipResult(meta.PoolID, "category_too_small")
	default:
		poolLogger.Error().Err(err).Str("action", action).Msg("Pool rebalance action failed")
		return failResult(meta.PoolID, action, err)
	}
}

// finishCycle stamps, persists and counts the completed cycle.
func (r *Rebalancer) finishCycle(cycleLogger zerolog.Logger, snapshot types.CycleSnapshot) types.CycleSnapshot {
	snapshot.FinishedAt = time.Now().UTC()

	if err := state.SaveCycleSnapshot(snapshot); err != nil {
		cycleLogger.Warn().Err(err).Msg("Failed to persist cycle snapshot")
	}

	telemetry.CyclesRun.Inc()
	for _, result := range snapshot.Results {
		if result.Action == actionSkipped {
			telemetry.Skips.WithLabelValues(result.Reason).Inc()
		}
	}

	cycleLogger.Info().
		Int("pools_seen", snapshot.PoolsSeen).
		Int("reweighs", snapshot.Reweighs).
		Int("reindexes", snapshot.Reindexes).
		Int("skips", snapshot.Skips).
		Dur("duration", snapshot.FinishedAt.Sub(snapshot.StartedAt)).
		Msg("--- Rebalance cycle completed ---")

	return snapshot
}

// recordPoolEvent persists a pool action event, logging on failure.
func (r *Rebalancer) recordPoolEvent(poolLogger zerolog.Logger, id types.PoolID, action string) {
	meta, err := r.ctrl.GetPoolMeta(id)
	if err != nil {
		return
	}
	if err := state.RecordPoolEvent(id, action, meta); err != nil {
		poolLogger.Warn().Err(err).Msg("Failed to persist pool event")
	}
}

func skipResult(id types.PoolID, reason string) types.PoolCycleResult {
	return types.PoolCycleResult{PoolID: id, Action: actionSkipped, Reason: reason, Succeeded: true}
}

func failResult(id types.PoolID, action string, err error) types.PoolCycleResult {
	return types.PoolCycleResult{PoolID: id, Action: action, Succeeded: false, Error: err.Error()}
}
