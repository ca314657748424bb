/*

The reweigh/reindex state machine.

Each pool advances through a mod-4 cycle gated by the rebalance cooldown:
slots 0 through 2 accept weight-only reweighs, slot 3 is reserved for a full
membership reindex against a fresh category ranking. Both operations are
permissionless; the cooldown and the slot discipline are the only schedule.

*/

package controller

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

const reindexSlot = 3

// ReweighPool recomputes desired weights for the pool's current members from
// the latest market caps. Rejected on the reindex slot.
func (c *Controller) ReweighPool(id types.PoolID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, err := c.rebalanceableEntry(id)
	if err != nil {
		return err
	}
	if entry.meta.ReweighIndex == reindexSlot {
		return fmt.Errorf("%w: pool %s is due a reindex", ErrWrongSlot, id)
	}

	tokens := entry.pool.GetCurrentDesiredTokens()
	weights, err := c.computeTargetWeights(tokens)
	if err != nil {
		return fmt.Errorf("reweigh %s: %w", id, err)
	}
	if err := entry.pool.ReweighTokens(c.account, tokens, weights); err != nil {
		return fmt.Errorf("reweigh %s: %w", id, err)
	}
	c.advanceCycle(entry)

	c.log.Info().
		Str("pool_id", string(id)).
		Uint8("next_slot", entry.meta.ReweighIndex).
		Msg("Pool reweighed")
	return nil
}

// ReindexPool replaces the pool's membership with the category's current
// top-N. Only valid on the reindex slot, and only against a fresh sort.
func (c *Controller) ReindexPool(id types.PoolID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, err := c.rebalanceableEntry(id)
	if err != nil {
		return err
	}
	if entry.meta.ReweighIndex != reindexSlot {
		return fmt.Errorf("%w: pool %s is in reweigh slot %d", ErrWrongSlot, id, entry.meta.ReweighIndex)
	}

	tokens, err := c.topCategoryTokens(entry.meta.CategoryID, entry.meta.IndexSize)
	if err != nil {
		return fmt.Errorf("reindex %s: %w", id, err)
	}
	weights, err := c.computeTargetWeights(tokens)
	if err != nil {
		return fmt.Errorf("reindex %s: %w", id, err)
	}
	minimums := make([]sdkmath.LegacyDec, len(tokens))
	for i, denom := range tokens {
		if entry.pool.IsBound(denom) {
			minimums[i] = sdkmath.LegacyZeroDec()
			continue
		}
		minimum, err := c.minimumBalanceFor(entry.pool, denom, weights[i])
		if err != nil {
			return fmt.Errorf("reindex %s: %w", id, err)
		}
		minimums[i] = minimum
	}
	if err := entry.pool.ReindexTokens(c.account, tokens, weights, minimums); err != nil {
		return fmt.Errorf("reindex %s: %w", id, err)
	}
	c.advanceCycle(entry)

	c.log.Info().
		Str("pool_id", string(id)).
		Int("members", len(tokens)).
		Msg("Pool reindexed")
	return nil
}

// rebalanceableEntry resolves a pool that is initialized and out of cooldown.
func (c *Controller) rebalanceableEntry(id types.PoolID) (*poolEntry, error) {
	entry, ok := c.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPool, id)
	}
	if !entry.meta.Initialized {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotInitialized, id)
	}
	if c.now().Sub(entry.meta.LastReweighTimestamp) < c.rebalanceDelay {
		return nil, fmt.Errorf("%w: pool %s last rebalanced %s", ErrRebalanceCooldown, id, entry.meta.LastReweighTimestamp)
	}
	return entry, nil
}

func (c *Controller) advanceCycle(entry *poolEntry) {
	entry.meta.ReweighIndex = (entry.meta.ReweighIndex + 1) % 4
	entry.meta.LastReweighTimestamp = c.now()
}
