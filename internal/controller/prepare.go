/*

Pool preparation and one-time initialization.

Preparing a pool derives its identifier (and the escrow's) deterministically
from the category and index size, fixes the starting weights from the current
ranking, and opens a bootstrap escrow for the starting balances. The pool only
begins trading when the escrow finalizes it through FinalizePool.

*/

package controller

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/indexed-finance/indexed-core-sub000/internal/initializer"
	"github.com/indexed-finance/indexed-core-sub000/internal/pool"
	"github.com/indexed-finance/indexed-core-sub000/internal/poolmath"
	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

// derivePoolID computes the deterministic pool identifier for a category and
// index size. The same inputs always address the same pool.
func derivePoolID(categoryID types.CategoryID, indexSize int) types.PoolID {
	sum := sha256.Sum256([]byte(fmt.Sprintf("indexpool|%d|%d", categoryID, indexSize)))
	return types.PoolID("ipl" + hex.EncodeToString(sum[:10]))
}

// deriveInitializerAccount computes the escrow account for a pool.
func deriveInitializerAccount(id types.PoolID) types.Account {
	sum := sha256.Sum256([]byte("initializer|" + string(id)))
	return types.Account("ini" + hex.EncodeToString(sum[:10]))
}

// PrepareIndexPool creates an uninitialized pool for the top indexSize tokens
// of a category plus its bootstrap escrow. initialValue is the total oracle
// value the escrow collects; each token's desired amount is its weight
// fraction of that value converted at the averaged price.
func (c *Controller) PrepareIndexPool(caller types.Account, categoryID types.CategoryID, indexSize int, initialValue sdkmath.LegacyDec) (types.PoolID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.owner {
		return "", fmt.Errorf("%w: %s", ErrNotOwner, caller)
	}
	if indexSize < poolmath.MinBoundTokens || indexSize > poolmath.MaxBoundTokens {
		return "", fmt.Errorf("%w: %d", ErrInvalidIndexSize, indexSize)
	}
	if initialValue.IsNil() || !initialValue.IsPositive() {
		return "", fmt.Errorf("%w: initial value %s", ErrBootstrapTooSmall, initialValue)
	}
	poolID := derivePoolID(categoryID, indexSize)
	if _, exists := c.pools[poolID]; exists {
		return "", fmt.Errorf("%w: %s", ErrPoolExists, poolID)
	}

	tokens, err := c.topCategoryTokens(categoryID, indexSize)
	if err != nil {
		return "", err
	}
	weights, err := c.computeTargetWeights(tokens)
	if err != nil {
		return "", fmt.Errorf("prepare %s: %w", poolID, err)
	}

	amounts := make([]sdkmath.LegacyDec, len(tokens))
	for i, denom := range tokens {
		price, err := c.prices.AveragePrice(denom)
		if err != nil {
			return "", fmt.Errorf("prepare %s: %w", poolID, err)
		}
		fraction := weights[i].Quo(poolmath.WeightMultiplier)
		amounts[i] = fraction.Mul(initialValue).Quo(price)
		if amounts[i].LT(poolmath.MinBalanceFloor) {
			return "", fmt.Errorf("%w: %s amount %s", ErrBootstrapTooSmall, denom, amounts[i])
		}
	}

	p, err := pool.New(pool.Config{
		ID:               poolID,
		Controller:       c.account,
		Ledger:           c.ledger,
		SwapFee:          c.swapFee,
		ExitFeeRecipient: c.exitFeeRecipient,
		UnbindHandler:    c.sink,
		Now:              c.now,
	})
	if err != nil {
		return "", fmt.Errorf("prepare %s: %w", poolID, err)
	}
	in, err := initializer.New(initializer.Config{
		Account: deriveInitializerAccount(poolID),
		PoolID:  poolID,
		Ledger:  c.ledger,
		Prices:  c.prices,
		Tokens:  tokens,
		Amounts: amounts,
	})
	if err != nil {
		return "", fmt.Errorf("prepare %s: %w", poolID, err)
	}

	c.pools[poolID] = &poolEntry{
		meta: types.PoolMeta{
			PoolID:     poolID,
			CategoryID: categoryID,
			IndexSize:  indexSize,
		},
		pool:          p,
		init:          in,
		targetDenorms: weights,
	}
	if err := c.registry.Register("pool:"+string(poolID), 1, p); err != nil {
		delete(c.pools, poolID)
		return "", fmt.Errorf("prepare %s: %w", poolID, err)
	}
	if err := c.registry.Register("initializer:"+string(poolID), 1, in); err != nil {
		delete(c.pools, poolID)
		return "", fmt.Errorf("prepare %s: %w", poolID, err)
	}

	c.log.Info().
		Str("pool_id", string(poolID)).
		Uint64("category_id", uint64(categoryID)).
		Int("index_size", indexSize).
		Msg("Index pool prepared")
	return poolID, nil
}

// FinalizePool implements initializer.Finalizer: it performs the pool's
// one-time initialization from the filled escrow at the prepared weights.
func (c *Controller) FinalizePool(id types.PoolID, from types.Account, tokens []string, balances []sdkmath.LegacyDec) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.pools[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPool, id)
	}
	if entry.meta.Initialized {
		return fmt.Errorf("%w: %s", ErrPoolInitialized, id)
	}
	if err := entry.pool.Initialize(c.account, from, tokens, balances, entry.targetDenorms); err != nil {
		return fmt.Errorf("finalize %s: %w", id, err)
	}
	entry.meta.Initialized = true
	entry.meta.LastReweighTimestamp = c.now()
	entry.targetDenorms = nil

	c.log.Info().Str("pool_id", string(id)).Msg("Pool finalized and opened")
	return nil
}

// UpdateMinimumBalance refreshes the minimum-balance floor of a token that
// has not yet reached readiness, repricing its target-weight share of the
// extrapolated pool value. Permissionless.
func (c *Controller) UpdateMinimumBalance(id types.PoolID, denom string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.pools[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPool, id)
	}
	if !entry.meta.Initialized {
		return fmt.Errorf("%w: %s", ErrPoolNotInitialized, id)
	}
	rec, err := entry.pool.GetTokenRecord(denom)
	if err != nil {
		return err
	}
	if rec.Ready {
		return fmt.Errorf("%w: %s", ErrTokenIsReady, denom)
	}
	minBalance, err := c.minimumBalanceFor(entry.pool, denom, rec.DesiredDenorm)
	if err != nil {
		return err
	}
	if err := entry.pool.SetMinimumBalance(c.account, denom, minBalance); err != nil {
		return err
	}
	c.log.Info().
		Str("pool_id", string(id)).
		Str("denom", denom).
		Str("minimum", minBalance.String()).
		Msg("Minimum balance refreshed")
	return nil
}

// minimumBalanceFor prices one percent of the token's target-weight share of
// the pool's extrapolated total value in units of denom. A token entering at
// twice the weight must accumulate twice the balance before becoming ready.
func (c *Controller) minimumBalanceFor(p *pool.Pool, denom string, targetDenorm sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	refDenom, refValue, err := p.ExtrapolatePoolValueFromToken()
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	refPrice, err := c.prices.AveragePrice(refDenom)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	price, err := c.prices.AveragePrice(denom)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	weightFraction := targetDenorm.Quo(poolmath.WeightMultiplier)
	totalValue := refValue.Mul(refPrice)
	return totalValue.Mul(weightFraction).QuoInt64(100).Quo(price), nil
}
