/*

Per-token pool state and controller-side pool metadata.

A TokenRecord only carries meaning while Bound is true. A bound token stays in
the pool until its current weight decays to the minimum while its desired
weight is zero, at which point the pool evicts it and hands its balance to the
liquidity sink.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// TokenRecord is the pool's bookkeeping entry for one bound token.
type TokenRecord struct {
	Bound bool `json:"bound"`
	// Ready flips once the recorded balance first reaches MinimumBalance.
	// It never flips back.
	Ready bool `json:"ready"`
	// Denorm is the current un-normalized weight used by the pricing curve.
	Denorm sdkmath.LegacyDec `json:"denorm"`
	// DesiredDenorm is the controller's target weight. Denorm is nudged
	// toward it on every operation that touches the token.
	DesiredDenorm sdkmath.LegacyDec `json:"desired_denorm"`
	// Balance is the pool's recorded holding of the token.
	Balance sdkmath.LegacyDec `json:"balance"`
	// MinimumBalance prices the token while it is not yet ready. Zero once
	// the token is ready.
	MinimumBalance sdkmath.LegacyDec `json:"minimum_balance"`
	// LastDenormUpdate rate-limits weight adjustments.
	LastDenormUpdate time.Time `json:"last_denorm_update"`
}

// EffectiveBalance returns the balance the pricing curve sees: the real
// balance for a ready token, otherwise the larger of the real balance and
// the minimum balance.
func (r TokenRecord) EffectiveBalance() sdkmath.LegacyDec {
	if r.Ready || r.Balance.GTE(r.MinimumBalance) {
		return r.Balance
	}
	return r.MinimumBalance
}

// Category is a curated, ranked token set used as the selection universe
// for index pools. Order is only meaningful after a market-cap sort.
type Category struct {
	ID                CategoryID `json:"id"`
	Tokens            []string   `json:"tokens"`
	LastSortTimestamp time.Time  `json:"last_sort_timestamp"`
}

// PoolMeta is the controller's per-pool scheduling state. Created when a pool
// is prepared, advanced every reweigh/reindex, never destroyed.
type PoolMeta struct {
	PoolID      PoolID     `json:"pool_id"`
	CategoryID  CategoryID `json:"category_id"`
	IndexSize   int        `json:"index_size"`
	Initialized bool       `json:"initialized"`
	// ReweighIndex counts cycle steps mod 4: slots 0-2 allow weight-only
	// reweighs, slot 3 is reserved for a membership reindex.
	ReweighIndex         uint8     `json:"reweigh_index"`
	LastReweighTimestamp time.Time `json:"last_reweigh_timestamp"`
}
