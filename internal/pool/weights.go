/*

Weight interpolation, readiness, and eviction.

Denorm never jumps to the desired weight. Each touching operation nudges it by
at most the current weight scaled by the swap fee, and only after the per-token
update delay has elapsed, which keeps the gap closing slowly enough that
adjustment-timing games are unprofitable. A token whose desired weight is zero
decays until it crosses the minimum weight and is evicted.

*/

package pool

import (
	sdkmath "cosmossdk.io/math"

	"github.com/indexed-finance/indexed-core-sub000/internal/poolmath"
	"github.com/indexed-finance/indexed-core-sub000/internal/telemetry"
)

// increaseBalance credits a balance gain to the record and flips readiness
// when the minimum balance is reached. The first weight a token receives is
// the minimum weight plus a pro-rata bonus for the excess over the minimum,
// capped at the initial weight ceiling.
func (p *Pool) increaseBalance(denom string, amount sdkmath.LegacyDec) {
	rec := p.records[denom]
	rec.Balance = rec.Balance.Add(amount)
	if rec.Ready || rec.Balance.LT(rec.MinimumBalance) {
		return
	}

	excess := rec.Balance.Sub(rec.MinimumBalance)
	bonus := poolmath.MinWeight.Mul(excess).Quo(rec.MinimumBalance)
	denorm := poolmath.MinWeight.Add(bonus)
	if denorm.GT(poolmath.InitialWeightCeiling) {
		denorm = poolmath.InitialWeightCeiling
	}
	// Never push the pool over the total weight ceiling on a readiness flip.
	if p.totalDenorm().Add(denorm).GT(poolmath.MaxTotalWeight) {
		denorm = poolmath.MinWeight
	}

	rec.Ready = true
	rec.Denorm = denorm
	rec.MinimumBalance = sdkmath.LegacyZeroDec()
	rec.LastDenormUpdate = p.now()

	p.log.Info().
		Str("denom", denom).
		Str("denorm", denorm.String()).
		Str("balance", rec.Balance.String()).
		Msg("Token reached minimum balance and is now ready")
}

// adjustWeight performs one interpolation step toward the desired weight for
// a ready token, evicting it when a zero-target weight decays to the minimum.
func (p *Pool) adjustWeight(denom string) {
	rec, ok := p.records[denom]
	if !ok || !rec.Ready {
		return
	}
	if rec.DesiredDenorm.IsNil() || rec.Denorm.Equal(rec.DesiredDenorm) {
		return
	}
	now := p.now()
	if now.Sub(rec.LastDenormUpdate) < weightUpdateDelay {
		return
	}

	maxStep := rec.Denorm.Mul(p.swapFee)

	if rec.DesiredDenorm.LT(rec.Denorm) {
		target := rec.DesiredDenorm
		step := rec.Denorm.Sub(target)
		if step.GT(maxStep) {
			step = maxStep
		}
		next := rec.Denorm.Sub(step)
		if rec.DesiredDenorm.IsZero() && next.LTE(poolmath.MinWeight) {
			p.evict(denom)
			return
		}
		if next.LT(poolmath.MinWeight) {
			next = poolmath.MinWeight
		}
		rec.Denorm = next
		rec.LastDenormUpdate = now
		return
	}

	step := rec.DesiredDenorm.Sub(rec.Denorm)
	if step.GT(maxStep) {
		step = maxStep
	}
	// If the step would push total weight over the ceiling, skip it rather
	// than aborting the triggering trade.
	if p.totalDenorm().Add(step).GT(poolmath.MaxTotalWeight) {
		p.log.Debug().Str("denom", denom).Msg("Skipping weight step: total weight ceiling")
		return
	}
	next := rec.Denorm.Add(step)
	if next.GT(poolmath.MaxWeight) {
		next = poolmath.MaxWeight
	}
	rec.Denorm = next
	rec.LastDenormUpdate = now
}

// evict clears the token's record, removes it from the active list with a
// swap-with-last, and hands its remaining balance to the unbind handler.
func (p *Pool) evict(denom string) {
	rec := p.records[denom]
	balance := rec.Balance
	delete(p.records, denom)
	for i, t := range p.tokens {
		if t == denom {
			last := len(p.tokens) - 1
			p.tokens[i] = p.tokens[last]
			p.tokens = p.tokens[:last]
			break
		}
	}
	if balance.IsPositive() {
		// The pool always holds at least the recorded balance.
		if err := p.ledger.Transfer(denom, p.Account(), p.unbindHandler.Account(), balance); err != nil {
			p.log.Error().Err(err).Str("denom", denom).Msg("Failed to transfer evicted balance")
			return
		}
		p.unbindHandler.ReceiveEvictedToken(denom, balance)
	}
	telemetry.Evictions.Inc()
	p.log.Info().
		Str("denom", denom).
		Str("balance", balance.String()).
		Msg("Token weight decayed to minimum; evicted from pool")
}
