/*

Controller-only pool operations: one-time initialization, reweighs, reindexes,
minimum-balance assignment, and parameter setters.

A reindex takes the full new token list. Previously bound tokens that are
omitted are scheduled for removal by zeroing their desired weight rather than
being removed immediately, so their liquidity keeps pricing trades until
interpolation completes.

*/

package pool

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/indexed-finance/indexed-core-sub000/internal/poolmath"
	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

// Initialize performs one-time pool initialization: pulls the starting
// balances from the funding account, binds every token ready at its starting
// weight, and mints the fixed initial share supply to the funding account.
func (p *Pool) Initialize(caller types.Account, from types.Account, tokens []string, balances, denorms []sdkmath.LegacyDec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()

	if caller != p.controller {
		return fmt.Errorf("%w: %s", ErrNotController, caller)
	}
	if p.publicSwap {
		return ErrAlreadyInitialized
	}
	if len(tokens) != len(balances) || len(tokens) != len(denorms) {
		return fmt.Errorf("%w: %d tokens, %d balances, %d denorms", ErrArrayLen, len(tokens), len(balances), len(denorms))
	}
	if len(tokens) < poolmath.MinBoundTokens || len(tokens) > poolmath.MaxBoundTokens {
		return fmt.Errorf("%w: %d", ErrInvalidTokenCount, len(tokens))
	}
	totalWeight := sdkmath.LegacyZeroDec()
	for i, denom := range tokens {
		if denorms[i].LT(poolmath.MinWeight) || denorms[i].GT(poolmath.MaxWeight) {
			return fmt.Errorf("%w: %s weight %s", ErrInvalidWeight, denom, denorms[i])
		}
		if !balances[i].IsPositive() {
			return fmt.Errorf("%w: %s balance %s", ErrMinBalance, denom, balances[i])
		}
		totalWeight = totalWeight.Add(denorms[i])
	}
	if totalWeight.GT(poolmath.MaxTotalWeight) {
		return fmt.Errorf("%w: total %s", ErrInvalidWeight, totalWeight)
	}

	snap := p.ledger.Snapshot()
	for i, denom := range tokens {
		if err := p.ledger.Transfer(denom, from, p.Account(), balances[i]); err != nil {
			p.ledger.Restore(snap)
			return fmt.Errorf("initialize: %w", err)
		}
	}

	now := p.now()
	p.tokens = append([]string(nil), tokens...)
	for i, denom := range tokens {
		p.records[denom] = &types.TokenRecord{
			Bound:            true,
			Ready:            true,
			Denorm:           denorms[i],
			DesiredDenorm:    denorms[i],
			Balance:          balances[i],
			MinimumBalance:   sdkmath.LegacyZeroDec(),
			LastDenormUpdate: now,
		}
	}
	p.mintShares(from, poolmath.InitPoolSupply)
	p.publicSwap = true
	p.lastMembershipChange = now

	p.log.Info().
		Int("tokens", len(tokens)).
		Str("supply", poolmath.InitPoolSupply.String()).
		Msg("Pool initialized and opened for public swaps")
	return nil
}

// ReweighTokens updates the desired weights of tokens already bound to the
// pool. Live weights converge on subsequent touches.
func (p *Pool) ReweighTokens(caller types.Account, tokens []string, desiredDenorms []sdkmath.LegacyDec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()

	if caller != p.controller {
		return fmt.Errorf("%w: %s", ErrNotController, caller)
	}
	if len(tokens) != len(desiredDenorms) {
		return fmt.Errorf("%w: %d tokens, %d denorms", ErrArrayLen, len(tokens), len(desiredDenorms))
	}
	for i, denom := range tokens {
		if _, ok := p.records[denom]; !ok {
			return fmt.Errorf("%w: %s", ErrNotBound, denom)
		}
		if desiredDenorms[i].LT(poolmath.MinWeight) || desiredDenorms[i].GT(poolmath.MaxWeight) {
			return fmt.Errorf("%w: %s weight %s", ErrInvalidWeight, denom, desiredDenorms[i])
		}
	}
	now := p.now()
	for i, denom := range tokens {
		rec := p.records[denom]
		rec.DesiredDenorm = desiredDenorms[i]
		rec.LastDenormUpdate = now
	}
	p.log.Info().Int("tokens", len(tokens)).Msg("Desired weights updated")
	return nil
}

// ReindexTokens replaces the pool's membership. New tokens are admitted
// not-ready at the given minimum balances; bound tokens keep trading at their
// updated desired weights; omitted tokens get a zero desired weight and decay
// toward eviction.
func (p *Pool) ReindexTokens(caller types.Account, tokens []string, desiredDenorms, minimumBalances []sdkmath.LegacyDec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()

	if caller != p.controller {
		return fmt.Errorf("%w: %s", ErrNotController, caller)
	}
	if len(tokens) != len(desiredDenorms) || len(tokens) != len(minimumBalances) {
		return fmt.Errorf("%w: %d tokens, %d denorms, %d minimums", ErrArrayLen, len(tokens), len(desiredDenorms), len(minimumBalances))
	}
	if len(tokens) < poolmath.MinBoundTokens || len(tokens) > poolmath.MaxBoundTokens {
		return fmt.Errorf("%w: %d", ErrInvalidTokenCount, len(tokens))
	}
	incoming := make(map[string]bool, len(tokens))
	for i, denom := range tokens {
		if desiredDenorms[i].LT(poolmath.MinWeight) || desiredDenorms[i].GT(poolmath.MaxWeight) {
			return fmt.Errorf("%w: %s weight %s", ErrInvalidWeight, denom, desiredDenorms[i])
		}
		if _, bound := p.records[denom]; !bound && minimumBalances[i].LT(poolmath.MinBalanceFloor) {
			return fmt.Errorf("%w: %s minimum %s", ErrMinBalance, denom, minimumBalances[i])
		}
		incoming[denom] = true
	}

	now := p.now()
	for i, denom := range tokens {
		if rec, bound := p.records[denom]; bound {
			rec.DesiredDenorm = desiredDenorms[i]
			rec.LastDenormUpdate = now
			continue
		}
		p.records[denom] = &types.TokenRecord{
			Bound:            true,
			Ready:            false,
			Denorm:           sdkmath.LegacyZeroDec(),
			DesiredDenorm:    desiredDenorms[i],
			Balance:          sdkmath.LegacyZeroDec(),
			MinimumBalance:   minimumBalances[i],
			LastDenormUpdate: now,
		}
		p.tokens = append(p.tokens, denom)
		p.log.Info().Str("denom", denom).Str("minimum", minimumBalances[i].String()).Msg("Token admitted, awaiting minimum balance")
	}
	for _, denom := range p.tokens {
		if incoming[denom] {
			continue
		}
		rec := p.records[denom]
		if !rec.DesiredDenorm.IsZero() {
			rec.DesiredDenorm = sdkmath.LegacyZeroDec()
			rec.LastDenormUpdate = now
			p.log.Info().Str("denom", denom).Msg("Token scheduled for removal")
		}
	}
	p.lastMembershipChange = now
	return nil
}

// SetMinimumBalance updates the floor used to price a not-yet-ready token.
// Blocked for a cooldown after a membership change.
func (p *Pool) SetMinimumBalance(caller types.Account, denom string, minimumBalance sdkmath.LegacyDec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()

	if caller != p.controller {
		return fmt.Errorf("%w: %s", ErrNotController, caller)
	}
	rec, ok := p.records[denom]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotBound, denom)
	}
	if rec.Ready {
		return fmt.Errorf("%w: %s", ErrTokenReady, denom)
	}
	if minimumBalance.LT(poolmath.MinBalanceFloor) {
		return fmt.Errorf("%w: %s", ErrMinBalance, minimumBalance)
	}
	if p.now().Sub(p.lastMembershipChange) < minBalanceUpdateDelay {
		return ErrMinBalanceCooldown
	}
	rec.MinimumBalance = minimumBalance
	// The new floor may already be covered by the held balance.
	p.increaseBalance(denom, sdkmath.LegacyZeroDec())
	return nil
}

// SetSwapFee updates the swap fee within the allowed band.
func (p *Pool) SetSwapFee(caller types.Account, fee sdkmath.LegacyDec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.controller {
		return fmt.Errorf("%w: %s", ErrNotController, caller)
	}
	if fee.IsNil() || fee.LT(poolmath.MinFee) || fee.GT(poolmath.MaxFee) {
		return fmt.Errorf("%w: %s", ErrInvalidFee, fee)
	}
	p.swapFee = fee
	return nil
}

// SetController hands pool control to a new account.
func (p *Pool) SetController(caller, controller types.Account) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.controller {
		return fmt.Errorf("%w: %s", ErrNotController, caller)
	}
	if controller == "" {
		return fmt.Errorf("%w: empty controller", ErrNotController)
	}
	p.controller = controller
	return nil
}

// SetExitFeeRecipient updates the account exit fees are minted to.
func (p *Pool) SetExitFeeRecipient(caller, recipient types.Account) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.controller {
		return fmt.Errorf("%w: %s", ErrNotController, caller)
	}
	p.exitFeeRecipient = recipient
	return nil
}

// SetMaxPoolTokens caps the pool share supply. Zero removes the cap.
func (p *Pool) SetMaxPoolTokens(caller types.Account, maxPoolTokens sdkmath.LegacyDec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.controller {
		return fmt.Errorf("%w: %s", ErrNotController, caller)
	}
	if maxPoolTokens.IsNil() || maxPoolTokens.IsNegative() {
		return fmt.Errorf("%w: max pool tokens %s", ErrMaxPoolTokens, maxPoolTokens)
	}
	p.maxPoolTokens = maxPoolTokens
	return nil
}
