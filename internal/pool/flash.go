/*

Flash loans and balance reconciliation.

Flash hands the borrower the requested amount, invokes its callback, and then
checks the held balance grew by at least the flash fee. The busy flag set by
enter() stays up for the whole call, so the borrower cannot trade against the
pool mid-loan. Gulp folds any tokens sent directly to the pool account into
the recorded balance, or flushes them to the unbind handler when the token is
no longer bound.

*/

package pool

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/indexed-finance/indexed-core-sub000/internal/poolmath"
)

// Flash lends amount of denom to the borrower for the duration of its
// callback. The callback must return the principal plus the flash fee to the
// pool account or the whole loan is unwound.
func (p *Pool) Flash(borrower FlashBorrower, denom string, amount sdkmath.LegacyDec, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()

	if !p.publicSwap {
		return ErrNotInitialized
	}
	rec, ok := p.records[denom]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotBound, denom)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount %s", ErrMathApprox, amount)
	}
	// Only recorded liquidity is lendable. Tokens transferred to the pool
	// account but not yet gulped are excluded.
	if amount.GT(rec.Balance) {
		return fmt.Errorf("%w: %s recorded %s", ErrInsufficientBalance, denom, rec.Balance)
	}
	held := p.ledger.BalanceOf(denom, p.Account())

	fee := amount.Mul(poolmath.FlashFee)
	due := amount.Add(fee)

	snap := p.ledger.Snapshot()
	if err := p.ledger.Transfer(denom, p.Account(), borrower.Account(), amount); err != nil {
		p.ledger.Restore(snap)
		return fmt.Errorf("flash: %w", err)
	}
	// The callback may read pool state, so the lock is released for its
	// duration. busy stays set, which keeps nested mutations out.
	p.mu.Unlock()
	cbErr := borrower.ExecuteFlashLoan(denom, amount, due, data)
	p.mu.Lock()
	if cbErr != nil {
		p.ledger.Restore(snap)
		return fmt.Errorf("flash callback: %w", cbErr)
	}
	after := p.ledger.BalanceOf(denom, p.Account())
	if after.LT(held.Add(fee)) {
		p.ledger.Restore(snap)
		return fmt.Errorf("%w: flash repaid %s, due %s", ErrInsufficientPayment, after.Sub(held.Sub(amount)), due)
	}

	// The fee (and any overpayment) stays in the pool as extra liquidity.
	gain := after.Sub(held)
	p.increaseBalance(denom, gain)
	p.adjustWeight(denom)

	p.log.Debug().
		Str("denom", denom).
		Str("amount", amount.String()).
		Str("fee_received", gain.String()).
		Msg("Flash loan settled")
	return nil
}

// Gulp reconciles the recorded balance of denom with the amount the pool
// account actually holds. For bound tokens the surplus becomes pool
// liquidity; for unbound tokens the entire held amount is flushed to the
// unbind handler.
func (p *Pool) Gulp(denom string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()

	held := p.ledger.BalanceOf(denom, p.Account())
	rec, bound := p.records[denom]
	if !bound {
		if held.IsZero() {
			return nil
		}
		if err := p.ledger.Transfer(denom, p.Account(), p.unbindHandler.Account(), held); err != nil {
			return fmt.Errorf("gulp flush: %w", err)
		}
		p.unbindHandler.ReceiveEvictedToken(denom, held)
		p.log.Info().
			Str("denom", denom).
			Str("amount", held.String()).
			Msg("Unbound token flushed to unbind handler")
		return nil
	}
	if held.LTE(rec.Balance) {
		// Nothing to absorb. Recorded balances never exceed held balances,
		// so equality is the idle case.
		return nil
	}
	surplus := held.Sub(rec.Balance)
	p.increaseBalance(denom, surplus)
	p.adjustWeight(denom)
	p.log.Debug().
		Str("denom", denom).
		Str("surplus", surplus.String()).
		Msg("Direct transfer absorbed into pool balance")
	return nil
}
