/*

Join and exit entry points, proportional and single-sided.

Proportional joins price not-yet-ready tokens at their minimum balance, which
is how new tokens accumulate real liquidity. Exits only pay out ready tokens;
the fixed exit fee is moved to the configured recipient in pool shares.

*/

package pool

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/indexed-finance/indexed-core-sub000/internal/poolmath"
	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

// JoinPool mints an exact number of pool shares against a proportional
// deposit of every bound token, bounded per token by maxAmountsIn.
func (p *Pool) JoinPool(caller types.Account, poolAmountOut sdkmath.LegacyDec, maxAmountsIn []sdkmath.LegacyDec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()

	if !p.publicSwap {
		return ErrNotInitialized
	}
	if len(maxAmountsIn) != len(p.tokens) {
		return fmt.Errorf("%w: %d limits, %d tokens", ErrArrayLen, len(maxAmountsIn), len(p.tokens))
	}
	if !poolAmountOut.IsPositive() {
		return fmt.Errorf("%w: pool amount out %s", ErrMathApprox, poolAmountOut)
	}
	if err := p.checkShareCap(poolAmountOut); err != nil {
		return err
	}
	ratio := poolAmountOut.Quo(p.totalSupply)
	if ratio.IsZero() {
		return fmt.Errorf("%w: join too small", ErrMathApprox)
	}

	amountsIn := make([]sdkmath.LegacyDec, len(p.tokens))
	for i, denom := range p.tokens {
		rec := p.records[denom]
		amountIn := ratio.Mul(rec.EffectiveBalance())
		if amountIn.IsZero() {
			return fmt.Errorf("%w: zero deposit for %s", ErrMathApprox, denom)
		}
		if amountIn.GT(maxAmountsIn[i]) {
			return fmt.Errorf("%w: %s needs %s, max %s", ErrLimitIn, denom, amountIn, maxAmountsIn[i])
		}
		amountsIn[i] = amountIn
	}

	snap := p.ledger.Snapshot()
	for i, denom := range p.tokens {
		if err := p.ledger.Transfer(denom, caller, p.Account(), amountsIn[i]); err != nil {
			p.ledger.Restore(snap)
			return fmt.Errorf("join: %w", err)
		}
	}
	for i, denom := range p.tokens {
		p.increaseBalance(denom, amountsIn[i])
	}
	for _, denom := range p.currentTokens() {
		p.adjustWeight(denom)
	}
	p.mintShares(caller, poolAmountOut)

	p.log.Debug().
		Str("account", string(caller)).
		Str("pool_amount_out", poolAmountOut.String()).
		Msg("Proportional join executed")
	return nil
}

// ExitPool burns an exact number of pool shares for a proportional share of
// every ready token. Limits for not-ready tokens must be zero.
func (p *Pool) ExitPool(caller types.Account, poolAmountIn sdkmath.LegacyDec, minAmountsOut []sdkmath.LegacyDec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()

	if !p.publicSwap {
		return ErrNotInitialized
	}
	if len(minAmountsOut) != len(p.tokens) {
		return fmt.Errorf("%w: %d limits, %d tokens", ErrArrayLen, len(minAmountsOut), len(p.tokens))
	}
	if !poolAmountIn.IsPositive() {
		return fmt.Errorf("%w: pool amount in %s", ErrMathApprox, poolAmountIn)
	}
	exitFee := poolAmountIn.Mul(poolmath.ExitFee)
	netShares := poolAmountIn.Sub(exitFee)
	ratio := netShares.Quo(p.totalSupply)
	if ratio.IsZero() {
		return fmt.Errorf("%w: exit too small", ErrMathApprox)
	}

	amountsOut := make([]sdkmath.LegacyDec, len(p.tokens))
	for i, denom := range p.tokens {
		rec := p.records[denom]
		if !rec.Ready {
			if !minAmountsOut[i].IsZero() {
				return fmt.Errorf("%w: %s", ErrOutNotReady, denom)
			}
			amountsOut[i] = sdkmath.LegacyZeroDec()
			continue
		}
		amountOut := ratio.Mul(rec.Balance)
		if amountOut.LT(minAmountsOut[i]) {
			return fmt.Errorf("%w: %s pays %s, min %s", ErrLimitOut, denom, amountOut, minAmountsOut[i])
		}
		amountsOut[i] = amountOut
	}

	if err := p.burnShares(caller, netShares); err != nil {
		return err
	}
	if err := p.moveShares(caller, p.exitFeeRecipient, exitFee); err != nil {
		p.mintShares(caller, netShares)
		return err
	}

	snap := p.ledger.Snapshot()
	for i, denom := range p.tokens {
		if amountsOut[i].IsZero() {
			continue
		}
		if err := p.ledger.Transfer(denom, p.Account(), caller, amountsOut[i]); err != nil {
			p.ledger.Restore(snap)
			p.mintShares(caller, netShares)
			_ = p.moveShares(p.exitFeeRecipient, caller, exitFee)
			return fmt.Errorf("exit: %w", err)
		}
	}
	tokens := p.currentTokens()
	for i, denom := range tokens {
		rec := p.records[denom]
		if amountsOut[i].IsPositive() {
			rec.Balance = rec.Balance.Sub(amountsOut[i])
		}
	}
	for _, denom := range tokens {
		p.adjustWeight(denom)
	}

	p.log.Debug().
		Str("account", string(caller)).
		Str("pool_amount_in", poolAmountIn.String()).
		Msg("Proportional exit executed")
	return nil
}

// JoinswapExternAmountIn deposits an exact amount of a single token for at
// least minPoolAmountOut shares.
func (p *Pool) JoinswapExternAmountIn(caller types.Account, tokenIn string, amountIn, minPoolAmountOut sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(); err != nil {
		return sdkmath.LegacyDec{}, err
	}
	defer p.exit()

	if !p.publicSwap {
		return sdkmath.LegacyDec{}, ErrNotInitialized
	}
	rec, ok := p.records[tokenIn]
	if !ok {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrNotBound, tokenIn)
	}
	if !amountIn.IsPositive() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: amount in %s", ErrMathApprox, amountIn)
	}
	balIn, _ := p.effectiveParams(rec)
	if amountIn.GT(balIn.Mul(poolmath.MaxInRatio)) {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s of %s", ErrMaxInRatio, amountIn, balIn)
	}
	weight, total := p.effectiveWeightAndTotal(rec)
	poolAmountOut, err := poolmath.CalcPoolOutGivenSingleIn(balIn, weight, p.totalSupply, total, amountIn, p.swapFee)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if poolAmountOut.IsZero() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: deposit too small", ErrMathApprox)
	}
	if poolAmountOut.LT(minPoolAmountOut) {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: mints %s, min %s", ErrLimitOut, poolAmountOut, minPoolAmountOut)
	}
	if err := p.checkShareCap(poolAmountOut); err != nil {
		return sdkmath.LegacyDec{}, err
	}

	if err := p.ledger.Transfer(tokenIn, caller, p.Account(), amountIn); err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("joinswap: %w", err)
	}
	p.increaseBalance(tokenIn, amountIn)
	p.adjustWeight(tokenIn)
	p.mintShares(caller, poolAmountOut)
	return poolAmountOut, nil
}

// JoinswapPoolAmountOut mints an exact number of shares against a single
// token deposit of at most maxAmountIn.
func (p *Pool) JoinswapPoolAmountOut(caller types.Account, tokenIn string, poolAmountOut, maxAmountIn sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(); err != nil {
		return sdkmath.LegacyDec{}, err
	}
	defer p.exit()

	if !p.publicSwap {
		return sdkmath.LegacyDec{}, ErrNotInitialized
	}
	rec, ok := p.records[tokenIn]
	if !ok {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrNotBound, tokenIn)
	}
	if !poolAmountOut.IsPositive() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: pool amount out %s", ErrMathApprox, poolAmountOut)
	}
	if err := p.checkShareCap(poolAmountOut); err != nil {
		return sdkmath.LegacyDec{}, err
	}
	balIn, _ := p.effectiveParams(rec)
	weight, total := p.effectiveWeightAndTotal(rec)
	amountIn, err := poolmath.CalcSingleInGivenPoolOut(balIn, weight, p.totalSupply, total, poolAmountOut, p.swapFee)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if amountIn.IsZero() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: join too small", ErrMathApprox)
	}
	if amountIn.GT(maxAmountIn) {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: needs %s, max %s", ErrLimitIn, amountIn, maxAmountIn)
	}
	if amountIn.GT(balIn.Mul(poolmath.MaxInRatio)) {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s of %s", ErrMaxInRatio, amountIn, balIn)
	}

	if err := p.ledger.Transfer(tokenIn, caller, p.Account(), amountIn); err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("joinswap: %w", err)
	}
	p.increaseBalance(tokenIn, amountIn)
	p.adjustWeight(tokenIn)
	p.mintShares(caller, poolAmountOut)
	return amountIn, nil
}

// ExitswapPoolAmountIn burns an exact number of shares for a single-token
// withdrawal of at least minAmountOut. The output token must be ready.
func (p *Pool) ExitswapPoolAmountIn(caller types.Account, tokenOut string, poolAmountIn, minAmountOut sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(); err != nil {
		return sdkmath.LegacyDec{}, err
	}
	defer p.exit()

	if !p.publicSwap {
		return sdkmath.LegacyDec{}, ErrNotInitialized
	}
	rec, ok := p.records[tokenOut]
	if !ok {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrNotBound, tokenOut)
	}
	if !rec.Ready {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrOutNotReady, tokenOut)
	}
	if !poolAmountIn.IsPositive() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: pool amount in %s", ErrMathApprox, poolAmountIn)
	}
	total := p.totalDenorm()
	amountOut, err := poolmath.CalcSingleOutGivenPoolIn(rec.Balance, rec.Denorm, p.totalSupply, total, poolAmountIn, p.swapFee, poolmath.ExitFee)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if amountOut.IsZero() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: exit too small", ErrMathApprox)
	}
	if amountOut.LT(minAmountOut) {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: pays %s, min %s", ErrLimitOut, amountOut, minAmountOut)
	}
	if amountOut.GT(rec.Balance.Mul(poolmath.MaxOutRatio)) {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s of %s", ErrMaxOutRatio, amountOut, rec.Balance)
	}

	exitFee := poolAmountIn.Mul(poolmath.ExitFee)
	if err := p.burnShares(caller, poolAmountIn.Sub(exitFee)); err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if err := p.moveShares(caller, p.exitFeeRecipient, exitFee); err != nil {
		p.mintShares(caller, poolAmountIn.Sub(exitFee))
		return sdkmath.LegacyDec{}, err
	}
	if err := p.ledger.Transfer(tokenOut, p.Account(), caller, amountOut); err != nil {
		p.mintShares(caller, poolAmountIn.Sub(exitFee))
		_ = p.moveShares(p.exitFeeRecipient, caller, exitFee)
		return sdkmath.LegacyDec{}, fmt.Errorf("exitswap: %w", err)
	}
	rec.Balance = rec.Balance.Sub(amountOut)
	p.adjustWeight(tokenOut)
	return amountOut, nil
}

// ExitswapExternAmountOut withdraws an exact single-token amount by burning
// at most maxPoolAmountIn shares.
func (p *Pool) ExitswapExternAmountOut(caller types.Account, tokenOut string, amountOut, maxPoolAmountIn sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(); err != nil {
		return sdkmath.LegacyDec{}, err
	}
	defer p.exit()

	if !p.publicSwap {
		return sdkmath.LegacyDec{}, ErrNotInitialized
	}
	rec, ok := p.records[tokenOut]
	if !ok {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrNotBound, tokenOut)
	}
	if !rec.Ready {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrOutNotReady, tokenOut)
	}
	if !amountOut.IsPositive() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: amount out %s", ErrMathApprox, amountOut)
	}
	if amountOut.GT(rec.Balance.Mul(poolmath.MaxOutRatio)) {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s of %s", ErrMaxOutRatio, amountOut, rec.Balance)
	}
	total := p.totalDenorm()
	poolAmountIn, err := poolmath.CalcPoolInGivenSingleOut(rec.Balance, rec.Denorm, p.totalSupply, total, amountOut, p.swapFee, poolmath.ExitFee)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if poolAmountIn.IsZero() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: exit too small", ErrMathApprox)
	}
	if poolAmountIn.GT(maxPoolAmountIn) {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: burns %s, max %s", ErrLimitIn, poolAmountIn, maxPoolAmountIn)
	}

	exitFee := poolAmountIn.Mul(poolmath.ExitFee)
	if err := p.burnShares(caller, poolAmountIn.Sub(exitFee)); err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if err := p.moveShares(caller, p.exitFeeRecipient, exitFee); err != nil {
		p.mintShares(caller, poolAmountIn.Sub(exitFee))
		return sdkmath.LegacyDec{}, err
	}
	if err := p.ledger.Transfer(tokenOut, p.Account(), caller, amountOut); err != nil {
		p.mintShares(caller, poolAmountIn.Sub(exitFee))
		_ = p.moveShares(p.exitFeeRecipient, caller, exitFee)
		return sdkmath.LegacyDec{}, fmt.Errorf("exitswap: %w", err)
	}
	rec.Balance = rec.Balance.Sub(amountOut)
	p.adjustWeight(tokenOut)
	return poolAmountIn, nil
}

func (p *Pool) checkShareCap(mintAmount sdkmath.LegacyDec) error {
	if p.maxPoolTokens.IsZero() {
		return nil
	}
	if p.totalSupply.Add(mintAmount).GT(p.maxPoolTokens) {
		return fmt.Errorf("%w: supply %s + %s over cap %s", ErrMaxPoolTokens, p.totalSupply, mintAmount, p.maxPoolTokens)
	}
	return nil
}
