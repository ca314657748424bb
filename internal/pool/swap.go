/*

Swap entry points.

Both directions honor the per-trade ratio caps, the caller's limit price
checked before and after the trade, and the caller's min-out / max-in bound.
A bound-but-not-ready token is priced at its minimum balance and the minimum
weight and can only ever be the input side of a trade.

*/

package pool

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/indexed-finance/indexed-core-sub000/internal/poolmath"
	"github.com/indexed-finance/indexed-core-sub000/internal/telemetry"
	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

// SwapExactAmountIn trades an exact input amount for at least minAmountOut of
// the output token. Returns the output amount and the post-trade spot price.
func (p *Pool) SwapExactAmountIn(
	caller types.Account,
	tokenIn string,
	amountIn sdkmath.LegacyDec,
	tokenOut string,
	minAmountOut sdkmath.LegacyDec,
	maxPrice sdkmath.LegacyDec,
) (sdkmath.LegacyDec, sdkmath.LegacyDec, error) {
	fail := func(err error) (sdkmath.LegacyDec, sdkmath.LegacyDec, error) {
		return sdkmath.LegacyDec{}, sdkmath.LegacyDec{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(); err != nil {
		return fail(err)
	}
	defer p.exit()

	recIn, recOut, err := p.swapRecords(tokenIn, tokenOut)
	if err != nil {
		return fail(err)
	}
	if !amountIn.IsPositive() {
		return fail(fmt.Errorf("%w: amount in %s", ErrMathApprox, amountIn))
	}
	balIn, weightIn := p.effectiveParams(recIn)
	inWasReady := recIn.Ready

	if amountIn.GT(balIn.Mul(poolmath.MaxInRatio)) {
		return fail(fmt.Errorf("%w: %s of %s", ErrMaxInRatio, amountIn, balIn))
	}
	spotBefore, err := poolmath.CalcSpotPrice(balIn, weightIn, recOut.Balance, recOut.Denorm, p.swapFee)
	if err != nil {
		return fail(err)
	}
	if spotBefore.GT(maxPrice) {
		return fail(fmt.Errorf("%w: spot %s, limit %s", ErrLimitPrice, spotBefore, maxPrice))
	}

	amountOut, err := poolmath.CalcOutGivenIn(balIn, weightIn, recOut.Balance, recOut.Denorm, amountIn, p.swapFee)
	if err != nil {
		return fail(err)
	}
	if amountOut.IsZero() {
		return fail(fmt.Errorf("%w: trade too small", ErrMathApprox))
	}
	if amountOut.LT(minAmountOut) {
		return fail(fmt.Errorf("%w: out %s, min %s", ErrLimitOut, amountOut, minAmountOut))
	}
	if amountOut.GT(recOut.Balance.Mul(poolmath.MaxOutRatio)) {
		return fail(fmt.Errorf("%w: %s of %s", ErrMaxOutRatio, amountOut, recOut.Balance))
	}

	snap := p.ledger.Snapshot()
	inBefore, outBefore := *recIn, *recOut
	revert := func() {
		p.ledger.Restore(snap)
		*recIn, *recOut = inBefore, outBefore
	}
	if err := p.ledger.Transfer(tokenIn, caller, p.Account(), amountIn); err != nil {
		return fail(fmt.Errorf("swap in: %w", err))
	}
	if err := p.ledger.Transfer(tokenOut, p.Account(), caller, amountOut); err != nil {
		revert()
		return fail(fmt.Errorf("swap out: %w", err))
	}

	p.increaseBalance(tokenIn, amountIn)
	recOut.Balance = recOut.Balance.Sub(amountOut)

	balInAfter, weightInAfter := p.effectiveParams(recIn)
	spotAfter, err := poolmath.CalcSpotPrice(balInAfter, weightInAfter, recOut.Balance, recOut.Denorm, p.swapFee)
	if err != nil {
		revert()
		return fail(err)
	}
	// Readiness can flip mid-trade and legitimately reprice the input side,
	// so the monotonicity check only applies to trades between ready tokens.
	if inWasReady && spotAfter.LT(spotBefore) {
		revert()
		return fail(fmt.Errorf("%w: spot price decreased", ErrMathApprox))
	}
	if spotAfter.GT(maxPrice) {
		revert()
		return fail(fmt.Errorf("%w: post-trade spot %s, limit %s", ErrLimitPrice, spotAfter, maxPrice))
	}

	// Weight steps happen after the price checks: a step's price effect is
	// bounded by the swap fee and must not fail an otherwise valid trade.
	p.adjustWeight(tokenIn)
	p.adjustWeight(tokenOut)

	telemetry.SwapsPriced.Inc()
	p.log.Debug().
		Str("token_in", tokenIn).Str("token_out", tokenOut).
		Str("amount_in", amountIn.String()).Str("amount_out", amountOut.String()).
		Str("spot_after", spotAfter.String()).
		Msg("Exact-in swap executed")
	return amountOut, spotAfter, nil
}

// SwapExactAmountOut trades at most maxAmountIn of the input token for an
// exact output amount. Returns the input amount and the post-trade spot price.
func (p *Pool) SwapExactAmountOut(
	caller types.Account,
	tokenIn string,
	maxAmountIn sdkmath.LegacyDec,
	tokenOut string,
	amountOut sdkmath.LegacyDec,
	maxPrice sdkmath.LegacyDec,
) (sdkmath.LegacyDec, sdkmath.LegacyDec, error) {
	fail := func(err error) (sdkmath.LegacyDec, sdkmath.LegacyDec, error) {
		return sdkmath.LegacyDec{}, sdkmath.LegacyDec{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(); err != nil {
		return fail(err)
	}
	defer p.exit()

	recIn, recOut, err := p.swapRecords(tokenIn, tokenOut)
	if err != nil {
		return fail(err)
	}
	if !amountOut.IsPositive() {
		return fail(fmt.Errorf("%w: amount out %s", ErrMathApprox, amountOut))
	}
	if amountOut.GT(recOut.Balance.Mul(poolmath.MaxOutRatio)) {
		return fail(fmt.Errorf("%w: %s of %s", ErrMaxOutRatio, amountOut, recOut.Balance))
	}
	balIn, weightIn := p.effectiveParams(recIn)
	inWasReady := recIn.Ready

	spotBefore, err := poolmath.CalcSpotPrice(balIn, weightIn, recOut.Balance, recOut.Denorm, p.swapFee)
	if err != nil {
		return fail(err)
	}
	if spotBefore.GT(maxPrice) {
		return fail(fmt.Errorf("%w: spot %s, limit %s", ErrLimitPrice, spotBefore, maxPrice))
	}

	amountIn, err := poolmath.CalcInGivenOut(balIn, weightIn, recOut.Balance, recOut.Denorm, amountOut, p.swapFee)
	if err != nil {
		return fail(err)
	}
	if amountIn.IsZero() {
		return fail(fmt.Errorf("%w: trade too small", ErrMathApprox))
	}
	if amountIn.GT(maxAmountIn) {
		return fail(fmt.Errorf("%w: in %s, max %s", ErrLimitIn, amountIn, maxAmountIn))
	}
	if amountIn.GT(balIn.Mul(poolmath.MaxInRatio)) {
		return fail(fmt.Errorf("%w: %s of %s", ErrMaxInRatio, amountIn, balIn))
	}

	snap := p.ledger.Snapshot()
	inBefore, outBefore := *recIn, *recOut
	revert := func() {
		p.ledger.Restore(snap)
		*recIn, *recOut = inBefore, outBefore
	}
	if err := p.ledger.Transfer(tokenIn, caller, p.Account(), amountIn); err != nil {
		return fail(fmt.Errorf("swap in: %w", err))
	}
	if err := p.ledger.Transfer(tokenOut, p.Account(), caller, amountOut); err != nil {
		revert()
		return fail(fmt.Errorf("swap out: %w", err))
	}

	p.increaseBalance(tokenIn, amountIn)
	recOut.Balance = recOut.Balance.Sub(amountOut)

	balInAfter, weightInAfter := p.effectiveParams(recIn)
	spotAfter, err := poolmath.CalcSpotPrice(balInAfter, weightInAfter, recOut.Balance, recOut.Denorm, p.swapFee)
	if err != nil {
		revert()
		return fail(err)
	}
	if inWasReady && spotAfter.LT(spotBefore) {
		revert()
		return fail(fmt.Errorf("%w: spot price decreased", ErrMathApprox))
	}
	if spotAfter.GT(maxPrice) {
		revert()
		return fail(fmt.Errorf("%w: post-trade spot %s, limit %s", ErrLimitPrice, spotAfter, maxPrice))
	}

	p.adjustWeight(tokenIn)
	p.adjustWeight(tokenOut)

	telemetry.SwapsPriced.Inc()
	p.log.Debug().
		Str("token_in", tokenIn).Str("token_out", tokenOut).
		Str("amount_in", amountIn.String()).Str("amount_out", amountOut.String()).
		Msg("Exact-out swap executed")
	return amountIn, spotAfter, nil
}

// swapRecords resolves both sides of a trade. The output side must be ready.
func (p *Pool) swapRecords(tokenIn, tokenOut string) (*types.TokenRecord, *types.TokenRecord, error) {
	if !p.publicSwap {
		return nil, nil, ErrNotInitialized
	}
	recIn, ok := p.records[tokenIn]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotBound, tokenIn)
	}
	recOut, ok := p.records[tokenOut]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotBound, tokenOut)
	}
	if !recOut.Ready {
		return nil, nil, fmt.Errorf("%w: %s", ErrOutNotReady, tokenOut)
	}
	return recIn, recOut, nil
}
