/*

Closed-form weighted-invariant math.

Every trade and single-sided liquidity operation resolves to one of these
formulas over the pool's effective balances and weights. Fractional exponents
go through osmomath's iterative power approximation, which keeps the relative
error comfortably inside 1e-8 for the balance and weight ranges the pool
enforces.

*/

package poolmath

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/osmosis-labs/osmosis/osmomath"
)

var (
	ErrNonPositiveBalance = errors.New("balance must be positive")
	ErrNonPositiveWeight  = errors.New("weight must be positive")
	ErrNonPositiveSupply  = errors.New("pool supply must be positive")
	ErrAmountTooLarge     = errors.New("amount exceeds available balance")
)

// Pow raises base to a (possibly fractional) positive exponent.
func Pow(base, exp sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if !base.IsPositive() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: pow base %s", ErrNonPositiveBalance, base)
	}
	if exp.IsZero() {
		return sdkmath.LegacyOneDec(), nil
	}
	return osmomath.Pow(base, exp), nil
}

// CalcSpotPrice returns the instantaneous price of the output token in units
// of the input token: ((Bi/Wi)/(Bo/Wo)) * 1/(1-fee).
func CalcSpotPrice(balanceIn, weightIn, balanceOut, weightOut, swapFee sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if !balanceIn.IsPositive() || !balanceOut.IsPositive() {
		return sdkmath.LegacyDec{}, ErrNonPositiveBalance
	}
	if !weightIn.IsPositive() || !weightOut.IsPositive() {
		return sdkmath.LegacyDec{}, ErrNonPositiveWeight
	}
	numer := balanceIn.Quo(weightIn)
	denom := balanceOut.Quo(weightOut)
	scale := sdkmath.LegacyOneDec().Quo(sdkmath.LegacyOneDec().Sub(swapFee))
	return numer.Quo(denom).Mul(scale), nil
}

// CalcOutGivenIn solves the weighted invariant for the output amount of an
// exact-in swap: Ao = Bo * (1 - (Bi / (Bi + Ai*(1-fee)))^(Wi/Wo)).
func CalcOutGivenIn(balanceIn, weightIn, balanceOut, weightOut, amountIn, swapFee sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if !balanceIn.IsPositive() || !balanceOut.IsPositive() {
		return sdkmath.LegacyDec{}, ErrNonPositiveBalance
	}
	weightRatio := weightIn.Quo(weightOut)
	adjustedIn := amountIn.Mul(sdkmath.LegacyOneDec().Sub(swapFee))
	y := balanceIn.Quo(balanceIn.Add(adjustedIn))
	bar, err := Pow(y, weightRatio)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	return balanceOut.Mul(sdkmath.LegacyOneDec().Sub(bar)), nil
}

// CalcInGivenOut solves the weighted invariant for the input amount of an
// exact-out swap: Ai = Bi * ((Bo / (Bo - Ao))^(Wo/Wi) - 1) / (1-fee).
func CalcInGivenOut(balanceIn, weightIn, balanceOut, weightOut, amountOut, swapFee sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if !balanceIn.IsPositive() || !balanceOut.IsPositive() {
		return sdkmath.LegacyDec{}, ErrNonPositiveBalance
	}
	if amountOut.GTE(balanceOut) {
		return sdkmath.LegacyDec{}, ErrAmountTooLarge
	}
	weightRatio := weightOut.Quo(weightIn)
	diff := balanceOut.Sub(amountOut)
	y := balanceOut.Quo(diff)
	foo, err := Pow(y, weightRatio)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	foo = foo.Sub(sdkmath.LegacyOneDec())
	return balanceIn.Mul(foo).Quo(sdkmath.LegacyOneDec().Sub(swapFee)), nil
}

// CalcPoolOutGivenSingleIn returns the pool shares minted for a single-token
// deposit. The portion of the deposit that implicitly trades into the other
// tokens pays the swap fee.
func CalcPoolOutGivenSingleIn(balanceIn, weightIn, poolSupply, totalWeight, amountIn, swapFee sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if !poolSupply.IsPositive() {
		return sdkmath.LegacyDec{}, ErrNonPositiveSupply
	}
	if !balanceIn.IsPositive() {
		return sdkmath.LegacyDec{}, ErrNonPositiveBalance
	}
	normalizedWeight := weightIn.Quo(totalWeight)
	zaz := sdkmath.LegacyOneDec().Sub(normalizedWeight).Mul(swapFee)
	inAfterFee := amountIn.Mul(sdkmath.LegacyOneDec().Sub(zaz))
	ratio := balanceIn.Add(inAfterFee).Quo(balanceIn)
	poolRatio, err := Pow(ratio, normalizedWeight)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	return poolRatio.Mul(poolSupply).Sub(poolSupply), nil
}

// CalcSingleInGivenPoolOut returns the single-token deposit required to mint
// an exact number of pool shares.
func CalcSingleInGivenPoolOut(balanceIn, weightIn, poolSupply, totalWeight, poolAmountOut, swapFee sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if !poolSupply.IsPositive() {
		return sdkmath.LegacyDec{}, ErrNonPositiveSupply
	}
	if !balanceIn.IsPositive() {
		return sdkmath.LegacyDec{}, ErrNonPositiveBalance
	}
	normalizedWeight := weightIn.Quo(totalWeight)
	newSupply := poolSupply.Add(poolAmountOut)
	ratio := newSupply.Quo(poolSupply)
	balRatio, err := Pow(ratio, sdkmath.LegacyOneDec().Quo(normalizedWeight))
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	inAfterFee := balanceIn.Mul(balRatio).Sub(balanceIn)
	zar := sdkmath.LegacyOneDec().Sub(normalizedWeight).Mul(swapFee)
	return inAfterFee.Quo(sdkmath.LegacyOneDec().Sub(zar)), nil
}

// CalcSingleOutGivenPoolIn returns the single-token withdrawal paid out for
// burning an exact number of pool shares. The exit fee is charged on the
// shares, the swap fee on the implicitly traded portion.
func CalcSingleOutGivenPoolIn(balanceOut, weightOut, poolSupply, totalWeight, poolAmountIn, swapFee, exitFee sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if !poolSupply.IsPositive() {
		return sdkmath.LegacyDec{}, ErrNonPositiveSupply
	}
	if !balanceOut.IsPositive() {
		return sdkmath.LegacyDec{}, ErrNonPositiveBalance
	}
	normalizedWeight := weightOut.Quo(totalWeight)
	poolInAfterExit := poolAmountIn.Mul(sdkmath.LegacyOneDec().Sub(exitFee))
	newSupply := poolSupply.Sub(poolInAfterExit)
	if !newSupply.IsPositive() {
		return sdkmath.LegacyDec{}, ErrAmountTooLarge
	}
	ratio := newSupply.Quo(poolSupply)
	outRatio, err := Pow(ratio, sdkmath.LegacyOneDec().Quo(normalizedWeight))
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	beforeFee := balanceOut.Sub(balanceOut.Mul(outRatio))
	feeScale := sdkmath.LegacyOneDec().Sub(sdkmath.LegacyOneDec().Sub(normalizedWeight).Mul(swapFee))
	return beforeFee.Mul(feeScale), nil
}

// CalcPoolInGivenSingleOut returns the pool shares that must be burned to
// withdraw an exact single-token amount.
func CalcPoolInGivenSingleOut(balanceOut, weightOut, poolSupply, totalWeight, amountOut, swapFee, exitFee sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if !poolSupply.IsPositive() {
		return sdkmath.LegacyDec{}, ErrNonPositiveSupply
	}
	if !balanceOut.IsPositive() {
		return sdkmath.LegacyDec{}, ErrNonPositiveBalance
	}
	normalizedWeight := weightOut.Quo(totalWeight)
	feeScale := sdkmath.LegacyOneDec().Sub(sdkmath.LegacyOneDec().Sub(normalizedWeight).Mul(swapFee))
	beforeFee := amountOut.Quo(feeScale)
	if beforeFee.GTE(balanceOut) {
		return sdkmath.LegacyDec{}, ErrAmountTooLarge
	}
	ratio := balanceOut.Sub(beforeFee).Quo(balanceOut)
	poolRatio, err := Pow(ratio, normalizedWeight)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	burned := poolSupply.Sub(poolRatio.Mul(poolSupply))
	return burned.Quo(sdkmath.LegacyOneDec().Sub(exitFee)), nil
}
