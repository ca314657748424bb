/*

Fixed-point constants for the weighted pool engine.

All values are cosmossdk.io/math LegacyDec (18 fractional digits). Weight
bounds are enforced both at admission and after every interpolation step; the
ratio caps bound per-trade price impact and numerical error.

*/

package poolmath

import sdkmath "cosmossdk.io/math"

const (
	// MinBoundTokens is the smallest number of tokens a pool can hold.
	MinBoundTokens = 2
	// MaxBoundTokens is the largest number of tokens a pool can hold.
	MaxBoundTokens = 10
	// MaxCategoryTokens caps controller category membership.
	MaxCategoryTokens = 25
)

var (
	// MinWeight is the smallest denormalized weight a bound token may carry.
	// Not-yet-ready tokens are priced at exactly this weight.
	MinWeight = sdkmath.LegacyNewDecWithPrec(25, 2) // 0.25

	// MaxWeight is the largest denormalized weight a single token may carry.
	MaxWeight = sdkmath.LegacyNewDec(25)

	// MaxTotalWeight caps the sum of denormalized weights across the pool.
	MaxTotalWeight = sdkmath.LegacyNewDec(27)

	// WeightMultiplier is the scale the controller applies to sqrt-market-cap
	// weight fractions when computing desired denorms.
	WeightMultiplier = sdkmath.LegacyNewDec(25)

	// InitialWeightCeiling caps the weight a token can receive when it first
	// becomes ready, regardless of how far its balance exceeds the minimum.
	InitialWeightCeiling = MinWeight.MulInt64(2)

	// MinFee and MaxFee bound the configurable swap fee.
	MinFee = sdkmath.LegacyNewDecWithPrec(1, 6) // 0.0001%
	MaxFee = sdkmath.LegacyNewDecWithPrec(1, 1) // 10%

	// ExitFee is minted to the configured recipient on every exit.
	ExitFee = sdkmath.LegacyNewDecWithPrec(5, 3) // 0.5%

	// FlashFee is the minimum premium on flash-loan repayment.
	FlashFee = sdkmath.LegacyNewDecWithPrec(25, 3) // 2.5%

	// MaxInRatio caps amount-in at half the input-side balance.
	MaxInRatio = sdkmath.LegacyNewDecWithPrec(5, 1)

	// MaxOutRatio caps amount-out at a third of the output-side balance.
	MaxOutRatio = sdkmath.LegacyOneDec().Quo(sdkmath.LegacyNewDec(3))

	// MinBalanceFloor is the smallest admissible minimum balance.
	MinBalanceFloor = sdkmath.LegacyNewDecWithPrec(1, 12)

	// InitPoolSupply is the fixed share supply minted at pool initialization.
	InitPoolSupply = sdkmath.LegacyNewDec(100)
)
