package pool

import (
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/indexed-finance/indexed-core-sub000/internal/bank"
	"github.com/indexed-finance/indexed-core-sub000/internal/poolmath"
	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

const (
	ctrl  = types.Account("controller")
	alice = types.Account("alice")
	bob   = types.Account("bob")
	feeTo = types.Account("treasury")
)

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type stubSink struct {
	received map[string]sdkmath.LegacyDec
}

func newStubSink() *stubSink {
	return &stubSink{received: make(map[string]sdkmath.LegacyDec)}
}

func (s *stubSink) Account() types.Account { return "sink" }

func (s *stubSink) ReceiveEvictedToken(denom string, amount sdkmath.LegacyDec) {
	prev, ok := s.received[denom]
	if !ok {
		prev = sdkmath.LegacyZeroDec()
	}
	s.received[denom] = prev.Add(amount)
}

type testEnv struct {
	pool   *Pool
	ledger *bank.Ledger
	clock  *fakeClock
	sink   *stubSink
}

// newTestPool initializes a three-token pool funded by alice:
// tokena 100 @ weight 10, tokenb 50 @ weight 10, tokenc 20 @ weight 5.
func newTestPool(t *testing.T, swapFee sdkmath.LegacyDec) *testEnv {
	t.Helper()
	ledger := bank.NewLedger()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	sink := newStubSink()

	for _, denom := range []string{"tokena", "tokenb", "tokenc", "tokend"} {
		require.NoError(t, ledger.Mint(denom, alice, dec("1000")))
		require.NoError(t, ledger.Mint(denom, bob, dec("1000")))
	}

	p, err := New(Config{
		ID:               types.PoolID("testpool"),
		Controller:       ctrl,
		Ledger:           ledger,
		SwapFee:          swapFee,
		ExitFeeRecipient: feeTo,
		UnbindHandler:    sink,
		Now:              clock.Now,
	})
	require.NoError(t, err)

	err = p.Initialize(ctrl, alice,
		[]string{"tokena", "tokenb", "tokenc"},
		[]sdkmath.LegacyDec{dec("100"), dec("50"), dec("20")},
		[]sdkmath.LegacyDec{dec("10"), dec("10"), dec("5")},
	)
	require.NoError(t, err)
	return &testEnv{pool: p, ledger: ledger, clock: clock, sink: sink}
}

func TestInitializeMintsSupplyAndOpensSwaps(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	require.True(t, env.pool.IsPublicSwap())
	require.True(t, env.pool.GetTotalSupply().Equal(poolmath.InitPoolSupply))
	require.True(t, env.pool.SharesOf(alice).Equal(poolmath.InitPoolSupply))
	require.Equal(t, 3, env.pool.GetNumTokens())
	require.True(t, env.pool.GetTotalDenormalizedWeight().Equal(dec("25")))

	bal := env.ledger.BalanceOf("tokena", env.pool.Account())
	require.True(t, bal.Equal(dec("100")))

	err := env.pool.Initialize(ctrl, alice, []string{"tokena", "tokenb"},
		[]sdkmath.LegacyDec{dec("1"), dec("1")},
		[]sdkmath.LegacyDec{dec("1"), dec("1")})
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestSwapExactAmountInMatchesClosedForm(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	amountIn := dec("2")
	expected, err := poolmath.CalcOutGivenIn(dec("100"), dec("10"), dec("50"), dec("10"), amountIn, dec("0.003"))
	require.NoError(t, err)

	bobBefore := env.ledger.BalanceOf("tokenb", bob)
	amountOut, spotAfter, err := env.pool.SwapExactAmountIn(bob, "tokena", amountIn, "tokenb", dec("0"), dec("100"))
	require.NoError(t, err)
	require.True(t, amountOut.Equal(expected), "out %s want %s", amountOut, expected)

	// Caller received exactly the quoted amount.
	gain := env.ledger.BalanceOf("tokenb", bob).Sub(bobBefore)
	require.True(t, gain.Equal(expected))

	// Price moved against the trade direction.
	spotBefore, err := poolmath.CalcSpotPrice(dec("100"), dec("10"), dec("50"), dec("10"), dec("0.003"))
	require.NoError(t, err)
	require.True(t, spotAfter.GT(spotBefore))

	balA, _ := env.pool.GetBalance("tokena")
	balB, _ := env.pool.GetBalance("tokenb")
	require.True(t, balA.Equal(dec("102")))
	require.True(t, balB.Equal(dec("50").Sub(expected)))
}

func TestSwapExactAmountOutChargesQuotedInput(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	amountOut := dec("1")
	expectedIn, err := poolmath.CalcInGivenOut(dec("100"), dec("10"), dec("50"), dec("10"), amountOut, dec("0.003"))
	require.NoError(t, err)

	amountIn, _, err := env.pool.SwapExactAmountOut(bob, "tokena", dec("10"), "tokenb", amountOut, dec("100"))
	require.NoError(t, err)
	require.True(t, amountIn.Equal(expectedIn), "in %s want %s", amountIn, expectedIn)
}

func TestSwapRejectsLimitPrice(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	// Spot price of tokenb in tokena is ~10/10 * 100/50 adjusted; a limit
	// far below it rejects before anything moves.
	_, _, err := env.pool.SwapExactAmountIn(bob, "tokena", dec("1"), "tokenb", dec("0"), dec("0.1"))
	require.ErrorIs(t, err, ErrLimitPrice)

	balA, _ := env.pool.GetBalance("tokena")
	require.True(t, balA.Equal(dec("100")))
}

func TestSwapRejectsRatioCaps(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	// More than half the input-side balance.
	_, _, err := env.pool.SwapExactAmountIn(bob, "tokena", dec("51"), "tokenb", dec("0"), dec("100"))
	require.ErrorIs(t, err, ErrMaxInRatio)

	// More than a third of the output-side balance.
	_, _, err = env.pool.SwapExactAmountOut(bob, "tokena", dec("1000"), "tokenb", dec("17"), dec("100"))
	require.ErrorIs(t, err, ErrMaxOutRatio)
}

func TestSwapRejectsUnboundAndUninitialized(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	_, _, err := env.pool.SwapExactAmountIn(bob, "tokenx", dec("1"), "tokenb", dec("0"), dec("100"))
	require.ErrorIs(t, err, ErrNotBound)

	_, _, err = env.pool.SwapExactAmountIn(bob, "tokena", dec("1"), "tokenx", dec("0"), dec("100"))
	require.ErrorIs(t, err, ErrNotBound)
}

func TestJoinExitRoundTrip(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	tokens := env.pool.GetCurrentTokens()
	limits := make([]sdkmath.LegacyDec, len(tokens))
	for i := range limits {
		limits[i] = dec("100")
	}

	// Mint 10% more shares: deposits are 10% of each balance.
	require.NoError(t, env.pool.JoinPool(bob, dec("10"), limits))
	require.True(t, env.pool.SharesOf(bob).Equal(dec("10")))
	require.True(t, env.pool.GetTotalSupply().Equal(dec("110")))

	balA, _ := env.pool.GetBalance("tokena")
	require.True(t, balA.Equal(dec("110")))

	// Exit everything. The fixed exit fee goes to the fee recipient in
	// shares, so bob gets back slightly less than he deposited.
	mins := make([]sdkmath.LegacyDec, len(tokens))
	for i := range mins {
		mins[i] = dec("0")
	}
	aBefore := env.ledger.BalanceOf("tokena", bob)
	require.NoError(t, env.pool.ExitPool(bob, dec("10"), mins))

	require.True(t, env.pool.SharesOf(bob).IsZero())
	expectedFee := dec("10").Mul(poolmath.ExitFee)
	require.True(t, env.pool.SharesOf(feeTo).Equal(expectedFee))

	got := env.ledger.BalanceOf("tokena", bob).Sub(aBefore)
	require.True(t, got.LT(dec("10")))
	require.True(t, got.GT(dec("9.9")))
}

func TestJoinRejectsLimitBreach(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	tokens := env.pool.GetCurrentTokens()
	limits := make([]sdkmath.LegacyDec, len(tokens))
	for i := range limits {
		limits[i] = dec("0.000001")
	}
	err := env.pool.JoinPool(bob, dec("10"), limits)
	require.ErrorIs(t, err, ErrLimitIn)
	require.True(t, env.pool.GetTotalSupply().Equal(dec("100")))
}

func TestJoinswapExternAmountInMatchesShareMath(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	amountIn := dec("5")
	expected, err := poolmath.CalcPoolOutGivenSingleIn(dec("100"), dec("10"), dec("100"), dec("25"), amountIn, dec("0.003"))
	require.NoError(t, err)

	minted, err := env.pool.JoinswapExternAmountIn(bob, "tokena", amountIn, dec("0"))
	require.NoError(t, err)
	require.True(t, minted.Equal(expected), "minted %s want %s", minted, expected)
	require.True(t, env.pool.SharesOf(bob).Equal(expected))
}

func TestExitswapPoolAmountInPaysSingleToken(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	// Give bob some shares first.
	minted, err := env.pool.JoinswapExternAmountIn(bob, "tokena", dec("5"), dec("0"))
	require.NoError(t, err)

	before := env.ledger.BalanceOf("tokena", bob)
	out, err := env.pool.ExitswapPoolAmountIn(bob, "tokena", minted, dec("0"))
	require.NoError(t, err)
	require.True(t, out.IsPositive())
	require.True(t, env.ledger.BalanceOf("tokena", bob).Sub(before).Equal(out))
	require.True(t, env.pool.SharesOf(bob).IsZero())

	// Round trip through the swap fee and exit fee loses value.
	require.True(t, out.LT(dec("5")))
}

func TestSharesCapBlocksJoins(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	require.NoError(t, env.pool.SetMaxPoolTokens(ctrl, dec("105")))
	tokens := env.pool.GetCurrentTokens()
	limits := make([]sdkmath.LegacyDec, len(tokens))
	for i := range limits {
		limits[i] = dec("100")
	}
	err := env.pool.JoinPool(bob, dec("10"), limits)
	require.ErrorIs(t, err, ErrMaxPoolTokens)

	require.NoError(t, env.pool.JoinPool(bob, dec("5"), limits))
}

func TestReweighConvergesWithoutOvershoot(t *testing.T) {
	// A large swap fee makes the interpolation step large enough to watch.
	env := newTestPool(t, dec("0.05"))

	require.NoError(t, env.pool.ReweighTokens(ctrl,
		[]string{"tokena"}, []sdkmath.LegacyDec{dec("11")}))

	prev, _ := env.pool.GetDenormalizedWeight("tokena")
	for i := 0; i < 10; i++ {
		env.clock.Advance(time.Hour + time.Minute)
		_, _, err := env.pool.SwapExactAmountIn(bob, "tokena", dec("0.1"), "tokenb", dec("0"), dec("1000"))
		require.NoError(t, err)

		w, err := env.pool.GetDenormalizedWeight("tokena")
		require.NoError(t, err)
		require.True(t, w.GTE(prev), "weight moved backward: %s -> %s", prev, w)
		require.True(t, w.LTE(dec("11")), "weight overshot: %s", w)
		prev = w
	}
	require.True(t, prev.Equal(dec("11")), "did not converge: %s", prev)
}

func TestWeightStepRespectsUpdateDelay(t *testing.T) {
	env := newTestPool(t, dec("0.05"))

	require.NoError(t, env.pool.ReweighTokens(ctrl,
		[]string{"tokena"}, []sdkmath.LegacyDec{dec("11")}))

	// No time has passed since the reweigh stamped the record.
	_, _, err := env.pool.SwapExactAmountIn(bob, "tokena", dec("0.1"), "tokenb", dec("0"), dec("1000"))
	require.NoError(t, err)
	w, _ := env.pool.GetDenormalizedWeight("tokena")
	require.True(t, w.Equal(dec("10")), "stepped before delay: %s", w)
}

func TestReindexEvictsOmittedToken(t *testing.T) {
	env := newTestPool(t, dec("0.05"))

	// Replace membership with just a and b; c decays to eviction. Start c
	// near the minimum weight so one step crosses it.
	require.NoError(t, env.pool.ReweighTokens(ctrl,
		[]string{"tokenc"}, []sdkmath.LegacyDec{dec("0.26")}))
	for i := 0; i < 200 && func() bool {
		w, _ := env.pool.GetDenormalizedWeight("tokenc")
		return w.GT(dec("0.26"))
	}(); i++ {
		env.clock.Advance(time.Hour + time.Minute)
		_, _, err := env.pool.SwapExactAmountIn(bob, "tokena", dec("0.05"), "tokenc", dec("0"), dec("1000"))
		require.NoError(t, err)
	}
	wc, _ := env.pool.GetDenormalizedWeight("tokenc")
	require.True(t, wc.Equal(dec("0.26")), "setup did not reach 0.26: %s", wc)

	require.NoError(t, env.pool.ReindexTokens(ctrl,
		[]string{"tokena", "tokenb"},
		[]sdkmath.LegacyDec{dec("10"), dec("10")},
		[]sdkmath.LegacyDec{dec("0"), dec("0")},
	))
	rec, err := env.pool.GetTokenRecord("tokenc")
	require.NoError(t, err)
	require.True(t, rec.DesiredDenorm.IsZero())
	require.NotContains(t, env.pool.GetCurrentDesiredTokens(), "tokenc")

	// One touch after the delay decays 0.26 below the minimum and evicts.
	env.clock.Advance(time.Hour + time.Minute)
	_, _, err = env.pool.SwapExactAmountIn(bob, "tokena", dec("0.05"), "tokenc", dec("0"), dec("1000"))
	require.NoError(t, err)

	require.False(t, env.pool.IsBound("tokenc"))
	require.Equal(t, 2, env.pool.GetNumTokens())
	got, ok := env.sink.received["tokenc"]
	require.True(t, ok, "sink never received the evicted balance")
	require.True(t, got.IsPositive())
	require.True(t, env.ledger.BalanceOf("tokenc", env.pool.Account()).IsZero())
}

func TestReindexAdmitsNewTokenNotReady(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	require.NoError(t, env.pool.ReindexTokens(ctrl,
		[]string{"tokena", "tokenb", "tokenc", "tokend"},
		[]sdkmath.LegacyDec{dec("10"), dec("10"), dec("5"), dec("5")},
		[]sdkmath.LegacyDec{dec("0"), dec("0"), dec("0"), dec("0.4")},
	))

	rec, err := env.pool.GetTokenRecord("tokend")
	require.NoError(t, err)
	require.False(t, rec.Ready)
	require.True(t, rec.Denorm.IsZero())
	require.True(t, rec.MinimumBalance.Equal(dec("0.4")))

	// Not-ready tokens cannot be bought.
	_, _, err = env.pool.SwapExactAmountIn(bob, "tokena", dec("1"), "tokend", dec("0"), dec("1000"))
	require.ErrorIs(t, err, ErrOutNotReady)

	// But they are priced at the minimum balance on the input side.
	used, err := env.pool.GetUsedBalance("tokend")
	require.NoError(t, err)
	require.True(t, used.Equal(dec("0.4")))
}

func TestReadinessFlipGrantsBonusWeight(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	require.NoError(t, env.pool.ReindexTokens(ctrl,
		[]string{"tokena", "tokenb", "tokenc", "tokend"},
		[]sdkmath.LegacyDec{dec("10"), dec("10"), dec("5"), dec("5")},
		[]sdkmath.LegacyDec{dec("0"), dec("0"), dec("0"), dec("0.4")},
	))

	// Feed tokend in below the per-trade ratio cap until it crosses its
	// minimum balance. The crossing trade lands at balance 0.5: the excess
	// of 0.1 over the 0.4 floor earns a pro-rata weight bonus.
	for _, amt := range []string{"0.2", "0.1", "0.2"} {
		_, _, err := env.pool.SwapExactAmountIn(bob, "tokend", dec(amt), "tokena", dec("0"), dec("1000"))
		require.NoError(t, err)
	}

	rec, err := env.pool.GetTokenRecord("tokend")
	require.NoError(t, err)
	require.True(t, rec.Ready)
	require.True(t, rec.MinimumBalance.IsZero())
	// minWeight * (1 + excess/minimum) = 0.25 * 1.25
	require.True(t, rec.Denorm.Equal(dec("0.3125")), "denorm %s", rec.Denorm)
}

func TestReadinessBonusIsCapped(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	require.NoError(t, env.pool.ReindexTokens(ctrl,
		[]string{"tokena", "tokenb", "tokenc", "tokend"},
		[]sdkmath.LegacyDec{dec("10"), dec("10"), dec("5"), dec("5")},
		[]sdkmath.LegacyDec{dec("0"), dec("0"), dec("0"), dec("0.1")},
	))

	// The per-trade ratio cap is half the effective balance, so the crossing
	// trade can land at most 50% over the floor. The bonus is therefore
	// bounded by the initial weight ceiling; at exactly the floor it is zero.
	_, _, err := env.pool.SwapExactAmountIn(bob, "tokend", dec("0.05"), "tokena", dec("0"), dec("1000"))
	require.NoError(t, err)
	_, _, err = env.pool.SwapExactAmountIn(bob, "tokend", dec("0.05"), "tokena", dec("0"), dec("1000"))
	require.NoError(t, err)

	rec, err := env.pool.GetTokenRecord("tokend")
	require.NoError(t, err)
	require.True(t, rec.Ready)
	require.True(t, rec.Denorm.Equal(poolmath.MinWeight))
}

func TestSetMinimumBalanceCooldownAndReadinessCheck(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	require.NoError(t, env.pool.ReindexTokens(ctrl,
		[]string{"tokena", "tokenb", "tokenc", "tokend"},
		[]sdkmath.LegacyDec{dec("10"), dec("10"), dec("5"), dec("5")},
		[]sdkmath.LegacyDec{dec("0"), dec("0"), dec("0"), dec("10")},
	))

	// Immediately after a membership change the floor is frozen.
	err := env.pool.SetMinimumBalance(ctrl, "tokend", dec("0.4"))
	require.ErrorIs(t, err, ErrMinBalanceCooldown)

	env.clock.Advance(2 * time.Hour)
	require.NoError(t, env.pool.SetMinimumBalance(ctrl, "tokend", dec("0.4")))
	rec, _ := env.pool.GetTokenRecord("tokend")
	require.True(t, rec.MinimumBalance.Equal(dec("0.4")))

	// Lowering the floor below the held balance flips readiness in place.
	_, _, err = env.pool.SwapExactAmountIn(bob, "tokend", dec("0.2"), "tokena", dec("0"), dec("1000"))
	require.NoError(t, err)
	require.NoError(t, env.pool.SetMinimumBalance(ctrl, "tokend", dec("0.1")))
	rec, _ = env.pool.GetTokenRecord("tokend")
	require.True(t, rec.Ready)

	// Ready tokens have no floor to set.
	err = env.pool.SetMinimumBalance(ctrl, "tokend", dec("1"))
	require.ErrorIs(t, err, ErrTokenReady)
}

type repayingBorrower struct {
	ledger  *bank.Ledger
	pool    *Pool
	pay     sdkmath.LegacyDec // amount to return; nil means pay the due amount
	reenter bool
	reerr   error
}

func (b *repayingBorrower) Account() types.Account { return bob }

func (b *repayingBorrower) ExecuteFlashLoan(denom string, amount, due sdkmath.LegacyDec, data []byte) error {
	if b.reenter {
		_, _, b.reerr = b.pool.SwapExactAmountIn(bob, "tokena", dec("1"), "tokenb", dec("0"), dec("1000"))
	}
	pay := b.pay
	if pay.IsNil() {
		pay = due
	}
	if pay.IsZero() {
		return nil
	}
	return b.ledger.Transfer(denom, bob, b.pool.Account(), pay)
}

func TestFlashLoanSettlesWithFee(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	amount := dec("10")
	fee := amount.Mul(poolmath.FlashFee)
	borrower := &repayingBorrower{ledger: env.ledger, pool: env.pool}

	heldBefore := env.ledger.BalanceOf("tokena", env.pool.Account())
	require.NoError(t, env.pool.Flash(borrower, "tokena", amount, nil))

	held := env.ledger.BalanceOf("tokena", env.pool.Account())
	require.True(t, held.Equal(heldBefore.Add(fee)))

	// The fee became pool liquidity.
	bal, _ := env.pool.GetBalance("tokena")
	require.True(t, bal.Equal(dec("100").Add(fee)))
}

func TestFlashLoanUnderpaymentUnwinds(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	borrower := &repayingBorrower{ledger: env.ledger, pool: env.pool, pay: dec("10")}
	err := env.pool.Flash(borrower, "tokena", dec("10"), nil)
	require.ErrorIs(t, err, ErrInsufficientPayment)

	// Everything restored, including the borrower's repayment.
	require.True(t, env.ledger.BalanceOf("tokena", env.pool.Account()).Equal(dec("100")))
	require.True(t, env.ledger.BalanceOf("tokena", bob).Equal(dec("1000")))
	bal, _ := env.pool.GetBalance("tokena")
	require.True(t, bal.Equal(dec("100")))
}

func TestFlashLoanCallbackCannotReenter(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	borrower := &repayingBorrower{ledger: env.ledger, pool: env.pool, reenter: true}
	require.NoError(t, env.pool.Flash(borrower, "tokena", dec("10"), nil))
	require.ErrorIs(t, borrower.reerr, ErrReentry)
}

func TestFlashLoanCapsAtRecordedBalance(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	// A direct transfer raises the held balance without touching the
	// record; the surplus must not become lendable until it is gulped.
	require.NoError(t, env.ledger.Transfer("tokena", bob, env.pool.Account(), dec("50")))

	borrower := &repayingBorrower{ledger: env.ledger, pool: env.pool}
	err := env.pool.Flash(borrower, "tokena", dec("120"), nil)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// The full recorded balance is still lendable.
	require.NoError(t, env.pool.Flash(borrower, "tokena", dec("100"), nil))
}

func TestGulpAbsorbsDirectTransfer(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	require.NoError(t, env.ledger.Transfer("tokena", bob, env.pool.Account(), dec("3")))
	require.NoError(t, env.pool.Gulp("tokena"))

	bal, _ := env.pool.GetBalance("tokena")
	require.True(t, bal.Equal(dec("103")))

	// Idempotent: a second gulp finds nothing to absorb.
	require.NoError(t, env.pool.Gulp("tokena"))
	bal, _ = env.pool.GetBalance("tokena")
	require.True(t, bal.Equal(dec("103")))
}

func TestGulpFlushesUnboundToken(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	require.NoError(t, env.ledger.Transfer("tokend", bob, env.pool.Account(), dec("7")))
	require.NoError(t, env.pool.Gulp("tokend"))

	require.True(t, env.ledger.BalanceOf("tokend", env.pool.Account()).IsZero())
	require.True(t, env.sink.received["tokend"].Equal(dec("7")))
}

func TestAdminOpsRequireController(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	err := env.pool.ReweighTokens(bob, []string{"tokena"}, []sdkmath.LegacyDec{dec("11")})
	require.ErrorIs(t, err, ErrNotController)

	err = env.pool.SetSwapFee(bob, dec("0.01"))
	require.ErrorIs(t, err, ErrNotController)

	require.NoError(t, env.pool.SetController(ctrl, bob))
	require.NoError(t, env.pool.SetSwapFee(bob, dec("0.01")))
	require.True(t, env.pool.GetSwapFee().Equal(dec("0.01")))
}

func TestExtrapolatePoolValueFromToken(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	denom, value, err := env.pool.ExtrapolatePoolValueFromToken()
	require.NoError(t, err)
	require.Equal(t, "tokena", denom)
	// balance * totalWeight / weight = 100 * 25 / 10
	require.True(t, value.Equal(dec("250")))
}

func TestExtrapolateUsesHeaviestReadyToken(t *testing.T) {
	ledger := bank.NewLedger()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	for _, denom := range []string{"tokena", "tokenc"} {
		require.NoError(t, ledger.Mint(denom, alice, dec("1000")))
	}
	p, err := New(Config{
		ID:               types.PoolID("heavypool"),
		Controller:       ctrl,
		Ledger:           ledger,
		SwapFee:          dec("0.003"),
		ExitFeeRecipient: feeTo,
		UnbindHandler:    newStubSink(),
		Now:              clock.Now,
	})
	require.NoError(t, err)

	// The lighter token is bound first, so binding order alone would
	// pick it.
	require.NoError(t, p.Initialize(ctrl, alice,
		[]string{"tokenc", "tokena"},
		[]sdkmath.LegacyDec{dec("20"), dec("100")},
		[]sdkmath.LegacyDec{dec("5"), dec("10")},
	))

	denom, value, err := p.ExtrapolatePoolValueFromToken()
	require.NoError(t, err)
	require.Equal(t, "tokena", denom)
	// balance * totalWeight / weight = 100 * 15 / 10
	require.True(t, value.Equal(dec("150")))
}

func TestConcurrentReadsDuringTrading(t *testing.T) {
	env := newTestPool(t, dec("0.003"))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for _, denom := range env.pool.GetCurrentTokens() {
					_, _ = env.pool.GetTokenRecord(denom)
					_, _ = env.pool.GetBalance(denom)
					_, _ = env.pool.GetNormalizedWeight(denom)
				}
				_, _ = env.pool.GetSpotPrice("tokena", "tokenb")
				_ = env.pool.GetTotalSupply()
				_ = env.pool.SharesOf(alice)
			}
		}()
	}

	for i := 0; i < 50; i++ {
		_, _, err := env.pool.SwapExactAmountIn(bob, "tokena", dec("0.5"), "tokenb", dec("0"), dec("1000"))
		require.NoError(t, err)
		_, _, err = env.pool.SwapExactAmountIn(bob, "tokenb", dec("0.25"), "tokena", dec("0"), dec("1000"))
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}
