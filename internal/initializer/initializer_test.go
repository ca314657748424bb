package initializer

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/indexed-finance/indexed-core-sub000/internal/bank"
	"github.com/indexed-finance/indexed-core-sub000/internal/poolmath"
	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

const (
	escrow = types.Account("escrow")
	carol  = types.Account("carol")
	dave   = types.Account("dave")
)

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

type fixedPrices map[string]sdkmath.LegacyDec

func (f fixedPrices) AveragePrice(denom string) (sdkmath.LegacyDec, error) {
	p, ok := f[denom]
	if !ok {
		return sdkmath.LegacyDec{}, ErrUnpriced
	}
	return p, nil
}

func (f fixedPrices) AverageMarketCap(denom string) (sdkmath.LegacyDec, error) {
	return f.AveragePrice(denom)
}

func (f fixedPrices) AverageMarketCaps(denoms []string) ([]sdkmath.LegacyDec, error) {
	out := make([]sdkmath.LegacyDec, len(denoms))
	for i, d := range denoms {
		p, err := f.AveragePrice(d)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func (f fixedPrices) HasObservationInWindow(string, time.Time) bool { return true }

type recordingFinalizer struct {
	called   bool
	tokens   []string
	balances []sdkmath.LegacyDec
}

func (r *recordingFinalizer) FinalizePool(_ types.PoolID, _ types.Account, tokens []string, balances []sdkmath.LegacyDec) error {
	r.called = true
	r.tokens = tokens
	r.balances = balances
	return nil
}

type shareLedger struct {
	balances map[types.Account]sdkmath.LegacyDec
}

func (s *shareLedger) TransferShares(from, to types.Account, amount sdkmath.LegacyDec) error {
	prev, ok := s.balances[to]
	if !ok {
		prev = sdkmath.LegacyZeroDec()
	}
	s.balances[to] = prev.Add(amount)
	return nil
}

func newTestInitializer(t *testing.T) (*Initializer, *bank.Ledger) {
	t.Helper()
	ledger := bank.NewLedger()
	require.NoError(t, ledger.Mint("tokena", carol, dec("100")))
	require.NoError(t, ledger.Mint("tokenb", carol, dec("100")))
	require.NoError(t, ledger.Mint("tokenb", dave, dec("100")))

	in, err := New(Config{
		Account: escrow,
		PoolID:  types.PoolID("pool1"),
		Ledger:  ledger,
		Prices:  fixedPrices{"tokena": dec("2"), "tokenb": dec("1")},
		Tokens:  []string{"tokena", "tokenb"},
		Amounts: []sdkmath.LegacyDec{dec("10"), dec("20")},
	})
	require.NoError(t, err)
	return in, ledger
}

func TestContributeCreditsAtOracleValue(t *testing.T) {
	in, ledger := newTestInitializer(t)

	credit, err := in.Contribute(carol, "tokena", dec("4"))
	require.NoError(t, err)
	require.True(t, credit.Equal(dec("8"))) // 4 * price 2
	require.True(t, in.CreditOf(carol).Equal(dec("8")))
	require.True(t, ledger.BalanceOf("tokena", escrow).Equal(dec("4")))

	rem, err := in.RemainingDesired("tokena")
	require.NoError(t, err)
	require.True(t, rem.Equal(dec("6")))
}

func TestContributeRejectsOverAndUnknown(t *testing.T) {
	in, _ := newTestInitializer(t)

	_, err := in.Contribute(carol, "tokena", dec("11"))
	require.ErrorIs(t, err, ErrOverContribution)

	_, err = in.Contribute(carol, "tokenx", dec("1"))
	require.ErrorIs(t, err, ErrNotDesired)

	_, err = in.Contribute(carol, "tokena", dec("0"))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFinishRequiresFullEscrow(t *testing.T) {
	in, _ := newTestInitializer(t)
	fin := &recordingFinalizer{}
	shares := &shareLedger{balances: make(map[types.Account]sdkmath.LegacyDec)}

	_, err := in.Contribute(carol, "tokena", dec("10"))
	require.NoError(t, err)
	require.ErrorIs(t, in.Finish(fin, shares), ErrIncomplete)
	require.False(t, fin.called)

	_, err = in.Contribute(carol, "tokenb", dec("20"))
	require.NoError(t, err)
	require.NoError(t, in.Finish(fin, shares))
	require.True(t, fin.called)
	require.Equal(t, []string{"tokena", "tokenb"}, fin.tokens)
	require.True(t, fin.balances[0].Equal(dec("10")))

	require.ErrorIs(t, in.Finish(fin, shares), ErrAlreadyFinished)
	_, err = in.Contribute(carol, "tokena", dec("1"))
	require.ErrorIs(t, err, ErrAlreadyFinished)
}

func TestClaimIsProRataByCredit(t *testing.T) {
	in, _ := newTestInitializer(t)
	fin := &recordingFinalizer{}
	shares := &shareLedger{balances: make(map[types.Account]sdkmath.LegacyDec)}

	// carol: 10 tokena * 2 + 10 tokenb * 1 = 30 credit.
	// dave: 10 tokenb * 1 = 10 credit.
	_, err := in.Contribute(carol, "tokena", dec("10"))
	require.NoError(t, err)
	_, err = in.Contribute(carol, "tokenb", dec("10"))
	require.NoError(t, err)
	_, err = in.Contribute(dave, "tokenb", dec("10"))
	require.NoError(t, err)

	_, err = in.ClaimTokens(carol)
	require.ErrorIs(t, err, ErrNotFinished)

	require.NoError(t, in.Finish(fin, shares))

	got, err := in.ClaimTokens(carol)
	require.NoError(t, err)
	require.True(t, got.Equal(dec("0.75").Mul(poolmath.InitPoolSupply)))

	got, err = in.ClaimTokens(dave)
	require.NoError(t, err)
	require.True(t, got.Equal(dec("0.25").Mul(poolmath.InitPoolSupply)))

	_, err = in.ClaimTokens(carol)
	require.ErrorIs(t, err, ErrNoCredit)
	_, err = in.ClaimTokens(types.Account("nobody"))
	require.ErrorIs(t, err, ErrNoCredit)
}
