package sink

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/indexed-finance/indexed-core-sub000/internal/bank"
	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

const (
	sinkAcct = types.Account("sink")
	owner    = types.Account("owner")
	trader   = types.Account("trader")
)

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

type fixedPrices map[string]sdkmath.LegacyDec

func (f fixedPrices) AveragePrice(denom string) (sdkmath.LegacyDec, error) {
	p, ok := f[denom]
	if !ok {
		return sdkmath.LegacyDec{}, ErrQuoteUnpriced
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

func newTestSink(t *testing.T) (*PremiumSink, *bank.Ledger) {
	t.Helper()
	ledger := bank.NewLedger()
	prices := fixedPrices{
		"shed":   dec("2"),
		"wanted": dec("4"),
	}
	s, err := New(sinkAcct, owner, ledger, prices, dec("0.05"))
	require.NoError(t, err)
	return s, ledger
}

func TestPremiumBand(t *testing.T) {
	ledger := bank.NewLedger()
	prices := fixedPrices{}

	_, err := New(sinkAcct, owner, ledger, prices, dec("0.005"))
	require.ErrorIs(t, err, ErrInvalidPremium)
	_, err = New(sinkAcct, owner, ledger, prices, dec("0.2"))
	require.ErrorIs(t, err, ErrInvalidPremium)

	s, err := New(sinkAcct, owner, ledger, prices, dec("0.01"))
	require.NoError(t, err)

	require.ErrorIs(t, s.SetPremium(owner, dec("0.25")), ErrInvalidPremium)
	require.ErrorIs(t, s.SetPremium(trader, dec("0.05")), ErrNotOwner)
	require.NoError(t, s.SetPremium(owner, dec("0.19")))
	require.True(t, s.Premium().Equal(dec("0.19")))
}

func TestQuotesApplyPremiumBothWays(t *testing.T) {
	s, _ := newTestSink(t)

	// Sell side: 10 shed at price 2, minus 5%.
	v, err := s.QuoteSell("shed", dec("10"))
	require.NoError(t, err)
	require.True(t, v.Equal(dec("19")))

	// Buy side: 10 wanted at price 4, plus 5%.
	v, err = s.QuoteBuy("wanted", dec("10"))
	require.NoError(t, err)
	require.True(t, v.Equal(dec("42")))

	_, err = s.QuoteSell("unknown", dec("1"))
	require.ErrorIs(t, err, ErrQuoteUnpriced)
}

func TestReceiveEvictedTokenAccumulates(t *testing.T) {
	s, _ := newTestSink(t)

	s.ReceiveEvictedToken("shed", dec("3"))
	s.ReceiveEvictedToken("shed", dec("4"))
	require.True(t, s.ReceivedTotal("shed").Equal(dec("7")))
	require.True(t, s.ReceivedTotal("other").IsZero())
}

func TestTradeFavorsCounterparty(t *testing.T) {
	s, ledger := newTestSink(t)

	require.NoError(t, ledger.Mint("shed", sinkAcct, dec("100")))
	require.NoError(t, ledger.Mint("wanted", trader, dec("100")))

	// Give 10 wanted (value 40, credited 42); take shed priced at
	// 2 * 0.95 = 1.9 per unit: 42 / 1.9 units.
	take, err := s.Trade(trader, "wanted", dec("10"), "shed")
	require.NoError(t, err)
	expected := dec("42").Quo(dec("1.9"))
	require.True(t, take.Equal(expected), "take %s want %s", take, expected)

	require.True(t, ledger.BalanceOf("wanted", sinkAcct).Equal(dec("10")))
	require.True(t, ledger.BalanceOf("shed", trader).Equal(expected))

	// More value than the sink holds.
	_, err = s.Trade(trader, "wanted", dec("90"), "shed")
	require.ErrorIs(t, err, ErrTradeTooLarge)
}

func TestWithdrawIsOwnerGated(t *testing.T) {
	s, ledger := newTestSink(t)
	require.NoError(t, ledger.Mint("shed", sinkAcct, dec("5")))

	err := s.Withdraw(trader, "shed", trader, dec("5"))
	require.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, s.Withdraw(owner, "shed", owner, dec("5")))
	require.True(t, ledger.BalanceOf("shed", owner).Equal(dec("5")))
}
