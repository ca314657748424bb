package bank

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

func TestLedgerTransfer(t *testing.T) {
	l := NewLedger()
	alice, bob := types.Account("alice"), types.Account("bob")

	require.NoError(t, l.Mint("uwbtc", alice, sdkmath.LegacyNewDec(10)))
	require.NoError(t, l.Transfer("uwbtc", alice, bob, sdkmath.LegacyNewDec(4)))

	require.Equal(t, sdkmath.LegacyNewDec(6), l.BalanceOf("uwbtc", alice))
	require.Equal(t, sdkmath.LegacyNewDec(4), l.BalanceOf("uwbtc", bob))
	require.Equal(t, sdkmath.LegacyNewDec(10), l.TotalSupply("uwbtc"))
}

func TestLedgerRejectsOverdraft(t *testing.T) {
	l := NewLedger()
	alice, bob := types.Account("alice"), types.Account("bob")

	require.NoError(t, l.Mint("uwbtc", alice, sdkmath.LegacyNewDec(1)))
	err := l.Transfer("uwbtc", alice, bob, sdkmath.LegacyNewDec(2))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	err = l.Transfer("ueth", alice, bob, sdkmath.LegacyNewDec(1))
	require.ErrorIs(t, err, ErrUnknownDenom)

	// Failed transfers must not mutate anything.
	require.Equal(t, sdkmath.LegacyNewDec(1), l.BalanceOf("uwbtc", alice))
}

func TestLedgerRejectsNonPositiveAmounts(t *testing.T) {
	l := NewLedger()
	alice := types.Account("alice")

	require.ErrorIs(t, l.Mint("uwbtc", alice, sdkmath.LegacyZeroDec()), ErrInvalidAmount)
	require.ErrorIs(t, l.Burn("uwbtc", alice, sdkmath.LegacyNewDec(-1)), ErrInvalidAmount)
}
