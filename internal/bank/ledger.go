/*

In-process token ledger.

Every component that holds tokens (pools, initializers, the liquidity sink,
contributors) owns an account here. Balances are value-level LegacyDec
amounts. Mutations are serialized by the caller; the ledger itself only
guards against concurrent readers from the web API.

*/

package bank

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrUnknownDenom        = errors.New("unknown denom")
)

// Ledger tracks balances per (denom, account).
type Ledger struct {
	mu       sync.RWMutex
	balances map[string]map[types.Account]sdkmath.LegacyDec
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[string]map[types.Account]sdkmath.LegacyDec),
	}
}

// Mint credits newly issued tokens to an account.
func (l *Ledger) Mint(denom string, to types.Account, amount sdkmath.LegacyDec) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: mint %s %s", ErrInvalidAmount, denom, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(denom, to, amount)
	return nil
}

// Burn removes tokens from an account.
func (l *Ledger) Burn(denom string, from types.Account, amount sdkmath.LegacyDec) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: burn %s %s", ErrInvalidAmount, denom, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debit(denom, from, amount)
}

// Transfer moves tokens between accounts.
func (l *Ledger) Transfer(denom string, from, to types.Account, amount sdkmath.LegacyDec) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: transfer %s %s", ErrInvalidAmount, denom, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.debit(denom, from, amount); err != nil {
		return err
	}
	l.credit(denom, to, amount)
	return nil
}

// BalanceOf returns the account's balance, zero if the account or denom is
// unknown.
func (l *Ledger) BalanceOf(denom string, account types.Account) sdkmath.LegacyDec {
	l.mu.RLock()
	defer l.mu.RUnlock()
	accounts, ok := l.balances[denom]
	if !ok {
		return sdkmath.LegacyZeroDec()
	}
	bal, ok := accounts[account]
	if !ok {
		return sdkmath.LegacyZeroDec()
	}
	return bal
}

// TotalSupply returns the sum of all balances of a denom.
func (l *Ledger) TotalSupply(denom string) sdkmath.LegacyDec {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := sdkmath.LegacyZeroDec()
	for _, bal := range l.balances[denom] {
		total = total.Add(bal)
	}
	return total
}

func (l *Ledger) credit(denom string, to types.Account, amount sdkmath.LegacyDec) {
	accounts, ok := l.balances[denom]
	if !ok {
		accounts = make(map[types.Account]sdkmath.LegacyDec)
		l.balances[denom] = accounts
	}
	bal, ok := accounts[to]
	if !ok {
		bal = sdkmath.LegacyZeroDec()
	}
	accounts[to] = bal.Add(amount)
}

func (l *Ledger) debit(denom string, from types.Account, amount sdkmath.LegacyDec) error {
	accounts, ok := l.balances[denom]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDenom, denom)
	}
	bal, ok := accounts[from]
	if !ok || bal.LT(amount) {
		return fmt.Errorf("%w: %s needs %s of %s", ErrInsufficientBalance, from, amount, denom)
	}
	accounts[from] = bal.Sub(amount)
	return nil
}
