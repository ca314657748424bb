/*

Ledger snapshots.

The pool engine's correctness backbone is "each call commits fully or reverts
entirely". Mutating pool operations take a snapshot on entry and restore it on
any error path, which also claws back an under-repaid flash loan for free.

*/

package bank

import (
	sdkmath "cosmossdk.io/math"

	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

// Snapshot is a deep copy of all ledger balances.
type Snapshot struct {
	balances map[string]map[types.Account]sdkmath.LegacyDec
}

// Snapshot captures the current balances.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	copied := make(map[string]map[types.Account]sdkmath.LegacyDec, len(l.balances))
	for denom, accounts := range l.balances {
		inner := make(map[types.Account]sdkmath.LegacyDec, len(accounts))
		for acct, bal := range accounts {
			inner[acct] = bal
		}
		copied[denom] = inner
	}
	return Snapshot{balances: copied}
}

// Restore replaces all balances with the snapshot's contents.
func (l *Ledger) Restore(s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	restored := make(map[string]map[types.Account]sdkmath.LegacyDec, len(s.balances))
	for denom, accounts := range s.balances {
		inner := make(map[types.Account]sdkmath.LegacyDec, len(accounts))
		for acct, bal := range accounts {
			inner[acct] = bal
		}
		restored[denom] = inner
	}
	l.balances = restored
}
