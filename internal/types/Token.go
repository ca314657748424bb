/*

Identifier types shared across the pool engine and the index controller.

Accounts and pools are addressed by opaque string identifiers; tokens are
addressed by their denom. All amounts and weights use cosmossdk.io/math
LegacyDec, which is the 18-fractional-digit fixed-point representation every
component of the system works in.

*/

package types

// Account identifies a ledger account (user, pool, initializer, sink).
type Account string

// CategoryID identifies a controller-owned token category.
type CategoryID uint64

// PoolID identifies an index pool. Pool IDs are derived deterministically
// from (category, index size), so they double as the pool's ledger account.
type PoolID string

// Account returns the ledger account owned by the pool.
func (id PoolID) Account() Account {
	return Account(id)
}

// Token describes an asset known to the system.
type Token struct {
	Symbol string `json:"symbol"` // e.g., "wbtc"
	Denom  string `json:"denom"`  // ledger denomination, e.g., "uwbtc"
}
