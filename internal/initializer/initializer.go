/*

Bootstrap escrow for a prepared index pool.

Contributors deliver the pool's desired starting balances token by token and
are credited with the oracle value of each contribution at the time it is
made. Once every desired amount is filled the escrow finalizes the pool
through the controller, which mints the initial share supply to the escrow
account; contributors then claim shares pro rata to their credit.

*/

package initializer

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/indexed-finance/indexed-core-sub000/internal/bank"
	"github.com/indexed-finance/indexed-core-sub000/internal/logger"
	"github.com/indexed-finance/indexed-core-sub000/internal/oracle"
	"github.com/indexed-finance/indexed-core-sub000/internal/poolmath"
	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

var (
	ErrNotDesired       = errors.New("token is not part of the desired set")
	ErrOverContribution = errors.New("contribution exceeds the remaining desired amount")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrUnpriced         = errors.New("price source cannot value the token")
	ErrIncomplete       = errors.New("desired amounts not yet filled")
	ErrAlreadyFinished  = errors.New("initializer already finished")
	ErrNotFinished      = errors.New("initializer not yet finished")
	ErrNoCredit         = errors.New("account has no credit to claim")
)

// Finalizer consumes the filled escrow and performs the pool's one-time
// initialization. The controller implements it.
type Finalizer interface {
	FinalizePool(poolID types.PoolID, from types.Account, tokens []string, balances []sdkmath.LegacyDec) error
}

// ShareSource delivers claimed pool shares. The pool implements it.
type ShareSource interface {
	TransferShares(from, to types.Account, amount sdkmath.LegacyDec) error
}

// Initializer escrows the bootstrap liquidity for one pool.
type Initializer struct {
	log     zerolog.Logger
	mu      sync.Mutex
	account types.Account
	poolID  types.PoolID
	ledger  *bank.Ledger
	prices  oracle.PriceSource

	tokens    []string
	desired   map[string]sdkmath.LegacyDec // original targets
	remaining map[string]sdkmath.LegacyDec

	credits     map[types.Account]sdkmath.LegacyDec
	totalCredit sdkmath.LegacyDec

	finished bool
	shares   ShareSource
	claimed  map[types.Account]bool
}

// Config wires an initializer to its pool.
type Config struct {
	Account types.Account
	PoolID  types.PoolID
	Ledger  *bank.Ledger
	Prices  oracle.PriceSource
	Tokens  []string
	Amounts []sdkmath.LegacyDec
}

func New(cfg Config) (*Initializer, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("initializer: ledger cannot be nil")
	}
	if cfg.Prices == nil {
		return nil, errors.New("initializer: price source cannot be nil")
	}
	if len(cfg.Tokens) == 0 || len(cfg.Tokens) != len(cfg.Amounts) {
		return nil, fmt.Errorf("initializer: %d tokens, %d amounts", len(cfg.Tokens), len(cfg.Amounts))
	}
	desired := make(map[string]sdkmath.LegacyDec, len(cfg.Tokens))
	remaining := make(map[string]sdkmath.LegacyDec, len(cfg.Tokens))
	for i, denom := range cfg.Tokens {
		if !cfg.Amounts[i].IsPositive() {
			return nil, fmt.Errorf("initializer: %w: %s %s", ErrInvalidAmount, denom, cfg.Amounts[i])
		}
		desired[denom] = cfg.Amounts[i]
		remaining[denom] = cfg.Amounts[i]
	}
	return &Initializer{
		log:         logger.GetForComponent("initializer").With().Str("pool_id", string(cfg.PoolID)).Logger(),
		account:     cfg.Account,
		poolID:      cfg.PoolID,
		ledger:      cfg.Ledger,
		prices:      cfg.Prices,
		tokens:      append([]string(nil), cfg.Tokens...),
		desired:     desired,
		remaining:   remaining,
		credits:     make(map[types.Account]sdkmath.LegacyDec),
		totalCredit: sdkmath.LegacyZeroDec(),
		claimed:     make(map[types.Account]bool),
	}, nil
}

// Account returns the escrow's ledger account.
func (in *Initializer) Account() types.Account { return in.account }

// PoolID returns the pool this escrow bootstraps.
func (in *Initializer) PoolID() types.PoolID { return in.poolID }

// IsFinished reports whether the pool has been initialized from the escrow.
func (in *Initializer) IsFinished() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.finished
}

// RemainingDesired returns how much of a token the escrow still wants.
func (in *Initializer) RemainingDesired(denom string) (sdkmath.LegacyDec, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	rem, ok := in.remaining[denom]
	if !ok {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrNotDesired, denom)
	}
	return rem, nil
}

// CreditOf returns an account's accumulated contribution credit.
func (in *Initializer) CreditOf(account types.Account) sdkmath.LegacyDec {
	in.mu.Lock()
	defer in.mu.Unlock()
	credit, ok := in.credits[account]
	if !ok {
		return sdkmath.LegacyZeroDec()
	}
	return credit
}

// Contribute escrows amount of denom from the caller, crediting it with the
// oracle value at contribution time. Contributions above the remaining
// desired amount are rejected outright.
func (in *Initializer) Contribute(caller types.Account, denom string, amount sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.finished {
		return sdkmath.LegacyDec{}, ErrAlreadyFinished
	}
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	rem, ok := in.remaining[denom]
	if !ok {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrNotDesired, denom)
	}
	if amount.GT(rem) {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s over remaining %s", ErrOverContribution, amount, rem)
	}
	price, err := in.prices.AveragePrice(denom)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s: %v", ErrUnpriced, denom, err)
	}
	credit := price.Mul(amount)
	if !credit.IsPositive() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: credit rounds to zero", ErrInvalidAmount)
	}

	if err := in.ledger.Transfer(denom, caller, in.account, amount); err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("contribute: %w", err)
	}
	in.remaining[denom] = rem.Sub(amount)
	prev, ok := in.credits[caller]
	if !ok {
		prev = sdkmath.LegacyZeroDec()
	}
	in.credits[caller] = prev.Add(credit)
	in.totalCredit = in.totalCredit.Add(credit)

	in.log.Info().
		Str("account", string(caller)).
		Str("denom", denom).
		Str("amount", amount.String()).
		Str("credit", credit.String()).
		Msg("Contribution escrowed")
	return credit, nil
}

// Finish initializes the pool once every desired amount is filled. The
// finalizer pulls the escrowed balances and mints the initial share supply to
// the escrow account.
func (in *Initializer) Finish(finalizer Finalizer, shares ShareSource) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.finished {
		return ErrAlreadyFinished
	}
	for _, denom := range in.tokens {
		if in.remaining[denom].IsPositive() {
			return fmt.Errorf("%w: %s needs %s", ErrIncomplete, denom, in.remaining[denom])
		}
	}
	balances := make([]sdkmath.LegacyDec, len(in.tokens))
	for i, denom := range in.tokens {
		balances[i] = in.desired[denom]
	}
	if err := finalizer.FinalizePool(in.poolID, in.account, in.tokens, balances); err != nil {
		return fmt.Errorf("finish: %w", err)
	}
	in.finished = true
	in.shares = shares
	in.log.Info().Str("total_credit", in.totalCredit.String()).Msg("Pool initialized from escrow")
	return nil
}

// ClaimTokens delivers the caller's pro-rata share of the minted supply.
func (in *Initializer) ClaimTokens(caller types.Account) (sdkmath.LegacyDec, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.finished {
		return sdkmath.LegacyDec{}, ErrNotFinished
	}
	if in.claimed[caller] {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: already claimed", ErrNoCredit)
	}
	credit, ok := in.credits[caller]
	if !ok || !credit.IsPositive() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrNoCredit, caller)
	}

	amount := credit.Quo(in.totalCredit).Mul(poolmath.InitPoolSupply)
	if err := in.shares.TransferShares(in.account, caller, amount); err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("claim: %w", err)
	}
	in.claimed[caller] = true
	in.log.Info().
		Str("account", string(caller)).
		Str("shares", amount.String()).
		Msg("Escrow shares claimed")
	return amount, nil
}
