/*

Weighted index pool engine.

The pool owns per-token records and pool-share accounting, prices trades
against the weighted constant-value curve, and interpolates live weights
toward the controller's targets on every operation that touches a token.
A pool-level RWMutex serializes mutations and lets the HTTP handlers read
state while the rebalancer trades; on top of that the busy flag rejects
re-entrant calls made from flash-loan callbacks instead of queuing them.

*/

package pool

import (
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/indexed-finance/indexed-core-sub000/internal/bank"
	"github.com/indexed-finance/indexed-core-sub000/internal/logger"
	"github.com/indexed-finance/indexed-core-sub000/internal/poolmath"
	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

const (
	// weightUpdateDelay is the minimum time between interpolation steps for
	// a single token.
	weightUpdateDelay = time.Hour

	// minBalanceUpdateDelay blocks minimum-balance floor updates right
	// after a membership change.
	minBalanceUpdateDelay = time.Hour
)

// UnbindHandler receives the remaining balance of an evicted token. The
// liquidity sink implements it.
type UnbindHandler interface {
	Account() types.Account
	ReceiveEvictedToken(denom string, amount sdkmath.LegacyDec)
}

// FlashBorrower is the flash-loan callback. The borrower must return the
// borrowed amount plus the fee to the pool's account before returning.
type FlashBorrower interface {
	Account() types.Account
	ExecuteFlashLoan(denom string, amount, due sdkmath.LegacyDec, data []byte) error
}

// Config wires a pool's collaborators and initial parameters.
type Config struct {
	ID               types.PoolID
	Controller       types.Account
	Ledger           *bank.Ledger
	SwapFee          sdkmath.LegacyDec
	ExitFeeRecipient types.Account
	UnbindHandler    UnbindHandler
	// Now may be nil; defaults to time.Now.
	Now func() time.Time
}

// Pool is the weighted pool invariant engine.
type Pool struct {
	log    zerolog.Logger
	id     types.PoolID
	ledger *bank.Ledger
	now    func() time.Time

	controller       types.Account
	exitFeeRecipient types.Account
	unbindHandler    UnbindHandler
	swapFee          sdkmath.LegacyDec
	maxPoolTokens    sdkmath.LegacyDec // share-supply cap, zero = unlimited

	publicSwap  bool
	totalSupply sdkmath.LegacyDec
	shares      map[types.Account]sdkmath.LegacyDec

	records map[string]*types.TokenRecord
	tokens  []string // ordered bound-token list

	lastMembershipChange time.Time

	// mu guards all mutable state. Mutating entry points take the write
	// lock; getters take the read lock so the web server can inspect the
	// pool while the rebalancer runs.
	mu sync.RWMutex

	// busy is the scoped re-entrancy guard, set around every
	// balance-mutating entry point and released on all exit paths. Flash
	// releases mu during the borrower callback but keeps busy set, so a
	// nested mutation fails with ErrReentry instead of deadlocking.
	busy bool
}

// New creates an uninitialized pool.
func New(cfg Config) (*Pool, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("pool %s: ledger cannot be nil", cfg.ID)
	}
	if cfg.UnbindHandler == nil {
		return nil, fmt.Errorf("pool %s: unbind handler cannot be nil", cfg.ID)
	}
	if cfg.Controller == "" {
		return nil, fmt.Errorf("pool %s: controller cannot be empty", cfg.ID)
	}
	if cfg.SwapFee.IsNil() || cfg.SwapFee.LT(poolmath.MinFee) || cfg.SwapFee.GT(poolmath.MaxFee) {
		return nil, fmt.Errorf("%w: swap fee %s", ErrInvalidFee, cfg.SwapFee)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Pool{
		log:              logger.GetForComponent("pool").With().Str("pool_id", string(cfg.ID)).Logger(),
		id:               cfg.ID,
		ledger:           cfg.Ledger,
		now:              now,
		controller:       cfg.Controller,
		exitFeeRecipient: cfg.ExitFeeRecipient,
		unbindHandler:    cfg.UnbindHandler,
		swapFee:          cfg.SwapFee,
		maxPoolTokens:    sdkmath.LegacyZeroDec(),
		totalSupply:      sdkmath.LegacyZeroDec(),
		shares:           make(map[types.Account]sdkmath.LegacyDec),
		records:          make(map[string]*types.TokenRecord),
	}, nil
}

// enter sets the busy flag, rejecting nested calls outright.
func (p *Pool) enter() error {
	if p.busy {
		return ErrReentry
	}
	p.busy = true
	return nil
}

func (p *Pool) exit() {
	p.busy = false
}

// ID returns the pool identifier.
func (p *Pool) ID() types.PoolID { return p.id }

// Account returns the pool's ledger account.
func (p *Pool) Account() types.Account { return p.id.Account() }

// IsPublicSwap reports whether the pool has been initialized for trading.
func (p *Pool) IsPublicSwap() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.publicSwap
}

// GetController returns the pool's controller account.
func (p *Pool) GetController() types.Account {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.controller
}

// GetSwapFee returns the configured swap fee.
func (p *Pool) GetSwapFee() sdkmath.LegacyDec {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.swapFee
}

// GetExitFeeRecipient returns the account exit fees are minted to.
func (p *Pool) GetExitFeeRecipient() types.Account {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitFeeRecipient
}

// GetMaxPoolTokens returns the share-supply cap, zero meaning unlimited.
func (p *Pool) GetMaxPoolTokens() sdkmath.LegacyDec {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxPoolTokens
}

// GetTotalSupply returns the outstanding pool shares.
func (p *Pool) GetTotalSupply() sdkmath.LegacyDec {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalSupply
}

// SharesOf returns an account's pool share balance.
func (p *Pool) SharesOf(account types.Account) sdkmath.LegacyDec {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sharesOf(account)
}

func (p *Pool) sharesOf(account types.Account) sdkmath.LegacyDec {
	bal, ok := p.shares[account]
	if !ok {
		return sdkmath.LegacyZeroDec()
	}
	return bal
}

// IsBound reports whether the token is bound to the pool.
func (p *Pool) IsBound(denom string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.records[denom]
	return ok
}

// GetNumTokens returns the number of bound tokens.
func (p *Pool) GetNumTokens() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tokens)
}

// GetCurrentTokens returns the ordered bound-token list.
func (p *Pool) GetCurrentTokens() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentTokens()
}

func (p *Pool) currentTokens() []string {
	out := make([]string, len(p.tokens))
	copy(out, p.tokens)
	return out
}

// GetCurrentDesiredTokens returns the bound tokens whose desired weight is
// nonzero, i.e. the tokens not scheduled for removal.
func (p *Pool) GetCurrentDesiredTokens() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.tokens))
	for _, denom := range p.tokens {
		if p.records[denom].DesiredDenorm.IsPositive() {
			out = append(out, denom)
		}
	}
	return out
}

// GetTokenRecord returns a copy of the token's record.
func (p *Pool) GetTokenRecord(denom string) (types.TokenRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[denom]
	if !ok {
		return types.TokenRecord{}, fmt.Errorf("%w: %s", ErrNotBound, denom)
	}
	return *rec, nil
}

// GetBalance returns the recorded balance of a bound token.
func (p *Pool) GetBalance(denom string) (sdkmath.LegacyDec, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[denom]
	if !ok {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrNotBound, denom)
	}
	return rec.Balance, nil
}

// GetUsedBalance returns the balance the pricing curve uses, which is the
// minimum balance for tokens that are not yet ready.
func (p *Pool) GetUsedBalance(denom string) (sdkmath.LegacyDec, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[denom]
	if !ok {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrNotBound, denom)
	}
	return rec.EffectiveBalance(), nil
}

// GetDenormalizedWeight returns the token's current denormalized weight.
func (p *Pool) GetDenormalizedWeight(denom string) (sdkmath.LegacyDec, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[denom]
	if !ok {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrNotBound, denom)
	}
	_, weight := p.effectiveParams(rec)
	return weight, nil
}

// GetTotalDenormalizedWeight returns the sum of ready tokens' weights.
func (p *Pool) GetTotalDenormalizedWeight() sdkmath.LegacyDec {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalDenorm()
}

// GetNormalizedWeight returns denorm divided by the total denorm.
func (p *Pool) GetNormalizedWeight(denom string) (sdkmath.LegacyDec, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[denom]
	if !ok {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrNotBound, denom)
	}
	weight, total := p.effectiveWeightAndTotal(rec)
	return weight.Quo(total), nil
}

// GetSpotPrice returns the instantaneous price of tokenOut in units of
// tokenIn, swap fee included.
func (p *Pool) GetSpotPrice(tokenIn, tokenOut string) (sdkmath.LegacyDec, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.spotPrice(tokenIn, tokenOut, p.swapFee)
}

// GetSpotPriceSansFee returns the spot price without the fee markup.
func (p *Pool) GetSpotPriceSansFee(tokenIn, tokenOut string) (sdkmath.LegacyDec, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.spotPrice(tokenIn, tokenOut, sdkmath.LegacyZeroDec())
}

func (p *Pool) spotPrice(tokenIn, tokenOut string, fee sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	recIn, ok := p.records[tokenIn]
	if !ok {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrNotBound, tokenIn)
	}
	recOut, ok := p.records[tokenOut]
	if !ok {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrNotBound, tokenOut)
	}
	if !recOut.Ready {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrOutNotReady, tokenOut)
	}
	balIn, weightIn := p.effectiveParams(recIn)
	return poolmath.CalcSpotPrice(balIn, weightIn, recOut.Balance, recOut.Denorm, fee)
}

// ExtrapolatePoolValueFromToken estimates the pool's total value in units of
// the heaviest ready token: balance / normalized weight. Picking the highest
// denormalized weight keeps the estimate on the most liquid leg regardless of
// binding order; ties keep the earlier-bound token.
func (p *Pool) ExtrapolatePoolValueFromToken() (string, sdkmath.LegacyDec, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var ref *types.TokenRecord
	refDenom := ""
	for _, denom := range p.tokens {
		rec := p.records[denom]
		if !rec.Ready || !rec.Denorm.IsPositive() {
			continue
		}
		if ref == nil || rec.Denorm.GT(ref.Denorm) {
			ref = rec
			refDenom = denom
		}
	}
	if ref == nil {
		return "", sdkmath.LegacyDec{}, fmt.Errorf("%w: no ready token to extrapolate from", ErrNotInitialized)
	}
	value := ref.Balance.Mul(p.totalDenorm()).Quo(ref.Denorm)
	return refDenom, value, nil
}

// effectiveParams returns the balance and weight the pricing curve sees for
// a token: real values when ready, the minimum-balance floor and minimum
// weight otherwise, irrespective of the desired weight.
func (p *Pool) effectiveParams(rec *types.TokenRecord) (sdkmath.LegacyDec, sdkmath.LegacyDec) {
	if rec.Ready {
		return rec.Balance, rec.Denorm
	}
	return rec.EffectiveBalance(), poolmath.MinWeight
}

// effectiveWeightAndTotal returns the token's effective weight and the pool
// total including it. Not-ready tokens are excluded from the ready total, so
// their minimum weight is added on top.
func (p *Pool) effectiveWeightAndTotal(rec *types.TokenRecord) (sdkmath.LegacyDec, sdkmath.LegacyDec) {
	total := p.totalDenorm()
	if rec.Ready {
		return rec.Denorm, total
	}
	return poolmath.MinWeight, total.Add(poolmath.MinWeight)
}

func (p *Pool) totalDenorm() sdkmath.LegacyDec {
	total := sdkmath.LegacyZeroDec()
	for _, denom := range p.tokens {
		rec := p.records[denom]
		if rec.Ready {
			total = total.Add(rec.Denorm)
		}
	}
	return total
}

func (p *Pool) mintShares(to types.Account, amount sdkmath.LegacyDec) {
	p.totalSupply = p.totalSupply.Add(amount)
	p.shares[to] = p.sharesOf(to).Add(amount)
}

func (p *Pool) burnShares(from types.Account, amount sdkmath.LegacyDec) error {
	bal := p.sharesOf(from)
	if bal.LT(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientShares, from, bal, amount)
	}
	p.shares[from] = bal.Sub(amount)
	p.totalSupply = p.totalSupply.Sub(amount)
	return nil
}

func (p *Pool) moveShares(from, to types.Account, amount sdkmath.LegacyDec) error {
	bal := p.sharesOf(from)
	if bal.LT(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientShares, from, bal, amount)
	}
	p.shares[from] = bal.Sub(amount)
	p.shares[to] = p.sharesOf(to).Add(amount)
	return nil
}

// TransferShares moves pool shares between accounts. The initializer uses it
// to deliver claims.
func (p *Pool) TransferShares(from, to types.Account, amount sdkmath.LegacyDec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: share transfer of %s", ErrMathApprox, amount)
	}
	return p.moveShares(from, to, amount)
}
