/*

Liquidity sink for tokens shed by index pools.

Evicted balances land here instead of being market-dumped by the pool itself.
The sink quotes its inventory against the price source at a bounded premium
that favors the counterparty: shed tokens sell below the averaged price and
wanted tokens are credited above it, which pays arbitrageurs to carry out the
conversion the index wants.

*/

package sink

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/indexed-finance/indexed-core-sub000/internal/bank"
	"github.com/indexed-finance/indexed-core-sub000/internal/logger"
	"github.com/indexed-finance/indexed-core-sub000/internal/oracle"
	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

var (
	ErrNotOwner       = errors.New("caller is not the sink owner")
	ErrInvalidPremium = errors.New("premium outside the allowed band")
	ErrNoInventory    = errors.New("sink holds none of the requested token")
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrQuoteUnpriced  = errors.New("price source cannot value the token")
	ErrTradeTooLarge  = errors.New("trade exceeds sink inventory")
)

var (
	// MinPremium and MaxPremium bound the owner-set discount/markup.
	MinPremium = sdkmath.LegacyMustNewDecFromStr("0.01")
	MaxPremium = sdkmath.LegacyMustNewDecFromStr("0.19")
)

// PremiumSink receives evicted pool balances and resells them at a premium
// against the price source.
type PremiumSink struct {
	log     zerolog.Logger
	mu      sync.Mutex
	account types.Account
	owner   types.Account
	ledger  *bank.Ledger
	prices  oracle.PriceSource
	premium sdkmath.LegacyDec

	// received tracks cumulative evicted inflow per token.
	received map[string]sdkmath.LegacyDec
}

// New creates a sink with the given premium, which must be inside the band.
func New(account, owner types.Account, ledger *bank.Ledger, prices oracle.PriceSource, premium sdkmath.LegacyDec) (*PremiumSink, error) {
	if ledger == nil {
		return nil, errors.New("sink: ledger cannot be nil")
	}
	if prices == nil {
		return nil, errors.New("sink: price source cannot be nil")
	}
	if premium.IsNil() || premium.LT(MinPremium) || premium.GT(MaxPremium) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPremium, premium)
	}
	return &PremiumSink{
		log:      logger.GetForComponent("sink"),
		account:  account,
		owner:    owner,
		ledger:   ledger,
		prices:   prices,
		premium:  premium,
		received: make(map[string]sdkmath.LegacyDec),
	}, nil
}

// Account returns the sink's ledger account.
func (s *PremiumSink) Account() types.Account { return s.account }

// Premium returns the current premium rate.
func (s *PremiumSink) Premium() sdkmath.LegacyDec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.premium
}

// SetPremium updates the premium rate, owner only.
func (s *PremiumSink) SetPremium(caller types.Account, premium sdkmath.LegacyDec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if caller != s.owner {
		return fmt.Errorf("%w: %s", ErrNotOwner, caller)
	}
	if premium.IsNil() || premium.LT(MinPremium) || premium.GT(MaxPremium) {
		return fmt.Errorf("%w: %s", ErrInvalidPremium, premium)
	}
	s.premium = premium
	s.log.Info().Str("premium", premium.String()).Msg("Sink premium updated")
	return nil
}

// ReceiveEvictedToken records an evicted balance. The pool transfers the
// tokens before notifying, so there is nothing to move here.
func (s *PremiumSink) ReceiveEvictedToken(denom string, amount sdkmath.LegacyDec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.received[denom]
	if !ok {
		prev = sdkmath.LegacyZeroDec()
	}
	s.received[denom] = prev.Add(amount)
	s.log.Info().
		Str("denom", denom).
		Str("amount", amount.String()).
		Msg("Evicted token received")
}

// ReceivedTotal returns the cumulative evicted inflow for a token.
func (s *PremiumSink) ReceivedTotal(denom string) sdkmath.LegacyDec {
	s.mu.Lock()
	defer s.mu.Unlock()
	total, ok := s.received[denom]
	if !ok {
		return sdkmath.LegacyZeroDec()
	}
	return total
}

// Inventory returns the sink's current holding of a token.
func (s *PremiumSink) Inventory(denom string) sdkmath.LegacyDec {
	return s.ledger.BalanceOf(denom, s.account)
}

// QuoteSell values an amount of sink inventory at the averaged price minus
// the premium. This is what a counterparty pays to take shed tokens.
func (s *PremiumSink) QuoteSell(denom string, amount sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	return s.quote(denom, amount, sdkmath.LegacyOneDec().Sub(s.Premium()))
}

// QuoteBuy values an amount of a wanted token at the averaged price plus the
// premium. This is what the sink credits for tokens brought to it.
func (s *PremiumSink) QuoteBuy(denom string, amount sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	return s.quote(denom, amount, sdkmath.LegacyOneDec().Add(s.Premium()))
}

func (s *PremiumSink) quote(denom string, amount, factor sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	price, err := s.prices.AveragePrice(denom)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s: %v", ErrQuoteUnpriced, denom, err)
	}
	return price.Mul(amount).Mul(factor), nil
}

// Trade swaps giveAmount of a wanted token for sink inventory of takeDenom.
// The take amount is the buy-quoted value of the given tokens divided by the
// sell-side unit price, so both premium legs favor the caller.
func (s *PremiumSink) Trade(caller types.Account, giveDenom string, giveAmount sdkmath.LegacyDec, takeDenom string) (sdkmath.LegacyDec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if giveAmount.IsNil() || !giveAmount.IsPositive() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrInvalidAmount, giveAmount)
	}
	held := s.ledger.BalanceOf(takeDenom, s.account)
	if held.IsZero() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrNoInventory, takeDenom)
	}
	givePrice, err := s.prices.AveragePrice(giveDenom)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s: %v", ErrQuoteUnpriced, giveDenom, err)
	}
	takePrice, err := s.prices.AveragePrice(takeDenom)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s: %v", ErrQuoteUnpriced, takeDenom, err)
	}

	creditValue := givePrice.Mul(giveAmount).Mul(sdkmath.LegacyOneDec().Add(s.premium))
	sellUnit := takePrice.Mul(sdkmath.LegacyOneDec().Sub(s.premium))
	takeAmount := creditValue.Quo(sellUnit)
	if takeAmount.GT(held) {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: wants %s, held %s", ErrTradeTooLarge, takeAmount, held)
	}

	snap := s.ledger.Snapshot()
	if err := s.ledger.Transfer(giveDenom, caller, s.account, giveAmount); err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("sink trade: %w", err)
	}
	if err := s.ledger.Transfer(takeDenom, s.account, caller, takeAmount); err != nil {
		s.ledger.Restore(snap)
		return sdkmath.LegacyDec{}, fmt.Errorf("sink trade: %w", err)
	}
	s.log.Info().
		Str("give", giveDenom).Str("take", takeDenom).
		Str("give_amount", giveAmount.String()).
		Str("take_amount", takeAmount.String()).
		Msg("Sink trade executed")
	return takeAmount, nil
}

// Withdraw moves sink holdings to another account, owner only.
func (s *PremiumSink) Withdraw(caller types.Account, denom string, to types.Account, amount sdkmath.LegacyDec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if caller != s.owner {
		return fmt.Errorf("%w: %s", ErrNotOwner, caller)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if err := s.ledger.Transfer(denom, s.account, to, amount); err != nil {
		return fmt.Errorf("sink withdraw: %w", err)
	}
	return nil
}
