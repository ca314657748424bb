/*

Price source interface and the in-process trailing-window TWAP implementation.

Prices are quoted against a single reference asset. Market cap for a token is
its averaged price times its registered circulating supply. Queries fail with
ErrNoPriceInRange when the trailing window holds no observation for a token.

*/

package oracle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/indexed-finance/indexed-core-sub000/internal/logger"
)

var (
	ErrNoPriceInRange = errors.New("no price observation in range")
	ErrUnknownSupply  = errors.New("circulating supply not registered")
	ErrInvalidPrice   = errors.New("price must be positive")
	ErrInvalidSupply  = errors.New("supply must be positive")
)

// BucketSpan is the granularity of observation buckets.
const BucketSpan = time.Hour

// PriceSource is the external price interface the controller and initializer
// consume.
type PriceSource interface {
	// AveragePrice returns the token's averaged exchange rate against the
	// reference asset over the trailing window.
	AveragePrice(denom string) (sdkmath.LegacyDec, error)

	// AverageMarketCap returns averaged price times circulating supply.
	AverageMarketCap(denom string) (sdkmath.LegacyDec, error)

	// AverageMarketCaps batches AverageMarketCap; it fails if any token
	// lacks an observation in range.
	AverageMarketCaps(denoms []string) ([]sdkmath.LegacyDec, error)

	// HasObservationInWindow reports whether an observation exists inside
	// the bucket containing the given time.
	HasObservationInWindow(denom string, bucket time.Time) bool
}

type observation struct {
	at    time.Time
	price sdkmath.LegacyDec
}

// TWAPOracle averages recorded prices over a trailing window.
type TWAPOracle struct {
	log    zerolog.Logger
	mu     sync.RWMutex
	window time.Duration
	now    func() time.Time

	observations map[string][]observation
	supplies     map[string]sdkmath.LegacyDec
}

// NewTWAPOracle returns an oracle averaging over the given trailing window.
// now may be nil, in which case time.Now is used.
func NewTWAPOracle(window time.Duration, now func() time.Time) *TWAPOracle {
	if now == nil {
		now = time.Now
	}
	return &TWAPOracle{
		log:          logger.GetForComponent("twap_oracle"),
		window:       window,
		now:          now,
		observations: make(map[string][]observation),
		supplies:     make(map[string]sdkmath.LegacyDec),
	}
}

// RecordPrice appends an observation at the current time and prunes
// observations that fell out of the window.
func (o *TWAPOracle) RecordPrice(denom string, price sdkmath.LegacyDec) error {
	if price.IsNil() || !price.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, denom)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	obs := append(o.observations[denom], observation{at: now, price: price})

	cutoff := now.Add(-o.window)
	trimmed := obs[:0]
	for _, ob := range obs {
		if !ob.at.Before(cutoff) {
			trimmed = append(trimmed, ob)
		}
	}
	o.observations[denom] = trimmed

	o.log.Debug().Str("denom", denom).Str("price", price.String()).Msg("Recorded price observation")
	return nil
}

// SetCirculatingSupply registers the token's circulating supply used for
// market-cap queries.
func (o *TWAPOracle) SetCirculatingSupply(denom string, supply sdkmath.LegacyDec) error {
	if supply.IsNil() || !supply.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidSupply, denom)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.supplies[denom] = supply
	return nil
}

// AveragePrice implements PriceSource.
func (o *TWAPOracle) AveragePrice(denom string) (sdkmath.LegacyDec, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.averagePriceLocked(denom)
}

func (o *TWAPOracle) averagePriceLocked(denom string) (sdkmath.LegacyDec, error) {
	cutoff := o.now().Add(-o.window)
	sum := sdkmath.LegacyZeroDec()
	count := int64(0)
	for _, ob := range o.observations[denom] {
		if ob.at.Before(cutoff) {
			continue
		}
		sum = sum.Add(ob.price)
		count++
	}
	if count == 0 {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrNoPriceInRange, denom)
	}
	return sum.Quo(sdkmath.LegacyNewDec(count)), nil
}

// AverageMarketCap implements PriceSource.
func (o *TWAPOracle) AverageMarketCap(denom string) (sdkmath.LegacyDec, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, err := o.averagePriceLocked(denom)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	supply, ok := o.supplies[denom]
	if !ok {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %s", ErrUnknownSupply, denom)
	}
	return price.Mul(supply), nil
}

// AverageMarketCaps implements PriceSource.
func (o *TWAPOracle) AverageMarketCaps(denoms []string) ([]sdkmath.LegacyDec, error) {
	caps := make([]sdkmath.LegacyDec, len(denoms))
	for i, denom := range denoms {
		mcap, err := o.AverageMarketCap(denom)
		if err != nil {
			return nil, err
		}
		caps[i] = mcap
	}
	return caps, nil
}

// HasObservationInWindow implements PriceSource.
func (o *TWAPOracle) HasObservationInWindow(denom string, bucket time.Time) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	start := bucket.Truncate(BucketSpan)
	end := start.Add(BucketSpan)
	for _, ob := range o.observations[denom] {
		if !ob.at.Before(start) && ob.at.Before(end) {
			return true
		}
	}
	return false
}
