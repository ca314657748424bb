/*

Index controller: category registry and market-cap ranking.

Categories are curated token universes. Ranking is an explicit, permissionless
step: anyone may re-sort a category by averaged market cap, and every consumer
of the ordering (top-N queries, reindexes) demands a sort newer than the
freshness window instead of sorting implicitly.

*/

package controller

import (
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/indexed-finance/indexed-core-sub000/internal/bank"
	"github.com/indexed-finance/indexed-core-sub000/internal/initializer"
	"github.com/indexed-finance/indexed-core-sub000/internal/logger"
	"github.com/indexed-finance/indexed-core-sub000/internal/oracle"
	"github.com/indexed-finance/indexed-core-sub000/internal/pool"
	"github.com/indexed-finance/indexed-core-sub000/internal/poolmath"
	"github.com/indexed-finance/indexed-core-sub000/internal/registry"
	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

var (
	ErrNotOwner           = errors.New("caller is not the controller owner")
	ErrUnknownCategory    = errors.New("category does not exist")
	ErrCategoryFull       = errors.New("category is at its token capacity")
	ErrTokenExists        = errors.New("token already in category")
	ErrTokenMissing       = errors.New("token not in category")
	ErrStaleSort          = errors.New("category sort is outside the freshness window")
	ErrCategoryTooSmall   = errors.New("category has fewer tokens than the index size")
	ErrInvalidIndexSize   = errors.New("index size out of range")
	ErrPoolExists         = errors.New("pool already prepared for this category and size")
	ErrUnknownPool        = errors.New("pool is not registered with the controller")
	ErrPoolNotInitialized = errors.New("pool has not been initialized")
	ErrPoolInitialized    = errors.New("pool is already initialized")
	ErrRebalanceCooldown  = errors.New("rebalance cooldown has not elapsed")
	ErrWrongSlot          = errors.New("operation does not match the current cycle slot")
	ErrBootstrapTooSmall  = errors.New("bootstrap amount below the minimum floor")
	ErrTokenIsReady       = errors.New("token has already reached its minimum balance")
)

// Config wires the controller's collaborators.
type Config struct {
	Account          types.Account
	Owner            types.Account
	Ledger           *bank.Ledger
	Prices           oracle.PriceSource
	Registry         *registry.Registry
	Sink             pool.UnbindHandler
	DefaultSwapFee   sdkmath.LegacyDec
	ExitFeeRecipient types.Account
	// SortFreshness bounds how old a category sort may be for top-N reads.
	SortFreshness time.Duration
	// RebalanceDelay is the per-pool cooldown between reweighs/reindexes.
	RebalanceDelay time.Duration
	// Now may be nil; defaults to time.Now.
	Now func() time.Time
}

type poolEntry struct {
	meta types.PoolMeta
	pool *pool.Pool
	init *initializer.Initializer
	// targetDenorms matches the initializer token order until the pool is
	// initialized, after which weights live in the pool records.
	targetDenorms []sdkmath.LegacyDec
}

// Controller owns categories and the rebalance state machine for every
// prepared index pool.
type Controller struct {
	log zerolog.Logger
	mu  sync.Mutex

	account          types.Account
	owner            types.Account
	ledger           *bank.Ledger
	prices           oracle.PriceSource
	registry         *registry.Registry
	sink             pool.UnbindHandler
	swapFee          sdkmath.LegacyDec
	exitFeeRecipient types.Account
	sortFreshness    time.Duration
	rebalanceDelay   time.Duration
	now              func() time.Time

	categories   map[types.CategoryID]*types.Category
	nextCategory types.CategoryID
	pools        map[types.PoolID]*poolEntry
}

// New creates a controller with no categories or pools.
func New(cfg Config) (*Controller, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("controller: ledger cannot be nil")
	}
	if cfg.Prices == nil {
		return nil, errors.New("controller: price source cannot be nil")
	}
	if cfg.Registry == nil {
		return nil, errors.New("controller: registry cannot be nil")
	}
	if cfg.Sink == nil {
		return nil, errors.New("controller: sink cannot be nil")
	}
	if cfg.Owner == "" || cfg.Account == "" {
		return nil, errors.New("controller: owner and account are required")
	}
	if cfg.SortFreshness <= 0 || cfg.RebalanceDelay <= 0 {
		return nil, errors.New("controller: freshness and rebalance windows must be positive")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		log:              logger.GetForComponent("controller"),
		account:          cfg.Account,
		owner:            cfg.Owner,
		ledger:           cfg.Ledger,
		prices:           cfg.Prices,
		registry:         cfg.Registry,
		sink:             cfg.Sink,
		swapFee:          cfg.DefaultSwapFee,
		exitFeeRecipient: cfg.ExitFeeRecipient,
		sortFreshness:    cfg.SortFreshness,
		rebalanceDelay:   cfg.RebalanceDelay,
		now:              now,
		categories:       make(map[types.CategoryID]*types.Category),
		nextCategory:     1,
		pools:            make(map[types.PoolID]*poolEntry),
	}, nil
}

// Account returns the account the controller uses for pool administration.
func (c *Controller) Account() types.Account { return c.account }

// CreateCategory registers an empty category and returns its ID.
func (c *Controller) CreateCategory(caller types.Account) (types.CategoryID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return 0, fmt.Errorf("%w: %s", ErrNotOwner, caller)
	}
	id := c.nextCategory
	c.nextCategory++
	c.categories[id] = &types.Category{ID: id}
	c.log.Info().Uint64("category_id", uint64(id)).Msg("Category created")
	return id, nil
}

// AddTokens appends tokens to a category, up to the category capacity.
func (c *Controller) AddTokens(caller types.Account, id types.CategoryID, denoms []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return fmt.Errorf("%w: %s", ErrNotOwner, caller)
	}
	cat, ok := c.categories[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCategory, id)
	}
	if len(cat.Tokens)+len(denoms) > poolmath.MaxCategoryTokens {
		return fmt.Errorf("%w: %d + %d over %d", ErrCategoryFull, len(cat.Tokens), len(denoms), poolmath.MaxCategoryTokens)
	}
	existing := make(map[string]bool, len(cat.Tokens))
	for _, t := range cat.Tokens {
		existing[t] = true
	}
	for _, denom := range denoms {
		if existing[denom] {
			return fmt.Errorf("%w: %s", ErrTokenExists, denom)
		}
		existing[denom] = true
	}
	cat.Tokens = append(cat.Tokens, denoms...)
	// New members invalidate any previous ordering.
	cat.LastSortTimestamp = time.Time{}
	c.log.Info().Uint64("category_id", uint64(id)).Int("tokens", len(cat.Tokens)).Msg("Category tokens added")
	return nil
}

// RemoveToken deletes a token from a category.
func (c *Controller) RemoveToken(caller types.Account, id types.CategoryID, denom string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return fmt.Errorf("%w: %s", ErrNotOwner, caller)
	}
	cat, ok := c.categories[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCategory, id)
	}
	for i, t := range cat.Tokens {
		if t == denom {
			cat.Tokens = append(cat.Tokens[:i], cat.Tokens[i+1:]...)
			cat.LastSortTimestamp = time.Time{}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrTokenMissing, denom)
}

// GetCategory returns a copy of the category.
func (c *Controller) GetCategory(id types.CategoryID) (types.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cat, ok := c.categories[id]
	if !ok {
		return types.Category{}, fmt.Errorf("%w: %d", ErrUnknownCategory, id)
	}
	out := *cat
	out.Tokens = append([]string(nil), cat.Tokens...)
	return out, nil
}

// CategoryIDs returns the registered category IDs.
func (c *Controller) CategoryIDs() []types.CategoryID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]types.CategoryID, 0, len(c.categories))
	for id := range c.categories {
		ids = append(ids, id)
	}
	return ids
}

// OrderCategoryTokensByMarketCap re-sorts a category descending by averaged
// market cap and stamps the sort time. Permissionless.
func (c *Controller) OrderCategoryTokensByMarketCap(id types.CategoryID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cat, ok := c.categories[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCategory, id)
	}
	mcaps, err := c.prices.AverageMarketCaps(cat.Tokens)
	if err != nil {
		return fmt.Errorf("sort category %d: %w", id, err)
	}
	// Insertion sort: the category is capped small and usually near-sorted
	// from the previous pass.
	for i := 1; i < len(cat.Tokens); i++ {
		token, mcap := cat.Tokens[i], mcaps[i]
		j := i - 1
		for j >= 0 && mcaps[j].LT(mcap) {
			cat.Tokens[j+1] = cat.Tokens[j]
			mcaps[j+1] = mcaps[j]
			j--
		}
		cat.Tokens[j+1] = token
		mcaps[j+1] = mcap
	}
	cat.LastSortTimestamp = c.now()
	c.log.Debug().Uint64("category_id", uint64(id)).Msg("Category sorted by market cap")
	return nil
}

// GetTopCategoryTokens returns the top n tokens of a freshly sorted category.
func (c *Controller) GetTopCategoryTokens(id types.CategoryID, n int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topCategoryTokens(id, n)
}

func (c *Controller) topCategoryTokens(id types.CategoryID, n int) ([]string, error) {
	cat, ok := c.categories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, id)
	}
	if len(cat.Tokens) < n {
		return nil, fmt.Errorf("%w: %d tokens, need %d", ErrCategoryTooSmall, len(cat.Tokens), n)
	}
	if !c.sortIsFresh(cat) {
		return nil, fmt.Errorf("%w: category %d sorted at %s", ErrStaleSort, id, cat.LastSortTimestamp)
	}
	return append([]string(nil), cat.Tokens[:n]...), nil
}

func (c *Controller) sortIsFresh(cat *types.Category) bool {
	if cat.LastSortTimestamp.IsZero() {
		return false
	}
	return c.now().Sub(cat.LastSortTimestamp) <= c.sortFreshness
}

// computeTargetWeights returns denormalized weights proportional to the
// square root of each token's averaged market cap, scaled so they sum to the
// weight multiplier.
func (c *Controller) computeTargetWeights(denoms []string) ([]sdkmath.LegacyDec, error) {
	mcaps, err := c.prices.AverageMarketCaps(denoms)
	if err != nil {
		return nil, err
	}
	sqrts := make([]sdkmath.LegacyDec, len(mcaps))
	sum := sdkmath.LegacyZeroDec()
	for i, mcap := range mcaps {
		root, err := mcap.ApproxSqrt()
		if err != nil {
			return nil, fmt.Errorf("sqrt of market cap for %s: %w", denoms[i], err)
		}
		sqrts[i] = root
		sum = sum.Add(root)
	}
	weights := make([]sdkmath.LegacyDec, len(sqrts))
	for i, root := range sqrts {
		weights[i] = root.Quo(sum).Mul(poolmath.WeightMultiplier)
	}
	return weights, nil
}

// GetPoolMeta returns the scheduling state for a pool.
func (c *Controller) GetPoolMeta(id types.PoolID) (types.PoolMeta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.pools[id]
	if !ok {
		return types.PoolMeta{}, fmt.Errorf("%w: %s", ErrUnknownPool, id)
	}
	return entry.meta, nil
}

// ListPools returns the scheduling state of every registered pool.
func (c *Controller) ListPools() []types.PoolMeta {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.PoolMeta, 0, len(c.pools))
	for _, entry := range c.pools {
		out = append(out, entry.meta)
	}
	return out
}

// Pool returns the pool engine registered under id.
func (c *Controller) Pool(id types.PoolID) (*pool.Pool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPool, id)
	}
	return entry.pool, nil
}

// Initializer returns the bootstrap escrow for a prepared pool.
func (c *Controller) Initializer(id types.PoolID) (*initializer.Initializer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPool, id)
	}
	return entry.init, nil
}
