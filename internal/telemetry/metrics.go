/*

Prometheus metrics for the rebalancer and the pool engine. Counters are
registered on the default registry and exposed by the web server at /metrics.

*/

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesRun counts completed rebalancer cycles.
	CyclesRun = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexed",
		Subsystem: "rebalancer",
		Name:      "cycles_run_total",
		Help:      "Completed rebalancer cycles.",
	})

	// Reweighs counts successful pool reweighs.
	Reweighs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexed",
		Subsystem: "rebalancer",
		Name:      "reweighs_total",
		Help:      "Successful pool reweighs.",
	})

	// Reindexes counts successful pool reindexes.
	Reindexes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexed",
		Subsystem: "rebalancer",
		Name:      "reindexes_total",
		Help:      "Successful pool reindexes.",
	})

	// Skips counts pools skipped in a cycle, labelled by reason.
	Skips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexed",
		Subsystem: "rebalancer",
		Name:      "skips_total",
		Help:      "Pools skipped during a cycle, by reason.",
	}, []string{"reason"})

	// Failures counts pool actions that returned an unexpected error.
	Failures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexed",
		Subsystem: "rebalancer",
		Name:      "failures_total",
		Help:      "Pool actions that failed with an unexpected error.",
	})

	// SwapsPriced counts swaps executed by the pool engine.
	SwapsPriced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexed",
		Subsystem: "pool",
		Name:      "swaps_priced_total",
		Help:      "Swaps priced and executed by the pool engine.",
	})

	// Evictions counts tokens evicted from pools after weight decay.
	Evictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexed",
		Subsystem: "pool",
		Name:      "evictions_total",
		Help:      "Tokens evicted from pools after their weight decayed to the minimum.",
	})

	// CategorySorts counts market-cap sorts performed ahead of reindexes.
	CategorySorts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexed",
		Subsystem: "controller",
		Name:      "category_sorts_total",
		Help:      "Market-cap sorts performed on token categories.",
	})

	// ManagedPools tracks the number of pools the controller manages.
	ManagedPools = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexed",
		Subsystem: "controller",
		Name:      "managed_pools",
		Help:      "Pools currently managed by the controller.",
	})
)
