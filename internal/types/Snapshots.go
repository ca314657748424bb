/*

Snapshot types persisted by the rebalancer daemon after every cycle. These
mirror what the web API serves and what the state store writes to Postgres.

*/

package types

import "time"

// PoolCycleResult records what the rebalancer did (or declined to do) for a
// single pool during one cycle.
type PoolCycleResult struct {
	PoolID    PoolID `json:"pool_id"`
	Action    string `json:"action"` // "reweigh", "reindex", "skipped"
	Reason    string `json:"reason,omitempty"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// CycleSnapshot is the durable record of one rebalancer cycle.
type CycleSnapshot struct {
	CycleNumber int               `json:"cycle_number"`
	TraceID     string            `json:"trace_id"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	PoolsSeen   int               `json:"pools_seen"`
	Reweighs    int               `json:"reweighs"`
	Reindexes   int               `json:"reindexes"`
	Skips       int               `json:"skips"`
	Results     []PoolCycleResult `json:"results"`
}
