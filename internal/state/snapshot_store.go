/*

Cycle snapshot and pool event persistence. Per-pool results inside a cycle
are stored as a JSONB column rather than a child table; the web API serves
them back verbatim.

*/

package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

// SaveCycleSnapshot persists the durable record of one rebalancer cycle.
func SaveCycleSnapshot(snapshot types.CycleSnapshot) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	resultsJSON, err := json.Marshal(snapshot.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal cycle results: %w", err)
	}

	insertSQL := `
		INSERT INTO rebalance_cycles
			(cycle_number, trace_id, started_at, finished_at,
			 pools_seen, reweighs, reindexes, skips, results)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	_, err = DB.Exec(insertSQL,
		snapshot.CycleNumber, snapshot.TraceID, snapshot.StartedAt, snapshot.FinishedAt,
		snapshot.PoolsSeen, snapshot.Reweighs, snapshot.Reindexes, snapshot.Skips, resultsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save cycle snapshot: %w", err)
	}

	log.Info().
		Int("cycle_number", snapshot.CycleNumber).
		Str("trace_id", snapshot.TraceID).
		Msg("Cycle snapshot saved")
	return nil
}

// GetRecentCycles retrieves recent cycle snapshots, newest first.
func GetRecentCycles(limit int) ([]types.CycleSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := `
		SELECT cycle_number, trace_id, started_at, finished_at,
		       pools_seen, reweighs, reindexes, skips, results
		FROM rebalance_cycles
		ORDER BY cycle_number DESC
		LIMIT $1;`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent cycles: %w", err)
	}
	defer rows.Close()

	var cycles []types.CycleSnapshot
	for rows.Next() {
		var cycle types.CycleSnapshot
		var resultsJSON []byte
		err := rows.Scan(
			&cycle.CycleNumber, &cycle.TraceID, &cycle.StartedAt, &cycle.FinishedAt,
			&cycle.PoolsSeen, &cycle.Reweighs, &cycle.Reindexes, &cycle.Skips, &resultsJSON,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan cycle row")
			continue
		}
		if len(resultsJSON) > 0 {
			if err := json.Unmarshal(resultsJSON, &cycle.Results); err != nil {
				log.Error().Err(err).Int("cycle_number", cycle.CycleNumber).Msg("Failed to unmarshal cycle results")
				continue
			}
		}
		cycles = append(cycles, cycle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return cycles, nil
}

// GetLatestCycle returns the most recent cycle snapshot, or nil when none
// has been recorded yet.
func GetLatestCycle() (*types.CycleSnapshot, error) {
	cycles, err := GetRecentCycles(1)
	if err != nil {
		return nil, err
	}
	if len(cycles) == 0 {
		return nil, nil
	}
	return &cycles[0], nil
}

// RecordPoolEvent appends a pool lifecycle event with an arbitrary payload.
func RecordPoolEvent(poolID types.PoolID, eventType string, payload any) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal pool event payload: %w", err)
	}

	_, err = DB.Exec(
		`INSERT INTO pool_events (pool_id, event_type, payload) VALUES ($1, $2, $3);`,
		string(poolID), eventType, payloadJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to record pool event: %w", err)
	}
	return nil
}

// PoolEvent is a persisted pool lifecycle event as served by the web API.
type PoolEvent struct {
	PoolID     string          `json:"pool_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// GetPoolEvents retrieves recent events for a pool, newest first.
func GetPoolEvents(poolID types.PoolID, limit int) ([]PoolEvent, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := DB.Query(`
		SELECT pool_id, event_type, payload, occurred_at
		FROM pool_events
		WHERE pool_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2;`, string(poolID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pool events: %w", err)
	}
	defer rows.Close()

	var events []PoolEvent
	for rows.Next() {
		var ev PoolEvent
		if err := rows.Scan(&ev.PoolID, &ev.EventType, &ev.Payload, &ev.OccurredAt); err != nil {
			log.Error().Err(err).Msg("Failed to scan pool event row")
			continue
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return events, nil
}
