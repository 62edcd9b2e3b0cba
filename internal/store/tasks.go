package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/model"
)

// UpsertTaskReceived implements spec §4.3.1: insert a new AggregatedTask on
// first sighting, or bump lastSeenAt/reportingNodes on a later one.
// Immutable metadata on an existing row is never overwritten
// (first-writer-wins).
func (s *Store) UpsertTaskReceived(now time.Time, taskIDHash, chainID, taskType string) error {
	ms := toMillis(now)
	_, err := s.db.Exec(`
		INSERT INTO tasks (task_id_hash, first_seen_at, last_seen_at, chain_id, task_type, status, reporting_nodes)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(task_id_hash) DO UPDATE SET
			last_seen_at = excluded.last_seen_at,
			reporting_nodes = reporting_nodes + 1
	`, taskIDHash, ms, ms, chainID, taskType, string(model.TaskStatusReceived))
	if err != nil {
		return fmt.Errorf("upsert task received: %w", err)
	}
	return nil
}

// CompleteTask implements spec §4.3.2: an unconditional update by hash. A
// missing row is a no-op, not an error — the monitor may have reported
// completion before we saw the receipt.
func (s *Store) CompleteTask(now time.Time, taskIDHash string, success *bool, executionTimeBucket, gasUsedBucket string, cached *bool) error {
	_, err := s.db.Exec(`
		UPDATE tasks SET
			status = ?,
			success = ?,
			execution_time_bucket = ?,
			gas_used_bucket = ?,
			cached = ?,
			last_seen_at = ?
		WHERE task_id_hash = ?
	`, string(model.TaskStatusCompleted), boolToNullable(success), executionTimeBucket, gasUsedBucket, boolToNullable(cached), toMillis(now), taskIDHash)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

// GetTask fetches one AggregatedTask by hash, for tests and diagnostics.
func (s *Store) GetTask(taskIDHash string) (*model.AggregatedTask, error) {
	row := s.db.QueryRow(`
		SELECT task_id_hash, first_seen_at, last_seen_at, chain_id, task_type, status, success, execution_time_bucket, gas_used_bucket, cached, reporting_nodes
		FROM tasks WHERE task_id_hash = ?
	`, taskIDHash)
	return scanTask(row)
}

func scanTask(row *sql.Row) (*model.AggregatedTask, error) {
	var t model.AggregatedTask
	var firstSeen, lastSeen int64
	var status string
	var success, cached sql.NullInt64
	var chainID, taskType, execBucket, gasBucket sql.NullString
	if err := row.Scan(&t.TaskIDHash, &firstSeen, &lastSeen, &chainID, &taskType, &status, &success, &execBucket, &gasBucket, &cached, &t.ReportingNodes); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.FirstSeenAt = fromMillis(firstSeen)
	t.LastSeenAt = fromMillis(lastSeen)
	t.ChainID = chainID.String
	t.TaskType = taskType.String
	t.Status = model.TaskStatus(status)
	t.ExecutionTimeBucket = execBucket.String
	t.GasUsedBucket = gasBucket.String
	t.Success = nullableToBool(success)
	t.Cached = nullableToBool(cached)
	return &t, nil
}
