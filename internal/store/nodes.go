package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/model"
)

// UpsertHeartbeat implements spec §4.3.4: heartbeats are the only way a
// node becomes "active". Overwrites all mutable fields on conflict and
// increments heartbeatCount.
func (s *Store) UpsertHeartbeat(now time.Time, nodeID, status, totalTasksBucket, activeTasksBucket, continentBucket, locationBucket string) error {
	ms := toMillis(now)
	_, err := s.db.Exec(`
		INSERT INTO nodes (node_id, first_seen_at, last_seen_at, status, total_tasks_bucket, active_tasks_bucket, continent_bucket, location_bucket, heartbeat_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(node_id) DO UPDATE SET
			last_seen_at = excluded.last_seen_at,
			status = excluded.status,
			total_tasks_bucket = excluded.total_tasks_bucket,
			active_tasks_bucket = excluded.active_tasks_bucket,
			continent_bucket = excluded.continent_bucket,
			location_bucket = excluded.location_bucket,
			heartbeat_count = heartbeat_count + 1
	`, nodeID, ms, ms, status, totalTasksBucket, activeTasksBucket, continentBucket, locationBucket)
	if err != nil {
		return fmt.Errorf("upsert heartbeat: %w", err)
	}
	return nil
}

// GetNode fetches one ActiveNode by id, for tests and diagnostics.
func (s *Store) GetNode(nodeID string) (*model.ActiveNode, error) {
	row := s.db.QueryRow(`
		SELECT node_id, first_seen_at, last_seen_at, status, total_tasks_bucket, active_tasks_bucket, continent_bucket, location_bucket, heartbeat_count
		FROM nodes WHERE node_id = ?
	`, nodeID)

	var n model.ActiveNode
	var firstSeen, lastSeen int64
	var status, totalBucket, activeBucket, continent, location sql.NullString
	if err := row.Scan(&n.NodeID, &firstSeen, &lastSeen, &status, &totalBucket, &activeBucket, &continent, &location, &n.HeartbeatCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan node: %w", err)
	}
	n.FirstSeenAt = fromMillis(firstSeen)
	n.LastSeenAt = fromMillis(lastSeen)
	n.Status = status.String
	n.TotalTasksBucket = totalBucket.String
	n.ActiveTasksBucket = activeBucket.String
	n.ContinentBucket = continent.String
	n.LocationBucket = location.String
	return &n, nil
}

// CountActiveNodes implements the §4.4 step 2 activeNodes computation:
// rows whose lastSeenAt is within the last 5 minutes of asOf.
func (s *Store) CountActiveNodes(asOf time.Time) (int, error) {
	cutoff := toMillis(asOf.Add(-5 * time.Minute))
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM nodes WHERE last_seen_at > ?`, cutoff).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active nodes: %w", err)
	}
	return n, nil
}

// CountTotalNodes counts every ActiveNode row, ever seen.
func (s *Store) CountTotalNodes() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM nodes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count total nodes: %w", err)
	}
	return n, nil
}
