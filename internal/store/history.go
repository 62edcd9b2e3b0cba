package store

import (
	"fmt"
	"time"

	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/model"
)

// InsertHistory appends one NetworkStatsHistory row (spec §4.4 step 7). It
// is inserted whether or not the rollup publish itself succeeded, per spec
// §4.4's failure model.
func (s *Store) InsertHistory(row model.NetworkStatsHistoryRow) error {
	_, err := s.db.Exec(`
		INSERT INTO stats_history (
			timestamp, active_nodes, total_nodes, total_tasks, completed_tasks,
			failed_tasks, cached_tasks, tasks_last_24h, total_invoices, invoices_last_24h,
			success_rate, cache_hit_rate
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, toMillis(row.Timestamp), row.ActiveNodes, row.TotalNodes, row.TotalTasks, row.CompletedTasks,
		row.FailedTasks, row.CachedTasks, row.TasksLast24h, row.TotalInvoices, row.InvoicesLast24h,
		row.SuccessRate, row.CacheHitRate)
	if err != nil {
		return fmt.Errorf("insert stats history: %w", err)
	}
	return nil
}

// CleanupHistory deletes NetworkStatsHistory rows older than retentionDays
// (spec §4.5).
func (s *Store) CleanupHistory(now time.Time, retentionDays int) (int64, error) {
	cutoff := toMillis(now.AddDate(0, 0, -retentionDays))
	res, err := s.db.Exec(`DELETE FROM stats_history WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup stats history: %w", err)
	}
	return res.RowsAffected()
}

// CleanupIdleEntities deletes AggregatedTask and AggregatedInvoice rows
// whose lastSeenAt is older than 90 days (spec §3, §4.5). TruBurn and
// ActiveNode rows are never touched here.
func (s *Store) CleanupIdleEntities(now time.Time) (tasksDeleted, invoicesDeleted int64, err error) {
	const idleDays = 90
	cutoff := toMillis(now.AddDate(0, 0, -idleDays))

	res, err := s.db.Exec(`DELETE FROM tasks WHERE last_seen_at < ?`, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("cleanup idle tasks: %w", err)
	}
	tasksDeleted, _ = res.RowsAffected()

	res, err = s.db.Exec(`DELETE FROM invoices WHERE last_seen_at < ?`, cutoff)
	if err != nil {
		return tasksDeleted, 0, fmt.Errorf("cleanup idle invoices: %w", err)
	}
	invoicesDeleted, _ = res.RowsAffected()

	return tasksDeleted, invoicesDeleted, nil
}
