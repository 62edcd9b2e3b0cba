package store

import (
	"fmt"
	"time"
)

// TaskCounts bundles the task-derived scalar counts from spec §4.4 step 2.
type TaskCounts struct {
	Total        int
	Completed    int
	Failed       int
	Cached       int
	Last24h      int
}

// InvoiceCounts bundles the invoice-derived scalar counts from spec §4.4
// step 2.
type InvoiceCounts struct {
	Total   int
	Last24h int
}

// TaskCounts computes the rollup's task scalars as of asOf, all in one
// query so the numbers are mutually consistent (spec §4.4 step 1/§8 P7).
func (s *Store) TaskCounts(asOf time.Time) (TaskCounts, error) {
	last24 := toMillis(asOf.Add(-24 * time.Hour))
	var c TaskCounts
	err := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN cached = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN first_seen_at > ? THEN 1 ELSE 0 END), 0)
		FROM tasks
	`, last24).Scan(&c.Total, &c.Completed, &c.Failed, &c.Cached, &c.Last24h)
	if err != nil {
		return TaskCounts{}, fmt.Errorf("task counts: %w", err)
	}
	return c, nil
}

// InvoiceCounts computes the rollup's invoice scalars as of asOf.
func (s *Store) InvoiceCounts(asOf time.Time) (InvoiceCounts, error) {
	last24 := toMillis(asOf.Add(-24 * time.Hour))
	var c InvoiceCounts
	err := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN first_seen_at > ? THEN 1 ELSE 0 END), 0)
		FROM invoices
	`, last24).Scan(&c.Total, &c.Last24h)
	if err != nil {
		return InvoiceCounts{}, fmt.Errorf("invoice counts: %w", err)
	}
	return c, nil
}
