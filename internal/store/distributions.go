package store

import (
	"fmt"

	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/apperr"
)

// distributionSpec names one (column, table) pair the rollup is allowed to
// group-count (spec §4.4 step 4). This is the fixed closed whitelist: no
// query is ever built from a column/table name that isn't in this slice,
// and no identifier here is ever derived from message data.
type distributionSpec struct {
	column string
	table  string
}

var allowedDistributions = []distributionSpec{
	{"execution_time_bucket", "tasks"},
	{"gas_used_bucket", "tasks"},
	{"chain_id", "tasks"},
	{"task_type", "tasks"},
	{"steps_computed_bucket", "invoices"},
	{"memory_used_bucket", "invoices"},
	{"continent_bucket", "nodes"},
	{"location_bucket", "nodes"},
}

func isAllowedDistribution(column, table string) bool {
	for _, d := range allowedDistributions {
		if d.column == column && d.table == table {
			return true
		}
	}
	return false
}

// Distribution group-counts non-null values of column in table, per spec
// §4.4 step 4. column and table are checked against the closed whitelist
// before any SQL is built; an input outside it never reaches the database
// and instead yields an InjectionAttempt error and an empty map, per §7.
func (s *Store) Distribution(column, table string) (map[string]int, error) {
	if !isAllowedDistribution(column, table) {
		return map[string]int{}, apperr.Injection(fmt.Sprintf("rejected distribution on %s.%s: not in whitelist", table, column))
	}

	// column/table are drawn exclusively from allowedDistributions above,
	// never from caller input, so building the query string here is safe.
	query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM %s WHERE %s IS NOT NULL AND %s != '' GROUP BY %s`, column, table, column, column, column)

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("distribution query %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan distribution row: %w", err)
		}
		result[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distribution rows: %w", err)
	}
	return result, nil
}
