package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/model"
)

// UpsertInvoiceCreated implements spec §4.3.3: same shape as 4.3.1 but
// keyed by invoiceIdHash.
func (s *Store) UpsertInvoiceCreated(now time.Time, invoiceIDHash, taskIDHash, chainID, stepsComputedBucket, memoryUsedBucket, operation string) error {
	ms := toMillis(now)
	_, err := s.db.Exec(`
		INSERT INTO invoices (invoice_id_hash, task_id_hash, first_seen_at, last_seen_at, chain_id, steps_computed_bucket, memory_used_bucket, operation, reporting_nodes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(invoice_id_hash) DO UPDATE SET
			last_seen_at = excluded.last_seen_at,
			reporting_nodes = reporting_nodes + 1
	`, invoiceIDHash, taskIDHash, ms, ms, chainID, stepsComputedBucket, memoryUsedBucket, operation)
	if err != nil {
		return fmt.Errorf("upsert invoice created: %w", err)
	}
	return nil
}

// GetInvoice fetches one AggregatedInvoice by hash, for tests and diagnostics.
func (s *Store) GetInvoice(invoiceIDHash string) (*model.AggregatedInvoice, error) {
	row := s.db.QueryRow(`
		SELECT invoice_id_hash, task_id_hash, first_seen_at, last_seen_at, chain_id, steps_computed_bucket, memory_used_bucket, operation, reporting_nodes
		FROM invoices WHERE invoice_id_hash = ?
	`, invoiceIDHash)

	var inv model.AggregatedInvoice
	var firstSeen, lastSeen int64
	var taskID, chainID, steps, mem, op sql.NullString
	if err := row.Scan(&inv.InvoiceIDHash, &taskID, &firstSeen, &lastSeen, &chainID, &steps, &mem, &op, &inv.ReportingNodes); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	inv.TaskIDHash = taskID.String
	inv.FirstSeenAt = fromMillis(firstSeen)
	inv.LastSeenAt = fromMillis(lastSeen)
	inv.ChainID = chainID.String
	inv.StepsComputedBucket = steps.String
	inv.MemoryUsedBucket = mem.String
	inv.Operation = op.String
	return &inv, nil
}
