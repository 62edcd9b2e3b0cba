package store

import (
	"database/sql"
	"fmt"

	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/model"
)

// LoadAllBurns returns every TruBurn row, used by the burn monitor to seed
// its in-memory map on startup (spec §4.6 "Initialization").
func (s *Store) LoadAllBurns() ([]model.TruBurn, error) {
	rows, err := s.db.Query(`
		SELECT tx_hash, log_index, block_number, timestamp, from_address, to_address, amount, amount_formatted, burn_type
		FROM tru_burns
	`)
	if err != nil {
		return nil, fmt.Errorf("load burns: %w", err)
	}
	defer rows.Close()

	var out []model.TruBurn
	for rows.Next() {
		var b model.TruBurn
		var ts int64
		var burnType sql.NullString
		if err := rows.Scan(&b.TxHash, &b.LogIndex, &b.BlockNumber, &ts, &b.FromAddress, &b.ToAddress, &b.Amount, &b.AmountFormatted, &burnType); err != nil {
			return nil, fmt.Errorf("scan burn: %w", err)
		}
		b.Timestamp = fromMillis(ts)
		b.BurnType = model.BurnType(burnType.String)
		out = append(out, b)
	}
	return out, rows.Err()
}

// InsertBurn inserts one TruBurn row, ignoring a primary-key conflict (spec
// §4.6 "Commit": duplicates are silently ignored, ON CONFLICT DO NOTHING).
// The return value reports whether a new row was actually inserted.
func (s *Store) InsertBurn(b model.TruBurn) (inserted bool, err error) {
	res, err := s.db.Exec(`
		INSERT INTO tru_burns (tx_hash, log_index, block_number, timestamp, from_address, to_address, amount, amount_formatted, burn_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_hash, log_index) DO NOTHING
	`, b.TxHash, b.LogIndex, b.BlockNumber, toMillis(b.Timestamp), b.FromAddress, b.ToAddress, b.Amount, b.AmountFormatted, string(b.BurnType))
	if err != nil {
		return false, fmt.Errorf("insert burn: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert burn rows affected: %w", err)
	}
	return n > 0, nil
}

// GetBurnSyncState reads the single BurnSyncState cursor row.
func (s *Store) GetBurnSyncState() (model.BurnSyncState, error) {
	var st model.BurnSyncState
	var lastSync int64
	err := s.db.QueryRow(`SELECT last_block, total_burns, last_sync_at FROM burn_sync_state WHERE id = 1`).
		Scan(&st.LastBlock, &st.TotalBurns, &lastSync)
	if err != nil {
		return model.BurnSyncState{}, fmt.Errorf("get burn sync state: %w", err)
	}
	st.LastSyncAt = fromMillis(lastSync)
	return st, nil
}

// UpdateBurnSyncState overwrites the BurnSyncState cursor (spec §4.6
// "Commit").
func (s *Store) UpdateBurnSyncState(st model.BurnSyncState) error {
	_, err := s.db.Exec(`
		UPDATE burn_sync_state SET last_block = ?, total_burns = ?, last_sync_at = ? WHERE id = 1
	`, st.LastBlock, st.TotalBurns, toMillis(st.LastSyncAt))
	if err != nil {
		return fmt.Errorf("update burn sync state: %w", err)
	}
	return nil
}
