package rollup

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/broker"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/burnmonitor"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/store"
)

func newTestPublisher(t *testing.T) (*Publisher, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "aggregator.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	conn := broker.New(broker.Config{URL: "wss://127.0.0.1:0"}, zerolog.Nop())
	burns := burnmonitor.New(st, burnmonitor.Config{BaseURL: "http://127.0.0.1:0"}, zerolog.Nop())
	p := New(st, conn, burns, "test-generator", zerolog.Nop())
	return p, st
}

// TestPublishOnce_RecordsHistoryEvenWhenPublishFails covers spec §4.4's
// stated failure model: a down pub/sub connection must never also cost us
// the history row.
func TestPublishOnce_RecordsHistoryEvenWhenPublishFails(t *testing.T) {
	p, st := newTestPublisher(t)

	now := time.Now().UTC()
	require.NoError(t, st.UpsertTaskReceived(now, "abcdef0123456789", "1", "compute"))

	p.PublishOnce()

	rows := countHistoryRows(t, st)
	require.Equal(t, 1, rows, "history row must be recorded even though the broker was never dialed")
}

// TestPublishOnce_OmitsBurnSnapshotWhenMonitorNotInitialized exercises the
// "truBurns is null until the monitor has synced once" path (spec §4.6).
func TestPublishOnce_OmitsBurnSnapshotWhenMonitorNotInitialized(t *testing.T) {
	p, _ := newTestPublisher(t)
	// No call to burns.Init: CurrentSnapshot reports not-ready, and
	// PublishOnce must not panic dereferencing a nil snapshot.
	require.NotPanics(t, func() { p.PublishOnce() })
}

// countHistoryRows counts every stats_history row by deleting everything
// older than a cutoff far in the future — the store package exposes no
// direct count accessor for this append-only table.
func TestStartStop_StopsCleanly(t *testing.T) {
	p, _ := newTestPublisher(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx, time.Hour)
	p.Stop()
}

// TestEnvelopePayload_MarshalsSpecShape pins the wire shape spec §4.4 step 6
// / §6.1 calls out as stable: version/type/timestamp at the top level, every
// scalar and distribution nested under data, and an ISO-8601 timestamp.
func TestEnvelopePayload_MarshalsSpecShape(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	payload := envelopePayload{
		Version:     envelopeVersion,
		Type:        envelopeType,
		Timestamp:   now.Format(time.RFC3339),
		GeneratorID: "gen-1",
		Data: envelopeDataBlock{
			TotalTasks:     1,
			CompletedTasks: 1,
			SuccessRate:    100.0,
			Distributions:  map[string]map[string]int{"executionTime": {"100-500ms": 1}},
		},
	}

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	require.Equal(t, "1.0", decoded["version"])
	require.Equal(t, "network_stats", decoded["type"])
	require.Equal(t, now.Format(time.RFC3339), decoded["timestamp"])
	_, err = time.Parse(time.RFC3339, decoded["timestamp"].(string))
	require.NoError(t, err, "timestamp must be ISO-8601/RFC3339, not unix millis")

	data, ok := decoded["data"].(map[string]any)
	require.True(t, ok, "scalars/distributions/truBurns must live under data")
	require.Equal(t, float64(1), data["totalTasks"])
	require.Equal(t, float64(100), data["successRate"])
	require.Contains(t, data, "distributions")

	require.NotContains(t, decoded, "totalTasks", "scalars must not leak to the envelope top level")
}

func countHistoryRows(t *testing.T, st *store.Store) int {
	t.Helper()
	future := time.Now().UTC().Add(365 * 24 * time.Hour)
	deleted, err := st.CleanupHistory(future, 0)
	require.NoError(t, err)
	return int(deleted)
}
