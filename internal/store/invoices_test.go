package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUpsertInvoiceCreated_FirstSeenImmutableAndReportingNodesAccumulate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "aggregator.db")
	st, err := Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	first := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, st.UpsertInvoiceCreated(first, "invhash1", "taskhash1", "1", "10-100", "1MB-10MB", "transfer"))

	second := time.Now().UTC()
	require.NoError(t, st.UpsertInvoiceCreated(second, "invhash1", "taskhash2", "2", "100-1000", "10MB-100MB", "swap"))

	inv, err := st.GetInvoice("invhash1")
	require.NoError(t, err)
	require.NotNil(t, inv)

	assert := require.New(t)
	assert.WithinDuration(first, inv.FirstSeenAt, time.Second, "first_seen_at must not move on re-report")
	assert.WithinDuration(second, inv.LastSeenAt, time.Second)
	assert.Equal(2, inv.ReportingNodes)
}

func TestGetInvoice_MissingReturnsNilNotError(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "aggregator.db")
	st, err := Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	inv, err := st.GetInvoice("does-not-exist")
	require.NoError(t, err)
	require.Nil(t, inv)
}
