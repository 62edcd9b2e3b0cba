package router

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/model"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/ratelimit"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/store"
)

func newTestRouter(t *testing.T) (*Router, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "aggregator.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	limiter := ratelimit.New(ratelimit.Config{Width: time.Second, GlobalBudget: 1000, NodeBudget: 1000})
	r := New(st, limiter, zerolog.Nop())
	return r, st
}

func TestHandle_TaskReceivedPersists(t *testing.T) {
	r, st := newTestRouter(t)

	payload, err := json.Marshal(map[string]any{
		"nodeId": "node-123e4567-e89b-12d3-a456-426614174000",
		"data": map[string]any{
			"taskIdHash": "abcdef0123456789",
			"chainId":    "1",
			"taskType":   "compute",
		},
	})
	require.NoError(t, err)

	r.Handle(model.SubjectTasksReceived, payload)

	task, err := st.GetTask("abcdef0123456789")
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Equal(t, "1", task.ChainID)
}

func TestHandle_InvalidJSONDropped(t *testing.T) {
	r, _ := newTestRouter(t)
	require.NotPanics(t, func() {
		r.Handle(model.SubjectTasksReceived, []byte("not json"))
	})
}

func TestHandle_FailedValidationDropped(t *testing.T) {
	r, st := newTestRouter(t)
	payload, _ := json.Marshal(map[string]any{
		"data": map[string]any{"taskIdHash": "short"},
	})
	r.Handle(model.SubjectTasksReceived, payload)

	dist, err := st.Distribution("chain_id", "tasks")
	require.NoError(t, err)
	require.Empty(t, dist)
}

func TestHandle_MissingNodeIDRejectedByRateLimiter(t *testing.T) {
	r, st := newTestRouter(t)
	payload, _ := json.Marshal(map[string]any{
		"data": map[string]any{
			"taskIdHash": "abcdef0123456789",
		},
	})
	r.Handle(model.SubjectTasksReceived, payload)

	task, err := st.GetTask("abcdef0123456789")
	require.NoError(t, err)
	require.Nil(t, task, "a message without nodeId must never reach the handler")
}

func TestHandle_HeartbeatPersistsNode(t *testing.T) {
	r, st := newTestRouter(t)
	payload, _ := json.Marshal(map[string]any{
		"nodeId": "node-123e4567-e89b-12d3-a456-426614174000",
		"data": map[string]any{
			"status": "online",
		},
	})
	r.Handle(model.SubjectHeartbeat, payload)

	node, err := st.GetNode("node-123e4567-e89b-12d3-a456-426614174000")
	require.NoError(t, err)
	require.NotNil(t, node)
	require.Equal(t, "online", node.Status)
}
