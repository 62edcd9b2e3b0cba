package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow_PerNodeBudgetEnforced(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	l := New(Config{Width: time.Second, GlobalBudget: 1000, NodeBudget: 2}).WithClock(clock)

	ok, reason := l.Allow("node-a")
	require.True(t, ok)
	require.Equal(t, ReasonNone, reason)

	ok, reason = l.Allow("node-a")
	require.True(t, ok)
	require.Equal(t, ReasonNone, reason)

	ok, reason = l.Allow("node-a")
	assert.False(t, ok)
	assert.Equal(t, ReasonNodeExceeded, reason)
}

func TestAllow_WindowResetsAfterWidth(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	l := New(Config{Width: time.Second, GlobalBudget: 1000, NodeBudget: 1}).WithClock(clock)

	ok, _ := l.Allow("node-a")
	require.True(t, ok)

	ok, _ = l.Allow("node-a")
	require.False(t, ok)

	now = now.Add(2 * time.Second)
	ok, reason := l.Allow("node-a")
	assert.True(t, ok)
	assert.Equal(t, ReasonNone, reason)
}

func TestAllow_MissingNodeIDRejected(t *testing.T) {
	l := New(Config{Width: time.Second, GlobalBudget: 1000, NodeBudget: 10})
	ok, reason := l.Allow("")
	assert.False(t, ok)
	assert.Equal(t, ReasonMissingNodeID, reason)
}

func TestAllow_GlobalBudgetEnforcedAcrossNodes(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	l := New(Config{Width: time.Second, GlobalBudget: 2, NodeBudget: 10}).WithClock(clock)

	ok, _ := l.Allow("node-a")
	require.True(t, ok)
	ok, _ = l.Allow("node-b")
	require.True(t, ok)

	ok, reason := l.Allow("node-c")
	assert.False(t, ok)
	assert.Equal(t, ReasonGlobalExceeded, reason)
}

func TestSweep_DropsIdleNodeWindows(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	l := New(Config{Width: time.Second, GlobalBudget: 1000, NodeBudget: 10}).WithClock(clock)

	l.Allow("node-a")
	require.Equal(t, 1, l.NodeCount())

	now = now.Add(11 * time.Second)
	l.Sweep()
	assert.Equal(t, 0, l.NodeCount())
}

func TestSweep_KeepsRecentNodeWindows(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	l := New(Config{Width: time.Second, GlobalBudget: 1000, NodeBudget: 10}).WithClock(clock)

	l.Allow("node-a")
	now = now.Add(2 * time.Second)
	l.Sweep()
	assert.Equal(t, 1, l.NodeCount())
}
