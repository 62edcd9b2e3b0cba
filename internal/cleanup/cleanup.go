// Package cleanup implements the Cleanup Task of spec §4.5: a daily sweep
// that prunes stale history rows and idle task/invoice rows so the store
// does not grow unbounded.
package cleanup

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	applog "github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/log"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/store"
)

// Task owns the periodic cleanup ticker.
type Task struct {
	store         *store.Store
	retentionDays int
	logger        zerolog.Logger
	now           func() time.Time
	stopCh        chan struct{}
	stopped       chan struct{}
}

// New constructs a cleanup Task.
func New(st *store.Store, retentionDays int, logger zerolog.Logger) *Task {
	return &Task{
		store:         st,
		retentionDays: retentionDays,
		logger:        applog.WithComponent(logger, "cleanup"),
		now:           time.Now,
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

// Start runs RunOnce every interval until Stop is called or ctx is
// cancelled (spec §4.5 default interval: 24h).
func (t *Task) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer close(t.stopped)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stopCh:
				return
			case <-ticker.C:
				t.RunOnce()
			}
		}
	}()
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (t *Task) Stop() {
	close(t.stopCh)
	<-t.stopped
}

// RunOnce prunes NetworkStatsHistory rows older than the retention window
// and AggregatedTask/AggregatedInvoice rows idle past 90 days (spec §4.5).
// Each deletion is independent: a failure in one does not block the other.
func (t *Task) RunOnce() {
	now := t.now()

	historyDeleted, err := t.store.CleanupHistory(now, t.retentionDays)
	if err != nil {
		t.logger.Error().Err(err).Msg("cleanup: failed to prune stats history")
	} else if historyDeleted > 0 {
		t.logger.Info().Int64("deleted", historyDeleted).Msg("cleanup: pruned stats history")
	}

	tasksDeleted, invoicesDeleted, err := t.store.CleanupIdleEntities(now)
	if err != nil {
		t.logger.Error().Err(err).Msg("cleanup: failed to prune idle tasks/invoices")
		return
	}
	if tasksDeleted > 0 || invoicesDeleted > 0 {
		t.logger.Info().Int64("tasks_deleted", tasksDeleted).Int64("invoices_deleted", invoicesDeleted).Msg("cleanup: pruned idle entities")
	}
}
