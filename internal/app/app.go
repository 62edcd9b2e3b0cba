// Package app wires every component together and owns the process-level
// startup and graceful-shutdown sequence (spec §5).
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/apperr"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/broker"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/burnmonitor"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/cleanup"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/config"
	applog "github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/log"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/metrics"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/model"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/ratelimit"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/rollup"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/router"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/store"
)

// subscribedSubjects are the four inbound subjects from spec §4.3/§6.1.
var subscribedSubjects = []model.Subject{
	model.SubjectTasksReceived,
	model.SubjectTasksCompleted,
	model.SubjectInvoicesCreated,
	model.SubjectHeartbeat,
}

// App owns every long-lived component of one Aggregator process.
type App struct {
	cfg    config.Config
	logger zerolog.Logger

	st      *store.Store
	conn    *broker.Conn
	limiter *ratelimit.Limiter
	rtr     *router.Router
	burns   *burnmonitor.Monitor
	pub     *rollup.Publisher
	clean   *cleanup.Task
}

// New wires every component from cfg. A failure here is always a
// FatalStartupError (spec §7): the store or broker could not be reached at
// all, and there is nothing useful left to run.
func New(cfg config.Config, logger zerolog.Logger) (*App, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, apperr.FatalStartup("failed to open store", err)
	}

	limiter := ratelimit.New(ratelimit.Config{
		Width:        cfg.RateLimitWindow,
		GlobalBudget: cfg.GlobalRateLimit,
		NodeBudget:   cfg.RateLimitPerNode,
	})

	conn := broker.New(broker.Config{URL: cfg.NATSURL, User: cfg.NATSUser, Password: cfg.NATSPassword}, logger)
	rtr := router.New(st, limiter, logger)

	burns := burnmonitor.New(st, burnmonitor.Config{BaseURL: cfg.IndexerBaseURL, TRUContract: cfg.TRUContract}, logger)
	pub := rollup.New(st, conn, burns, uuid.NewString(), logger)
	clean := cleanup.New(st, cfg.RetentionDays, logger)

	return &App{
		cfg:     cfg,
		logger:  applog.WithComponent(logger, "app"),
		st:      st,
		conn:    conn,
		limiter: limiter,
		rtr:     rtr,
		burns:   burns,
		pub:     pub,
		clean:   clean,
	}, nil
}

// Run dials the broker, subscribes every subject, starts the rollup and
// cleanup timers and the burn monitor, then blocks until ctx is cancelled.
// Shutdown order matches spec §5: rollup/cleanup timers stop first, then
// the pub/sub subscription closes, then the store closes last.
func (a *App) Run(ctx context.Context) error {
	if err := a.conn.Dial(ctx); err != nil {
		return err
	}

	for _, subject := range subscribedSubjects {
		subj := subject
		if err := a.conn.Subscribe(string(subj), func(msg broker.Message) {
			a.rtr.Handle(subj, msg.Data)
		}); err != nil {
			return apperr.FatalStartup(fmt.Sprintf("failed to subscribe to %s", subj), err)
		}
	}

	if err := a.burns.Init(ctx); err != nil {
		// BurnMonitorInitError (spec §7): log and continue, the monitor
		// stays dormant and truBurns is omitted from rollup snapshots
		// until a later tick succeeds.
		a.logger.Error().Err(err).Msg("burn monitor failed to initialize, continuing without it")
	}

	connDone := make(chan struct{})
	go func() {
		defer close(connDone)
		a.conn.Run(ctx)
	}()

	a.pub.Start(ctx, a.cfg.PublishInterval)
	a.clean.Start(ctx, a.cfg.CleanupInterval)

	burnTicker := time.NewTicker(5 * time.Minute)
	defer burnTicker.Stop()
	sweepTicker := time.NewTicker(60 * time.Second)
	defer sweepTicker.Stop()

	go metrics.Serve(ctx, a.cfg.MetricsAddr)

	a.logger.Info().Str("nats_url", a.cfg.NATSURL).Str("metrics_addr", a.cfg.MetricsAddr).Msg("aggregator started")

	for {
		select {
		case <-ctx.Done():
			a.shutdown(connDone)
			return nil
		case <-burnTicker.C:
			a.burns.Sync(ctx)
		case <-sweepTicker.C:
			a.limiter.Sweep()
		}
	}
}

// shutdown performs the ordered stop sequence from spec §5.
func (a *App) shutdown(connDone <-chan struct{}) {
	a.logger.Info().Msg("shutting down")

	a.pub.Stop()
	a.clean.Stop()

	if err := a.conn.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("error closing broker connection")
	}
	<-connDone

	if err := a.st.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("error closing store")
	}

	a.logger.Info().Msg("shutdown complete")
}

// Leaderboard and DailyChart expose the supplemented burn diagnostics
// (SPEC_FULL.md §C) as JSON, for an operator-facing debug endpoint.
func (a *App) Leaderboard(k int) ([]byte, error) {
	return json.Marshal(a.burns.Leaderboard(k))
}

func (a *App) DailyChart() ([]byte, error) {
	return json.Marshal(a.burns.DailyChart())
}
