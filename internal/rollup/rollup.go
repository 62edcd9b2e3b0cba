// Package rollup implements the Rollup Publisher of spec §4.4: on a fixed
// interval it snapshots scalar counts, percentages, and bucket
// distributions, attaches the current burn statistics, publishes the
// envelope on truebit.stats.aggregated, and appends a history row —
// grounded on cuemby-warren's scheduler pattern of a ticker loop with an
// explicit stop channel.
package rollup

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/apperr"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/broker"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/burnmonitor"
	applog "github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/log"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/mathutil"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/metrics"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/model"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/store"
)

// Publisher owns the periodic rollup ticker.
type Publisher struct {
	store       *store.Store
	conn        *broker.Conn
	burns       *burnmonitor.Monitor
	generatorID string
	logger      zerolog.Logger
	now         func() time.Time
	stopCh      chan struct{}
	stopped     chan struct{}
}

// New constructs a Publisher. generatorID tags every published snapshot
// with the process instance that produced it, so downstream consumers can
// tell two Aggregator replicas' snapshots apart.
func New(st *store.Store, conn *broker.Conn, burns *burnmonitor.Monitor, generatorID string, logger zerolog.Logger) *Publisher {
	return &Publisher{
		store:       st,
		conn:        conn,
		burns:       burns,
		generatorID: generatorID,
		logger:      applog.WithComponent(logger, "rollup"),
		now:         time.Now,
		stopCh:      make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

// Start runs PublishOnce every interval until Stop is called or ctx is
// cancelled (spec §4.4 "Trigger": fixed interval, default 30s).
func (p *Publisher) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer close(p.stopped)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.PublishOnce()
			}
		}
	}()
}

// Stop signals the publish loop to exit and waits for it to finish (spec §5
// graceful shutdown: rollup/cleanup timers stop first).
func (p *Publisher) Stop() {
	close(p.stopCh)
	<-p.stopped
}

// envelopePayload is the wire shape published on truebit.stats.aggregated
// (spec §4.4 step 6 / §6.1): `{ version, type, timestamp, data:{…} }`. Spec
// §6.1 calls this shape out as stable — consumers rely on these field names
// — so the scalar/distribution/burn fields live under `data`, not at the
// envelope's top level.
type envelopePayload struct {
	Version     string            `json:"version"`
	Type        string            `json:"type"`
	Timestamp   string            `json:"timestamp"`
	GeneratorID string            `json:"generatorId,omitempty"`
	Data        envelopeDataBlock `json:"data"`
}

// envelopeDataBlock carries the scalars, distributions, and burn snapshot
// named in spec §4.4 steps 2-5.
type envelopeDataBlock struct {
	ActiveNodes     int                       `json:"activeNodes"`
	TotalNodes      int                       `json:"totalNodes"`
	TotalTasks      int                       `json:"totalTasks"`
	CompletedTasks  int                       `json:"completedTasks"`
	FailedTasks     int                       `json:"failedTasks"`
	CachedTasks     int                       `json:"cachedTasks"`
	TasksLast24h    int                       `json:"tasksLast24h"`
	TotalInvoices   int                       `json:"totalInvoices"`
	InvoicesLast24h int                       `json:"invoicesLast24h"`
	SuccessRate     float64                   `json:"successRate"`
	CacheHitRate    float64                   `json:"cacheHitRate"`
	Distributions   map[string]map[string]int `json:"distributions"`
	TruBurns        *burnSnapshotPayload       `json:"truBurns"`
}

const (
	envelopeVersion = "1.0"
	envelopeType    = "network_stats"
)

type burnSnapshotPayload struct {
	TotalBurned          string  `json:"totalBurned"`
	TotalBurnedFormatted float64 `json:"totalBurnedFormatted"`
	BurnCount            int     `json:"burnCount"`
	Last24hBurned        float64 `json:"last24hBurned"`
	Last7dBurned         float64 `json:"last7dBurned"`
	LastBurnTimestamp    *int64  `json:"lastBurnTimestamp"`
	LastBurnTxHash       string  `json:"lastBurnTxHash,omitempty"`
}

// distributionKeys names each published distribution and the (column,
// table) pair that backs it (spec §4.4 step 4).
var distributionKeys = []struct {
	name   string
	column string
	table  string
}{
	{"executionTime", "execution_time_bucket", "tasks"},
	{"gasUsed", "gas_used_bucket", "tasks"},
	{"chainId", "chain_id", "tasks"},
	{"taskType", "task_type", "tasks"},
	{"stepsComputed", "steps_computed_bucket", "invoices"},
	{"memoryUsed", "memory_used_bucket", "invoices"},
	{"continent", "continent_bucket", "nodes"},
	{"location", "location_bucket", "nodes"},
}

// PublishOnce runs one rollup pass end to end (spec §4.4 steps 1–7). A
// publish failure never skips the history write: the snapshot is still
// inserted so `stats_history` reflects the network state at this instant
// even if the broker connection was down (spec §4.4 failure model).
func (p *Publisher) PublishOnce() {
	now := p.now()

	taskCounts, err := p.store.TaskCounts(now)
	if err != nil {
		p.logger.Error().Err(err).Msg("rollup: failed to read task counts, skipping this tick")
		metrics.RollupPublishTotal.WithLabelValues("scalar_error").Inc()
		return
	}
	invoiceCounts, err := p.store.InvoiceCounts(now)
	if err != nil {
		p.logger.Error().Err(err).Msg("rollup: failed to read invoice counts, skipping this tick")
		metrics.RollupPublishTotal.WithLabelValues("scalar_error").Inc()
		return
	}
	activeNodes, err := p.store.CountActiveNodes(now)
	if err != nil {
		p.logger.Error().Err(err).Msg("rollup: failed to count active nodes, skipping this tick")
		metrics.RollupPublishTotal.WithLabelValues("scalar_error").Inc()
		return
	}
	totalNodes, err := p.store.CountTotalNodes()
	if err != nil {
		p.logger.Error().Err(err).Msg("rollup: failed to count total nodes, skipping this tick")
		metrics.RollupPublishTotal.WithLabelValues("scalar_error").Inc()
		return
	}

	distributions := make(map[string]map[string]int, len(distributionKeys))
	for _, d := range distributionKeys {
		dist, err := p.store.Distribution(d.column, d.table)
		if err != nil {
			if !apperr.Is(err, apperr.KindInjection) {
				p.logger.Error().Err(err).Str("distribution", d.name).Msg("rollup: distribution query failed")
			}
			dist = map[string]int{}
		}
		distributions[d.name] = dist
	}

	successRate := mathutil.Percentage(taskCounts.Completed, taskCounts.Total)
	cacheHitRate := mathutil.Percentage(taskCounts.Cached, taskCounts.Total)

	var burnPayload *burnSnapshotPayload
	if p.burns != nil {
		if snap, ready := p.burns.CurrentSnapshot(); ready {
			burnPayload = &burnSnapshotPayload{
				TotalBurned:          snap.TotalBurned,
				TotalBurnedFormatted: snap.TotalBurnedFormatted,
				BurnCount:            snap.BurnCount,
				Last24hBurned:        snap.Last24hBurned,
				Last7dBurned:         snap.Last7dBurned,
				LastBurnTxHash:       snap.LastBurnTxHash,
			}
			if !snap.LastBurnTimestamp.IsZero() {
				ms := snap.LastBurnTimestamp.UnixMilli()
				burnPayload.LastBurnTimestamp = &ms
			}
			metrics.BurnTotalFormatted.Set(snap.TotalBurnedFormatted)
		}
	}

	payload := envelopePayload{
		Version:     envelopeVersion,
		Type:        envelopeType,
		Timestamp:   now.UTC().Format(time.RFC3339),
		GeneratorID: p.generatorID,
		Data: envelopeDataBlock{
			ActiveNodes:     activeNodes,
			TotalNodes:      totalNodes,
			TotalTasks:      taskCounts.Total,
			CompletedTasks:  taskCounts.Completed,
			FailedTasks:     taskCounts.Failed,
			CachedTasks:     taskCounts.Cached,
			TasksLast24h:    taskCounts.Last24h,
			TotalInvoices:   invoiceCounts.Total,
			InvoicesLast24h: invoiceCounts.Last24h,
			SuccessRate:     successRate,
			CacheHitRate:    cacheHitRate,
			Distributions:   distributions,
			TruBurns:        burnPayload,
		},
	}

	metrics.ActiveNodes.Set(float64(activeNodes))

	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error().Err(err).Msg("rollup: failed to marshal snapshot")
		metrics.RollupPublishTotal.WithLabelValues("marshal_error").Inc()
		return
	}

	if err := p.conn.Publish(string(model.SubjectStatsAggregated), body); err != nil {
		p.logger.Warn().Err(err).Msg("rollup: publish failed, history row still recorded")
		metrics.RollupPublishTotal.WithLabelValues("publish_failed").Inc()
	} else {
		metrics.RollupPublishTotal.WithLabelValues("published").Inc()
	}

	historyRow := model.NetworkStatsHistoryRow{
		Timestamp:       now,
		ActiveNodes:     activeNodes,
		TotalNodes:      totalNodes,
		TotalTasks:      taskCounts.Total,
		CompletedTasks:  taskCounts.Completed,
		FailedTasks:     taskCounts.Failed,
		CachedTasks:     taskCounts.Cached,
		TasksLast24h:    taskCounts.Last24h,
		TotalInvoices:   invoiceCounts.Total,
		InvoicesLast24h: invoiceCounts.Last24h,
		SuccessRate:     successRate,
		CacheHitRate:    cacheHitRate,
	}
	if err := p.store.InsertHistory(historyRow); err != nil {
		p.logger.Error().Err(err).Msg("rollup: failed to record history row")
	}
}
