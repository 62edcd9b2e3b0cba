// Package metrics exposes the Aggregator's read-only Prometheus surface
// (SPEC_FULL.md §A.3). It is diagnostic scraping, not an RPC API, and is
// served on its own listener, separate from the pub/sub and indexer ports.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_messages_total",
			Help: "Inbound pub/sub messages processed, by subject and outcome",
		},
		[]string{"subject", "outcome"},
	)

	RateLimitRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_rate_limit_rejections_total",
			Help: "Messages rejected by the rate limiter, by reason",
		},
		[]string{"reason"},
	)

	HandlerSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregator_handler_seconds",
			Help:    "Time spent in a single subject handler dispatch",
			Buckets: prometheus.DefBuckets,
		},
	)

	ActiveNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aggregator_active_nodes",
			Help: "Nodes whose last heartbeat was within the last 5 minutes",
		},
	)

	BurnTotalFormatted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aggregator_burn_total_formatted",
			Help: "Cumulative TRU burned, in human units",
		},
	)

	RollupPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_rollup_publish_total",
			Help: "Rollup publish attempts, by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(MessagesTotal, RateLimitRejections, HandlerSeconds, ActiveNodes, BurnTotalFormatted, RollupPublishTotal)
}

// Serve runs the Prometheus HTTP handler on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}
