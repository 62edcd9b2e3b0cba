// Package router is the Subject Router of spec §4.3: it subscribes to the
// four inbound subjects, validates and rate-limits every message, and
// dispatches to the matching handler.
package router

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	applog "github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/log"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/metrics"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/model"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/ratelimit"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/store"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/validator"
)

// Clock lets tests drive Now() deterministically; production uses time.Now.
type Clock func() time.Time

// Router wires the store, a shared rate limiter, and the four subject
// handlers (spec §4.3).
type Router struct {
	store   *store.Store
	limiter *ratelimit.Limiter
	logger  zerolog.Logger
	now     Clock
}

// New constructs a Router.
func New(st *store.Store, limiter *ratelimit.Limiter, logger zerolog.Logger) *Router {
	return &Router{store: st, limiter: limiter, logger: logger, now: time.Now}
}

// WithClock overrides the router's time source, for tests.
func (r *Router) WithClock(now Clock) *Router {
	r.now = now
	return r
}

// Handle runs the full per-message pipeline from spec §4.3: validate (§4.1),
// rate-limit by nodeId (§4.2), then execute the handler named by subject.
// Every error path here is an error-boundary: nothing returned from Handle
// ever panics the process (spec §7 last paragraph); Handle itself never
// returns an error, because every failure is already fully handled (logged
// and dropped) by the time it returns.
func (r *Router) Handle(subject model.Subject, payload []byte) {
	start := time.Now()
	defer func() { metrics.HandlerSeconds.Observe(time.Since(start).Seconds()) }()

	logger := applog.WithSubject(r.logger, string(subject))

	var raw model.Raw
	if err := json.Unmarshal(payload, &raw); err != nil {
		logger.Warn().Err(err).Msg("dropping message: not valid JSON")
		metrics.MessagesTotal.WithLabelValues(string(subject), "invalid_json").Inc()
		return
	}

	// Validation runs before the rate limiter (spec §4.1) so malformed
	// payloads never consume per-node counters.
	if err := validator.Validate(raw); err != nil {
		logger.Warn().Err(err).Msg("dropping message: failed validation")
		metrics.MessagesTotal.WithLabelValues(string(subject), "invalid").Inc()
		return
	}

	nodeID, _ := raw["nodeId"].(string)

	allowed, reason := r.limiter.Allow(nodeID)
	if !allowed {
		anonymized := anonymize(nodeID)
		logger.Warn().Str("reason", string(reason)).Str("node_prefix", anonymized).Msg("dropping message: rate limited")
		if reason == ratelimit.ReasonMissingNodeID {
			logger.Warn().Msg("Rejecting message without nodeId")
		}
		metrics.MessagesTotal.WithLabelValues(string(subject), "rate_limited").Inc()
		metrics.RateLimitRejections.WithLabelValues(string(reason)).Inc()
		return
	}

	data, _ := raw["data"].(map[string]any)
	now := r.now()

	var err error
	switch subject {
	case model.SubjectTasksReceived:
		err = r.handleTaskReceived(now, data)
	case model.SubjectTasksCompleted:
		err = r.handleTaskCompleted(now, data)
	case model.SubjectInvoicesCreated:
		err = r.handleInvoiceCreated(now, data)
	case model.SubjectHeartbeat:
		err = r.handleHeartbeat(now, nodeID, data)
	default:
		logger.Warn().Msg("dropping message: unknown subject")
		return
	}

	if err != nil {
		logger.Error().Err(err).Msg("handler failed")
		metrics.MessagesTotal.WithLabelValues(string(subject), "store_error").Inc()
		return
	}
	metrics.MessagesTotal.WithLabelValues(string(subject), "accepted").Inc()
}

// anonymize keeps only enough of nodeId to correlate log lines without
// identifying the reporter, per spec §7 "log anonymized node prefix only".
func anonymize(nodeID string) string {
	if len(nodeID) <= 9 {
		return nodeID
	}
	return nodeID[:9] + "…"
}

func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}

func boolField(data map[string]any, key string) *bool {
	if data == nil {
		return nil
	}
	v, ok := data[key].(bool)
	if !ok {
		return nil
	}
	return &v
}

func (r *Router) handleTaskReceived(now time.Time, data map[string]any) error {
	taskIDHash := stringField(data, "taskIdHash")
	if taskIDHash == "" {
		return nil
	}
	return r.store.UpsertTaskReceived(now, taskIDHash, stringField(data, "chainId"), stringField(data, "taskType"))
}

func (r *Router) handleTaskCompleted(now time.Time, data map[string]any) error {
	taskIDHash := stringField(data, "taskIdHash")
	if taskIDHash == "" {
		return nil
	}
	return r.store.CompleteTask(now, taskIDHash, boolField(data, "success"), stringField(data, "executionTimeBucket"), stringField(data, "gasUsedBucket"), boolField(data, "cached"))
}

func (r *Router) handleInvoiceCreated(now time.Time, data map[string]any) error {
	invoiceIDHash := stringField(data, "invoiceIdHash")
	if invoiceIDHash == "" {
		return nil
	}
	return r.store.UpsertInvoiceCreated(now, invoiceIDHash, stringField(data, "taskIdHash"), stringField(data, "chainId"), stringField(data, "stepsComputedBucket"), stringField(data, "memoryUsedBucket"), stringField(data, "operation"))
}

func (r *Router) handleHeartbeat(now time.Time, nodeID string, data map[string]any) error {
	if nodeID == "" {
		return nil
	}
	return r.store.UpsertHeartbeat(now, nodeID, stringField(data, "status"), stringField(data, "totalTasksBucket"), stringField(data, "activeTasksBucket"), stringField(data, "continentBucket"), stringField(data, "locationBucket"))
}
