// Package model holds the wire envelope and entity types shared across the
// Aggregator's components (spec §3, §4.1, §6.1).
package model

import "time"

// Subject names the Aggregator subscribes to or publishes on (spec §6.1).
type Subject string

const (
	SubjectTasksReceived   Subject = "truebit.tasks.received"
	SubjectTasksCompleted  Subject = "truebit.tasks.completed"
	SubjectInvoicesCreated Subject = "truebit.invoices.created"
	SubjectHeartbeat       Subject = "truebit.heartbeat"
	SubjectStatsAggregated Subject = "truebit.stats.aggregated"
)

// Raw is the fully dynamic decode target used by the validator, which must
// accept any JSON value (including non-objects) and reject it cleanly
// rather than fail to unmarshal.
type Raw = map[string]any

// TaskStatus is the AggregatedTask.status domain (spec §3).
type TaskStatus string

const (
	TaskStatusReceived  TaskStatus = "received"
	TaskStatusCompleted TaskStatus = "completed"
)

// AggregatedTask mirrors the AggregatedTask row (spec §3).
type AggregatedTask struct {
	TaskIDHash          string
	FirstSeenAt         time.Time
	LastSeenAt          time.Time
	ChainID             string
	TaskType            string
	Status              TaskStatus
	Success             *bool
	ExecutionTimeBucket string
	GasUsedBucket       string
	Cached              *bool
	ReportingNodes      int
}

// AggregatedInvoice mirrors the AggregatedInvoice row (spec §3).
type AggregatedInvoice struct {
	InvoiceIDHash       string
	TaskIDHash          string
	FirstSeenAt         time.Time
	LastSeenAt          time.Time
	ChainID             string
	StepsComputedBucket string
	MemoryUsedBucket    string
	Operation           string
	ReportingNodes      int
}

// ActiveNode mirrors the ActiveNode row (spec §3).
type ActiveNode struct {
	NodeID            string
	FirstSeenAt       time.Time
	LastSeenAt        time.Time
	Status            string
	TotalTasksBucket  string
	ActiveTasksBucket string
	ContinentBucket   string
	LocationBucket    string
	HeartbeatCount    int
}

// BurnType is TruBurn.burnType (spec §3).
type BurnType string

const (
	BurnTypeNull BurnType = ""
	BurnTypeDead BurnType = "dead"
)

// TruBurn mirrors one observed ERC-20 transfer-to-burn event (spec §3).
type TruBurn struct {
	TxHash          string
	LogIndex        int64
	BlockNumber     int64
	Timestamp       time.Time
	FromAddress     string
	ToAddress       string
	Amount          string // decimal string, arbitrary precision
	AmountFormatted float64
	BurnType        BurnType
}

// BurnSyncState mirrors the single-row BurnSyncState cursor (spec §3).
type BurnSyncState struct {
	LastBlock  int64
	TotalBurns int
	LastSyncAt time.Time
}

// NetworkStatsHistoryRow mirrors one NetworkStatsHistory row (spec §3): the
// scalar fields of a rollup snapshot, persisted for retention/auditing.
type NetworkStatsHistoryRow struct {
	ID              int64
	Timestamp       time.Time
	ActiveNodes     int
	TotalNodes      int
	TotalTasks      int
	CompletedTasks  int
	FailedTasks     int
	CachedTasks     int
	TasksLast24h    int
	TotalInvoices   int
	InvoicesLast24h int
	SuccessRate     float64
	CacheHitRate    float64
}
