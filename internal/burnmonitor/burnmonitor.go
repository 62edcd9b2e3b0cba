// Package burnmonitor implements spec §4.6: paginating the external burn
// indexer for the two designated burn addresses, persisting newly observed
// events idempotently, and serving the aggregated burn statistics the
// Rollup Publisher attaches to each snapshot.
package burnmonitor

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/apperr"
	applog "github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/log"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/model"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/store"
)

// weiPerTRU is 10^18, the divisor from spec §3 invariant I6 / §4.6 step 2.
var weiPerTRU = new(big.Float).SetFloat64(1e18)

// burnKey is the (txHash, logIndex) identity from spec §3.
type burnKey struct {
	txHash   string
	logIndex int64
}

// burnAddress pairs one designated burn address with its burnType tag (spec
// §4.6 step 1/2).
type burnAddress struct {
	address  string
	burnType model.BurnType
}

var burnAddresses = []burnAddress{
	{address: "0x0000000000000000000000000000000000000000", burnType: model.BurnTypeNull},
	{address: "0x000000000000000000000000000000000000dEaD", burnType: model.BurnTypeDead},
}

// Monitor owns the in-memory burn map and the HTTP indexer client.
type Monitor struct {
	store       *store.Store
	client      *indexerClient
	pageLimiter *rate.Limiter
	logger      zerolog.Logger

	mu    sync.RWMutex
	burns map[burnKey]model.TruBurn
	ready bool
}

// Config carries the indexer endpoint details from spec §6.3/§6.4.
type Config struct {
	BaseURL     string
	TRUContract string
}

// New constructs a dormant Monitor; call Init before Sync.
func New(st *store.Store, cfg Config, logger zerolog.Logger) *Monitor {
	return &Monitor{
		store: st,
		client: &indexerClient{
			baseURL:     cfg.BaseURL,
			truContract: cfg.TRUContract,
			http:        newRetryableClient(),
		},
		// 5 requests/second, burst 1: enforces the 200ms inter-page delay
		// from spec §4.6 step 4 as Wait(ctx) instead of a bare time.Sleep.
		pageLimiter: rate.NewLimiter(5, 1),
		logger:      applog.WithComponent(logger, "burnmonitor"),
		burns:       make(map[burnKey]model.TruBurn),
	}
}

// Init loads every TruBurn row into the in-memory map (spec §4.6
// "Initialization") and performs one sync pass. A failure to load the
// indexer configuration is a BurnMonitorInitError (spec §7): the caller
// logs it and leaves the monitor dormant; truBurns will be null in
// snapshots until the monitor becomes ready on a later tick.
func (m *Monitor) Init(ctx context.Context) error {
	rows, err := m.store.LoadAllBurns()
	if err != nil {
		return apperr.BurnMonitorInit("failed to load existing burn events from store", err)
	}

	m.mu.Lock()
	for _, b := range rows {
		m.burns[burnKey{txHash: b.TxHash, logIndex: b.LogIndex}] = b
	}
	m.ready = true
	m.mu.Unlock()

	m.Sync(ctx)
	return nil
}

// Sync performs one full sync pass across both burn addresses (spec §4.6
// "Sync pass"/"Commit"). It never returns an error: per-address failures
// are logged and skipped (TransientIOError, spec §7), and the next
// periodic tick retries.
func (m *Monitor) Sync(ctx context.Context) {
	state, err := m.store.GetBurnSyncState()
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to read burn sync cursor, skipping this tick")
		return
	}

	maxBlock := state.LastBlock
	var newEvents []model.TruBurn

	for _, addr := range burnAddresses {
		events, highest, err := m.syncAddress(ctx, addr, state.LastBlock)
		if err != nil {
			m.logger.Error().Err(err).Str("address", addr.address).Msg("burn sync failed for this address, will retry next tick")
			continue
		}
		newEvents = append(newEvents, events...)
		if highest > maxBlock {
			maxBlock = highest
		}
	}

	m.commit(newEvents, maxBlock)
}

// syncAddress paginates the indexer for one address, per spec §4.6 steps
// 1–4.
func (m *Monitor) syncAddress(ctx context.Context, addr burnAddress, lastSyncBlock int64) ([]model.TruBurn, int64, error) {
	var (
		events     []model.TruBurn
		highest    = lastSyncBlock
		pageParams *pageParams
		firstPage  = true
	)

	for {
		if !firstPage {
			if err := m.pageLimiter.Wait(ctx); err != nil {
				return events, highest, err
			}
		}
		firstPage = false

		page, err := m.client.fetchTransfers(ctx, addr.address, pageParams)
		if err != nil {
			return events, highest, err
		}

		stop := false
		for _, item := range page.Items {
			if !equalFoldAddr(item.To.Hash, addr.address) {
				continue
			}
			if item.BlockNumber <= lastSyncBlock {
				stop = true
				continue
			}
			ev, err := item.toBurnEvent(addr.burnType)
			if err != nil {
				m.logger.Warn().Err(err).Str("tx", item.TransactionHash).Msg("skipping malformed transfer")
				continue
			}
			events = append(events, ev)
			if ev.BlockNumber > highest {
				highest = ev.BlockNumber
			}
		}

		if stop || page.NextPageParams == nil {
			break
		}
		pageParams = page.NextPageParams
	}

	return events, highest, nil
}

// commit inserts every event not already known, updates the cursor, and
// emits metrics (spec §4.6 "Commit"). Idempotent: re-running Sync with the
// same indexer state changes nothing (property P6).
func (m *Monitor) commit(events []model.TruBurn, maxBlock int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, ev := range events {
		key := burnKey{txHash: ev.TxHash, logIndex: ev.LogIndex}
		if _, known := m.burns[key]; known {
			continue
		}
		ok, err := m.store.InsertBurn(ev)
		if err != nil {
			m.logger.Error().Err(err).Str("tx", ev.TxHash).Msg("failed to persist burn event")
			continue
		}
		if ok {
			m.burns[key] = ev
			inserted++
		}
	}

	state := model.BurnSyncState{
		LastBlock:  maxBlock,
		TotalBurns: len(m.burns),
		LastSyncAt: time.Now().UTC(),
	}
	if err := m.store.UpdateBurnSyncState(state); err != nil {
		m.logger.Error().Err(err).Msg("failed to persist burn sync cursor")
		return
	}
	if inserted > 0 {
		m.logger.Info().Int("inserted", inserted).Int64("last_block", maxBlock).Msg("burn sync committed new events")
	}
}

func equalFoldAddr(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Snapshot is the burn block attached to a rollup snapshot (spec §4.4 step
// 5). Ready is false until Init has completed at least once; callers
// attach null instead of a Snapshot in that case.
type Snapshot struct {
	TotalBurned          string
	TotalBurnedFormatted float64
	BurnCount            int
	Last24hBurned        float64
	Last7dBurned         float64
	LastBurnTimestamp    time.Time
	LastBurnTxHash       string
}

// CurrentSnapshot computes the statistics from spec §4.6 "Statistics used
// by Rollup" over the in-memory map.
func (m *Monitor) CurrentSnapshot() (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.ready {
		return Snapshot{}, false
	}

	total := new(big.Int)
	now := time.Now().UTC()
	day := now.Add(-24 * time.Hour)
	week := now.Add(-7 * 24 * time.Hour)

	var last24h, last7d float64
	var lastBlock int64 = -1
	var lastTs time.Time
	var lastTx string

	for _, b := range m.burns {
		amt, ok := new(big.Int).SetString(b.Amount, 10)
		if ok {
			total.Add(total, amt)
		}
		if b.Timestamp.After(day) {
			last24h += b.AmountFormatted
		}
		if b.Timestamp.After(week) {
			last7d += b.AmountFormatted
		}
		if b.BlockNumber > lastBlock {
			lastBlock = b.BlockNumber
			lastTs = b.Timestamp
			lastTx = b.TxHash
		}
	}

	totalFormatted := new(big.Float).Quo(new(big.Float).SetInt(total), weiPerTRU)
	f, _ := totalFormatted.Float64()

	return Snapshot{
		TotalBurned:          total.String(),
		TotalBurnedFormatted: f,
		BurnCount:            len(m.burns),
		Last24hBurned:        last24h,
		Last7dBurned:         last7d,
		LastBurnTimestamp:    lastTs,
		LastBurnTxHash:       lastTx,
	}, true
}

// LeaderboardEntry is one ranked row of the top-K burners (spec §4.6
// "Leaderboard").
type LeaderboardEntry struct {
	Rank        int
	FromAddress string
	Amount      string // big-integer decimal string
}

// Leaderboard groups burns by fromAddress, sums amount as a big integer,
// and ranks the top k descending, with a stable tie-break by first
// occurrence (spec §4.6).
func (m *Monitor) Leaderboard(k int) []LeaderboardEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type accum struct {
		sum   *big.Int
		first int
	}
	totals := make(map[string]*accum)
	order := make([]model.TruBurn, 0, len(m.burns))
	for _, b := range m.burns {
		order = append(order, b)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].BlockNumber != order[j].BlockNumber {
			return order[i].BlockNumber < order[j].BlockNumber
		}
		return order[i].LogIndex < order[j].LogIndex
	})

	for i, b := range order {
		amt, ok := new(big.Int).SetString(b.Amount, 10)
		if !ok {
			continue
		}
		a, exists := totals[b.FromAddress]
		if !exists {
			totals[b.FromAddress] = &accum{sum: new(big.Int).Set(amt), first: i}
			continue
		}
		a.sum.Add(a.sum, amt)
	}

	from := make([]string, 0, len(totals))
	for addr := range totals {
		from = append(from, addr)
	}
	sort.Slice(from, func(i, j int) bool {
		ci, cj := totals[from[i]].sum.Cmp(totals[from[j]].sum), 0
		if ci != cj {
			return ci > cj
		}
		return totals[from[i]].first < totals[from[j]].first
	})

	if k > len(from) {
		k = len(from)
	}
	out := make([]LeaderboardEntry, 0, k)
	for i := 0; i < k; i++ {
		addr := from[i]
		out = append(out, LeaderboardEntry{Rank: i + 1, FromAddress: addr, Amount: totals[addr].sum.String()})
	}
	return out
}

// DailyChartPoint is one day's burn total and running cumulative total
// (spec §4.6 "Daily chart").
type DailyChartPoint struct {
	Date       string // YYYY-MM-DD
	DailyTotal float64
	Cumulative float64
}

// DailyChart buckets burns by UTC calendar day and computes each day's sum
// and running cumulative sum, ordered ascending (spec §4.6).
func (m *Monitor) DailyChart() []DailyChartPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byDay := make(map[string]float64)
	for _, b := range m.burns {
		day := b.Timestamp.UTC().Format("2006-01-02")
		byDay[day] += b.AmountFormatted
	}

	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)

	out := make([]DailyChartPoint, 0, len(days))
	var running float64
	for _, d := range days {
		running += byDay[d]
		out = append(out, DailyChartPoint{Date: d, DailyTotal: byDay[d], Cumulative: running})
	}
	return out
}
