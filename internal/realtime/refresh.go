package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"tradewatch/internal/event"
	"tradewatch/internal/logger"
	"tradewatch/internal/types"
)

// Fetcher re-reads the authoritative view state. Refetches are full
// reads, never deltas, so they are idempotent by construction.
type Fetcher interface {
	AccountsWithHistory(ctx context.Context, startDate, endDate string) ([]types.AccountWithHistory, error)
	Stats(ctx context.Context) (types.TradeStats, error)
}

// Snapshot is one consistent refetch result handed to the view.
type Snapshot struct {
	Rows  []types.AccountWithHistory
	Stats types.TradeStats
	Seq   uint64
}

// Refresher turns coalesced updates into full data refetches.
// Overlapping refetches are allowed to race; each carries a
// monotonically increasing sequence number and responses older than
// the last applied one are discarded, making the last-write-wins race
// explicit rather than silent.
type Refresher struct {
	fetch   Fetcher
	onApply func(Snapshot)

	// Date range the view currently displays; refetches honor it.
	rangeMu   sync.Mutex
	startDate string
	endDate   string

	nextSeq    atomic.Uint64
	appliedMu  sync.Mutex
	appliedSeq uint64
}

func NewRefresher(fetch Fetcher, onApply func(Snapshot)) *Refresher {
	return &Refresher{fetch: fetch, onApply: onApply}
}

// SetDateRange updates the range used by subsequent refetches.
func (r *Refresher) SetDateRange(startDate, endDate string) {
	r.rangeMu.Lock()
	defer r.rangeMu.Unlock()
	r.startDate, r.endDate = startDate, endDate
}

func (r *Refresher) dateRange() (string, string) {
	r.rangeMu.Lock()
	defer r.rangeMu.Unlock()
	return r.startDate, r.endDate
}

// Trigger reacts to a coalesced update by refetching everything the
// view depends on. The event payload is deliberately ignored beyond
// logging: only the existence of an update matters.
func (r *Refresher) Trigger(ctx context.Context, coalesced event.ChangeEvent) {
	seq := r.nextSeq.Add(1)
	logger.Debug(ctx, "Coalesced update, refetching",
		"seq", seq, "table", string(coalesced.Table), "op", string(coalesced.Op))
	r.Refresh(ctx, seq)
}

// ManualRefresh is the "reload everything" action; it shares the
// sequence space with event-triggered refetches.
func (r *Refresher) ManualRefresh(ctx context.Context) {
	r.Refresh(ctx, r.nextSeq.Add(1))
}

// Refresh performs one full refetch and applies it unless a newer
// response already won. Failures are logged and the view keeps its
// last successfully fetched state.
func (r *Refresher) Refresh(ctx context.Context, seq uint64) {
	start, end := r.dateRange()

	rows, err := r.fetch.AccountsWithHistory(ctx, start, end)
	if err != nil {
		logger.ErrorWithErr(ctx, "Refetch of listing failed, keeping last state", err, "seq", seq)
		return
	}
	stats, err := r.fetch.Stats(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Refetch of stats failed, keeping last state", err, "seq", seq)
		return
	}

	r.appliedMu.Lock()
	if seq <= r.appliedSeq {
		r.appliedMu.Unlock()
		logger.Debug(ctx, "Discarding superseded refetch response", "seq", seq)
		return
	}
	r.appliedSeq = seq
	r.appliedMu.Unlock()

	r.onApply(Snapshot{Rows: rows, Stats: stats, Seq: seq})
}
