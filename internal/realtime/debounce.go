package realtime

import (
	"sync"
	"time"

	"github.com/juju/clock"

	"tradewatch/internal/event"
)

// QuietPeriods holds the per-table debounce windows. History rows
// arrive in rapid bursts during trading hours, so they get the shorter
// window; account metadata changes are rare and can wait longer.
type QuietPeriods struct {
	History  time.Duration
	Accounts time.Duration
}

// For returns the quiet period for the given source table.
func (q QuietPeriods) For(table event.Table) time.Duration {
	if table == event.TableAccounts {
		return q.Accounts
	}
	return q.History
}

type debounceState int

const (
	stateIdle debounceState = iota
	statePending
)

// Debouncer coalesces rapid change events into one trigger. It is an
// explicit state machine: idle, or pending with the last-seen event and
// a deadline. Every arrival overwrites the single pending slot and
// pushes the deadline out by the table's quiet period; when the
// deadline passes without a new arrival, exactly the last event is
// emitted. Intermediate events are dropped on purpose: they are only
// invalidation signals, the refetch re-reads authoritative state.
type Debouncer struct {
	clk   clock.Clock
	quiet QuietPeriods
	emit  func(event.ChangeEvent)

	mu       sync.Mutex
	state    debounceState
	pending  event.ChangeEvent
	deadline time.Time
	timer    clock.Timer
	torn     bool
}

// NewDebouncer builds a debouncer that calls emit with each coalesced
// update. emit is invoked outside the internal lock.
func NewDebouncer(clk clock.Clock, quiet QuietPeriods, emit func(event.ChangeEvent)) *Debouncer {
	return &Debouncer{clk: clk, quiet: quiet, emit: emit}
}

// Observe records an incoming change event, overwriting any pending one
// and restarting the quiet-period timer.
func (d *Debouncer) Observe(ev event.ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.torn {
		return
	}

	quiet := d.quiet.For(ev.Table)
	d.pending = ev
	d.deadline = d.clk.Now().Add(quiet)

	if d.state == stateIdle {
		d.state = statePending
		d.timer = d.clk.AfterFunc(quiet, d.fire)
	} else {
		d.timer.Reset(quiet)
	}
}

// fire runs when the timer elapses. A timer that was reset while this
// call was waiting for the lock re-arms itself for the remainder
// instead of emitting early.
func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.torn || d.state != statePending {
		d.mu.Unlock()
		return
	}
	if now := d.clk.Now(); now.Before(d.deadline) {
		d.timer = d.clk.AfterFunc(d.deadline.Sub(now), d.fire)
		d.mu.Unlock()
		return
	}

	ev := d.pending
	d.pending = event.ChangeEvent{}
	d.state = stateIdle
	d.timer = nil
	d.mu.Unlock()

	d.emit(ev)
}

// Teardown cancels any pending timer and discards the buffered event.
// No emission happens after this returns.
func (d *Debouncer) Teardown() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.torn = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = event.ChangeEvent{}
	d.state = stateIdle
}
