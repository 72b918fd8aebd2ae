package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"tradewatch/internal/event"
)

var testQuiet = QuietPeriods{
	History:  3 * time.Second,
	Accounts: 8 * time.Second,
}

func historyEvent(n int) event.ChangeEvent {
	payload, _ := json.Marshal(map[string]int{"n": n})
	return event.ChangeEvent{Table: event.TableHistory, Op: event.OpUpdate, New: payload}
}

func accountsEvent(n int) event.ChangeEvent {
	payload, _ := json.Marshal(map[string]int{"n": n})
	return event.ChangeEvent{Table: event.TableAccounts, Op: event.OpUpdate, New: payload}
}

func expectEmission(t *testing.T, emitted <-chan event.ChangeEvent) event.ChangeEvent {
	t.Helper()
	select {
	case ev := <-emitted:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a coalesced update, got none")
		return event.ChangeEvent{}
	}
}

func expectNoEmission(t *testing.T, emitted <-chan event.ChangeEvent) {
	t.Helper()
	select {
	case ev := <-emitted:
		t.Fatalf("Expected no coalesced update, got one for table %s", ev.Table)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBurstCoalescesToLastEvent(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC))
	emitted := make(chan event.ChangeEvent, 4)
	d := NewDebouncer(clk, testQuiet, func(ev event.ChangeEvent) { emitted <- ev })

	d.Observe(historyEvent(1))
	clk.Advance(1 * time.Second)
	d.Observe(historyEvent(2))
	clk.Advance(1 * time.Second)
	d.Observe(historyEvent(3))

	expectNoEmission(t, emitted)

	clk.Advance(3 * time.Second)
	ev := expectEmission(t, emitted)

	var got map[string]int
	if err := json.Unmarshal(ev.New, &got); err != nil {
		t.Fatalf("Failed to decode emitted payload: %v", err)
	}
	if got["n"] != 3 {
		t.Errorf("Expected last event of the burst (n=3), got n=%d", got["n"])
	}

	expectNoEmission(t, emitted)
}

func TestSpacedEventsEmitOnePerEvent(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC))
	emitted := make(chan event.ChangeEvent, 4)
	d := NewDebouncer(clk, testQuiet, func(ev event.ChangeEvent) { emitted <- ev })

	d.Observe(historyEvent(1))
	clk.Advance(3 * time.Second)
	first := expectEmission(t, emitted)

	d.Observe(historyEvent(2))
	clk.Advance(3 * time.Second)
	second := expectEmission(t, emitted)

	var n1, n2 map[string]int
	json.Unmarshal(first.New, &n1)
	json.Unmarshal(second.New, &n2)
	if n1["n"] != 1 || n2["n"] != 2 {
		t.Errorf("Expected one emission per spaced event (1 then 2), got %d then %d", n1["n"], n2["n"])
	}
}

func TestTeardownCancelsPendingEmission(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC))
	emitted := make(chan event.ChangeEvent, 4)
	d := NewDebouncer(clk, testQuiet, func(ev event.ChangeEvent) { emitted <- ev })

	d.Observe(historyEvent(1))
	d.Teardown()

	clk.Advance(10 * time.Second)
	expectNoEmission(t, emitted)

	// Events observed after teardown must not restart the timer.
	d.Observe(historyEvent(2))
	clk.Advance(10 * time.Second)
	expectNoEmission(t, emitted)
}

func TestQuietPeriodPerTable(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC))
	emitted := make(chan event.ChangeEvent, 4)
	d := NewDebouncer(clk, testQuiet, func(ev event.ChangeEvent) { emitted <- ev })

	d.Observe(accountsEvent(1))
	clk.Advance(3 * time.Second)
	expectNoEmission(t, emitted)

	clk.Advance(5 * time.Second)
	ev := expectEmission(t, emitted)
	if ev.Table != event.TableAccounts {
		t.Errorf("Expected accounts event, got %s", ev.Table)
	}
}

func TestResetWhileTimerFiring(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC))
	emitted := make(chan event.ChangeEvent, 4)
	d := NewDebouncer(clk, testQuiet, func(ev event.ChangeEvent) { emitted <- ev })

	// A new event observed exactly as the quiet period elapses must
	// push the emission out rather than surfacing a stale payload.
	d.Observe(historyEvent(1))
	clk.Advance(2 * time.Second)
	d.Observe(historyEvent(2))
	clk.Advance(2 * time.Second)
	expectNoEmission(t, emitted)

	clk.Advance(1 * time.Second)
	ev := expectEmission(t, emitted)
	var got map[string]int
	json.Unmarshal(ev.New, &got)
	if got["n"] != 2 {
		t.Errorf("Expected latest event (n=2), got n=%d", got["n"])
	}
}
