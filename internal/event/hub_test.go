package event

import (
	"testing"
)

func TestHubBroadcastsToAllSubscribers(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch1, cancel1 := hub.Subscribe()
	defer cancel1()
	ch2, cancel2 := hub.Subscribe()
	defer cancel2()

	ev := New(TableHistory, OpInsert, nil, map[string]int{"acc_number": 1001})
	if !hub.Publish(ev) {
		t.Fatal("Expected publish to succeed")
	}

	for i, ch := range []<-chan ChangeEvent{ch1, ch2} {
		select {
		case got := <-ch:
			if got.Table != TableHistory || got.Op != OpInsert {
				t.Errorf("Subscriber %d got wrong event: %+v", i, got)
			}
		default:
			t.Fatalf("Subscriber %d received nothing", i)
		}
	}
}

func TestHubCancelStopsDelivery(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, cancel := hub.Subscribe()
	cancel()
	cancel() // idempotent

	if _, open := <-ch; open {
		t.Fatal("Expected channel closed after cancel")
	}
	if hub.Len() != 0 {
		t.Errorf("Expected no subscribers after cancel, got %d", hub.Len())
	}

	hub.Publish(New(TableAccounts, OpDelete, nil, nil))
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, cancel := hub.Subscribe()
	defer cancel()

	ev := New(TableHistory, OpUpdate, nil, nil)
	for i := 0; i < subscriberBuffer; i++ {
		if !hub.Publish(ev) {
			t.Fatalf("Expected publish %d to fit in the buffer", i)
		}
	}
	if hub.Publish(ev) {
		t.Fatal("Expected publish to report a drop once the buffer is full")
	}

	// The buffered events are intact; only the overflow was lost.
	for i := 0; i < subscriberBuffer; i++ {
		select {
		case <-ch:
		default:
			t.Fatalf("Expected %d buffered events, ran out at %d", subscriberBuffer, i)
		}
	}
}

func TestHubCloseTearsDownSubscriptions(t *testing.T) {
	hub := NewHub()
	ch, _ := hub.Subscribe()

	hub.Close()
	hub.Close() // idempotent

	if _, open := <-ch; open {
		t.Fatal("Expected subscriber channel closed after hub close")
	}
	if hub.Publish(New(TableHistory, OpInsert, nil, nil)) {
		t.Fatal("Expected publish on closed hub to report failure")
	}

	ch2, cancel := hub.Subscribe()
	defer cancel()
	if _, open := <-ch2; open {
		t.Fatal("Expected subscribe on closed hub to return a closed channel")
	}
}

func TestChangeEventValidate(t *testing.T) {
	good := ChangeEvent{Table: TableAccounts, Op: OpUpdate}
	if err := good.Validate(); err != nil {
		t.Errorf("Expected valid event, got %v", err)
	}

	badTable := ChangeEvent{Table: "updated", Op: OpUpdate}
	if err := badTable.Validate(); err == nil {
		t.Error("Expected unknown table to fail validation")
	}

	badOp := ChangeEvent{Table: TableHistory, Op: "upsert"}
	if err := badOp.Validate(); err == nil {
		t.Error("Expected unknown operation to fail validation")
	}
}
