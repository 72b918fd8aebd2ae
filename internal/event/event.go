package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Table identifies which logical table a change touched.
type Table string

const (
	TableAccounts Table = "accounts"
	TableHistory  Table = "history"
)

// Operation is the kind of row change.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ChangeEvent is produced once per committed write and broadcast to all
// connected subscribers. It is transient: never persisted, delivered
// at most once per subscriber, and carries no ordering or replay
// guarantee. Consumers treat it as an invalidation signal and re-read
// authoritative state from the store.
type ChangeEvent struct {
	Table     Table           `json:"table"`
	Op        Operation       `json:"op"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       json.RawMessage `json:"old,omitempty"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// Validate checks the tagged variant at the subscriber boundary before
// the event is handed to the coalescing unit.
func (e ChangeEvent) Validate() error {
	switch e.Table {
	case TableAccounts, TableHistory:
	default:
		return fmt.Errorf("unknown change table %q", e.Table)
	}
	switch e.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("unknown change operation %q", e.Op)
	}
	return nil
}

// New constructs a ChangeEvent, marshalling the old and new row states.
// Marshal failures leave the corresponding state empty rather than
// failing the event: the payload is advisory, the refetch is what
// carries truth.
func New(table Table, op Operation, oldState, newState any) ChangeEvent {
	ev := ChangeEvent{Table: table, Op: op, EmittedAt: time.Now().UTC()}
	if oldState != nil {
		if b, err := json.Marshal(oldState); err == nil {
			ev.Old = b
		}
	}
	if newState != nil {
		if b, err := json.Marshal(newState); err == nil {
			ev.New = b
		}
	}
	return ev
}

// Publisher pushes a committed change to all current subscribers.
// Best effort: the write it describes has already committed, so a
// failed publish is reported by the boolean only and never rolls
// anything back.
type Publisher interface {
	Publish(ev ChangeEvent) bool
}
