// Package realtime propagates record store changes to local subscribers.
//
// Repositories record committed writes as ChangeEvents on a Feed. A Hub
// subscribes to the Feed, debounces bursts per subscription and delivers
// coalesced Notifications over channels. Delivery is best-effort: events are
// not replayed and ordering across tables is not guaranteed, so a subscriber
// that needs a consistent view re-fetches it.
package realtime

import (
	"encoding/json"
	"time"
)

// Table names a record store table that emits change events.
type Table string

const (
	TableTasks          Table = "tasks"
	TableWorkerProfiles Table = "worker_profiles"
	TableTaskUpdates    Table = "task_updates"
)

// Kind is the type of write that produced a change event.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// ChangeEvent describes one committed write.
type ChangeEvent struct {
	Table    Table           `json:"table"`
	Kind     Kind            `json:"kind"`
	RecordID string          `json:"record_id"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	At       time.Time       `json:"at"`
}

// NewChangeEvent builds a ChangeEvent, encoding payload as JSON.
// A payload that cannot be encoded is dropped; the event still identifies the record.
func NewChangeEvent(table Table, kind Kind, recordID string, payload any) ChangeEvent {
	ev := ChangeEvent{
		Table:    table,
		Kind:     kind,
		RecordID: recordID,
		At:       time.Now(),
	}
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			ev.Payload = b
		}
	}
	return ev
}

// Recorder accepts committed writes. Record must not block.
type Recorder interface {
	Record(ev ChangeEvent)
}

// NopRecorder discards events.
type NopRecorder struct{}

func (NopRecorder) Record(ChangeEvent) {}
