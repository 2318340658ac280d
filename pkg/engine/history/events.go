// Package history persists the daemon's event stream. Two sinks implement
// the same idempotent-append contract: a JSONL log for tailing and a SQLite
// database for queries.
package history

import (
	"time"
)

// EventKind partitions the stream.
type EventKind string

const (
	EventDeletion       EventKind = "deletion"
	EventPressureChange EventKind = "pressure_change"
	EventBallast        EventKind = "ballast"
	EventScan           EventKind = "scan"
	EventDecision       EventKind = "decision"
	EventError          EventKind = "error"
)

// Event is one row of the stream. ID is the idempotency key: appending the
// same id twice must leave exactly one stored copy.
type Event struct {
	ID       string    `json:"id"`
	Kind     EventKind `json:"kind"`
	At       time.Time `json:"at"`
	Mount    string    `json:"mount,omitempty"`
	Path     string    `json:"path,omitempty"`
	Category string    `json:"category,omitempty"`
	Bytes    uint64    `json:"bytes,omitempty"`
	Success  bool      `json:"success"`
	Code     string    `json:"code,omitempty"`
	Details  string    `json:"details,omitempty"`
}

// Sink is the idempotent append contract.
type Sink interface {
	// Append stores the event. Re-appending an id already stored is a
	// no-op, not an error.
	Append(event Event) error
	Close() error
}

// DeletionStats summarizes deletions over a window.
type DeletionStats struct {
	Count              int
	TotalBytesFreed    uint64
	Failures           int
	MostCommonCategory string
}

// WindowStats is what the status surface reads.
type WindowStats struct {
	Deletions DeletionStats
}

// MultiSink fans out to several sinks; the first error wins but every sink
// sees the event.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Append(event Event) error {
	var first error
	for _, s := range m.sinks {
		if err := s.Append(event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiSink) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
