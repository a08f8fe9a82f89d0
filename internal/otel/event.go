// Package otel provides structured observability for eventfeed.
//
// Events are typed structs serialized as JSONL lines. The Logger writes
// events asynchronously via a buffered channel and background drain goroutine.
// An optional Recorder counts events per kind and keeps the latest ones in
// memory so the watch command can summarize a session without re-reading the
// log file.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an observability event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Poll cycle events
	KindPollStart       EventKind = "poll.start"
	KindPollComplete    EventKind = "poll.complete"
	KindPollNotModified EventKind = "poll.not_modified"
	KindPollError       EventKind = "poll.error"
	KindPollRetry       EventKind = "poll.retry"
	KindPollTick        EventKind = "poll.tick"

	// Engine lifecycle
	KindEngineStart  EventKind = "engine.start"
	KindEngineStop   EventKind = "engine.stop"
	KindRefreshStart EventKind = "refresh.start"
	KindStateChange  EventKind = "state.change"

	// HTTP source
	KindRequest EventKind = "http.request"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"
)

// Event is the universal observability record. Every field except Kind and
// Time is optional. Serialized as a single JSONL line.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"`       // component: "poll", "fetch", "main"
	SessionID string         `json:"session_id,omitempty"` // random hex, same for entire run
	Trigger   string         `json:"trigger,omitempty"`    // "loop" or "refresh"
	Cycle     string         `json:"cycle,omitempty"`      // poll cycle correlation ID
	Dur       time.Duration  `json:"-"`                    // not serialized directly
	DurMs     float64        `json:"dur_ms,omitempty"`     // computed from Dur at marshal time
	Count     int            `json:"count,omitempty"`
	Total     int            `json:"total,omitempty"`
	Attempt   int            `json:"attempt,omitempty"`
	Status    int            `json:"status,omitempty"`   // HTTP status code
	Interval  int            `json:"interval,omitempty"` // poll interval, seconds
	State     string         `json:"state,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`   // free text
	Extra     map[string]any `json:"extra,omitempty"` // escape hatch for unusual fields
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	a := struct {
		Alias
	}{Alias: Alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
