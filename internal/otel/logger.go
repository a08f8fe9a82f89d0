package otel

// Goroutine safety:
// drain is the only reader of l.ch and the only writer to l.w.
// l.mu guards the recorder pointer and nothing else; drain copies the
// pointer out before recording, so no two locks are ever held together.

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// writerChanSize is the capacity of the async write channel.
// A poll cycle emits a handful of events, so this absorbs hours of bursts.
const writerChanSize = 4096

// logEntry pairs the encoded line with the original Event so the recorder
// keeps fields that are not serialized (Dur).
type logEntry struct {
	data []byte
	ev   Event
}

// Logger writes Events as JSONL through a background drain goroutine.
// Emit never blocks: when the channel is full the event is counted as dropped.
type Logger struct {
	mu        sync.Mutex
	rec       *Recorder // nil until SetRecorder
	sessionID string
	ch        chan logEntry
	w         io.Writer
	dropped   atomic.Uint64
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewLogger creates a Logger writing JSONL to w and starts its drain goroutine.
// Call Close to flush.
func NewLogger(w io.Writer) *Logger {
	var sid [8]byte
	_, _ = rand.Read(sid[:])

	l := &Logger{
		sessionID: fmt.Sprintf("%x", sid[:]),
		ch:        make(chan logEntry, writerChanSize),
		w:         w,
		done:      make(chan struct{}),
	}
	go l.drain()
	return l
}

func (l *Logger) drain() {
	defer close(l.done)
	for entry := range l.ch {
		if _, err := l.w.Write(entry.data); err != nil {
			l.dropped.Add(1)
		}

		l.mu.Lock()
		rec := l.rec
		l.mu.Unlock()

		if rec != nil {
			rec.Record(entry.ev)
		}
	}
}

// Emit queues e for writing. Time defaults to now and SessionID is always
// overwritten. Safe to call concurrently with Close; late events are dropped.
func (l *Logger) Emit(e Event) {
	defer func() {
		if recover() != nil {
			l.dropped.Add(1)
		}
	}()

	if l.closed.Load() {
		l.dropped.Add(1)
		return
	}

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.SessionID = l.sessionID

	data, err := json.Marshal(e)
	if err != nil {
		l.dropped.Add(1)
		return
	}
	data = append(data, '\n')

	select {
	case l.ch <- logEntry{data: data, ev: e}:
	default:
		l.dropped.Add(1)
	}
}

// Info emits an info-level event.
func (l *Logger) Info(kind EventKind, comp string, msg string) {
	l.Emit(Event{Level: LevelInfo, Kind: kind, Comp: comp, Msg: msg})
}

// Warn emits a warn-level event.
func (l *Logger) Warn(kind EventKind, comp string, msg string) {
	l.Emit(Event{Level: LevelWarn, Kind: kind, Comp: comp, Msg: msg})
}

// Error emits an error-level event. A nil err is logged as an empty string.
func (l *Logger) Error(kind EventKind, comp string, err error) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	l.Emit(Event{Level: LevelError, Kind: kind, Comp: comp, Err: errStr})
}

// Scope returns an emitter that stamps comp on every event.
func (l *Logger) Scope(comp string) Scope {
	return Scope{l: l, comp: comp}
}

// SessionID returns the random identifier stamped on every event.
func (l *Logger) SessionID() string {
	return l.sessionID
}

// SetRecorder attaches a Recorder that sees every event the drain handles.
func (l *Logger) SetRecorder(rec *Recorder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rec = rec
}

// Dropped returns the number of events dropped since creation.
func (l *Logger) Dropped() uint64 {
	return l.dropped.Load()
}

// Close flushes pending events and stops the drain goroutine. Idempotent.
// After Close, Dropped and the attached Recorder are final.
func (l *Logger) Close() {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.ch)
		<-l.done
	})
}

// Scope is a component-bound view of a Logger.
type Scope struct {
	l    *Logger
	comp string
}

// Emit fills in Comp (and Level, when unset) and forwards to the Logger.
func (s Scope) Emit(e Event) {
	if s.l == nil {
		return
	}
	if e.Comp == "" {
		e.Comp = s.comp
	}
	if e.Level == "" {
		e.Level = LevelInfo
	}
	s.l.Emit(e)
}

// Trace emits a debug event only when tracing is enabled.
// Used for high-frequency events such as countdown ticks.
func (s Scope) Trace(e Event) {
	if !TraceEnabled() {
		return
	}
	e.Level = LevelDebug
	s.Emit(e)
}

// Fail emits an error-level event carrying err.
func (s Scope) Fail(kind EventKind, err error, e Event) {
	e.Kind = kind
	e.Level = LevelError
	if err != nil {
		e.Err = err.Error()
	}
	s.Emit(e)
}
