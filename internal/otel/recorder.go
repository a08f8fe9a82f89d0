package otel

import "sync"

// DefaultRecentSize is the window a Recorder keeps when asked for none.
const DefaultRecentSize = 256

// Recorder tallies every event kind for the whole session and keeps the
// latest event of each kind plus a short window of recent events. Counts
// are not limited by the window. Goroutine-safe.
type Recorder struct {
	mu     sync.Mutex
	totals map[EventKind]int
	latest map[EventKind]Event
	recent []Event // oldest first
	keep   int
}

// NewRecorder creates a Recorder keeping the last keep events.
func NewRecorder(keep int) *Recorder {
	if keep <= 0 {
		keep = DefaultRecentSize
	}
	return &Recorder{
		totals: make(map[EventKind]int),
		latest: make(map[EventKind]Event),
		recent: make([]Event, 0, keep),
		keep:   keep,
	}
}

// Record adds e. Extra is copied so later changes by the caller don't leak in.
func (r *Recorder) Record(e Event) {
	if e.Extra != nil {
		extra := make(map[string]any, len(e.Extra))
		for k, v := range e.Extra {
			extra[k] = v
		}
		e.Extra = extra
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.totals[e.Kind]++
	r.latest[e.Kind] = e
	if len(r.recent) == r.keep {
		r.recent = append(r.recent[:0], r.recent[1:]...)
	}
	r.recent = append(r.recent, e)
}

// Count returns how many events of kind were recorded this session.
func (r *Recorder) Count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totals[kind]
}

// Latest returns the most recent event of kind.
func (r *Recorder) Latest(kind EventKind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.latest[kind]
	return e, ok
}

// Recent returns a copy of the window, oldest first.
func (r *Recorder) Recent() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.recent) == 0 {
		return nil
	}
	out := make([]Event, len(r.recent))
	copy(out, r.recent)
	return out
}
