package otel

import (
	"io"
	"sync"
	"testing"
)

func TestRecorderCountsOutliveWindow(t *testing.T) {
	r := NewRecorder(3)
	for i := 0; i < 5; i++ {
		r.Record(Event{Kind: KindPollRetry, Attempt: i})
	}
	r.Record(Event{Kind: KindPollError, Msg: "API error: status 502"})

	if got := r.Count(KindPollRetry); got != 5 {
		t.Errorf("Count(poll.retry) = %d, want 5", got)
	}
	if got := r.Count(KindPollComplete); got != 0 {
		t.Errorf("Count(poll.complete) = %d, want 0", got)
	}

	recent := r.Recent()
	if len(recent) != 3 {
		t.Fatalf("window = %d events, want 3", len(recent))
	}
	if recent[0].Attempt != 3 || recent[1].Attempt != 4 || recent[2].Kind != KindPollError {
		t.Errorf("window should be the last three, oldest first: %+v", recent)
	}
}

func TestRecorderLatest(t *testing.T) {
	r := NewRecorder(2)
	if _, ok := r.Latest(KindPollError); ok {
		t.Error("Latest on an empty recorder should report false")
	}

	r.Record(Event{Kind: KindPollError, Msg: "first"})
	for i := 0; i < 5; i++ {
		r.Record(Event{Kind: KindPollStart})
	}
	r.Record(Event{Kind: KindPollError, Msg: "second"})
	r.Record(Event{Kind: KindPollStart})
	r.Record(Event{Kind: KindPollStart})

	e, ok := r.Latest(KindPollError)
	if !ok || e.Msg != "second" {
		t.Errorf("Latest(poll.error) = %+v, %v; want the second error even after it left the window", e, ok)
	}
}

func TestRecorderCopiesExtra(t *testing.T) {
	r := NewRecorder(4)
	extra := map[string]any{"repo": "o/r"}
	r.Record(Event{Kind: KindStartup, Extra: extra})
	extra["repo"] = "changed"

	if got := r.Recent()[0].Extra["repo"]; got != "o/r" {
		t.Errorf("recorded Extra changed to %v", got)
	}
}

func TestRecorderDefaultWindow(t *testing.T) {
	if r := NewRecorder(0); r.keep != DefaultRecentSize {
		t.Errorf("keep = %d, want %d", r.keep, DefaultRecentSize)
	}
	if NewRecorder(1).Recent() != nil {
		t.Error("empty recorder should return a nil window")
	}
}

func TestRecorderConcurrent(t *testing.T) {
	r := NewRecorder(16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Record(Event{Kind: KindRequest})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = r.Recent()
				_, _ = r.Latest(KindRequest)
			}
		}()
	}
	wg.Wait()

	if got := r.Count(KindRequest); got != 800 {
		t.Errorf("Count = %d, want 800", got)
	}
}

func TestRecorderFedByLogger(t *testing.T) {
	r := NewRecorder(8)
	l := NewLogger(io.Discard)
	l.SetRecorder(r)

	l.Info(KindStartup, "main", "hello")
	l.Emit(Event{Kind: KindPollRetry, Attempt: 1})
	l.Emit(Event{Kind: KindPollRetry, Attempt: 2})
	l.Close()

	if r.Count(KindPollRetry) != 2 || r.Count(KindStartup) != 1 {
		t.Errorf("counts after Close: retry=%d startup=%d", r.Count(KindPollRetry), r.Count(KindStartup))
	}
	if e, _ := r.Latest(KindStartup); e.SessionID != l.SessionID() || e.Comp != "main" {
		t.Errorf("recorded event lost logger fields: %+v", e)
	}
}
