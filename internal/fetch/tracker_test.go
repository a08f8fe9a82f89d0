package fetch

import (
	"net/http"
	"sync"
	"testing"
)

func header(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestTrackerDefaults(t *testing.T) {
	tr := NewTracker(0)
	if tr.PollInterval() != DefaultPollInterval {
		t.Errorf("PollInterval() = %d, want %d", tr.PollInterval(), DefaultPollInterval)
	}
	if tr.Token() != "" {
		t.Errorf("Token() = %q, want empty", tr.Token())
	}
}

func TestTrackerUpdate(t *testing.T) {
	tests := []struct {
		name         string
		h            http.Header
		wantToken    string
		wantInterval int
	}{
		{"both headers", header("ETag", `"abc"`, "X-Poll-Interval", "60"), `"abc"`, 60},
		{"no headers", header(), "", 10},
		{"blank etag ignored", header("ETag", "   "), "", 10},
		{"non-numeric interval ignored", header("X-Poll-Interval", "soon"), "", 10},
		{"padded interval accepted", header("X-Poll-Interval", " 30 "), "", 30},
		{"weak etag kept verbatim", header("ETag", `W/"xyz"`), `W/"xyz"`, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(10)
			tr.Update(tt.h)
			if tr.Token() != tt.wantToken {
				t.Errorf("Token() = %q, want %q", tr.Token(), tt.wantToken)
			}
			if tr.PollInterval() != tt.wantInterval {
				t.Errorf("PollInterval() = %d, want %d", tr.PollInterval(), tt.wantInterval)
			}
		})
	}
}

func TestTrackerKeepsPreviousOnMalformed(t *testing.T) {
	tr := NewTracker(10)
	tr.Update(header("ETag", "first", "X-Poll-Interval", "45"))
	tr.Update(header("ETag", "", "X-Poll-Interval", "4.5"))

	if tr.Token() != "first" {
		t.Errorf("Token() = %q, want first", tr.Token())
	}
	if tr.PollInterval() != 45 {
		t.Errorf("PollInterval() = %d, want 45", tr.PollInterval())
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker(10)
	tr.UpdateToken(header("ETag", "tok"))
	tr.Reset()
	if tr.Token() != "" {
		t.Errorf("Token() after Reset = %q", tr.Token())
	}
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tr := NewTracker(10)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.Update(header("ETag", "tok", "X-Poll-Interval", "60"))
		}()
		go func() {
			defer wg.Done()
			_ = tr.Token()
			_ = tr.PollInterval()
		}()
	}
	wg.Wait()

	if tr.Token() != "tok" || tr.PollInterval() != 60 {
		t.Errorf("unexpected final state: %q %d", tr.Token(), tr.PollInterval())
	}
}
