package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/abelbrown/eventfeed/internal/event"
	"github.com/abelbrown/eventfeed/internal/poll"
)

type fakeSource struct {
	snap  poll.Snapshot
	stats poll.Stats
}

func (f fakeSource) Snapshot() poll.Snapshot { return f.snap }
func (f fakeSource) Stats() poll.Stats       { return f.stats }

// gather collects c and returns metric values keyed by name plus labels.
func gather(t *testing.T, c *Collector) map[string]float64 {
	t.Helper()
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	out := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
			}
			switch {
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			}
		}
	}
	return out
}

func TestCollectSuccess(t *testing.T) {
	src := fakeSource{
		snap: poll.Snapshot{
			State:     poll.Success([]event.Event{{ID: "a"}, {ID: "b"}}),
			Total:     2,
			Countdown: 7,
			NextPoll:  60,
		},
		stats: poll.Stats{Successes: 5, NotModified: 3, Failures: 1, Retries: 4, Merged: 12},
	}
	got := gather(t, NewCollector(src))

	want := map[string]float64{
		"eventfeed_up":                                  1,
		"eventfeed_events":                              2,
		"eventfeed_state{state=success}":                1,
		"eventfeed_state{state=error}":                  0,
		"eventfeed_refreshing":                          0,
		"eventfeed_countdown_seconds":                   7,
		"eventfeed_poll_interval_seconds":               60,
		"eventfeed_cycles_total{outcome=ok}":            2,
		"eventfeed_cycles_total{outcome=not_modified}":  3,
		"eventfeed_cycles_total{outcome=error}":         1,
		"eventfeed_retries_total":                       4,
		"eventfeed_merged_events_total":                 12,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestCollectError(t *testing.T) {
	got := gather(t, NewCollector(fakeSource{snap: poll.Snapshot{State: poll.Failed("API error: status 502"), Refreshing: true}}))

	if got["eventfeed_up"] != 0 {
		t.Error("up should be 0 in the error state")
	}
	if got["eventfeed_state{state=error}"] != 1 || got["eventfeed_state{state=success}"] != 0 {
		t.Errorf("state series wrong: %v", got)
	}
	if got["eventfeed_refreshing"] != 1 {
		t.Error("refreshing should be 1")
	}
}

func TestHandlerServesText(t *testing.T) {
	h, err := Handler(NewCollector(fakeSource{snap: poll.Snapshot{State: poll.Empty()}}))
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	server := httptest.NewServer(h)
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `eventfeed_state{state="empty"} 1`) {
		t.Errorf("unexpected exposition:\n%s", body)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", NewCollector(fakeSource{})) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
