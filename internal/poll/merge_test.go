package poll

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/abelbrown/eventfeed/internal/event"
	"github.com/abelbrown/eventfeed/internal/fetch"
)

func TestMergeBatchesEqualsSecondOverFirst(t *testing.T) {
	b1 := []event.Event{
		ev("a", "PushEvent", "2024-01-01T00:00:00Z"),
		ev("b", "PushEvent", "2024-01-01T00:00:01Z"),
	}
	b2 := []event.Event{
		{ID: "b", Type: "ForkEvent", CreatedAt: "2024-01-01T00:00:01Z"},
		ev("c", "WatchEvent", "2024-01-01T00:00:02Z"),
	}

	sequential := Merge(Merge(nil, b1), b2)

	want := map[string]event.Event{}
	for _, e := range b1 {
		want[e.ID] = e
	}
	for _, e := range b2 {
		want[e.ID] = e
	}

	if len(sequential) != len(want) {
		t.Fatalf("len = %d, want %d", len(sequential), len(want))
	}
	for id, e := range want {
		if sequential[id].Type != e.Type {
			t.Errorf("%s: type %q, want %q", id, sequential[id].Type, e.Type)
		}
	}
}

func TestMergeLeavesCurrentUntouched(t *testing.T) {
	current := Merge(nil, []event.Event{ev("a", "PushEvent", "2024-01-01T00:00:00Z")})
	next := Merge(current, []event.Event{ev("b", "PushEvent", "2024-01-01T00:00:01Z")})

	if len(current) != 1 || len(next) != 2 {
		t.Errorf("current=%d next=%d, want 1 and 2", len(current), len(next))
	}
}

func TestMergeLaterDuplicateInBatchWins(t *testing.T) {
	set := Merge(nil, []event.Event{
		{ID: "a", Type: "PushEvent", CreatedAt: "2024-01-01T00:00:00Z"},
		{ID: "a", Type: "CreateEvent", CreatedAt: "2024-01-01T00:00:00Z"},
	})
	if len(set) != 1 || set["a"].Type != "CreateEvent" {
		t.Errorf("unexpected set: %+v", set)
	}
}

func TestOrderedNewestFirst(t *testing.T) {
	set := Merge(nil, []event.Event{
		ev("1", "PushEvent", "2024-01-01T00:00:00Z"),
		ev("3", "PushEvent", "2024-03-01T00:00:00Z"),
		ev("2", "PushEvent", "2024-02-01T00:00:00Z"),
	})
	if got := ids(Ordered(set)); got != "3,2,1" {
		t.Errorf("order = %s, want 3,2,1", got)
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		err    error
		prefix string
	}{
		{&fetch.TransportError{Op: "request", Err: errors.New("dial tcp: refused")}, "Network error: "},
		{fmt.Errorf("cycle: %w", &fetch.TransportError{Op: "read body", Err: errors.New("EOF")}), "Network error: "},
		{&fetch.ProtocolError{StatusCode: 500, Message: "Internal Server Error"}, "API error: "},
		{&fetch.ProtocolError{StatusCode: 200, Message: "unparseable body", Err: errors.New("bad json")}, "API error: "},
		{errors.New("something odd"), "Unexpected error: "},
	}
	for _, tt := range tests {
		got := Message(tt.err)
		if !strings.HasPrefix(got, tt.prefix) {
			t.Errorf("Message(%v) = %q, want prefix %q", tt.err, got, tt.prefix)
		}
		if !strings.HasSuffix(got, tt.err.Error()) {
			t.Errorf("Message(%v) = %q, lost the cause", tt.err, got)
		}
	}
	if Message(nil) != "" {
		t.Error("Message(nil) should be empty")
	}
}

func TestStatusString(t *testing.T) {
	for s, want := range map[Status]string{
		StatusLoading: "loading",
		StatusEmpty:   "empty",
		StatusSuccess: "success",
		StatusError:   "error",
		Status(42):    "unknown",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), want)
		}
	}
}
