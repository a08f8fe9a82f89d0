package filter

import (
	"testing"
	"time"

	"github.com/abelbrown/eventfeed/internal/event"
)

func sample() []event.Event {
	return []event.Event{
		{ID: "1", Type: "PushEvent", Actor: event.Actor{Login: "Octocat"}, Repo: event.Repo{Name: "golang/go"}, CreatedAt: "2024-01-01T10:00:00Z"},
		{ID: "2", Type: "PullRequestEvent", Actor: event.Actor{Login: "gopher"}, Repo: event.Repo{Name: "golang/tools"}, CreatedAt: "2024-01-01T09:00:00Z"},
		{ID: "3", Type: "WatchEvent", Actor: event.Actor{Login: "stargazer"}, Repo: event.Repo{Name: "charmbracelet/log"}, CreatedAt: "2024-01-01T08:00:00Z"},
		{ID: "4", Type: "PushEvent", Actor: event.Actor{Login: "gopher"}, Repo: event.Repo{Name: "golang/go"}, CreatedAt: "2024-01-01T07:00:00Z"},
		{ID: "5", Type: "CreateEvent", Actor: event.Actor{Login: "maker"}, Repo: event.Repo{Name: "maker/new"}, CreatedAt: "not a time"},
	}
}

func idsOf(events []event.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func equalIDs(t *testing.T, got []event.Event, want ...string) {
	t.Helper()
	ids := idsOf(got)
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestByKind(t *testing.T) {
	tests := []struct {
		kind event.Kind
		want []string
	}{
		{event.KindUntracked, []string{"1", "2", "3", "4", "5"}},
		{event.KindPush, []string{"1", "4"}},
		{event.KindPullRequest, []string{"2"}},
		{event.KindWatch, []string{"3"}},
		{event.KindCreate, []string{"5"}},
		{event.KindFork, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			equalIDs(t, ByKind(sample(), tt.kind), tt.want...)
		})
	}
}

func TestByQuery(t *testing.T) {
	tests := []struct {
		name string
		q    string
		want []string
	}{
		{"blank keeps all", "  ", []string{"1", "2", "3", "4", "5"}},
		{"actor case-insensitive", "OCTO", []string{"1"}},
		{"repo name", "golang/", []string{"1", "2", "4"}},
		{"type", "watchevent", []string{"3"}},
		{"actor and repo", "maker", []string{"5"}},
		{"no match", "rustacean", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equalIDs(t, ByQuery(sample(), tt.q), tt.want...)
		})
	}
}

var applyNow = time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		c    Criteria
		want []string
	}{
		{"zero keeps all", Criteria{}, []string{"1", "2", "3", "4", "5"}},
		{"kind and query", Criteria{Kind: event.KindPush, Query: "gopher"}, []string{"4"}},
		{"query and limit", Criteria{Query: "golang", Limit: 2}, []string{"1", "2"}},
		{"max age", Criteria{MaxAge: 2 * time.Hour}, []string{"1", "2", "5"}},
		{"repos", Criteria{Repos: []string{"golang/go"}}, []string{"1", "4"}},
		{"per repo", Criteria{PerRepo: 1}, []string{"1", "2", "3", "5"}},
		{"per repo then limit", Criteria{PerRepo: 1, Limit: 3}, []string{"1", "2", "3"}},
		{"kind before per repo", Criteria{Kind: event.KindPush, PerRepo: 1}, []string{"1"}},
		{"age and repo", Criteria{MaxAge: 2 * time.Hour, Repos: []string{"golang/go", "maker/new"}}, []string{"1", "5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equalIDs(t, Apply(sample(), tt.c, applyNow), tt.want...)
		})
	}
}

func TestApplyDoesNotAliasInput(t *testing.T) {
	in := sample()
	out := Apply(in, Criteria{}, applyNow)
	out[0].ID = "changed"
	if in[0].ID != "1" {
		t.Error("Apply returned a slice sharing the input's backing array")
	}
}

func TestFilterIdempotent(t *testing.T) {
	c := Criteria{Kind: event.KindPush, Query: "go", MaxAge: 4 * time.Hour, PerRepo: 1}
	once := Apply(sample(), c, applyNow)
	twice := Apply(once, c, applyNow)
	equalIDs(t, twice, idsOf(once)...)
}

func TestByAge(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)
	got := ByAge(sample(), 2*time.Hour, now)
	// 3 and 4 are older than 08:30; 5 does not parse and is kept.
	equalIDs(t, got, "1", "2", "5")
}

func TestByAgeEmpty(t *testing.T) {
	result := ByAge(nil, time.Hour, time.Now())
	if result == nil || len(result) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", result)
	}
}

func TestByRepo(t *testing.T) {
	equalIDs(t, ByRepo(sample(), []string{"GOLANG/GO", "maker/new"}), "1", "4", "5")

	if got := ByRepo(sample(), nil); len(got) != 0 {
		t.Errorf("nil repos should keep nothing, got %v", idsOf(got))
	}
}

func TestLimitPerRepo(t *testing.T) {
	equalIDs(t, LimitPerRepo(sample(), 1), "1", "2", "3", "5")

	if got := LimitPerRepo(sample(), 0); len(got) != 0 {
		t.Errorf("limit 0 should keep nothing, got %v", idsOf(got))
	}
}

func TestLimit(t *testing.T) {
	equalIDs(t, Limit(sample(), 2), "1", "2")
	equalIDs(t, Limit(sample(), 0), "1", "2", "3", "4", "5")
	equalIDs(t, Limit(sample(), 99), "1", "2", "3", "4", "5")
}
