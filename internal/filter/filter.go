// Package filter provides pure filter functions for events.
// All functions are simple: []Event in, []Event out. No side effects.
package filter

import (
	"strings"
	"time"

	"github.com/abelbrown/eventfeed/internal/event"
)

// Criteria is the search projection the watch command applies to the feed.
// A zero Criteria keeps everything.
type Criteria struct {
	Kind    event.Kind // KindUntracked means all kinds
	Query   string
	MaxAge  time.Duration // 0 means any age
	Repos   []string      // "owner/repo"; empty means all repos
	PerRepo int           // 0 means no per-repo cap
	Limit   int           // 0 means no limit
}

// Apply runs ByKind, ByQuery, ByAge, ByRepo, LimitPerRepo and Limit in that
// order, skipping the ones whose field is unset. now anchors MaxAge.
func Apply(events []event.Event, c Criteria, now time.Time) []event.Event {
	out := ByKind(events, c.Kind)
	out = ByQuery(out, c.Query)
	if c.MaxAge > 0 {
		out = ByAge(out, c.MaxAge, now)
	}
	if len(c.Repos) > 0 {
		out = ByRepo(out, c.Repos)
	}
	if c.PerRepo > 0 {
		out = LimitPerRepo(out, c.PerRepo)
	}
	return Limit(out, c.Limit)
}

// ByKind keeps events of the given kind. KindUntracked keeps all.
func ByKind(events []event.Event, kind event.Kind) []event.Event {
	if kind == event.KindUntracked {
		return clone(events)
	}

	result := make([]event.Event, 0, len(events))
	for _, e := range events {
		if e.Kind() == kind {
			result = append(result, e)
		}
	}
	return result
}

// ByQuery keeps events whose actor login, repo name or type contains q,
// case-insensitively. A blank query keeps all.
func ByQuery(events []event.Event, q string) []event.Event {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return clone(events)
	}

	result := make([]event.Event, 0, len(events))
	for _, e := range events {
		if matches(e, q) {
			result = append(result, e)
		}
	}
	return result
}

func matches(e event.Event, q string) bool {
	return strings.Contains(strings.ToLower(e.Actor.Login), q) ||
		strings.Contains(strings.ToLower(e.Repo.Name), q) ||
		strings.Contains(strings.ToLower(e.Type), q)
}

// ByAge removes events created before now-maxAge. Events whose timestamp
// does not parse are kept.
func ByAge(events []event.Event, maxAge time.Duration, now time.Time) []event.Event {
	cutoff := now.Add(-maxAge)
	result := make([]event.Event, 0, len(events))

	for _, e := range events {
		created := e.Created()
		if created.IsZero() || !created.Before(cutoff) {
			result = append(result, e)
		}
	}

	return result
}

// ByRepo keeps only events from the named repositories ("owner/repo").
func ByRepo(events []event.Event, repos []string) []event.Event {
	if len(events) == 0 || len(repos) == 0 {
		return []event.Event{}
	}

	// Build a set of allowed repos for O(1) lookup
	allowed := make(map[string]bool, len(repos))
	for _, r := range repos {
		allowed[strings.ToLower(r)] = true
	}

	result := make([]event.Event, 0, len(events))
	for _, e := range events {
		if allowed[strings.ToLower(e.Repo.Name)] {
			result = append(result, e)
		}
	}

	return result
}

// LimitPerRepo caps the number of events per repository, keeping the
// first ones in input order. Busy repos would otherwise crowd the feed.
func LimitPerRepo(events []event.Event, maxPerRepo int) []event.Event {
	if len(events) == 0 || maxPerRepo <= 0 {
		return []event.Event{}
	}

	seen := make(map[string]int)
	result := make([]event.Event, 0, len(events))
	for _, e := range events {
		if seen[e.Repo.Name] >= maxPerRepo {
			continue
		}
		seen[e.Repo.Name]++
		result = append(result, e)
	}

	return result
}

// Limit returns at most n events. n <= 0 means no limit.
func Limit(events []event.Event, n int) []event.Event {
	if n <= 0 || n >= len(events) {
		return clone(events)
	}
	return clone(events[:n])
}

func clone(events []event.Event) []event.Event {
	out := make([]event.Event, len(events))
	copy(out, events)
	return out
}
