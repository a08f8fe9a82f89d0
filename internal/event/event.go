// Package event defines the GitHub activity event model and the classifier
// that decides which raw event types the feed tracks.
package event

import (
	"sort"
	"time"
)

// Event is a single public activity record. Events are values: once decoded
// they are never mutated, and a later record with the same ID replaces the
// earlier one wholesale.
type Event struct {
	ID        string
	Type      string // raw type, e.g. "PushEvent"
	Actor     Actor
	Repo      Repo
	Payload   *Payload // nil when the record carried no payload
	Public    bool
	CreatedAt string // ISO-8601 UTC, e.g. "2024-01-01T00:00:00Z"
}

// Actor is the user who triggered the event.
type Actor struct {
	ID           int64
	Login        string
	DisplayLogin string
	AvatarURL    string
}

// Name returns the display login when present, otherwise the login.
func (a Actor) Name() string {
	if a.DisplayLogin != "" {
		return a.DisplayLogin
	}
	return a.Login
}

// Repo is the repository the event happened in.
type Repo struct {
	ID   int64
	Name string // "owner/repo"
	URL  string
}

// Payload holds the type-specific fields the feed displays.
// Which fields are set depends on Kind.
type Payload struct {
	Action  string // PullRequest, Issues, Watch
	Ref     string // Push, Create
	RefType string // Create
	PushID  int64
	Head    string
	Size    int // number of commits in a push
	Commits []Commit
	Number  int    // PR or issue number
	Title   string // PR or issue title
	Forkee  string // full name of the fork
}

// Commit is a commit summary inside a push payload.
type Commit struct {
	SHA     string
	Message string
}

// Kind returns the tracked kind of the event.
func (e Event) Kind() Kind {
	return Classify(e.Type)
}

// Created parses CreatedAt. The zero time is returned when it does not parse.
func (e Event) Created() time.Time {
	t, err := time.Parse(time.RFC3339, e.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SortNewestFirst orders events by CreatedAt descending, in place.
// ISO-8601 UTC strings in the same format sort lexicographically; ties fall
// back to ID so the order is deterministic.
func SortNewestFirst(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt != events[j].CreatedAt {
			return events[i].CreatedAt > events[j].CreatedAt
		}
		return events[i].ID > events[j].ID
	})
}
