package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/eventfeed/internal/event"
	"github.com/abelbrown/eventfeed/internal/filter"
	"github.com/abelbrown/eventfeed/internal/otel"
	"github.com/abelbrown/eventfeed/internal/poll"
)

// Colors used in the feed.
var (
	colorSecondary = lipgloss.Color("241") // Gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorError     = lipgloss.Color("196") // Red
)

var (
	statusStyle = lipgloss.NewStyle().Foreground(colorSecondary).Italic(true)
	errorStyle  = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	timeStyle   = lipgloss.NewStyle().Foreground(colorSecondary)
	actorStyle  = lipgloss.NewStyle().Foreground(colorHighlight).Bold(true)
	repoStyle   = lipgloss.NewStyle().Foreground(colorSuccess)
)

// kindPalette gives each kind a stable badge color.
var kindPalette = map[event.Kind]lipgloss.Color{
	event.KindPush:        lipgloss.Color("39"),
	event.KindPullRequest: lipgloss.Color("170"),
	event.KindIssues:      lipgloss.Color("214"),
	event.KindFork:        lipgloss.Color("81"),
	event.KindWatch:       lipgloss.Color("226"),
	event.KindCreate:      lipgloss.Color("120"),
}

// renderer prints engine snapshots as lines. It prints a status line when
// the visible status changes and each matching event once, oldest first.
type renderer struct {
	w        io.Writer
	criteria filter.Criteria
	now      func() time.Time

	seen    map[string]bool
	last    statusKey
	started bool
}

// statusKey is the part of a Snapshot the status line depends on.
// Countdown ticks alone do not reprint it.
type statusKey struct {
	status     poll.Status
	refreshing bool
	message    string
	total      int
}

func newRenderer(w io.Writer, c filter.Criteria, now func() time.Time) *renderer {
	return &renderer{w: w, criteria: c, now: now, seen: make(map[string]bool)}
}

func (r *renderer) render(s poll.Snapshot) {
	key := statusKey{
		status:     s.State.Status,
		refreshing: s.Refreshing,
		message:    s.State.Message,
		total:      s.Total,
	}
	if !r.started || key != r.last {
		fmt.Fprintln(r.w, statusLine(s))
	}
	r.last, r.started = key, true

	if s.State.Status != poll.StatusSuccess {
		return
	}
	fresh := r.fresh(s.State.Events)
	for i := len(fresh) - 1; i >= 0; i-- {
		fmt.Fprintln(r.w, eventLine(fresh[i], r.now()))
	}
}

// fresh returns the unseen events that match the criteria, newest first,
// with the per-repo cap and limit applied to the unseen batch. Every unseen
// event is marked seen, so events cut by a cap are not printed later either.
func (r *renderer) fresh(events []event.Event) []event.Event {
	sel := r.criteria
	sel.PerRepo, sel.Limit = 0, 0
	matched := filter.Apply(events, sel, r.now())
	out := make([]event.Event, 0, len(matched))
	for _, e := range matched {
		if r.seen[e.ID] {
			continue
		}
		r.seen[e.ID] = true
		out = append(out, e)
	}
	return filter.Apply(out, filter.Criteria{PerRepo: r.criteria.PerRepo, Limit: r.criteria.Limit}, r.now())
}

func statusLine(s poll.Snapshot) string {
	var b strings.Builder
	if s.Refreshing {
		b.WriteString("[refreshing] ")
	}
	switch s.State.Status {
	case poll.StatusLoading:
		b.WriteString("loading events")
	case poll.StatusEmpty:
		fmt.Fprintf(&b, "no events yet, next poll in %ds", s.NextPoll)
	case poll.StatusSuccess:
		fmt.Fprintf(&b, "%d events, next poll in %ds", s.Total, s.NextPoll)
	case poll.StatusError:
		return b.String() + errorStyle.Render(s.State.Message) + statusStyle.Render(" (c to clear, r to retry)")
	}
	return statusStyle.Render(b.String())
}

func eventLine(e event.Event, now time.Time) string {
	badge := lipgloss.NewStyle().Foreground(kindPalette[e.Kind()]).Width(7).Render(e.Kind().String())
	return fmt.Sprintf("%s %s %s %s %s %s",
		timeStyle.Width(8).Render(event.RelativeTime(e.CreatedAt, now)),
		badge,
		actorStyle.Render(e.Actor.Name()),
		repoStyle.Render(e.Repo.Name),
		e.Summary(),
		timeStyle.Render("#"+e.ID),
	)
}

// detail is the multi-line view printed by the d command.
func detail(e event.Event, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", actorStyle.Render("#"+e.ID), e.Type)
	fmt.Fprintf(&b, "  actor  %s  %s\n", e.Actor.Name(), event.ProfileURL(e.Actor.Login))
	fmt.Fprintf(&b, "  repo   %s  %s\n", e.Repo.Name, event.RepoURL(e.Repo.Name))
	fmt.Fprintf(&b, "  when   %s (%s)\n", e.CreatedAt, event.RelativeTime(e.CreatedAt, now))
	fmt.Fprintf(&b, "  what   %s", e.Summary())
	return b.String()
}

// session is what the exit summary reports.
type session struct {
	id        string
	elapsed   time.Duration
	snap      poll.Snapshot
	stats     poll.Stats
	requests  int    // http.request events recorded
	retries   int    // poll.retry events recorded
	lastError string // message of the last poll.error, if any
	lastCycle string // cycle ID of that error
	attempts  int    // attempts the failed cycle made, from the recent window
	dropped   uint64 // event log lines lost to a full buffer
}

// summarize reads the session totals out of the recorder and engine.
func summarize(id string, elapsed time.Duration, snap poll.Snapshot, st poll.Stats, rec *otel.Recorder, dropped uint64) session {
	s := session{
		id:       id,
		elapsed:  elapsed,
		snap:     snap,
		stats:    st,
		requests: rec.Count(otel.KindRequest),
		retries:  rec.Count(otel.KindPollRetry),
		dropped:  dropped,
	}
	if last, ok := rec.Latest(otel.KindPollError); ok {
		s.lastError, s.lastCycle, s.attempts = last.Msg, last.Cycle, 1
		for _, e := range rec.Recent() {
			if e.Kind == otel.KindPollRetry && e.Cycle == last.Cycle {
				s.attempts++
			}
		}
	}
	return s
}

// sessionSummary is printed on exit.
func sessionSummary(s session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d events seen in %s: %d polls with data, %d not modified, %d failed\n",
		s.snap.Total, s.elapsed.Round(time.Second),
		s.stats.Successes-s.stats.NotModified, s.stats.NotModified, s.stats.Failures)
	fmt.Fprintf(&b, "%d requests, %d retried", s.requests, s.retries)
	if s.lastError != "" {
		fmt.Fprintf(&b, ", last error: %s", s.lastError)
		if s.lastCycle != "" {
			fmt.Fprintf(&b, " (cycle %s, %d attempts)", s.lastCycle, s.attempts)
		}
	}
	if s.dropped > 0 {
		fmt.Fprintf(&b, ", %d log events dropped", s.dropped)
	}
	if s.id != "" {
		fmt.Fprintf(&b, "\nsession %s (eventfeed events -session %s)", s.id, s.id)
	}
	return statusStyle.Render(b.String())
}
