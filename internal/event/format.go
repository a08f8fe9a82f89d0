package event

import (
	"fmt"
	"strings"
	"time"
)

const webBase = "https://github.com"

// Label returns the type without its "Event" suffix ("PushEvent" -> "Push").
func Label(raw string) string {
	return strings.TrimSuffix(raw, "Event")
}

// BranchName strips the "refs/heads/" prefix from a ref.
func BranchName(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}

// CommitCount formats n with the right plural ("1 commit", "5 commits").
func CommitCount(n int) string {
	if n == 1 {
		return "1 commit"
	}
	return fmt.Sprintf("%d commits", n)
}

// RepoURL returns the web URL for an "owner/repo" name.
func RepoURL(name string) string {
	return webBase + "/" + name
}

// ProfileURL returns the web URL for a user login.
func ProfileURL(login string) string {
	return webBase + "/" + login
}

// RelativeTime formats an ISO-8601 timestamp relative to now ("3h ago").
// Unparseable input is returned unchanged; future times count as 0s.
func RelativeTime(iso string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return iso
	}
	secs := int64(now.Sub(t) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return FormatDuration(secs) + " ago"
}

// FormatDuration renders seconds with the largest whole unit: s, m, h or d.
func FormatDuration(seconds int64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 60*60:
		return fmt.Sprintf("%dm", seconds/60)
	case seconds < 60*60*24:
		return fmt.Sprintf("%dh", seconds/3600)
	default:
		return fmt.Sprintf("%dd", seconds/86400)
	}
}

// Summary is a one-line description of what happened.
func (e Event) Summary() string {
	p := e.Payload
	if p == nil {
		return Label(e.Type) + " " + e.Repo.Name
	}

	switch e.Kind() {
	case KindPush:
		return fmt.Sprintf("pushed %s to %s", CommitCount(p.Size), BranchName(p.Ref))
	case KindPullRequest:
		return fmt.Sprintf("%s pull request #%d %s", p.Action, p.Number, p.Title)
	case KindIssues:
		return fmt.Sprintf("%s issue #%d %s", p.Action, p.Number, p.Title)
	case KindFork:
		return "forked to " + p.Forkee
	case KindWatch:
		return "starred " + e.Repo.Name
	case KindCreate:
		if p.Ref == "" {
			return "created " + p.RefType
		}
		return fmt.Sprintf("created %s %s", p.RefType, p.Ref)
	default:
		return Label(e.Type)
	}
}
