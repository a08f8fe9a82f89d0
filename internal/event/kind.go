package event

// Kind is the closed set of event types the feed keeps.
type Kind int

const (
	KindUntracked Kind = iota
	KindPush
	KindPullRequest
	KindIssues
	KindFork
	KindWatch
	KindCreate
)

// kindRaw binds each tracked Kind to its canonical GitHub type string.
var kindRaw = map[Kind]string{
	KindPush:        "PushEvent",
	KindPullRequest: "PullRequestEvent",
	KindIssues:      "IssuesEvent",
	KindFork:        "ForkEvent",
	KindWatch:       "WatchEvent",
	KindCreate:      "CreateEvent",
}

var rawKind = func() map[string]Kind {
	m := make(map[string]Kind, len(kindRaw))
	for k, raw := range kindRaw {
		m[raw] = k
	}
	return m
}()

// Kinds returns the tracked kinds in declaration order.
func Kinds() []Kind {
	return []Kind{KindPush, KindPullRequest, KindIssues, KindFork, KindWatch, KindCreate}
}

// Raw returns the canonical type string, or "" for KindUntracked.
func (k Kind) Raw() string {
	return kindRaw[k]
}

// String returns a short name used in flags and logs.
func (k Kind) String() string {
	switch k {
	case KindPush:
		return "push"
	case KindPullRequest:
		return "pr"
	case KindIssues:
		return "issues"
	case KindFork:
		return "fork"
	case KindWatch:
		return "watch"
	case KindCreate:
		return "create"
	default:
		return "untracked"
	}
}

// ParseKind maps a short name (as returned by String) back to a Kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds() {
		if k.String() == s {
			return k, true
		}
	}
	return KindUntracked, false
}

// Classify maps a raw type string to its Kind. Unknown types are KindUntracked.
func Classify(raw string) Kind {
	return rawKind[raw]
}

// IsTracked reports whether raw is one of the tracked type strings.
func IsTracked(raw string) bool {
	return Classify(raw) != KindUntracked
}
