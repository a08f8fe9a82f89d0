package event

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/go-github/v58/github"
)

// Raw is one record of the /events response as it arrives on the wire.
type Raw struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Actor     rawActor        `json:"actor"`
	Repo      rawRepo         `json:"repo"`
	Payload   json.RawMessage `json:"payload"`
	Public    bool            `json:"public"`
	CreatedAt string          `json:"created_at"`
}

type rawActor struct {
	ID           int64  `json:"id"`
	Login        string `json:"login"`
	DisplayLogin string `json:"display_login"`
	AvatarURL    string `json:"avatar_url"`
}

type rawRepo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Decode parses a JSON array of event records.
// An empty body decodes to an empty list.
func Decode(data []byte) ([]Raw, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []Raw{}, nil
	}
	var raws []Raw
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	if raws == nil {
		raws = []Raw{}
	}
	return raws, nil
}

// Filter keeps the tracked records and converts them, preserving order.
// Records without an ID cannot be merged and are dropped as well.
func Filter(raws []Raw) []Event {
	events := make([]Event, 0, len(raws))
	for _, r := range raws {
		if r.ID == "" || !IsTracked(r.Type) {
			continue
		}
		events = append(events, r.Event())
	}
	return events
}

// Event converts the wire record to an Event. A payload that fails to parse
// is dropped rather than failing the whole record.
func (r Raw) Event() Event {
	return Event{
		ID:   r.ID,
		Type: r.Type,
		Actor: Actor{
			ID:           r.Actor.ID,
			Login:        r.Actor.Login,
			DisplayLogin: r.Actor.DisplayLogin,
			AvatarURL:    r.Actor.AvatarURL,
		},
		Repo: Repo{
			ID:   r.Repo.ID,
			Name: r.Repo.Name,
			URL:  r.Repo.URL,
		},
		Payload:   parsePayload(r.Type, r.Payload),
		Public:    r.Public,
		CreatedAt: r.CreatedAt,
	}
}

// parsePayload decodes the type-specific payload with go-github's typed
// event structs and flattens the fields the feed uses.
func parsePayload(typ string, raw json.RawMessage) *Payload {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	ghEvent := &github.Event{Type: github.String(typ), RawPayload: &raw}
	parsed, err := ghEvent.ParsePayload()
	if err != nil || parsed == nil {
		return nil
	}

	switch p := parsed.(type) {
	case *github.PushEvent:
		out := &Payload{
			Ref:    p.GetRef(),
			PushID: p.GetPushID(),
			Head:   p.GetHead(),
			Size:   p.GetSize(),
		}
		for _, c := range p.Commits {
			out.Commits = append(out.Commits, Commit{SHA: c.GetSHA(), Message: c.GetMessage()})
		}
		if out.Size == 0 {
			out.Size = len(out.Commits)
		}
		return out
	case *github.PullRequestEvent:
		return &Payload{
			Action: p.GetAction(),
			Number: p.GetNumber(),
			Title:  p.GetPullRequest().GetTitle(),
		}
	case *github.IssuesEvent:
		return &Payload{
			Action: p.GetAction(),
			Number: p.GetIssue().GetNumber(),
			Title:  p.GetIssue().GetTitle(),
		}
	case *github.ForkEvent:
		return &Payload{Forkee: p.GetForkee().GetFullName()}
	case *github.WatchEvent:
		return &Payload{Action: p.GetAction()}
	case *github.CreateEvent:
		return &Payload{Ref: p.GetRef(), RefType: p.GetRefType()}
	default:
		return nil
	}
}
