package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/abelbrown/eventfeed/internal/event"
	"github.com/abelbrown/eventfeed/internal/otel"
)

// Result is the outcome of one fetch cycle.
type Result struct {
	Events       []event.Event // tracked events, in response order
	PollInterval int           // seconds, as advised by the server or the previous value
	NotModified  bool          // server answered 304
}

// Repository runs one conditional fetch per call and keeps the Tracker
// current. One Repository serves the whole process; it is safe for
// concurrent use, though normally only one fetch is in flight.
type Repository struct {
	source  Source
	tracker *Tracker
	log     otel.Scope
}

// NewRepository creates a Repository. A nil tracker gets a default one and
// a nil logger disables event emission.
func NewRepository(src Source, tracker *Tracker, l *otel.Logger) *Repository {
	if tracker == nil {
		tracker = NewTracker(DefaultPollInterval)
	}
	r := &Repository{source: src, tracker: tracker}
	if l != nil {
		r.log = l.Scope("fetch")
	}
	return r
}

// FetchNewEvents performs one request and returns the tracked events it
// carried. The poll interval header is applied whatever the status; the
// ETag is only taken from a 2xx response with a body.
func (r *Repository) FetchNewEvents(ctx context.Context) (Result, error) {
	start := time.Now()
	token := r.tracker.Token()

	resp, err := r.source.Fetch(ctx, token)
	if err != nil {
		return Result{}, err
	}

	r.tracker.UpdatePollInterval(resp.Header)
	interval := r.tracker.PollInterval()

	r.log.Emit(otel.Event{
		Kind:     otel.KindRequest,
		Level:    otel.LevelDebug,
		Status:   resp.StatusCode,
		Interval: interval,
		Dur:      time.Since(start),
		Extra:    map[string]any{"conditional": token != ""},
	})

	if resp.StatusCode == http.StatusNotModified {
		return Result{PollInterval: interval, NotModified: true}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &ProtocolError{
			StatusCode:         resp.StatusCode,
			Message:            statusMessage(resp),
			RateLimitRemaining: resp.Header.Get("X-RateLimit-Remaining"),
			RetryAfter:         resp.Header.Get("Retry-After"),
		}
	}

	raws, err := event.Decode(resp.Body)
	if err != nil {
		return Result{}, &ProtocolError{
			StatusCode: resp.StatusCode,
			Message:    "unparseable body",
			Err:        err,
		}
	}
	events := event.Filter(raws)

	r.tracker.UpdateToken(resp.Header)

	return Result{Events: events, PollInterval: interval}, nil
}

// PollInterval returns the last known poll interval in seconds.
func (r *Repository) PollInterval() int {
	return r.tracker.PollInterval()
}

// Token returns the ETag the next request will send.
func (r *Repository) Token() string {
	return r.tracker.Token()
}

// ResetToken drops the held ETag so the next fetch returns a full page.
func (r *Repository) ResetToken() {
	r.tracker.Reset()
}

// statusMessage extracts a short message from an error response.
// GitHub error bodies are JSON with a "message" field; anything else is
// reported as the status text.
func statusMessage(resp *Response) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body, &body); err == nil && body.Message != "" {
		return body.Message
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return "unexpected status"
}
