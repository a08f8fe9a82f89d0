package fetch

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// Response headers read by the Tracker.
const (
	HeaderETag         = "ETag"
	HeaderPollInterval = "X-Poll-Interval"
)

// DefaultPollInterval is the interval assumed before the server advises one.
const DefaultPollInterval = 10

// Tracker holds the conditional-fetch state shared across poll cycles:
// the last ETag and the server-advised poll interval in seconds.
type Tracker struct {
	mu           sync.RWMutex
	token        string
	pollInterval int
}

// NewTracker creates a Tracker with no token and the given starting interval.
// A non-positive interval falls back to DefaultPollInterval.
func NewTracker(pollInterval int) *Tracker {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Tracker{pollInterval: pollInterval}
}

// Token returns the last ETag, or "" when none is held.
func (t *Tracker) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

// PollInterval returns the current poll interval in seconds.
func (t *Tracker) PollInterval() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pollInterval
}

// Update applies both headers. Malformed or blank values are ignored.
func (t *Tracker) Update(h http.Header) {
	t.UpdatePollInterval(h)
	t.UpdateToken(h)
}

// UpdatePollInterval replaces the interval when X-Poll-Interval is an integer.
// Reports whether the interval changed.
func (t *Tracker) UpdatePollInterval(h http.Header) bool {
	raw := strings.TrimSpace(h.Get(HeaderPollInterval))
	if raw == "" {
		return false
	}
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	changed := t.pollInterval != secs
	t.pollInterval = secs
	return changed
}

// UpdateToken replaces the token when ETag is present and non-blank.
func (t *Tracker) UpdateToken(h http.Header) {
	etag := h.Get(HeaderETag)
	if strings.TrimSpace(etag) == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = etag
}

// Reset forgets the token so the next fetch is unconditional.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = ""
}
