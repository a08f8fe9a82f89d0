// Package fetch retrieves GitHub public events with conditional requests.
//
// HTTPSource performs one GET per call. Repository layers the ETag /
// X-Poll-Interval bookkeeping and event filtering on top of it.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Request header values sent on every call.
const (
	DefaultBaseURL   = "https://api.github.com"
	DefaultUserAgent = "eventfeed/0.1 (https://github.com/abelbrown/eventfeed)"
	acceptHeader     = "application/vnd.github.v3+json"
	eventsPath       = "/events"
	maxBodyBytes     = 10 << 20
)

// Response is the raw outcome of one request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Source performs one request for events. A non-empty token is sent as
// If-None-Match. Only transport failures are errors; every status code the
// server answers with is returned as a Response.
type Source interface {
	Fetch(ctx context.Context, token string) (*Response, error)
}

// HTTPClient is the subset of *http.Client used by HTTPSource.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSource is the Source backed by the GitHub REST API.
type HTTPSource struct {
	baseURL   string
	secret    string
	userAgent string
	client    HTTPClient
	limiter   *rate.Limiter
}

// SourceOption configures an HTTPSource.
type SourceOption func(*HTTPSource)

// WithBaseURL overrides the API root (tests point this at httptest).
func WithBaseURL(u string) SourceOption {
	return func(s *HTTPSource) {
		if u != "" {
			s.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithToken sets the secret sent as "Authorization: token <secret>".
func WithToken(secret string) SourceOption {
	return func(s *HTTPSource) { s.secret = strings.TrimSpace(secret) }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) SourceOption {
	return func(s *HTTPSource) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c HTTPClient) SourceOption {
	return func(s *HTTPSource) { s.client = c }
}

// WithRateLimit spaces requests client-side. rps <= 0 disables limiting.
// A refresh storm from the UI then cannot outrun the server's poll hint.
func WithRateLimit(rps float64, burst int) SourceOption {
	return func(s *HTTPSource) {
		if rps <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewHTTPSource creates an HTTPSource with a 30s client timeout.
func NewHTTPSource(timeout time.Duration, opts ...SourceOption) *HTTPSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &HTTPSource{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch performs GET {base}/events.
func (s *HTTPSource) Fetch(ctx context.Context, token string) (*Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Op: "rate limiter", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+eventsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", s.userAgent)
	if s.secret != "" {
		req.Header.Set("Authorization", "token "+s.secret)
	}
	if token != "" {
		req.Header.Set("If-None-Match", token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Op: "read body", Err: err}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
