// Package notes delivers transcripts to the remote note-taking service.
package notes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ErrUnexpectedStatus is matched by every *StatusError.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// StatusError reports a non-success HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", ErrUnexpectedStatus, e.Code, http.StatusText(e.Code))
}

// Is lets errors.Is(err, ErrUnexpectedStatus) match.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// NoteRequest is the body of POST /notes.
type NoteRequest struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// NewNoteRequest stamps text with now in epoch milliseconds.
func NewNoteRequest(text string, now time.Time) NoteRequest {
	return NoteRequest{
		Text:      text,
		Timestamp: now.UnixMilli(),
	}
}

// Client posts notes to <baseURL>/notes. One attempt per call, no retries.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock replaces time.Now for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse notes base URL: %w", err)
	}

	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("notes base URL must be http or https, got %q", baseURL)
	}

	c := &Client{
		endpoint:   base.JoinPath("notes").String(),
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Endpoint returns the URL notes are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// SendNote posts req and returns an error for transport faults and non-2xx
// statuses. The response body is ignored.
func (c *Client) SendNote(ctx context.Context, req NoteRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode note: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build note request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to post note: %w", err)
	}
	defer resp.Body.Close()

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}

	return nil
}

// Send delivers text stamped with the current time and reports success.
// Error detail is logged, not returned.
func (c *Client) Send(ctx context.Context, text string) bool {
	req := NewNoteRequest(text, c.now())

	if err := c.SendNote(ctx, req); err != nil {
		c.logger.Warn("Note delivery failed", "endpoint", c.endpoint, "error", err)
		return false
	}

	c.logger.Info("Note delivered", "endpoint", c.endpoint, "chars", len(text))

	return true
}
