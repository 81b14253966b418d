// ABOUTME: HTTP client for the workflow service's four run contracts.
// ABOUTME: Opens the SSE event stream and performs status, cancel, and submit-input calls.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/2389-research/runwatch/watch"
	"github.com/2389-research/runwatch/wire"
)

// Compile-time check that *Client implements watch.Transport.
var _ watch.Transport = (*Client)(nil)

// defaultCallTimeout bounds the non-streaming calls. The stream itself has
// no client-side deadline; its lifetime is the run's.
const defaultCallTimeout = 10 * time.Second

// Client talks to one workflow service instance.
type Client struct {
	baseURL string
	// stream has no timeout; calls is deadline-bounded.
	stream *http.Client
	calls  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithCallTimeout overrides the timeout for status/cancel/submit calls.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.calls = &http.Client{Timeout: d}
	}
}

// WithHTTPClient replaces both underlying HTTP clients, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.stream = hc
		c.calls = hc
	}
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		stream:  &http.Client{},
		calls:   &http.Client{Timeout: defaultCallTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// eventStream adapts an SSE response body to watch.EventStream.
type eventStream struct {
	body    io.ReadCloser
	scanner *sseScanner

	closeOnce sync.Once
	closeErr  error
}

// Next returns the next decoded wire event. The reserved "complete" frame is
// surfaced as wire.EventStreamComplete; a frame whose payload fails to decode
// returns an error wrapping wire.ErrBadPayload and leaves the stream open.
func (s *eventStream) Next() (wire.Event, error) {
	frame, err := s.scanner.next()
	if err != nil {
		return wire.Event{}, err
	}
	if frame.event == string(wire.EventStreamComplete) {
		return wire.Event{Type: wire.EventStreamComplete}, nil
	}
	return wire.Decode([]byte(frame.data))
}

// Close releases the underlying connection. Idempotent.
func (s *eventStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// OpenEvents opens the push stream for a run id.
func (c *Client) OpenEvents(ctx context.Context, runID string) (watch.EventStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.runURL(runID, "events"), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open events for run %s: %w", runID, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("open events for run %s: %s", runID, httpError(resp))
	}

	return &eventStream{body: resp.Body, scanner: newSSEScanner(resp.Body)}, nil
}

// statusResponse is the pull-status endpoint's wire shape.
type statusResponse struct {
	Status string `json:"status"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Status performs one pull-status call for a run id.
func (c *Client) Status(ctx context.Context, runID string) (watch.StatusResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.runURL(runID, "status"), nil)
	if err != nil {
		return watch.StatusResult{}, err
	}

	resp, err := c.calls.Do(req)
	if err != nil {
		return watch.StatusResult{}, fmt.Errorf("status for run %s: %w", runID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return watch.StatusResult{}, fmt.Errorf("status for run %s: %s", runID, httpError(resp))
	}

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return watch.StatusResult{}, fmt.Errorf("decode status for run %s: %w", runID, err)
	}
	return watch.StatusResult{
		Status: watch.Status(sr.Status),
		Output: sr.Output,
		Error:  sr.Error,
	}, nil
}

// Cancel requests a best-effort stop of the run.
func (c *Client) Cancel(ctx context.Context, runID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.runURL(runID, "cancel"), nil)
	if err != nil {
		return err
	}

	resp, err := c.calls.Do(req)
	if err != nil {
		return fmt.Errorf("cancel run %s: %w", runID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("cancel run %s: %s", runID, httpError(resp))
	}
	return nil
}

// submitRequest is the submit-input endpoint's wire shape.
type submitRequest struct {
	RequestID string `json:"request_id"`
	UserInput string `json:"user_input"`
}

// SubmitInput answers a pending user-input request.
func (c *Client) SubmitInput(ctx context.Context, runID, requestID, input string) error {
	body, err := json.Marshal(submitRequest{RequestID: requestID, UserInput: input})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.runURL(runID, "input"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.calls.Do(req)
	if err != nil {
		return fmt.Errorf("submit input for run %s: %w", runID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("submit input for run %s: %s", runID, httpError(resp))
	}
	return nil
}

func (c *Client) runURL(runID, suffix string) string {
	return fmt.Sprintf("%s/runs/%s/%s", c.baseURL, url.PathEscape(runID), suffix)
}

// httpError summarizes a non-2xx response, including a short body excerpt
// when the server sent one.
func httpError(resp *http.Response) string {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	text := strings.TrimSpace(string(excerpt))
	if text == "" {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, text)
}
