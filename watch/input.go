// ABOUTME: Single-slot coordinator for the synchronous "user input required" handshake.
// ABOUTME: Tracks at most one pending request per run with a single-flight submission guard.
package watch

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Request is one outstanding "user input required" pause, built from a
// user_input_required wire event. At most one is pending per run.
type Request struct {
	RequestID      string
	NodeID         string
	NodeName       string
	VariableName   string
	IsTrigger      bool
	PreviousOutput *string
	TimeoutSeconds float64
}

var (
	// ErrNoPendingRequest means Submit was called with no request outstanding.
	ErrNoPendingRequest = errors.New("watch: no pending input request")
	// ErrEmptyInput means the draft answer was empty or whitespace.
	ErrEmptyInput = errors.New("watch: empty input")
	// ErrSubmitInFlight means a submission for the pending request has not
	// returned yet.
	ErrSubmitInFlight = errors.New("watch: input submission already in flight")
)

// SubmitFunc sends an answer for a request id to the external submit-input
// endpoint.
type SubmitFunc func(ctx context.Context, requestID, input string) error

// InputCoordinator holds the at-most-one pending input request and runs the
// server-confirmed submission flow. Clearing the slot after a successful
// submit is left to the subsequent user_input_received wire event; the
// coordinator never assumes the server accepted an answer.
type InputCoordinator struct {
	mu       sync.Mutex
	pending  *Request
	inFlight bool
	logf     func(format string, args ...any)
}

// NewInputCoordinator returns a coordinator. logf receives diagnostics for
// protocol violations; nil disables it.
func NewInputCoordinator(logf func(format string, args ...any)) *InputCoordinator {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &InputCoordinator{logf: logf}
}

// Require stores a new pending request. The protocol promises the server will
// not raise a second request before the first resolves; if it does anyway,
// last-request-wins and the replacement is reported.
func (c *InputCoordinator) Require(req Request) (replaced bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		c.logf("input: request %s raised while %s still pending; replacing", req.RequestID, c.pending.RequestID)
		replaced = true
	}
	r := req
	c.pending = &r
	c.inFlight = false
	return replaced
}

// Pending returns a copy of the pending request, if any.
func (c *InputCoordinator) Pending() (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Request{}, false
	}
	return *c.pending, true
}

// Submit sends the draft answer for the pending request. It is a guarded
// no-op (sentinel error) when nothing is pending, the draft is blank, or a
// submission is already in flight. On transport failure the request stays
// pending so the user may retry.
func (c *InputCoordinator) Submit(ctx context.Context, draft string, submit SubmitFunc) error {
	answer := strings.TrimSpace(draft)
	if answer == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return ErrNoPendingRequest
	}
	if c.inFlight {
		c.mu.Unlock()
		return ErrSubmitInFlight
	}
	c.inFlight = true
	requestID := c.pending.RequestID
	c.mu.Unlock()

	err := submit(ctx, requestID, answer)

	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()

	if err != nil {
		return err
	}
	// Success: the pending slot is cleared by the user_input_received event.
	return nil
}

// Complete clears the pending request and any in-flight marker
// unconditionally. Called on user_input_received, user_input_timeout, and
// whenever the run ends while input is pending. Returns the cleared request.
func (c *InputCoordinator) Complete() (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return Request{}, false
	}
	req := *c.pending
	c.pending = nil
	c.inFlight = false
	return req, true
}
