// ABOUTME: Scenario tests for the run controller, stream consumer, and polling reconciler.
// ABOUTME: Drives a scripted fake transport through completion, disconnect, rescue, input, and teardown flows.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/2389-research/runwatch/wire"
)

// streamItem is one scripted Next() result.
type streamItem struct {
	evt wire.Event
	err error
}

// scriptedStream is a fake EventStream fed by the test.
type scriptedStream struct {
	ch   chan streamItem
	done chan struct{}

	mu         sync.Mutex
	closed     bool
	closeCalls int
}

func newScriptedStream() *scriptedStream {
	return &scriptedStream{
		ch:   make(chan streamItem, 64),
		done: make(chan struct{}),
	}
}

func (s *scriptedStream) Next() (wire.Event, error) {
	select {
	case it, ok := <-s.ch:
		if !ok {
			return wire.Event{}, io.EOF
		}
		return it.evt, it.err
	case <-s.done:
		return wire.Event{}, errors.New("stream closed")
	}
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

func (s *scriptedStream) emit(evt wire.Event) { s.ch <- streamItem{evt: evt} }

func (s *scriptedStream) emitErr(err error) { s.ch <- streamItem{err: err} }

func (s *scriptedStream) closeCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

type submitCall struct {
	runID     string
	requestID string
	input     string
}

// fakeTransport implements Transport with scripted responses.
type fakeTransport struct {
	mu          sync.Mutex
	stream      *scriptedStream
	openErr     error
	status      StatusResult
	statusErr   error
	statusCalls int
	cancelErr   error
	cancels     []string
	submitErr   error
	submits     []submitCall
}

func (f *fakeTransport) OpenEvents(ctx context.Context, runID string) (EventStream, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

func (f *fakeTransport) Status(ctx context.Context, runID string) (StatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return StatusResult{}, f.statusErr
	}
	return f.status, nil
}

func (f *fakeTransport) Cancel(ctx context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, runID)
	return f.cancelErr
}

func (f *fakeTransport) SubmitInput(ctx context.Context, runID, requestID, input string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submits = append(f.submits, submitCall{runID, requestID, input})
	return nil
}

func (f *fakeTransport) setStatus(res StatusResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.statusErr = res, err
}

// completionRecorder captures run-complete callback invocations.
type completionRecorder struct {
	mu    sync.Mutex
	calls []RunFinished
}

func (r *completionRecorder) record(status Status, output, errText string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, RunFinished{Status: status, Output: output, Err: errText})
}

func (r *completionRecorder) snapshot() []RunFinished {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunFinished, len(r.calls))
	copy(out, r.calls)
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// quietOpts returns options whose timers will not fire during a short test.
func quietOpts(rec *completionRecorder) Options {
	opts := Options{
		PollInterval:    time.Hour,
		EarlyCheckDelay: time.Hour,
	}
	if rec != nil {
		opts.OnComplete = rec.record
	}
	return opts
}

func TestNormalCompletion(t *testing.T) {
	stream := newScriptedStream()
	ft := &fakeTransport{stream: stream, status: StatusResult{Status: StatusCompleted, Output: "ok"}}
	rec := &completionRecorder{}

	c := NewController(ft, "run-1", quietOpts(rec))
	if got := c.CurrentStatus(); got != StatusPending {
		t.Fatalf("status before attach: got %s, want pending", got)
	}

	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer c.Close()

	if got := c.CurrentStatus(); got != StatusRunning {
		t.Errorf("status after attach: got %s, want running", got)
	}

	stream.emit(wire.Event{Type: wire.EventRunStart, Payload: &wire.RunStartPayload{ProjectPath: "/work/flow"}})
	stream.emit(wire.Event{Type: wire.EventRunComplete, Payload: &wire.RunCompletePayload{Output: "ok"}})
	stream.emit(wire.Event{Type: wire.EventStreamComplete})

	waitFor(t, "completion callback", func() bool { return len(rec.snapshot()) == 1 })

	call := rec.snapshot()[0]
	if call.Status != StatusCompleted || call.Output != "ok" || call.Err != "" {
		t.Errorf("callback: got %+v, want {completed ok }", call)
	}
	if got := c.CurrentStatus(); got != StatusCompleted {
		t.Errorf("final status: got %s, want completed", got)
	}
	if _, ok := c.PendingInput(); ok {
		t.Errorf("pending input: got one, want none")
	}

	// Run-complete callback must never fire twice.
	time.Sleep(20 * time.Millisecond)
	if n := len(rec.snapshot()); n != 1 {
		t.Errorf("callback count: got %d, want 1", n)
	}
}

func TestDroppedTerminalEventPollRescues(t *testing.T) {
	stream := newScriptedStream()
	ft := &fakeTransport{stream: stream, status: StatusResult{Status: StatusCompleted, Output: "done"}}
	rec := &completionRecorder{}

	c := NewController(ft, "run-2", quietOpts(rec))
	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer c.Close()

	// Stream goes silent and errors out while the server already reports done.
	stream.emitErr(errors.New("connection reset"))

	waitFor(t, "completion callback", func() bool { return len(rec.snapshot()) == 1 })

	call := rec.snapshot()[0]
	if call.Status != StatusCompleted || call.Output != "done" {
		t.Errorf("callback: got %+v, want {completed done}", call)
	}
	for _, evt := range c.Snapshot().Events {
		if evt.Kind == wire.EventRunError {
			t.Errorf("unexpected failure line after rescued completion: %q", evt.Text)
		}
	}
}

func TestUnrecoverableDisconnect(t *testing.T) {
	stream := newScriptedStream()
	ft := &fakeTransport{stream: stream, statusErr: errors.New("dial tcp: refused")}

	c := NewController(ft, "run-3", quietOpts(nil))
	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer c.Close()

	stream.emitErr(errors.New("connection reset"))

	waitFor(t, "failed status", func() bool { return c.CurrentStatus() == StatusFailed })

	var lostLines int
	for _, evt := range c.Snapshot().Events {
		if evt.Kind == wire.EventRunError && strings.Contains(evt.Text, "Connection to server lost") {
			lostLines++
		}
	}
	if lostLines != 1 {
		t.Errorf("connection-lost lines: got %d, want exactly 1", lostLines)
	}
}

func TestDisconnectWithServerFailure(t *testing.T) {
	stream := newScriptedStream()
	ft := &fakeTransport{stream: stream, status: StatusResult{Status: StatusFailed, Error: "agent crashed"}}

	c := NewController(ft, "run-4", quietOpts(nil))
	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer c.Close()

	stream.emitErr(errors.New("connection reset"))

	waitFor(t, "failed status", func() bool { return c.CurrentStatus() == StatusFailed })

	var found bool
	for _, evt := range c.Snapshot().Events {
		if evt.Kind == wire.EventRunError && strings.Contains(evt.Text, "agent crashed") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing server-supplied error line; events: %+v", c.Snapshot().Events)
	}
}

func TestInputRoundTrip(t *testing.T) {
	stream := newScriptedStream()
	ft := &fakeTransport{stream: stream, status: StatusResult{Status: StatusRunning}}

	c := NewController(ft, "run-5", quietOpts(nil))
	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer c.Close()

	stream.emit(wire.Event{
		Type: wire.EventUserInputRequired,
		Payload: &wire.InputRequiredPayload{
			RequestID: "r1",
			NodeID:    "n1",
			NodeName:  "Approval",
		},
	})

	waitFor(t, "pending input", func() bool {
		_, ok := c.PendingInput()
		return ok
	})

	snap := c.Snapshot()
	if snap.Entities["n1"] != EntityAwaitingInput {
		t.Errorf("entity n1: got %q, want awaiting_input", snap.Entities["n1"])
	}

	if err := c.SubmitInput(context.Background(), "answer"); err != nil {
		t.Fatalf("SubmitInput: %v", err)
	}
	ft.mu.Lock()
	submits := append([]submitCall(nil), ft.submits...)
	ft.mu.Unlock()
	if len(submits) != 1 || submits[0].requestID != "r1" || submits[0].input != "answer" {
		t.Errorf("submits: got %+v, want one call for r1/answer", submits)
	}

	// Server confirms: the wire event clears the slot and the awaiting mark.
	stream.emit(wire.Event{
		Type:    wire.EventUserInputReceived,
		Payload: &wire.InputResolvedPayload{NodeID: "n1", NodeName: "Approval"},
	})

	waitFor(t, "input cleared", func() bool {
		_, ok := c.PendingInput()
		return !ok
	})
	waitFor(t, "awaiting mark cleared", func() bool {
		_, ok := c.Snapshot().Entities["n1"]
		return !ok
	})
}

func TestSubmitFailureAppendsErrorLineAndKeepsPending(t *testing.T) {
	stream := newScriptedStream()
	ft := &fakeTransport{stream: stream, submitErr: errors.New("500 internal")}

	c := NewController(ft, "run-6", quietOpts(nil))
	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer c.Close()

	stream.emit(wire.Event{
		Type:    wire.EventUserInputRequired,
		Payload: &wire.InputRequiredPayload{RequestID: "r1", NodeID: "n1"},
	})
	waitFor(t, "pending input", func() bool {
		_, ok := c.PendingInput()
		return ok
	})

	if err := c.SubmitInput(context.Background(), "answer"); err == nil {
		t.Fatalf("SubmitInput: got nil error, want transport failure")
	}

	if _, ok := c.PendingInput(); !ok {
		t.Errorf("pending input cleared on failed submit")
	}
	var found bool
	for _, evt := range c.Snapshot().Events {
		if evt.Kind == wire.EventRunError && strings.Contains(evt.Text, "Failed to submit input") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing submit-failure line in display log")
	}
}

func TestMalformedEventTolerated(t *testing.T) {
	stream := newScriptedStream()
	ft := &fakeTransport{stream: stream, status: StatusResult{Status: StatusRunning}}

	c := NewController(ft, "run-7", quietOpts(nil))
	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer c.Close()

	stream.emitErr(fmt.Errorf("%w: unexpected end of JSON input", wire.ErrBadPayload))
	stream.emit(wire.Event{Type: wire.EventToolCall, Payload: &wire.ToolCallPayload{ToolName: "search"}})

	waitFor(t, "well-formed event after malformed one", func() bool {
		for _, evt := range c.Snapshot().Events {
			if evt.Kind == wire.EventToolCall {
				return true
			}
		}
		return false
	})

	if got := c.CurrentStatus(); got != StatusRunning {
		t.Errorf("status after malformed event: got %s, want running", got)
	}
}

func TestReconcilerRescuesSilentFailure(t *testing.T) {
	stream := newScriptedStream()
	ft := &fakeTransport{stream: stream, status: StatusResult{Status: StatusFailed, Error: "boom"}}

	c := NewController(ft, "run-8", Options{
		PollInterval:    5 * time.Millisecond,
		EarlyCheckDelay: time.Hour,
	})
	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer c.Close()

	waitFor(t, "failed status from interval poll", func() bool { return c.CurrentStatus() == StatusFailed })

	var lines int
	for _, evt := range c.Snapshot().Events {
		if evt.Kind == wire.EventRunError && strings.Contains(evt.Text, "boom") {
			lines++
		}
	}
	if lines != 1 {
		t.Errorf("failure lines: got %d, want exactly 1", lines)
	}
}

func TestEarlyCheckCatchesImmediateFailure(t *testing.T) {
	stream := newScriptedStream()
	ft := &fakeTransport{stream: stream, status: StatusResult{Status: StatusFailed, Error: "bad config"}}

	c := NewController(ft, "run-9", Options{
		PollInterval:    time.Hour,
		EarlyCheckDelay: 5 * time.Millisecond,
	})
	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer c.Close()

	waitFor(t, "failed status from early check", func() bool { return c.CurrentStatus() == StatusFailed })
}

func TestEarlyCheckIgnoresCompletion(t *testing.T) {
	stream := newScriptedStream()
	ft := &fakeTransport{stream: stream, status: StatusResult{Status: StatusCompleted, Output: "ok"}}
	rec := &completionRecorder{}

	opts := Options{PollInterval: time.Hour, EarlyCheckDelay: 5 * time.Millisecond, OnComplete: rec.record}
	c := NewController(ft, "run-10", opts)
	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer c.Close()

	waitFor(t, "early check to have polled", func() bool {
		ft.mu.Lock()
		defer ft.mu.Unlock()
		return ft.statusCalls >= 1
	})
	time.Sleep(20 * time.Millisecond)

	if got := c.CurrentStatus(); got != StatusRunning {
		t.Errorf("status after early check: got %s, want running (non-failure early results are ignored)", got)
	}
	if n := len(rec.snapshot()); n != 0 {
		t.Errorf("callback count after early check: got %d, want 0", n)
	}
}

func TestPollSwallowedWhileRunning(t *testing.T) {
	stream := newScriptedStream()
	ft := &fakeTransport{stream: stream, statusErr: errors.New("transient")}

	c := NewController(ft, "run-11", Options{
		PollInterval:    5 * time.Millisecond,
		EarlyCheckDelay: time.Hour,
	})
	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer c.Close()

	waitFor(t, "several swallowed polls", func() bool {
		ft.mu.Lock()
		defer ft.mu.Unlock()
		return ft.statusCalls >= 3
	})

	if got := c.CurrentStatus(); got != StatusRunning {
		t.Errorf("status during transient poll failures: got %s, want running", got)
	}
}

func TestCancel(t *testing.T) {
	stream := newScriptedStream()
	ft := &fakeTransport{stream: stream, status: StatusResult{Status: StatusRunning}}

	c := NewController(ft, "run-12", quietOpts(nil))
	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer c.Close()

	stream.emit(wire.Event{
		Type:    wire.EventUserInputRequired,
		Payload: &wire.InputRequiredPayload{RequestID: "r1", NodeID: "n1"},
	})
	waitFor(t, "pending input", func() bool {
		_, ok := c.PendingInput()
		return ok
	})

	if err := c.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if got := c.CurrentStatus(); got != StatusCancelled {
		t.Errorf("status after cancel: got %s, want cancelled", got)
	}
	ft.mu.Lock()
	cancels := len(ft.cancels)
	ft.mu.Unlock()
	if cancels != 1 {
		t.Errorf("cancel endpoint calls: got %d, want 1", cancels)
	}
	if _, ok := c.PendingInput(); ok {
		t.Errorf("pending input survived cancel")
	}

	// A second cancel on a terminal run is a no-op.
	if err := c.Cancel(context.Background()); err != nil {
		t.Errorf("second Cancel: got %v, want nil", err)
	}
	ft.mu.Lock()
	cancels = len(ft.cancels)
	ft.mu.Unlock()
	if cancels != 1 {
		t.Errorf("cancel endpoint calls after no-op: got %d, want 1", cancels)
	}
}

func TestCancelEndpointFailureStillCancelsLocally(t *testing.T) {
	stream := newScriptedStream()
	ft := &fakeTransport{stream: stream, cancelErr: errors.New("504")}

	c := NewController(ft, "run-13", quietOpts(nil))
	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer c.Close()

	if err := c.Cancel(context.Background()); err == nil {
		t.Errorf("Cancel: got nil, want endpoint error")
	}
	if got := c.CurrentStatus(); got != StatusCancelled {
		t.Errorf("status after failed cancel call: got %s, want cancelled", got)
	}
}

func TestIdempotentTeardown(t *testing.T) {
	stream := newScriptedStream()
	ft := &fakeTransport{stream: stream, status: StatusResult{Status: StatusRunning}}

	c := NewController(ft, "run-14", quietOpts(nil))
	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	c.Close()
	c.Close() // second close is a no-op

	if stream.closeCallCount() < 1 {
		t.Errorf("stream never closed on teardown")
	}

	// Teardown must not fabricate a failure outcome.
	if got := c.CurrentStatus(); got != StatusRunning {
		t.Errorf("status after teardown: got %s, want running (no synthetic failure)", got)
	}
	for _, evt := range c.Snapshot().Events {
		if evt.Kind == wire.EventRunError {
			t.Errorf("teardown produced a failure line: %q", evt.Text)
		}
	}
}

func TestAttachTwice(t *testing.T) {
	stream := newScriptedStream()
	ft := &fakeTransport{stream: stream}

	c := NewController(ft, "run-15", quietOpts(nil))
	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer c.Close()

	if err := c.Attach(context.Background()); !errors.Is(err, ErrAlreadyAttached) {
		t.Errorf("second Attach: got %v, want ErrAlreadyAttached", err)
	}
}

func TestAttachOpenFailure(t *testing.T) {
	ft := &fakeTransport{openErr: errors.New("404 run not found")}

	c := NewController(ft, "run-16", quietOpts(nil))
	if err := c.Attach(context.Background()); err == nil {
		t.Fatalf("Attach: got nil, want open error")
	}
	c.Close()
}

func TestTerminalEventClearsEntitiesAndInput(t *testing.T) {
	stream := newScriptedStream()
	ft := &fakeTransport{stream: stream, status: StatusResult{Status: StatusRunning}}

	c := NewController(ft, "run-17", quietOpts(nil))
	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer c.Close()

	stream.emit(wire.Event{Type: wire.EventAgentStart, AgentName: "researcher"})
	stream.emit(wire.Event{Type: wire.EventToolCall, Payload: &wire.ToolCallPayload{ToolName: "search"}})
	stream.emit(wire.Event{
		Type:    wire.EventUserInputRequired,
		Payload: &wire.InputRequiredPayload{RequestID: "r1", NodeID: "n1"},
	})
	waitFor(t, "entities tracked", func() bool { return len(c.Snapshot().Entities) == 3 })

	stream.emit(wire.Event{Type: wire.EventRunError, Payload: &wire.RunErrorPayload{Error: "boom"}})

	waitFor(t, "failed status", func() bool { return c.CurrentStatus() == StatusFailed })
	waitFor(t, "entities cleared", func() bool { return len(c.Snapshot().Entities) == 0 })
	if _, ok := c.PendingInput(); ok {
		t.Errorf("pending input survived run_error")
	}
}

func TestEntityLifecycle(t *testing.T) {
	stream := newScriptedStream()
	ft := &fakeTransport{stream: stream, status: StatusResult{Status: StatusRunning}}

	c := NewController(ft, "run-18", quietOpts(nil))
	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer c.Close()

	stream.emit(wire.Event{Type: wire.EventAgentStart, AgentName: "writer"})
	waitFor(t, "agent running", func() bool { return c.Snapshot().Entities["writer"] == EntityRunning })

	stream.emit(wire.Event{Type: wire.EventToolCall, Payload: &wire.ToolCallPayload{ToolName: "search", Args: "q"}})
	waitFor(t, "tool running", func() bool { return c.Snapshot().Entities["search"] == EntityRunning })

	stream.emit(wire.Event{Type: wire.EventToolResult, Payload: &wire.ToolResultPayload{ToolName: "search", Result: "ok"}})
	waitFor(t, "tool completed", func() bool { return c.Snapshot().Entities["search"] == EntityCompleted })

	stream.emit(wire.Event{Type: wire.EventAgentEnd, AgentName: "writer"})
	waitFor(t, "agent completed", func() bool { return c.Snapshot().Entities["writer"] == EntityCompleted })
}
