// ABOUTME: Development server simulating the workflow service's four run contracts.
// ABOUTME: Replays scripted runs over SSE with input pauses, cancellation, and deliberate stream drops.
package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/2389-research/runwatch/watch"
	"github.com/2389-research/runwatch/wire"
)

// subscriberPollInterval is how often an SSE handler checks for new events.
const subscriberPollInterval = 25 * time.Millisecond

// Script describes one simulated run.
type Script struct {
	Steps       []Step
	FinalStatus watch.Status // completed when empty
	Output      string
	Error       string
}

// Step is one scripted action. Exactly one of Event, Input, or Drop should
// be set; Delay applies before the action.
type Step struct {
	Delay time.Duration
	Event *wire.Event
	Input *InputStep
	Drop  bool // sever all subscriber streams without a terminal event
}

// InputStep pauses the run until an answer arrives for RequestID, or until
// Timeout passes (emitting user_input_timeout).
type InputStep struct {
	RequestID      string
	NodeID         string
	NodeName       string
	VariableName   string
	PreviousOutput string
	Timeout        time.Duration // default 60s
}

// Server hosts scripted runs behind the four run endpoints.
type Server struct {
	mu     sync.RWMutex
	runs   map[string]*run
	router chi.Router
}

// run tracks one simulated run's state.
type run struct {
	id string

	mu      sync.RWMutex
	status  watch.Status
	output  string
	errText string
	events  []wire.Event
	dropGen int // bumped to force subscriber disconnects
	answers map[string]chan string

	cancelOnce sync.Once
	cancelCh   chan struct{}
}

// New creates a Server with its routes registered.
func New() *Server {
	s := &Server{runs: make(map[string]*run)}
	r := chi.NewRouter()
	r.Route("/runs/{runID}", func(r chi.Router) {
		r.Get("/events", s.handleEvents)
		r.Get("/status", s.handleStatus)
		r.Post("/cancel", s.handleCancel)
		r.Post("/input", s.handleInput)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// StartRun begins executing a script and returns the new run id.
func (s *Server) StartRun(script Script) string {
	id := ulid.Make().String()
	r := &run{
		id:       id,
		status:   watch.StatusPending,
		answers:  make(map[string]chan string),
		cancelCh: make(chan struct{}),
	}

	s.mu.Lock()
	s.runs[id] = r
	s.mu.Unlock()

	go r.execute(script)
	return id
}

func (s *Server) lookup(req *http.Request) *run {
	id := chi.URLParam(req, "runID")
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs[id]
}

// execute replays the script, then settles the terminal status and emits the
// matching terminal event.
func (r *run) execute(script Script) {
	r.setStatus(watch.StatusRunning)
	r.append(wire.Event{Type: wire.EventRunStart, Data: map[string]any{"project_path": r.id}})

	for _, step := range script.Steps {
		select {
		case <-time.After(step.Delay):
		case <-r.cancelCh:
			r.finishCancelled()
			return
		}

		switch {
		case step.Drop:
			r.mu.Lock()
			r.dropGen++
			r.mu.Unlock()

		case step.Input != nil:
			if !r.awaitInput(*step.Input) {
				r.finishCancelled()
				return
			}

		case step.Event != nil:
			r.append(*step.Event)
		}
	}

	status := script.FinalStatus
	if status == "" {
		status = watch.StatusCompleted
	}

	r.mu.Lock()
	r.status = status
	r.output = script.Output
	r.errText = script.Error
	r.mu.Unlock()

	switch status {
	case watch.StatusFailed:
		r.append(wire.Event{Type: wire.EventRunError, Data: map[string]any{"error": script.Error}})
	case watch.StatusCompleted:
		r.append(wire.Event{Type: wire.EventRunComplete, Data: map[string]any{}})
	}
}

// awaitInput emits user_input_required and blocks for the answer. Returns
// false when the run was cancelled while waiting.
func (r *run) awaitInput(in InputStep) bool {
	timeout := in.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	ch := make(chan string, 1)
	r.mu.Lock()
	r.answers[in.RequestID] = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.answers, in.RequestID)
		r.mu.Unlock()
	}()

	data := map[string]any{
		"request_id":      in.RequestID,
		"node_id":         in.NodeID,
		"node_name":       in.NodeName,
		"variable_name":   in.VariableName,
		"is_trigger":      false,
		"timeout_seconds": timeout.Seconds(),
	}
	if in.PreviousOutput != "" {
		data["previous_output"] = in.PreviousOutput
	}
	r.append(wire.Event{Type: wire.EventUserInputRequired, Data: data})

	resolved := map[string]any{"node_id": in.NodeID, "node_name": in.NodeName}
	select {
	case <-ch:
		r.append(wire.Event{Type: wire.EventUserInputReceived, Data: resolved})
		return true
	case <-time.After(timeout):
		r.append(wire.Event{Type: wire.EventUserInputTimeout, Data: resolved})
		return true
	case <-r.cancelCh:
		return false
	}
}

func (r *run) finishCancelled() {
	r.mu.Lock()
	r.status = watch.StatusCancelled
	r.mu.Unlock()
}

func (r *run) setStatus(status watch.Status) {
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()
}

// append records an event for SSE subscribers, stamping its timestamp.
func (r *run) append(evt wire.Event) {
	evt.Timestamp = float64(time.Now().UnixMilli()) / 1000
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

// handleEvents streams the run's events as SSE, ending with the reserved
// complete marker when the run settles, or returning abruptly on a scripted
// drop.
func (s *Server) handleEvents(w http.ResponseWriter, req *http.Request) {
	r := s.lookup(req)
	if r == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	r.mu.RLock()
	gen := r.dropGen
	r.mu.RUnlock()

	sent := 0
	for {
		r.mu.RLock()
		events := r.events
		status := r.status
		currentGen := r.dropGen
		r.mu.RUnlock()

		if currentGen != gen {
			// Scripted drop: sever without a terminal event.
			return
		}

		for sent < len(events) {
			raw, err := json.Marshal(events[sent])
			if err != nil {
				sent++
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", events[sent].Type, raw)
			flusher.Flush()
			sent++
		}

		if status.Terminal() && sent == len(events) {
			fmt.Fprint(w, "event: complete\ndata: {}\n\n")
			flusher.Flush()
			return
		}

		select {
		case <-req.Context().Done():
			return
		case <-time.After(subscriberPollInterval):
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, req *http.Request) {
	r := s.lookup(req)
	if r == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	r.mu.RLock()
	body := map[string]string{"status": string(r.status)}
	if r.output != "" {
		body["output"] = r.output
	}
	if r.errText != "" {
		body["error"] = r.errText
	}
	r.mu.RUnlock()

	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleCancel(w http.ResponseWriter, req *http.Request) {
	r := s.lookup(req)
	if r == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	r.cancelOnce.Do(func() { close(r.cancelCh) })
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (s *Server) handleInput(w http.ResponseWriter, req *http.Request) {
	r := s.lookup(req)
	if r == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	var body struct {
		RequestID string `json:"request_id"`
		UserInput string `json:"user_input"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	r.mu.RLock()
	ch, ok := r.answers[body.RequestID]
	r.mu.RUnlock()
	if !ok {
		http.Error(w, "no pending request with that id", http.StatusConflict)
		return
	}

	select {
	case ch <- body.UserInput:
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
	default:
		http.Error(w, "request already answered", http.StatusConflict)
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
