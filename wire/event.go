// ABOUTME: Wire-level event types pushed by the workflow service during a run.
// ABOUTME: Defines the event envelope, per-type payload structs, and a validated decode step.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType identifies the kind of wire event pushed during a run.
type EventType string

const (
	EventRunStart          EventType = "run_start"
	EventRunComplete       EventType = "run_complete"
	EventRunError          EventType = "run_error"
	EventAgentStart        EventType = "agent_start"
	EventAgentEnd          EventType = "agent_end"
	EventAgentOutput       EventType = "agent_output"
	EventToolCall          EventType = "tool_call"
	EventToolResult        EventType = "tool_result"
	EventThinking          EventType = "thinking"
	EventUserInputRequired EventType = "user_input_required"
	EventUserInputReceived EventType = "user_input_received"
	EventUserInputTimeout  EventType = "user_input_timeout"

	// EventStreamComplete is the reserved zero-payload signal marking normal
	// stream end. It never carries an envelope.
	EventStreamComplete EventType = "complete"

	// EventInfo is a synthetic, locally generated type used for display-log
	// entries that have no wire counterpart (run adoption, cancellation).
	EventInfo EventType = "info"
)

// ErrBadPayload reports a wire event whose payload could not be decoded.
// The subscription survives it: callers drop the single event and continue.
var ErrBadPayload = errors.New("wire: malformed event payload")

// Event is the envelope for a single wire event. Data holds the raw payload
// map; Payload holds the decoded per-type struct when Decode validated one.
type Event struct {
	Type      EventType      `json:"type"`
	AgentName string         `json:"agent_name,omitempty"`
	Timestamp float64        `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`

	Payload any `json:"-"`
}

// RunStartPayload accompanies run_start events.
type RunStartPayload struct {
	ProjectPath string `json:"project_path"`
}

// RunCompletePayload accompanies run_complete events. Final output text is
// authoritative only from the pull-status endpoint; this field is advisory.
type RunCompletePayload struct {
	Output string `json:"output"`
}

// RunErrorPayload accompanies run_error events.
type RunErrorPayload struct {
	Error string `json:"error"`
}

// AgentOutputPayload accompanies agent_output events.
type AgentOutputPayload struct {
	Output string `json:"output"`
}

// ThinkingPayload accompanies thinking events.
type ThinkingPayload struct {
	Content string `json:"content"`
}

// ToolCallPayload accompanies tool_call events.
type ToolCallPayload struct {
	ToolName string `json:"tool_name"`
	Args     string `json:"args"`
}

// ToolResultPayload accompanies tool_result events.
type ToolResultPayload struct {
	ToolName string `json:"tool_name"`
	Result   string `json:"result"`
}

// InputRequiredPayload accompanies user_input_required events and carries
// everything needed to raise a pending input request.
type InputRequiredPayload struct {
	RequestID      string  `json:"request_id"`
	NodeID         string  `json:"node_id"`
	NodeName       string  `json:"node_name"`
	VariableName   string  `json:"variable_name"`
	IsTrigger      bool    `json:"is_trigger"`
	PreviousOutput *string `json:"previous_output"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

// InputResolvedPayload accompanies user_input_received and user_input_timeout
// events, identifying the node whose pending request was cleared.
type InputResolvedPayload struct {
	NodeID   string `json:"node_id"`
	NodeName string `json:"node_name"`
}

// Decode parses a raw wire message into an Event with a validated, typed
// payload. It fails closed: any JSON error or a structurally invalid payload
// yields ErrBadPayload, and the caller drops the single event. Unknown event
// types decode successfully with a nil Payload so they can still be displayed.
func Decode(raw []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if evt.Type == "" {
		return Event{}, fmt.Errorf("%w: missing type", ErrBadPayload)
	}

	payload, err := decodePayload(evt.Type, evt.Data)
	if err != nil {
		return Event{}, err
	}
	evt.Payload = payload
	return evt, nil
}

// decodePayload maps the untyped data map onto the per-type payload struct.
// Round-tripping through json keeps field coercion rules identical to a
// direct decode of the original message.
func decodePayload(typ EventType, data map[string]any) (any, error) {
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	unmarshal := func(dst any) (any, error) {
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadPayload, typ, err)
		}
		return dst, nil
	}

	switch typ {
	case EventRunStart:
		p := &RunStartPayload{}
		return unmarshal(p)
	case EventRunComplete:
		p := &RunCompletePayload{}
		return unmarshal(p)
	case EventRunError:
		p := &RunErrorPayload{}
		return unmarshal(p)
	case EventAgentOutput:
		p := &AgentOutputPayload{}
		return unmarshal(p)
	case EventThinking:
		p := &ThinkingPayload{}
		return unmarshal(p)
	case EventToolCall:
		p := &ToolCallPayload{}
		return unmarshal(p)
	case EventToolResult:
		p := &ToolResultPayload{}
		return unmarshal(p)
	case EventUserInputRequired:
		p := &InputRequiredPayload{}
		if _, err := unmarshal(p); err != nil {
			return nil, err
		}
		if p.RequestID == "" {
			return nil, fmt.Errorf("%w: user_input_required without request_id", ErrBadPayload)
		}
		return p, nil
	case EventUserInputReceived, EventUserInputTimeout:
		p := &InputResolvedPayload{}
		return unmarshal(p)
	case EventAgentStart, EventAgentEnd, EventStreamComplete, EventInfo:
		return nil, nil
	default:
		// Unknown types are passed through; the formatter falls back to the
		// serialized payload.
		return nil, nil
	}
}
