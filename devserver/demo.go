// ABOUTME: Canned demonstration script exercising every run phase.
// ABOUTME: Used by the demo CLI command to showcase the viewer without a real workflow service.
package devserver

import (
	"time"

	"github.com/2389-research/runwatch/wire"
)

// DemoScript returns a run that walks through agent output, thinking, tool
// use, and an input pause before completing. Timing is paced for a human
// watching the viewer.
func DemoScript() Script {
	evt := func(typ wire.EventType, agent string, data map[string]any) *wire.Event {
		return &wire.Event{Type: typ, AgentName: agent, Data: data}
	}

	return Script{
		Steps: []Step{
			{Delay: 400 * time.Millisecond, Event: evt(wire.EventThinking, "planner",
				map[string]any{"content": "Breaking the request into research and drafting."})},
			{Delay: 600 * time.Millisecond, Event: evt(wire.EventAgentOutput, "planner",
				map[string]any{"output": "Plan: research the topic, then draft a summary."})},
			{Delay: 500 * time.Millisecond, Event: evt(wire.EventToolCall, "researcher",
				map[string]any{"tool_name": "web_search", "tool_input": map[string]any{"query": "recent findings"}})},
			{Delay: 900 * time.Millisecond, Event: evt(wire.EventToolResult, "researcher",
				map[string]any{"tool_name": "web_search"})},
			{Delay: 500 * time.Millisecond, Event: evt(wire.EventAgentOutput, "researcher",
				map[string]any{"output": "Collected three relevant sources."})},
			{Delay: 400 * time.Millisecond, Input: &InputStep{
				RequestID:      "demo-approval",
				NodeID:         "approval-gate",
				NodeName:       "Draft Approval",
				VariableName:   "approval",
				PreviousOutput: "Collected three relevant sources.",
				Timeout:        2 * time.Minute,
			}},
			{Delay: 400 * time.Millisecond, Event: evt(wire.EventAgentOutput, "writer",
				map[string]any{"output": "Drafting the summary from the approved sources."})},
			{Delay: 800 * time.Millisecond, Event: evt(wire.EventToolCall, "writer",
				map[string]any{"tool_name": "save_document"})},
			{Delay: 400 * time.Millisecond, Event: evt(wire.EventToolResult, "writer",
				map[string]any{"tool_name": "save_document"})},
		},
		Output: "Summary drafted and saved.",
	}
}
