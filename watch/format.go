// ABOUTME: Pure formatting of wire events into display-log text and color categories.
// ABOUTME: Stateless; unknown event types fall back to the JSON-serialized payload.
package watch

import (
	"encoding/json"
	"fmt"

	"github.com/2389-research/runwatch/wire"
)

// Category buckets event types for rendering. The rendering layer maps each
// category to a color; the engine never deals in colors itself.
type Category string

const (
	CategoryLifecycle Category = "lifecycle"
	CategoryAgent     Category = "agent"
	CategoryTool      Category = "tool"
	CategoryThinking  Category = "thinking"
	CategoryError     Category = "error"
	CategoryInput     Category = "input"
	CategoryInfo      Category = "info"
)

// FormatEvent maps one wire event to its display-log line.
func FormatEvent(evt wire.Event) string {
	switch evt.Type {
	case wire.EventRunStart:
		if p, ok := evt.Payload.(*wire.RunStartPayload); ok && p.ProjectPath != "" {
			return fmt.Sprintf("Run started: %s", p.ProjectPath)
		}
		return "Run started"

	case wire.EventRunComplete:
		return "Run completed"

	case wire.EventRunError:
		msg := "Unknown error"
		if p, ok := evt.Payload.(*wire.RunErrorPayload); ok && p.Error != "" {
			msg = p.Error
		}
		return fmt.Sprintf("Error: %s", msg)

	case wire.EventAgentStart:
		return fmt.Sprintf("Agent started: %s", evt.AgentName)

	case wire.EventAgentEnd:
		return fmt.Sprintf("Agent finished: %s", evt.AgentName)

	case wire.EventAgentOutput:
		if p, ok := evt.Payload.(*wire.AgentOutputPayload); ok {
			return p.Output
		}
		return ""

	case wire.EventThinking:
		if p, ok := evt.Payload.(*wire.ThinkingPayload); ok && p.Content != "" {
			return fmt.Sprintf("Thinking: %s", p.Content)
		}
		return "Thinking..."

	case wire.EventToolCall:
		if p, ok := evt.Payload.(*wire.ToolCallPayload); ok {
			if p.Args != "" {
				return fmt.Sprintf("Calling %s(%s)", p.ToolName, p.Args)
			}
			return fmt.Sprintf("Calling tool: %s", p.ToolName)
		}
		return "Calling tool"

	case wire.EventToolResult:
		if p, ok := evt.Payload.(*wire.ToolResultPayload); ok {
			if p.Result != "" {
				return fmt.Sprintf("Tool %s returned: %s", p.ToolName, p.Result)
			}
			return fmt.Sprintf("Tool finished: %s", p.ToolName)
		}
		return "Tool finished"

	case wire.EventUserInputRequired:
		if p, ok := evt.Payload.(*wire.InputRequiredPayload); ok {
			return fmt.Sprintf("[?] Input required: %s", p.NodeName)
		}
		return "[?] Input required"

	case wire.EventUserInputReceived:
		if p, ok := evt.Payload.(*wire.InputResolvedPayload); ok && p.NodeName != "" {
			return fmt.Sprintf("[>] Input received: %s", p.NodeName)
		}
		return "[>] Input received"

	case wire.EventUserInputTimeout:
		if p, ok := evt.Payload.(*wire.InputResolvedPayload); ok && p.NodeName != "" {
			return fmt.Sprintf("[!] Input timed out: %s", p.NodeName)
		}
		return "[!] Input timed out"

	default:
		raw, err := json.Marshal(evt.Data)
		if err != nil {
			return string(evt.Type)
		}
		return fmt.Sprintf("%s: %s", evt.Type, raw)
	}
}

// CategoryFor maps a display-event kind to its rendering category.
func CategoryFor(typ wire.EventType) Category {
	switch typ {
	case wire.EventRunStart, wire.EventRunComplete:
		return CategoryLifecycle
	case wire.EventAgentStart, wire.EventAgentEnd, wire.EventAgentOutput:
		return CategoryAgent
	case wire.EventToolCall, wire.EventToolResult:
		return CategoryTool
	case wire.EventThinking:
		return CategoryThinking
	case wire.EventRunError:
		return CategoryError
	case wire.EventUserInputRequired, wire.EventUserInputReceived, wire.EventUserInputTimeout:
		return CategoryInput
	default:
		return CategoryInfo
	}
}
