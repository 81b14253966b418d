// ABOUTME: Stream consumer goroutine: demultiplexes wire events into state transitions and log appends.
// ABOUTME: Handles the stream-end handshake and synchronous disconnect reconciliation.
package watch

import (
	"errors"

	"github.com/2389-research/runwatch/wire"
)

// consumeStream reads the push stream until it ends. A malformed payload
// drops the single event and keeps reading; the reserved complete marker
// triggers the final status fetch; any other error triggers disconnect
// reconciliation unless the controller is tearing down.
func (c *Controller) consumeStream(stream EventStream) {
	defer c.wg.Done()

	for {
		evt, err := stream.Next()
		if err != nil {
			if errors.Is(err, wire.ErrBadPayload) {
				c.logf("stream: dropping malformed event: %v", err)
				continue
			}
			_ = stream.Close()
			if c.isClosed() || c.ctx.Err() != nil {
				return
			}
			c.reconcileDisconnect()
			return
		}

		if evt.Type == wire.EventStreamComplete {
			_ = stream.Close()
			if c.isClosed() {
				return
			}
			c.finishFromStream()
			return
		}

		if c.isClosed() {
			return
		}
		c.handleWireEvent(evt)
	}
}

// handleWireEvent appends the formatted line and applies the event's side
// effects on run status, entity states, and the input slot.
func (c *Controller) handleWireEvent(evt wire.Event) {
	c.appendWire(evt)

	switch evt.Type {
	case wire.EventAgentStart:
		c.setEntity(evt.AgentName, EntityRunning)

	case wire.EventAgentEnd:
		c.setEntity(evt.AgentName, EntityCompleted)

	case wire.EventToolCall:
		if p, ok := evt.Payload.(*wire.ToolCallPayload); ok {
			c.setEntity(p.ToolName, EntityRunning)
		}

	case wire.EventToolResult:
		if p, ok := evt.Payload.(*wire.ToolResultPayload); ok {
			c.setEntity(p.ToolName, EntityCompleted)
		}

	case wire.EventUserInputRequired:
		p, ok := evt.Payload.(*wire.InputRequiredPayload)
		if !ok {
			return
		}
		req := Request{
			RequestID:      p.RequestID,
			NodeID:         p.NodeID,
			NodeName:       p.NodeName,
			VariableName:   p.VariableName,
			IsTrigger:      p.IsTrigger,
			PreviousOutput: p.PreviousOutput,
			TimeoutSeconds: p.TimeoutSeconds,
		}
		c.input.Require(req)
		c.setEntity(p.NodeID, EntityAwaitingInput)
		c.notify(InputRequired{Request: req})

	case wire.EventUserInputReceived, wire.EventUserInputTimeout:
		if p, ok := evt.Payload.(*wire.InputResolvedPayload); ok {
			c.clearEntity(p.NodeID)
		}
		c.clearInput()

	case wire.EventRunComplete:
		c.applySignal(Signal{To: StatusCompleted, Source: SourceStream})
		c.clearEntities()
		c.clearInput()

	case wire.EventRunError:
		if evt.AgentName != "" {
			c.setEntity(evt.AgentName, EntityError)
		}
		c.applySignal(Signal{To: StatusFailed, Source: SourceStream})
		c.clearEntities()
		c.clearInput()
	}
}

// finishFromStream handles the reserved stream-end marker: one pull-status
// call supplies the authoritative final status and output, since push events
// never carry output text.
func (c *Controller) finishFromStream() {
	status := StatusCompleted
	output, errText := "", ""

	res, err := c.transport.Status(c.ctx, c.runID)
	if err != nil {
		c.logf("status fetch after stream end for run %s: %v", c.runID, err)
	} else {
		output, errText = res.Output, res.Error
		if res.Status.Terminal() {
			status = res.Status
		}
	}

	_, now := c.applySignal(Signal{To: status, Source: SourceStream})
	c.clearEntities()
	c.clearInput()
	c.completeOnce(now, output, errText)
}

// reconcileDisconnect resolves a dropped stream with one pull-status call.
// A run the server reports as completed or failed adopts that outcome; an
// unresolvable disconnect (still running, or the poll itself failing) is a
// hard failure rather than a stuck "running" display.
func (c *Controller) reconcileDisconnect() {
	if c.CurrentStatus().Terminal() {
		return
	}

	res, err := c.transport.Status(c.ctx, c.runID)
	switch {
	case err == nil && res.Status == StatusFailed:
		msg := res.Error
		if msg == "" {
			msg = "Run failed"
		}
		changed, _ := c.applySignal(Signal{To: StatusFailed, Source: SourcePoll})
		if changed {
			c.appendLocal(wire.EventRunError, "Error: "+msg)
			c.clearEntities()
			c.clearInput()
		}

	case err == nil && res.Status == StatusCompleted:
		changed, now := c.applySignal(Signal{To: StatusCompleted, Source: SourcePoll})
		if changed {
			c.clearEntities()
			c.clearInput()
			c.completeOnce(now, res.Output, "")
		}

	default:
		if err != nil {
			c.logf("disconnect reconciliation poll for run %s: %v", c.runID, err)
		}
		changed, _ := c.applySignal(Signal{To: StatusFailed, Source: SourceStream})
		if changed {
			c.appendLocal(wire.EventRunError, "Connection to server lost")
			c.clearEntities()
			c.clearInput()
		}
	}
}
