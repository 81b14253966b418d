// ABOUTME: Typed notifications the engine publishes to its subscribers.
// ABOUTME: One outbound channel replaces per-consumer callback fan-out; the TUI is one subscriber.
package watch

// EntityState is the transient per-agent/per-tool execution marker used for
// live highlighting. Absence of an entry means idle.
type EntityState string

const (
	EntityRunning       EntityState = "running"
	EntityCompleted     EntityState = "completed"
	EntityError         EntityState = "error"
	EntityAwaitingInput EntityState = "awaiting_input"
)

// Notification is a message published on the controller's outbound channel.
// Subscribers switch on the concrete type, mirroring tea.Msg handling.
type Notification interface {
	notification()
}

// EventAppended reports a new display-log entry.
type EventAppended struct {
	Event DisplayEvent
}

// StatusChanged reports a run status transition and the source that won it.
type StatusChanged struct {
	Status Status
	Source Source
}

// EntityChanged reports one agent/tool/node execution-state change. Cleared
// means the entity returned to idle.
type EntityChanged struct {
	Name    string
	State   EntityState
	Cleared bool
}

// EntitiesCleared reports that all per-entity execution state was dropped,
// which happens on every terminal transition.
type EntitiesCleared struct{}

// InputRequired reports a new pending user-input request.
type InputRequired struct {
	Request Request
}

// InputCleared reports that the pending input request resolved.
type InputCleared struct{}

// RunFinished reports the authoritative final status and output, published at
// most once per run alongside the run-complete callback.
type RunFinished struct {
	Status Status
	Output string
	Err    string
}

func (EventAppended) notification()   {}
func (StatusChanged) notification()   {}
func (EntityChanged) notification()   {}
func (EntitiesCleared) notification() {}
func (InputRequired) notification()   {}
func (InputCleared) notification()    {}
func (RunFinished) notification()     {}
