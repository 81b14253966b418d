// ABOUTME: Run status finite state machine with source-tagged transition rules.
// ABOUTME: The single choke point guaranteeing monotonic, at-most-once-terminal run semantics.
package watch

// Status is the overall state of a run. Exactly one value is current per run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are accepted from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Source identifies which side of the reconciliation race produced a signal.
// The stream and the poller race benignly; precedence is resolved here, not
// by call order.
type Source string

const (
	SourceStream Source = "stream"
	SourcePoll   Source = "poll"
	SourceUser   Source = "user"
)

// Signal is a requested status change tagged with its origin.
type Signal struct {
	To     Status
	Source Source
}

// Transition applies sig to current and returns the resulting status.
// Rules:
//   - Terminal states absorb every signal. The stream and the poller both
//     declaring completion is a harmless no-op.
//   - The poller never sets running: a run is only "running" because the
//     stream said so, and polling must not reset a run backward.
//   - From pending or running, a signal may move to running or to any
//     terminal value. Anything else is ignored.
func Transition(current Status, sig Signal) Status {
	if current.Terminal() {
		return current
	}

	switch sig.To {
	case StatusRunning:
		if sig.Source == SourcePoll {
			return current
		}
		return StatusRunning
	case StatusCompleted, StatusFailed, StatusCancelled:
		return sig.To
	default:
		return current
	}
}
