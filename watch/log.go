// ABOUTME: Append-only display log holding the human-readable audit trail of one run.
// ABOUTME: Generates collision-proof entry ids and reseeds itself when a new run id is adopted.
package watch

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389-research/runwatch/wire"
)

// DisplayEvent is one rendered line of the run's event log. Entries are
// append-only and scoped to a single run id.
type DisplayEvent struct {
	ID        string
	Kind      wire.EventType
	Text      string
	AgentName string
	Timestamp time.Time
}

// DisplayLog is the append-only ordered sequence of display events for the
// active run. Appends arrive from both the stream consumer and the poller;
// arrival order is the display order.
type DisplayLog struct {
	mu      sync.Mutex
	seq     uint64
	entries []DisplayEvent
}

// NewDisplayLog returns an empty display log.
func NewDisplayLog() *DisplayLog {
	return &DisplayLog{}
}

// Reset clears the log and seeds it with a single synthetic entry naming the
// newly adopted run. Returns the seed entry.
func (l *DisplayLog) Reset(runID string) DisplayEvent {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
	return l.Append(wire.EventInfo, "", fmt.Sprintf("Run started: %s", runID))
}

// Append adds one entry and returns it. The id combines a monotonically
// increasing counter with a random suffix so ids stay pairwise distinct even
// when two events share a wire timestamp.
func (l *DisplayLog) Append(kind wire.EventType, agentName, text string) DisplayEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	evt := DisplayEvent{
		ID:        fmt.Sprintf("evt-%d-%s", l.seq, uuid.NewString()[:8]),
		Kind:      kind,
		Text:      text,
		AgentName: agentName,
		Timestamp: time.Now(),
	}
	l.entries = append(l.entries, evt)
	return evt
}

// Events returns a copy of all entries in append order.
func (l *DisplayLog) Events() []DisplayEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]DisplayEvent, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *DisplayLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
