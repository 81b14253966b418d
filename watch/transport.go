// ABOUTME: Transport contracts the engine consumes: push event stream plus three REST calls.
// ABOUTME: Implemented by the client package; faked in tests.
package watch

import (
	"context"

	"github.com/2389-research/runwatch/wire"
)

// StatusResult is the pull-status endpoint's answer for a run. It is the only
// source of final output text; push events never carry it.
type StatusResult struct {
	Status Status
	Output string
	Error  string
}

// EventStream is one open push subscription for a run id.
//
// Next returns the next decoded wire event. A malformed payload is returned
// as an error wrapping wire.ErrBadPayload and leaves the stream readable; any
// other error means the stream is gone. The reserved stream-end marker is
// surfaced as an event of type wire.EventStreamComplete.
//
// Close is idempotent and releases the underlying connection.
type EventStream interface {
	Next() (wire.Event, error)
	Close() error
}

// Transport bundles the four network contracts of the workflow service.
type Transport interface {
	// OpenEvents opens the push stream for a run id.
	OpenEvents(ctx context.Context, runID string) (EventStream, error)
	// Status performs one pull-status call.
	Status(ctx context.Context, runID string) (StatusResult, error)
	// Cancel requests a best-effort stop of the run.
	Cancel(ctx context.Context, runID string) error
	// SubmitInput answers a pending user-input request.
	SubmitInput(ctx context.Context, runID, requestID, input string) error
}
