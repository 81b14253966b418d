// ABOUTME: RunController owning the reconciliation engine for exactly one run id.
// ABOUTME: Composes the stream consumer, status reconciler, display log, and input coordinator with a single teardown path.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2389-research/runwatch/wire"
)

// Options configures a Controller. Zero values take the reference defaults.
type Options struct {
	// PollInterval is the reconciliation poll cadence while the run is active.
	PollInterval time.Duration
	// EarlyCheckDelay is the one-shot poll delay after attach, catching runs
	// that fail before the stream delivers its first event.
	EarlyCheckDelay time.Duration
	// OnComplete is the run-complete callback: authoritative status, final
	// output, and error text. Invoked at most once per run.
	OnComplete func(status Status, output, errText string)
	// Logf receives engine diagnostics (dropped events, swallowed poll
	// failures). Nil disables it. The display log, not Logf, is the
	// user-facing audit trail.
	Logf func(format string, args ...any)
	// NotifyBuffer sizes the outbound notification channel.
	NotifyBuffer int
}

const (
	defaultPollInterval    = 2 * time.Second
	defaultEarlyCheckDelay = 500 * time.Millisecond
	defaultNotifyBuffer    = 256
)

// ErrAlreadyAttached reports a second Attach call on the same controller.
var ErrAlreadyAttached = errors.New("watch: controller already attached")

// Controller manages one run: it owns the push subscription, the polling
// reconciler, the display log, the per-entity execution states, and the
// pending input slot. Adopting a new run id means closing this controller
// and building a new one; a stale subscription can never mutate a new run's
// state.
type Controller struct {
	runID     string
	transport Transport
	opts      Options
	logf      func(format string, args ...any)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	status   Status
	entities map[string]EntityState
	stream   EventStream
	attached bool
	closed   bool
	finished bool

	log    *DisplayLog
	input  *InputCoordinator
	notifs chan Notification
}

// Snapshot is a consistent copy of the controller's published state.
type Snapshot struct {
	RunID        string
	Status       Status
	Entities     map[string]EntityState
	Events       []DisplayEvent
	PendingInput *Request
}

// NewController creates a controller for the given run id. The run's data
// model exists from this moment; the stream opens on Attach.
func NewController(transport Transport, runID string, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.EarlyCheckDelay <= 0 {
		opts.EarlyCheckDelay = defaultEarlyCheckDelay
	}
	if opts.NotifyBuffer <= 0 {
		opts.NotifyBuffer = defaultNotifyBuffer
	}
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	return &Controller{
		runID:     runID,
		transport: transport,
		opts:      opts,
		logf:      logf,
		status:    StatusPending,
		entities:  make(map[string]EntityState),
		log:       NewDisplayLog(),
		input:     NewInputCoordinator(logf),
		notifs:    make(chan Notification, opts.NotifyBuffer),
	}
}

// RunID returns the run id this controller owns.
func (c *Controller) RunID() string { return c.runID }

// Notifications returns the outbound channel. Sends never block: when the
// buffer is full a notification is dropped, and subscribers re-read state via
// Snapshot.
func (c *Controller) Notifications() <-chan Notification { return c.notifs }

// Attach opens the push stream, marks the run running, reseeds the display
// log, and starts the consumer and reconciler goroutines. It may be called
// once.
func (c *Controller) Attach(ctx context.Context) error {
	c.mu.Lock()
	if c.attached || c.closed {
		c.mu.Unlock()
		return ErrAlreadyAttached
	}
	c.attached = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	stream, err := c.transport.OpenEvents(c.ctx, c.runID)
	if err != nil {
		return fmt.Errorf("open event stream for run %s: %w", c.runID, err)
	}

	c.mu.Lock()
	c.stream = stream
	c.mu.Unlock()

	seed := c.log.Reset(c.runID)
	c.notify(EventAppended{Event: seed})
	c.applySignal(Signal{To: StatusRunning, Source: SourceStream})

	c.wg.Add(2)
	go c.consumeStream(stream)
	go c.runReconciler()
	return nil
}

// Close tears the controller down: it cancels the run-scoped context, closes
// the stream subscription, and waits for both goroutines. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stream := c.stream
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		_ = stream.Close()
	}
	c.wg.Wait()
}

// Cancel requests a best-effort server-side stop, then forces the local
// status to cancelled without waiting for confirmation. The cancel call
// failing does not block the local transition.
func (c *Controller) Cancel(ctx context.Context) error {
	if c.CurrentStatus().Terminal() {
		return nil
	}

	err := c.transport.Cancel(ctx, c.runID)
	if err != nil {
		c.logf("cancel run %s: %v", c.runID, err)
	}

	changed, _ := c.applySignal(Signal{To: StatusCancelled, Source: SourceUser})
	if changed {
		c.appendLocal(wire.EventInfo, "Run cancelled")
		c.clearEntities()
		c.clearInput()
	}
	return err
}

// SubmitInput sends a draft answer for the pending input request. Guard
// rejections (no request, blank draft, submission in flight) are silent
// no-ops surfaced only as sentinel errors; a transport failure additionally
// appends an error line and leaves the request pending for retry.
func (c *Controller) SubmitInput(ctx context.Context, draft string) error {
	err := c.input.Submit(ctx, draft, func(ctx context.Context, requestID, input string) error {
		return c.transport.SubmitInput(ctx, c.runID, requestID, input)
	})
	if err != nil && !errors.Is(err, ErrEmptyInput) && !errors.Is(err, ErrNoPendingRequest) && !errors.Is(err, ErrSubmitInFlight) {
		c.appendLocal(wire.EventRunError, fmt.Sprintf("Failed to submit input: %v", err))
	}
	return err
}

// CurrentStatus returns the run's current status.
func (c *Controller) CurrentStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// PendingInput returns a copy of the pending input request, if any.
func (c *Controller) PendingInput() (Request, bool) {
	return c.input.Pending()
}

// Snapshot returns a consistent copy of the published state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	status := c.status
	entities := make(map[string]EntityState, len(c.entities))
	for k, v := range c.entities {
		entities[k] = v
	}
	c.mu.Unlock()

	snap := Snapshot{
		RunID:    c.runID,
		Status:   status,
		Entities: entities,
		Events:   c.log.Events(),
	}
	if req, ok := c.input.Pending(); ok {
		snap.PendingInput = &req
	}
	return snap
}

// applySignal funnels a status change through the transition function and
// publishes the result when it changed.
func (c *Controller) applySignal(sig Signal) (changed bool, now Status) {
	c.mu.Lock()
	next := Transition(c.status, sig)
	changed = next != c.status
	c.status = next
	c.mu.Unlock()

	if changed {
		c.notify(StatusChanged{Status: next, Source: sig.Source})
	}
	return changed, next
}

// completeOnce fires the run-complete callback and RunFinished notification,
// at most once per run.
func (c *Controller) completeOnce(status Status, output, errText string) {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.finished = true
	c.mu.Unlock()

	c.notify(RunFinished{Status: status, Output: output, Err: errText})
	if c.opts.OnComplete != nil {
		c.opts.OnComplete(status, output, errText)
	}
}

func (c *Controller) setEntity(name string, state EntityState) {
	if name == "" {
		return
	}
	c.mu.Lock()
	c.entities[name] = state
	c.mu.Unlock()
	c.notify(EntityChanged{Name: name, State: state})
}

func (c *Controller) clearEntity(name string) {
	if name == "" {
		return
	}
	c.mu.Lock()
	_, ok := c.entities[name]
	delete(c.entities, name)
	c.mu.Unlock()
	if ok {
		c.notify(EntityChanged{Name: name, Cleared: true})
	}
}

func (c *Controller) clearEntities() {
	c.mu.Lock()
	had := len(c.entities) > 0
	c.entities = make(map[string]EntityState)
	c.mu.Unlock()
	if had {
		c.notify(EntitiesCleared{})
	}
}

func (c *Controller) clearInput() {
	if _, ok := c.input.Complete(); ok {
		c.notify(InputCleared{})
	}
}

// appendWire formats and appends a wire event to the display log.
func (c *Controller) appendWire(evt wire.Event) {
	de := c.log.Append(evt.Type, evt.AgentName, FormatEvent(evt))
	c.notify(EventAppended{Event: de})
}

// appendLocal appends a locally generated line (poll failures, cancellation).
func (c *Controller) appendLocal(kind wire.EventType, text string) {
	de := c.log.Append(kind, "", text)
	c.notify(EventAppended{Event: de})
}

func (c *Controller) notify(n Notification) {
	select {
	case c.notifs <- n:
	default:
		c.logf("notification dropped: %T", n)
	}
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
