// ABOUTME: Polling reconciler defending against terminal events the stream silently dropped.
// ABOUTME: Fixed-cadence status polls plus one early check shortly after attach.
package watch

import (
	"time"

	"github.com/2389-research/runwatch/wire"
)

// runReconciler polls the pull-status endpoint on a fixed cadence while the
// run is active, plus once shortly after attach. Poll failures while the run
// is live are swallowed: the stream is still trusted to be authoritative.
func (c *Controller) runReconciler() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	early := time.NewTimer(c.opts.EarlyCheckDelay)
	defer early.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-early.C:
			c.pollOnce(true)
		case <-ticker.C:
			c.pollOnce(false)
		}
	}
}

// pollOnce performs one reconciliation poll. The early check acts on
// failures only; the interval poll also rescues dropped completions. Both
// are no-ops once the status is terminal.
func (c *Controller) pollOnce(earlyCheck bool) {
	if c.CurrentStatus().Terminal() {
		return
	}

	res, err := c.transport.Status(c.ctx, c.runID)
	if err != nil {
		c.logf("reconciliation poll for run %s: %v", c.runID, err)
		return
	}

	switch res.Status {
	case StatusFailed:
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

	case StatusCompleted:
		if earlyCheck {
			return
		}
		changed, now := c.applySignal(Signal{To: StatusCompleted, Source: SourcePoll})
		if changed {
			c.clearEntities()
			c.clearInput()
			c.completeOnce(now, res.Output, "")
		}
	}
}
