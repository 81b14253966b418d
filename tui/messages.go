// ABOUTME: Bubble Tea message types used in the viewer's message loop.
// ABOUTME: Each type wraps engine notifications or async call results for the tea.Msg interface.
package tui

import (
	"time"

	"github.com/2389-research/runwatch/watch"
)

// NotificationMsg wraps one engine notification for the Bubble Tea message loop.
type NotificationMsg struct {
	Notification watch.Notification
}

// NotificationsClosedMsg signals that the engine's notification channel closed.
type NotificationsClosedMsg struct{}

// TickMsg is sent periodically to refresh the elapsed-time display.
type TickMsg struct {
	Time time.Time
}

// SubmitResultMsg carries the outcome of an input submission.
type SubmitResultMsg struct {
	Err error
}

// CancelResultMsg carries the outcome of a cancel request.
type CancelResultMsg struct {
	Err error
}
