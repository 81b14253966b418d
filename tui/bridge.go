// ABOUTME: Bridge connecting the run engine to the Bubble Tea message loop.
// ABOUTME: Provides tea.Cmd factories for notification pumping, ticks, input submission, and cancellation.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/runwatch/watch"
)

// WaitForNotificationCmd returns a tea.Cmd that blocks on the engine's
// notification channel and sends a NotificationMsg when one arrives. The
// handler re-arms the command after each message; a closed channel yields
// NotificationsClosedMsg and ends the pump.
func WaitForNotificationCmd(ch <-chan watch.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return NotificationsClosedMsg{}
		}
		return NotificationMsg{Notification: n}
	}
}

// TickCmd returns a tea.Cmd that sends a TickMsg after the given interval.
// Used for the elapsed-time refresh.
func TickCmd(interval time.Duration) tea.Cmd {
	return func() tea.Msg {
		time.Sleep(interval)
		return TickMsg{Time: time.Now()}
	}
}

// SubmitInputCmd returns a tea.Cmd that submits the draft answer through the
// controller and reports the outcome.
func SubmitInputCmd(ctrl *watch.Controller, draft string) tea.Cmd {
	return func() tea.Msg {
		return SubmitResultMsg{Err: ctrl.SubmitInput(context.Background(), draft)}
	}
}

// CancelRunCmd returns a tea.Cmd that requests cancellation through the
// controller and reports the outcome.
func CancelRunCmd(ctrl *watch.Controller) tea.Cmd {
	return func() tea.Msg {
		return CancelResultMsg{Err: ctrl.Cancel(context.Background())}
	}
}
