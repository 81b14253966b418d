// ABOUTME: Top-level Bubble Tea AppModel for watching one run.
// ABOUTME: Implements tea.Model (Init, Update, View) and routes engine notifications to the log, status bar, and input gate.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/runwatch/watch"
)

// tickInterval drives the elapsed-time refresh.
const tickInterval = time.Second

// AppModel is the top-level Bubble Tea model composing the run log, status
// bar, and input gate. It is a pure subscriber: all run state lives in the
// controller, and the model only mirrors what notifications report.
type AppModel struct {
	log       LogPanelModel
	statusBar StatusBarModel
	gate      InputGateModel

	ctrl *watch.Controller

	done        bool
	finalStatus watch.Status
	finalOutput string
	finalErr    string
	width       int
	height      int
}

// NewAppModel creates an AppModel for an attached controller, seeding the
// panels from the current snapshot so notifications sent before the program
// started are not lost.
func NewAppModel(ctrl *watch.Controller) AppModel {
	m := AppModel{
		log:       NewLogPanelModel(500),
		statusBar: NewStatusBarModel(ctrl.RunID()),
		gate:      NewInputGateModel(),
		ctrl:      ctrl,
	}
	m.statusBar.Start()

	snap := ctrl.Snapshot()
	m.log.Replace(snap.Events)
	m.statusBar.SetStatus(snap.Status)
	for name, state := range snap.Entities {
		m.statusBar.SetEntity(name, state)
	}
	if snap.PendingInput != nil {
		m.gate.Activate(*snap.PendingInput)
	}
	return m
}

// Init implements tea.Model. Starts the notification pump and the tick loop.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(
		WaitForNotificationCmd(m.ctrl.Notifications()),
		TickCmd(tickInterval),
	)
}

// Update implements tea.Model.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case NotificationMsg:
		return m.handleNotification(msg.Notification)

	case NotificationsClosedMsg:
		return m, nil

	case TickMsg:
		if m.done {
			return m, nil
		}
		return m, TickCmd(tickInterval)

	case SubmitResultMsg:
		return m.handleSubmitResult(msg)

	case CancelResultMsg:
		// The engine already logged the outcome; nothing to mirror here.
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, nil
}

// handleNotification mirrors one engine notification into the panels, then
// re-arms the pump.
func (m AppModel) handleNotification(n watch.Notification) (tea.Model, tea.Cmd) {
	switch n := n.(type) {
	case watch.EventAppended:
		m.log.Append(n.Event)

	case watch.StatusChanged:
		m.statusBar.SetStatus(n.Status)

	case watch.EntityChanged:
		if n.Cleared {
			m.statusBar.ClearEntity(n.Name)
		} else {
			m.statusBar.SetEntity(n.Name, n.State)
		}

	case watch.EntitiesCleared:
		m.statusBar.ClearEntities()

	case watch.InputRequired:
		m.gate.Activate(n.Request)

	case watch.InputCleared:
		m.gate.Deactivate()

	case watch.RunFinished:
		m.done = true
		m.finalStatus = n.Status
		m.finalOutput = n.Output
		m.finalErr = n.Err
	}

	return m, WaitForNotificationCmd(m.ctrl.Notifications())
}

// handleSubmitResult locks or unlocks the gate based on the submit outcome.
// Guard rejections (blank draft, nothing pending) leave the gate editable.
func (m AppModel) handleSubmitResult(msg SubmitResultMsg) (tea.Model, tea.Cmd) {
	if !m.gate.IsActive() {
		return m, nil
	}
	if msg.Err != nil {
		m.gate.Unlock()
		return m, nil
	}
	m.gate.MarkWaiting()
	return m, nil
}

// handleKeyMsg processes keyboard input, routing to the input gate or
// app-level shortcuts.
func (m AppModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Quit always works, even while the gate is open.
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	}

	if m.gate.IsActive() && !m.gate.IsWaiting() {
		if msg.Type == tea.KeyEnter {
			draft := m.gate.Value()
			if strings.TrimSpace(draft) == "" {
				return m, nil
			}
			m.gate.MarkWaiting()
			return m, SubmitInputCmd(m.ctrl, draft)
		}
		m.gate = m.gate.Update(msg)
		return m, nil
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "c":
		if !m.done {
			return m, CancelRunCmd(m.ctrl)
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	// Minimum terminal size guard to prevent layout overflow
	if m.width < 40 || m.height < 8 {
		return fmt.Sprintf("Terminal too small (%dx%d). Minimum: 40x8.", m.width, m.height)
	}

	statusBarHeight := 1
	gateView := ""
	gateHeight := 0
	if m.gate.IsActive() {
		gateView = m.gate.View()
		gateHeight = strings.Count(gateView, "\n") + 1
	}

	logHeight := m.height - statusBarHeight - gateHeight
	if logHeight < 3 {
		logHeight = 3
	}
	m.log.SetSize(m.width, logHeight)
	m.statusBar.SetWidth(m.width)

	var statusView string
	if m.done {
		switch {
		case m.finalStatus == watch.StatusCompleted && m.finalOutput != "":
			statusView = m.statusBar.View() + " " + CompletedStyle.Render("DONE: "+m.finalOutput)
		case m.finalStatus == watch.StatusCompleted:
			statusView = m.statusBar.View() + " " + CompletedStyle.Render("DONE")
		case m.finalErr != "":
			statusView = m.statusBar.View() + " " + FailedStyle.Render(fmt.Sprintf("%s: %s", strings.ToUpper(string(m.finalStatus)), m.finalErr))
		default:
			statusView = m.statusBar.View() + " " + StyleForStatus(m.finalStatus).Render(strings.ToUpper(string(m.finalStatus)))
		}
	} else {
		statusView = m.statusBar.View()
	}

	var b strings.Builder
	b.WriteString(m.log.View())
	b.WriteString("\n")
	if gateView != "" {
		b.WriteString(gateView)
		b.WriteString("\n")
	}
	b.WriteString(statusView)

	return b.String()
}
