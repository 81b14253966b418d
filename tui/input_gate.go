// ABOUTME: InputGateModel renders the dialog for a pending "user input required" pause.
// ABOUTME: Holds the draft answer in a bubbles textinput and tracks submit-in-flight state.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/runwatch/watch"
)

// previousOutputLimit caps the excerpt of the prior node's output shown in
// the dialog.
const previousOutputLimit = 280

// InputGateModel is the dialog shown while the run waits on a user answer.
// It activates on an InputRequired notification and deactivates only when the
// server confirms resolution via InputCleared; a successful submit keeps the
// dialog visible but locked until that confirmation.
type InputGateModel struct {
	textInput textinput.Model
	request   watch.Request
	active    bool
	waiting   bool // submitted, awaiting server confirmation
}

// NewInputGateModel creates an InputGateModel with an initialized text input.
func NewInputGateModel() InputGateModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type your answer..."

	return InputGateModel{textInput: ti}
}

// Activate shows the dialog for the given request.
func (m *InputGateModel) Activate(req watch.Request) {
	m.request = req
	m.active = true
	m.waiting = false
	m.textInput.Reset()
	m.textInput.Focus()
}

// Deactivate hides the dialog and clears the draft.
func (m *InputGateModel) Deactivate() {
	m.active = false
	m.waiting = false
	m.request = watch.Request{}
	m.textInput.Reset()
	m.textInput.Blur()
}

// MarkWaiting locks the dialog after a successful submit, pending the
// server's resolution event.
func (m *InputGateModel) MarkWaiting() {
	m.waiting = true
	m.textInput.Blur()
}

// Unlock reopens the dialog for editing after a failed submit.
func (m *InputGateModel) Unlock() {
	m.waiting = false
	m.textInput.Focus()
}

// IsActive returns whether the dialog is visible.
func (m InputGateModel) IsActive() bool {
	return m.active
}

// IsWaiting returns whether a submitted answer awaits server confirmation.
func (m InputGateModel) IsWaiting() bool {
	return m.waiting
}

// Value returns the current draft answer.
func (m InputGateModel) Value() string {
	return m.textInput.Value()
}

// Request returns the request the dialog is showing.
func (m InputGateModel) Request() watch.Request {
	return m.request
}

// Update forwards key events to the embedded textinput while editable.
func (m InputGateModel) Update(msg tea.Msg) InputGateModel {
	if m.waiting {
		return m
	}
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	_ = cmd // textinput cmds (cursor blink) are ignored in sub-model updates
	return m
}

// View renders the dialog. Returns an empty string when inactive.
func (m InputGateModel) View() string {
	if !m.active {
		return ""
	}

	var b strings.Builder

	b.WriteString(fmt.Sprintf("[?] Input required: %s\n", m.request.NodeName))
	if m.request.VariableName != "" {
		b.WriteString(fmt.Sprintf("    variable: %s\n", m.request.VariableName))
	}

	if m.request.PreviousOutput != nil && *m.request.PreviousOutput != "" {
		excerpt := *m.request.PreviousOutput
		if len(excerpt) > previousOutputLimit {
			excerpt = excerpt[:previousOutputLimit] + "..."
		}
		b.WriteString("\n")
		b.WriteString(ExcerptStyle.Render(excerpt))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.waiting {
		b.WriteString("Submitted, waiting for the run to continue...")
	} else {
		b.WriteString(m.textInput.View())
	}

	return InputGateStyle.Render(b.String())
}
