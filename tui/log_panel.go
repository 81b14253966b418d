// ABOUTME: Implements a scrollable run event log using the bubbles viewport component.
// ABOUTME: Renders display events with color-coded formatting by event category.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"

	"github.com/2389-research/runwatch/watch"
)

// LogPanelModel is a scrollable panel over the run's display log.
type LogPanelModel struct {
	entries  []watch.DisplayEvent
	max      int
	viewport viewport.Model
	width    int
	height   int
}

// NewLogPanelModel creates a log panel holding at most maxEntries lines.
// If maxEntries is <= 0, it defaults to 500.
func NewLogPanelModel(maxEntries int) LogPanelModel {
	if maxEntries <= 0 {
		maxEntries = 500
	}
	vp := viewport.New(80, 10)
	return LogPanelModel{
		entries:  make([]watch.DisplayEvent, 0, maxEntries),
		max:      maxEntries,
		viewport: vp,
	}
}

// Append adds a display event, evicting the oldest entry at capacity.
func (m *LogPanelModel) Append(evt watch.DisplayEvent) {
	if len(m.entries) >= m.max {
		m.entries = m.entries[1:]
	}
	m.entries = append(m.entries, evt)
	m.syncViewport()
}

// Replace swaps the full entry list, used when reseeding from a snapshot.
func (m *LogPanelModel) Replace(entries []watch.DisplayEvent) {
	if len(entries) > m.max {
		entries = entries[len(entries)-m.max:]
	}
	m.entries = append(m.entries[:0], entries...)
	m.syncViewport()
}

// Len returns the number of entries.
func (m LogPanelModel) Len() int {
	return len(m.entries)
}

// SetSize sets the available dimensions and updates the viewport.
func (m *LogPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	// Reserve space for the border (2 lines top/bottom) and title (1 line)
	vpWidth := w - 2
	vpHeight := h - 3
	if vpWidth < 1 {
		vpWidth = 1
	}
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.syncViewport()
}

// View renders the log panel.
func (m LogPanelModel) View() string {
	var content string
	if len(m.entries) == 0 {
		content = "No events yet"
	} else {
		content = m.viewport.View()
	}

	rendered := TitleStyle.Render("RUN LOG") + "\n" + content

	return BorderStyle.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(rendered)
}

// syncViewport rebuilds the viewport content and scrolls to the bottom.
func (m *LogPanelModel) syncViewport() {
	if len(m.entries) == 0 {
		m.viewport.SetContent("")
		return
	}
	var lines []string
	for _, evt := range m.entries {
		lines = append(lines, formatEntry(evt))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

// formatEntry formats a single display event as a log line.
func formatEntry(evt watch.DisplayEvent) string {
	ts := LogTimestampStyle.Render(evt.Timestamp.Format("15:04:05"))
	text := StyleForCategory(watch.CategoryFor(evt.Kind)).Render(evt.Text)

	parts := []string{ts}
	if evt.AgentName != "" {
		parts = append(parts, fmt.Sprintf("[%s]", evt.AgentName))
	}
	parts = append(parts, text)

	return strings.Join(parts, " ")
}
