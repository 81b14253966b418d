// ABOUTME: Implements a single-line status bar showing run id, status, elapsed time, and live entities.
// ABOUTME: Entity markers come and go with the engine's per-entity execution state.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/runwatch/watch"
)

// StatusBarModel displays run status in a single line.
type StatusBarModel struct {
	runID     string
	status    watch.Status
	startTime time.Time
	entities  map[string]watch.EntityState
	width     int
}

// NewStatusBarModel creates a StatusBarModel for the given run id.
func NewStatusBarModel(runID string) StatusBarModel {
	return StatusBarModel{
		runID:    runID,
		status:   watch.StatusPending,
		entities: make(map[string]watch.EntityState),
	}
}

// Start records the watch start time.
func (m *StatusBarModel) Start() {
	m.startTime = time.Now()
}

// SetStatus updates the displayed run status.
func (m *StatusBarModel) SetStatus(status watch.Status) {
	m.status = status
}

// Status returns the displayed run status.
func (m StatusBarModel) Status() watch.Status {
	return m.status
}

// SetEntity records one entity's execution state.
func (m *StatusBarModel) SetEntity(name string, state watch.EntityState) {
	m.entities[name] = state
}

// ClearEntity removes one entity marker.
func (m *StatusBarModel) ClearEntity(name string) {
	delete(m.entities, name)
}

// ClearEntities removes all entity markers.
func (m *StatusBarModel) ClearEntities() {
	m.entities = make(map[string]watch.EntityState)
}

// SetWidth sets the bar width for rendering.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// Elapsed returns the time since Start() was called, or zero if not started.
func (m StatusBarModel) Elapsed() time.Duration {
	if m.startTime.IsZero() {
		return 0
	}
	return time.Since(m.startTime)
}

// formatElapsed formats a duration as a human-readable string.
// Durations under a minute show as seconds (e.g. "12s").
// Durations of a minute or more show as minutes and seconds (e.g. "2m30s").
func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) - minutes*60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}

// entityMarker renders one entity as name:state.
func entityMarker(name string, state watch.EntityState) string {
	return fmt.Sprintf("%s:%s", name, state)
}

// View renders the status bar as a single styled line.
func (m StatusBarModel) View() string {
	parts := []string{
		fmt.Sprintf("Run: %s", m.runID),
		StyleForStatus(m.status).Render(string(m.status)),
		fmt.Sprintf("Elapsed: %s", formatElapsed(m.Elapsed())),
	}

	if len(m.entities) > 0 {
		names := make([]string, 0, len(m.entities))
		for name := range m.entities {
			names = append(names, name)
		}
		sort.Strings(names)
		markers := make([]string, 0, len(names))
		for _, name := range names {
			markers = append(markers, entityMarker(name, m.entities[name]))
		}
		parts = append(parts, strings.Join(markers, " "))
	}

	content := strings.Join(parts, " | ")
	style := StatusBarStyle.Width(m.width)

	return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, style.Render(content))
}
