// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the topology monitor
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Controls holds channels carrying operator commands out of the TUI
type Controls struct {
	// MuteToggles carries the group id of a zone whose mute was toggled.
	MuteToggles chan MuteToggleMsg
	// Resyncs carries manual topology refresh requests.
	Resyncs chan ResyncMsg
	// Quit signals shutdown.
	Quit chan QuitMsg
}

// MuteToggleMsg asks the controller to flip one group's mute
type MuteToggleMsg struct {
	GroupID string
	Muted   bool
}

// ResyncMsg asks the controller for a fresh topology snapshot
type ResyncMsg struct{}

// QuitMsg signals shutdown
type QuitMsg struct{}

// NewControls creates the control channels
func NewControls() *Controls {
	return &Controls{
		MuteToggles: make(chan MuteToggleMsg, 10),
		Resyncs:     make(chan ResyncMsg, 1),
		Quit:        make(chan QuitMsg, 1),
	}
}

// Run starts the TUI
func Run(controls *Controls) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(controls), tea.WithAltScreen())
	return p, nil
}
