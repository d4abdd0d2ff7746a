// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channels back to the player
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// ControlChangeMsg carries the control values after a key press
type ControlChangeMsg struct {
	Volume  int // percent
	Muted   bool
	Pitch   float64
	Panning float64
}

// QuitMsg signals that the user asked to quit
type QuitMsg struct{}

// Controls holds channels for control communication
type Controls struct {
	Changes chan ControlChangeMsg
	Quit    chan QuitMsg
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Changes: make(chan ControlChangeMsg, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// Settings are the initial values shown by the TUI
type Settings struct {
	Backend   string
	Frequency int
	Volume    int
	Pitch     float64
	Panning   float64
}

// NewModel creates a new TUI model
func NewModel(controls *Controls, settings Settings) Model {
	pitch := settings.Pitch
	if pitch <= 0 {
		pitch = 1.0
	}

	return Model{
		backend:   settings.Backend,
		frequency: settings.Frequency,
		volume:    settings.Volume,
		pitch:     pitch,
		panning:   settings.Panning,
		state:     "idle",
		controls:  controls,
	}
}

// Run creates the TUI program; the caller runs it
func Run(controls *Controls, settings Settings) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(controls, settings), tea.WithAltScreen())
	return p, nil
}
