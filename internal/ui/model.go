// ABOUTME: Bubbletea model for the sound player TUI
// ABOUTME: Defines playback state, key handling and rendering
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	volumeStep = 5
	panStep    = 0.1
	pitchStep  = 0.05
	minPitch   = 0.25
	maxPitch   = 4.0
)

// Model represents the TUI state
type Model struct {
	// Output
	backend   string
	frequency int
	state     string
	outputID  string

	// Source
	title      string
	artist     string
	album      string
	sampleRate int
	channels   int

	// Controls
	volume  int
	muted   bool
	pitch   float64
	panning float64

	// Stats
	bufferedMs       int
	processesCreated int
	processesIdle    int
	workersCreated   int
	draining         int
	goroutines       int
	memAlloc         uint64

	showDebug bool
	quitting  bool

	controls *Controls

	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	statsStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Stopping playback...\n"
	}
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Resonate Sound"))
	b.WriteString("\n\n")

	m.renderOutput(&b)
	m.renderSource(&b)
	m.renderControls(&b)
	m.renderStats(&b)

	if m.showDebug {
		m.renderDebug(&b)
	}

	b.WriteString("\n")
	b.WriteString(faintStyle.Render("↑/↓:Volume  ←/→:Pan  +/-:Pitch  m:Mute  d:Debug  q:Quit"))

	return b.String()
}

func field(b *strings.Builder, name, value string) {
	b.WriteString(headerStyle.Render(name + ": "))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

// renderOutput renders backend and session state
func (m Model) renderOutput(b *strings.Builder) {
	field(b, "Backend", m.backend)
	field(b, "Output", fmt.Sprintf("%dHz %s", m.frequency, m.state))
	b.WriteString("\n")
}

// renderSource renders the current track
func (m Model) renderSource(b *strings.Builder) {
	if m.title == "" {
		field(b, "Playing", "(nothing)")
		b.WriteString("\n")
		return
	}

	field(b, "Track", truncate(m.title, 42))
	if m.artist != "" {
		field(b, "Artist", truncate(m.artist, 42))
	}
	if m.album != "" {
		field(b, "Album", truncate(m.album, 42))
	}
	field(b, "Format", fmt.Sprintf("%dHz %s", m.sampleRate, channelName(m.channels)))
	b.WriteString("\n")
}

// renderControls renders volume, pitch and panning
func (m Model) renderControls(b *strings.Builder) {
	muteIcon := ""
	if m.muted {
		muteIcon = " 🔇"
	}

	field(b, "Volume", fmt.Sprintf("[%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteIcon))
	field(b, "Pitch", fmt.Sprintf("%.2fx", m.pitch))
	field(b, "Pan", renderPan(m.panning, 11))
	b.WriteString("\n")
}

// renderStats renders buffer and pool counters
func (m Model) renderStats(b *strings.Builder) {
	b.WriteString(statsStyle.Render("Stats"))
	b.WriteString("\n")
	field(b, "  Buffered", fmt.Sprintf("%dms", m.bufferedMs))
	field(b, "  Processes", fmt.Sprintf("%d created, %d idle", m.processesCreated, m.processesIdle))
	field(b, "  Workers", fmt.Sprintf("%d created", m.workersCreated))
	field(b, "  Draining", fmt.Sprintf("%d", m.draining))
}

// renderDebug renders runtime information
func (m Model) renderDebug(b *strings.Builder) {
	b.WriteString("\n")
	b.WriteString(statsStyle.Render("Debug"))
	b.WriteString("\n")
	field(b, "  Output ID", m.outputID)
	field(b, "  Goroutines", fmt.Sprintf("%d", m.goroutines))
	field(b, "  Heap", fmt.Sprintf("%.1f MiB", float64(m.memAlloc)/(1<<20)))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.controls != nil {
			select {
			case m.controls.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		m.volume = min(100, m.volume+volumeStep)
	case "down":
		m.volume = max(0, m.volume-volumeStep)
	case "left":
		m.panning = clamp(m.panning-panStep, -1, 1)
	case "right":
		m.panning = clamp(m.panning+panStep, -1, 1)
	case "+", "=":
		m.pitch = clamp(m.pitch+pitchStep, minPitch, maxPitch)
	case "-", "_":
		m.pitch = clamp(m.pitch-pitchStep, minPitch, maxPitch)
	case "m":
		m.muted = !m.muted
	case "d":
		m.showDebug = !m.showDebug
		return m, nil
	default:
		return m, nil
	}

	m.sendControls()
	return m, nil
}

// sendControls forwards the current control values without blocking
func (m Model) sendControls() {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Changes <- ControlChangeMsg{
		Volume:  m.volume,
		Muted:   m.muted,
		Pitch:   m.pitch,
		Panning: m.panning,
	}:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Backend != "" {
		m.backend = msg.Backend
	}
	if msg.Frequency != 0 {
		m.frequency = msg.Frequency
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.OutputID != "" {
		m.outputID = msg.OutputID
	}
	if msg.Title != "" {
		m.title = msg.Title
		m.artist = msg.Artist
		m.album = msg.Album
		m.sampleRate = msg.SampleRate
		m.channels = msg.Channels
	}
	if msg.Buffered != nil {
		m.bufferedMs = int(*msg.Buffered / time.Millisecond)
	}
	if msg.Stats != nil {
		m.processesCreated = msg.Stats.ProcessesCreated
		m.processesIdle = msg.Stats.ProcessesIdle
		m.workersCreated = msg.Stats.WorkersCreated
		m.draining = msg.Stats.Draining
	}
	if msg.Goroutines != 0 {
		m.goroutines = msg.Goroutines
		m.memAlloc = msg.MemAlloc
	}
}

// StatusMsg updates TUI state. Zero fields are left unchanged.
type StatusMsg struct {
	Backend    string
	Frequency  int
	State      string
	OutputID   string
	Title      string
	Artist     string
	Album      string
	SampleRate int
	Channels   int
	Buffered   *time.Duration
	Stats      *PoolStats
	Goroutines int
	MemAlloc   uint64
}

// PoolStats mirrors the provider counters shown in the TUI
type PoolStats struct {
	ProcessesCreated int
	ProcessesIdle    int
	WorkersCreated   int
	Draining         int
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// renderPan draws a marker for panning in [-1, 1] on a track of width cells
func renderPan(panning float64, width int) string {
	pos := int((panning + 1) / 2 * float64(width-1))
	pos = max(0, min(width-1, pos))
	return "L " + strings.Repeat("─", pos) + "●" + strings.Repeat("─", width-1-pos) + " R"
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	if channels == 1 {
		return "Mono"
	}
	return "Stereo"
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
