// ABOUTME: Bubbletea model for the topology monitor TUI
// ABOUTME: Renders zones and endpoints, live-updated from the event stream
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zonecast/zonecast-go/internal/state"
	"github.com/zonecast/zonecast-go/internal/version"
)

// Model represents the TUI state
type Model struct {
	// Connection
	phase      string
	serverAddr string

	// Topology
	zones   []state.ZoneState
	clients []state.ClientState

	// Selection
	selected int

	// Dimensions
	width  int
	height int

	controls *Controls
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		phase:    "disconnected",
		controls: controls,
	}
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

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderZones()
	s += m.renderClients()
	s += m.renderHelp()

	return s
}

// renderHeader renders connection status
func (m Model) renderHeader() string {
	status := m.phase
	if m.phase == "live" && m.serverAddr != "" {
		status = fmt.Sprintf("live (%s)", m.serverAddr)
	}

	return fmt.Sprintf(`┌─ %s %s ─────────────────────────────┐
│ Server: %-48s │
├──────────────────────────────────────────────────────────┤
`, version.Product, version.Version, truncate(status, 48))
}

// renderZones renders one line per zone with selection marker
func (m Model) renderZones() string {
	if len(m.zones) == 0 {
		return "│ No zones                                                 │\n"
	}

	s := "│ Zones:                                                   │\n"
	for i, zone := range m.zones {
		marker := " "
		if i == m.selected {
			marker = ">"
		}

		muteIcon := " "
		if zone.Muted {
			muteIcon = "M"
		}

		name := zone.Zone
		if name == "" {
			name = zone.Name
		}
		if name == "" {
			name = zone.GroupID
		}

		line := fmt.Sprintf("%s [%s] %-16s stream=%-12s %s",
			marker, muteIcon, truncate(name, 16), truncate(zone.StreamID, 12), zone.StreamStatus)
		s += fmt.Sprintf("│ %-56s │\n", truncate(line, 56))
	}

	return s
}

// renderClients renders one line per endpoint
func (m Model) renderClients() string {
	s := "├──────────────────────────────────────────────────────────┤\n"
	if len(m.clients) == 0 {
		return s + "│ No endpoints                                             │\n"
	}

	s += "│ Endpoints:                                               │\n"
	for _, c := range m.clients {
		connIcon := "✗"
		if c.Connected {
			connIcon = "✓"
		}

		muteIcon := ""
		if c.Muted {
			muteIcon = " 🔇"
		}

		line := fmt.Sprintf("%s %-16s [%s] %3d%%%s",
			connIcon, truncate(c.Name, 16), renderBar(c.Percent, 100, 10), c.Percent, muteIcon)
		s += fmt.Sprintf("│ %-56s │\n", truncate(line, 56))
	}

	return s
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ ↑/↓:Select  m:Mute zone  r:Resync  q:Quit                │
└──────────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.controls != nil {
			select {
			case m.controls.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		if m.selected > 0 {
			m.selected--
		}
	case "down":
		if m.selected < len(m.zones)-1 {
			m.selected++
		}
	case "m":
		if m.controls != nil && m.selected < len(m.zones) {
			zone := m.zones[m.selected]
			select {
			case m.controls.MuteToggles <- MuteToggleMsg{GroupID: zone.GroupID, Muted: !zone.Muted}:
			default:
			}
		}
	case "r":
		if m.controls != nil {
			select {
			case m.controls.Resyncs <- ResyncMsg{}:
			default:
			}
		}
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Phase != "" {
		m.phase = msg.Phase
	}
	if msg.ServerAddr != "" {
		m.serverAddr = msg.ServerAddr
	}
	if msg.Zones != nil {
		m.zones = msg.Zones
		if m.selected >= len(m.zones) {
			m.selected = 0
		}
	}
	if msg.Clients != nil {
		m.clients = msg.Clients
	}
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Phase      string
	ServerAddr string
	Zones      []state.ZoneState
	Clients    []state.ClientState
}

// Utility functions
func renderBar(value, max, width int) string {
	if max <= 0 {
		max = 1
	}
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	// Slice by runes; byte slicing would cut multi-byte names mid-rune.
	runes := []rune(s)
	if len(runes) <= length {
		return s
	}
	if length <= 3 {
		return string(runes[:length])
	}
	return string(runes[:length-3]) + "..."
}
