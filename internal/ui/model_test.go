// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling, and selection bounds
package ui

import (
	"testing"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zonecast/zonecast-go/internal/state"
)

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModel(t *testing.T) {
	model := NewModel(nil) // Controls are optional for testing

	if model.phase != "disconnected" {
		t.Errorf("expected phase disconnected, got %q", model.phase)
	}

	if model.selected != 0 {
		t.Errorf("expected selection 0, got %d", model.selected)
	}
}

func TestStatusMsgUpdatesPhase(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{Phase: "live", ServerAddr: "10.0.0.5:1705"})

	if model.phase != "live" {
		t.Errorf("expected phase live, got %q", model.phase)
	}
	if model.serverAddr != "10.0.0.5:1705" {
		t.Errorf("unexpected server addr: %q", model.serverAddr)
	}
}

func TestStatusMsgUpdatesTopology(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{
		Zones: []state.ZoneState{
			{GroupID: "g1", Zone: "living-room", StreamID: "s1"},
		},
		Clients: []state.ClientState{
			{ID: "e1", Name: "kitchen", Connected: true, Percent: 40},
		},
	})

	if len(model.zones) != 1 || model.zones[0].Zone != "living-room" {
		t.Errorf("unexpected zones: %+v", model.zones)
	}
	if len(model.clients) != 1 || model.clients[0].Percent != 40 {
		t.Errorf("unexpected clients: %+v", model.clients)
	}
}

func TestSelectionClampedWhenZonesShrink(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{Zones: []state.ZoneState{
		{GroupID: "g1"}, {GroupID: "g2"}, {GroupID: "g3"},
	}})
	model.selected = 2

	model.applyStatus(StatusMsg{Zones: []state.ZoneState{{GroupID: "g1"}}})

	if model.selected != 0 {
		t.Errorf("expected selection reset, got %d", model.selected)
	}
}

func TestMuteKeySendsToggle(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)

	model.applyStatus(StatusMsg{Zones: []state.ZoneState{
		{GroupID: "g1", Muted: false},
	}})

	model.handleKey(keyMsg("m"))

	select {
	case toggle := <-controls.MuteToggles:
		if toggle.GroupID != "g1" || !toggle.Muted {
			t.Errorf("unexpected toggle: %+v", toggle)
		}
	default:
		t.Error("mute key sent no toggle")
	}
}

func TestResyncKey(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)

	model.handleKey(keyMsg("r"))

	select {
	case <-controls.Resyncs:
	default:
		t.Error("resync key sent no request")
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	got := truncate("Küche-Lautsprecher", 10)

	if !utf8.ValidString(got) {
		t.Errorf("truncation produced invalid UTF-8: %q", got)
	}
	if got != "Küche-L..." {
		t.Errorf("unexpected truncation: %q", got)
	}

	if short := truncate("Büro", 10); short != "Büro" {
		t.Errorf("short name should pass through, got %q", short)
	}
	if tiny := truncate("Küche", 2); tiny != "Kü" {
		t.Errorf("unexpected tiny truncation: %q", tiny)
	}
}

func TestViewRendersWithoutTopology(t *testing.T) {
	model := NewModel(nil)
	model.width = 80
	model.height = 24

	view := model.View()
	if view == "" {
		t.Error("expected non-empty view")
	}
}
