// ABOUTME: Tests for snapshot application, notification patching, and diffing
// ABOUTME: Covers idempotence, single-attribute events, and unknown entities
package state

import (
	"encoding/json"
	"testing"

	"github.com/zonecast/zonecast-go/internal/events"
	"github.com/zonecast/zonecast-go/internal/protocol"
)

// topology builds a one-group, one-stream snapshot with endpoint e1 at
// volume 40, unmuted.
func topology() protocol.ServerStatus {
	return protocol.ServerStatus{
		Server: protocol.Server{
			Groups: []protocol.Group{{
				ID:       "g1",
				Name:     "Living Room",
				StreamID: "s1",
				Clients: []protocol.ClientInfo{{
					ID:        "e1",
					Connected: true,
					Config: protocol.ClientConfig{
						Name:    "kitchen",
						Latency: 10,
						Volume:  protocol.Volume{Percent: 40},
					},
				}},
			}},
			Streams: []protocol.Stream{{ID: "s1", Status: "playing"}},
		},
	}
}

func countKind(evs []events.Event, kind string) int {
	n := 0
	for _, ev := range evs {
		if ev.Kind() == kind {
			n++
		}
	}
	return n
}

func TestFirstSnapshotEmitsDiscoveryNotDiffs(t *testing.T) {
	p := NewProjector()

	evs := p.ApplySnapshot(topology())

	if n := countKind(evs, "stream.discovered"); n != 1 {
		t.Errorf("expected 1 stream discovery, got %d", n)
	}
	if n := countKind(evs, "group.discovered"); n != 1 {
		t.Errorf("expected 1 group discovery, got %d", n)
	}
	if n := countKind(evs, "endpoint.discovered"); n != 1 {
		t.Errorf("expected 1 endpoint discovery, got %d", n)
	}

	for _, ev := range evs {
		switch ev.(type) {
		case events.StreamDiscovered, events.GroupDiscovered, events.EndpointDiscovered:
		default:
			t.Errorf("first snapshot emitted a non-discovery event: %T", ev)
		}
	}
}

func TestIdenticalSnapshotIsIdempotent(t *testing.T) {
	p := NewProjector()
	p.ApplySnapshot(topology())

	evs := p.ApplySnapshot(topology())
	if len(evs) != 0 {
		t.Errorf("identical snapshot emitted %d events: %v", len(evs), evs)
	}
}

func TestSnapshotDiffEmitsOneEventPerAttribute(t *testing.T) {
	p := NewProjector()
	p.ApplySnapshot(topology())

	next := topology()
	next.Server.Groups[0].Muted = true
	next.Server.Groups[0].Clients[0].Config.Volume.Percent = 80
	next.Server.Streams[0].Status = "idle"

	evs := p.ApplySnapshot(next)

	if len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d: %v", len(evs), evs)
	}
	if countKind(evs, "group.mute") != 1 {
		t.Error("missing group mute event")
	}
	if countKind(evs, "endpoint.volume") != 1 {
		t.Error("missing endpoint volume event")
	}
	if countKind(evs, "stream.status") != 1 {
		t.Error("missing stream status event")
	}
}

func TestSnapshotRemovalEvents(t *testing.T) {
	p := NewProjector()
	p.ApplySnapshot(topology())

	empty := protocol.ServerStatus{}
	evs := p.ApplySnapshot(empty)

	if countKind(evs, "endpoint.removed") != 1 {
		t.Error("missing endpoint removal")
	}
	if countKind(evs, "group.removed") != 1 {
		t.Error("missing group removal")
	}
	if countKind(evs, "stream.removed") != 1 {
		t.Error("missing stream removal")
	}
}

func TestVolumeNotificationEmitsExactlyOneEvent(t *testing.T) {
	p := NewProjector()

	status := topology()
	status.Server.Groups[0].Clients = append(status.Server.Groups[0].Clients, protocol.ClientInfo{
		ID:        "e2",
		Connected: true,
		Config:    protocol.ClientConfig{Name: "bedroom", Volume: protocol.Volume{Percent: 55}},
	})
	p.ApplySnapshot(status)

	evs, err := p.ApplyNotification(protocol.NotifyClientVolumeChanged,
		json.RawMessage(`{"id":"e1","volume":{"percent":65,"muted":false}}`))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(evs) != 1 {
		t.Fatalf("expected exactly 1 event, got %d: %v", len(evs), evs)
	}

	vol, ok := evs[0].(events.EndpointVolumeChanged)
	if !ok {
		t.Fatalf("unexpected event type %T", evs[0])
	}
	if vol.ID != "e1" || vol.Percent != 65 || vol.Muted {
		t.Errorf("unexpected event: %+v", vol)
	}

	// Projected state follows the notification.
	view, ok := p.Client("e1")
	if !ok {
		t.Fatal("endpoint e1 missing")
	}
	if view.Percent != 65 {
		t.Errorf("expected projected volume 65, got %d", view.Percent)
	}

	// Unrelated endpoints are untouched.
	other, _ := p.Client("e2")
	if other.Percent != 55 {
		t.Errorf("unrelated endpoint changed: %+v", other)
	}
}

func TestNotificationIdempotence(t *testing.T) {
	p := NewProjector()
	p.ApplySnapshot(topology())

	payload := json.RawMessage(`{"id":"e1","volume":{"percent":65,"muted":false}}`)

	first, err := p.ApplyNotification(protocol.NotifyClientVolumeChanged, payload)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 event, got %d", len(first))
	}

	second, err := p.ApplyNotification(protocol.NotifyClientVolumeChanged, payload)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("identical notification emitted %d events", len(second))
	}
}

func TestUnknownEntityIgnored(t *testing.T) {
	p := NewProjector()
	p.ApplySnapshot(topology())

	evs, err := p.ApplyNotification(protocol.NotifyClientVolumeChanged,
		json.RawMessage(`{"id":"ghost","volume":{"percent":10,"muted":true}}`))
	if err != nil {
		t.Fatalf("unknown entity must not error: %v", err)
	}
	if len(evs) != 0 {
		t.Errorf("unknown entity emitted events: %v", evs)
	}
}

func TestMalformedNotificationReturnsError(t *testing.T) {
	p := NewProjector()
	p.ApplySnapshot(topology())

	if _, err := p.ApplyNotification(protocol.NotifyClientVolumeChanged,
		json.RawMessage(`{"id":`)); err == nil {
		t.Error("expected parse error")
	}
}

func TestGroupStreamChangeNotification(t *testing.T) {
	p := NewProjector()
	p.ApplySnapshot(topology())

	evs, err := p.ApplyNotification(protocol.NotifyGroupStreamChanged,
		json.RawMessage(`{"id":"g1","stream_id":"s2"}`))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	sc, ok := evs[0].(events.GroupStreamChanged)
	if !ok || sc.ID != "g1" || sc.StreamID != "s2" {
		t.Errorf("unexpected event: %+v", evs[0])
	}

	zone, ok := p.Zone("g1")
	if !ok {
		t.Fatal("group g1 missing")
	}
	if zone.StreamID != "s2" {
		t.Errorf("projected stream not updated: %+v", zone)
	}
}

func TestDisconnectNotification(t *testing.T) {
	p := NewProjector()
	p.ApplySnapshot(topology())

	evs, err := p.ApplyNotification(protocol.NotifyClientDisconnect,
		json.RawMessage(`{"id":"e1","client":{"id":"e1","connected":false,"config":{"name":"kitchen","latency":10,"volume":{"percent":40,"muted":false}}}}`))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if countKind(evs, "endpoint.connectivity") != 1 {
		t.Fatalf("expected connectivity event, got %v", evs)
	}

	view, _ := p.Client("e1")
	if view.Connected {
		t.Error("projected state still connected")
	}
}

func TestClientStateProjectsGroupAndZone(t *testing.T) {
	p := NewProjector()
	p.SetZoneMapping(map[string]string{"g1": "living-room"})
	p.ApplySnapshot(topology())

	view, ok := p.Client("e1")
	if !ok {
		t.Fatal("endpoint e1 missing")
	}
	if view.GroupID != "g1" {
		t.Errorf("expected group g1, got %q", view.GroupID)
	}
	if view.Zone != "living-room" {
		t.Errorf("expected zone living-room, got %q", view.Zone)
	}
	if view.Name != "kitchen" || view.LatencyMs != 10 {
		t.Errorf("unexpected view: %+v", view)
	}

	zone, ok := p.Zone("g1")
	if !ok {
		t.Fatal("group g1 missing")
	}
	if zone.Zone != "living-room" || zone.StreamID != "s1" || zone.StreamStatus != "playing" {
		t.Errorf("unexpected zone view: %+v", zone)
	}
}

func TestResetForgetsBaseline(t *testing.T) {
	p := NewProjector()
	p.ApplySnapshot(topology())
	p.Reset()

	if p.Synced() {
		t.Error("expected unsynced after reset")
	}

	evs := p.ApplySnapshot(topology())
	if countKind(evs, "endpoint.discovered") != 1 {
		t.Error("expected re-discovery after reset")
	}
}

func TestMembershipMoveEmitsGroupChange(t *testing.T) {
	p := NewProjector()

	status := topology()
	status.Server.Groups = append(status.Server.Groups, protocol.Group{ID: "g2", StreamID: "s1"})
	p.ApplySnapshot(status)

	moved := topology()
	moved.Server.Groups[0].Clients = nil
	moved.Server.Groups = append(moved.Server.Groups, protocol.Group{
		ID:       "g2",
		StreamID: "s1",
		Clients: []protocol.ClientInfo{{
			ID:        "e1",
			Connected: true,
			Config: protocol.ClientConfig{
				Name:    "kitchen",
				Latency: 10,
				Volume:  protocol.Volume{Percent: 40},
			},
		}},
	})

	evs := p.ApplySnapshot(moved)

	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d: %v", len(evs), evs)
	}
	gc, ok := evs[0].(events.EndpointGroupChanged)
	if !ok || gc.ID != "e1" || gc.GroupID != "g2" {
		t.Errorf("unexpected event: %+v", evs[0])
	}

	if gid, _ := p.GroupForClient("e1"); gid != "g2" {
		t.Errorf("membership index not updated: %q", gid)
	}
}
