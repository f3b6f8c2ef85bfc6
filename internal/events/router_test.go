// ABOUTME: Tests for notification routing
// ABOUTME: Covers exact matches, namespace prefixes, and dispatch order
package events

import (
	"encoding/json"
	"testing"
)

func TestDispatchExactMatch(t *testing.T) {
	r := NewRouter()

	var got []string
	r.Register("Client.OnVolumeChanged", func(method string, params json.RawMessage) {
		got = append(got, method)
	})

	r.Dispatch("Client.OnVolumeChanged", nil)
	r.Dispatch("Client.OnConnect", nil)

	if len(got) != 1 || got[0] != "Client.OnVolumeChanged" {
		t.Errorf("unexpected dispatches: %v", got)
	}
}

func TestDispatchNamespacePrefix(t *testing.T) {
	r := NewRouter()

	var got []string
	r.Register("Group.", func(method string, params json.RawMessage) {
		got = append(got, method)
	})

	r.Dispatch("Group.OnMute", nil)
	r.Dispatch("Group.OnStreamChanged", nil)
	r.Dispatch("Client.OnConnect", nil)

	if len(got) != 2 {
		t.Fatalf("expected 2 dispatches, got %v", got)
	}
	if got[0] != "Group.OnMute" || got[1] != "Group.OnStreamChanged" {
		t.Errorf("unexpected dispatches: %v", got)
	}
}

func TestDispatchRegistrationOrder(t *testing.T) {
	r := NewRouter()

	var order []int
	r.Register("Server.OnUpdate", func(string, json.RawMessage) { order = append(order, 1) })
	r.Register("Server.", func(string, json.RawMessage) { order = append(order, 2) })
	r.Register("Server.OnUpdate", func(string, json.RawMessage) { order = append(order, 3) })

	r.Dispatch("Server.OnUpdate", nil)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("expected registration order 1,2,3, got %v", order)
	}
}

func TestDispatchUnmatchedIsNotFatal(t *testing.T) {
	r := NewRouter()

	// Must log and drop, not panic.
	r.Dispatch("Stream.OnProperties", json.RawMessage(`{}`))
}

func TestHandlerReceivesParams(t *testing.T) {
	r := NewRouter()

	var got json.RawMessage
	r.Register("Client.OnLatencyChanged", func(_ string, params json.RawMessage) {
		got = params
	})

	r.Dispatch("Client.OnLatencyChanged", json.RawMessage(`{"id":"e1","latency":20}`))

	if string(got) != `{"id":"e1","latency":20}` {
		t.Errorf("unexpected params: %s", got)
	}
}
