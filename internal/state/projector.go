// ABOUTME: Projects raw topology snapshots and notifications into the domain model
// ABOUTME: Maintains last-known-good state and emits field-level diff events
package state

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/zonecast/zonecast-go/internal/events"
	"github.com/zonecast/zonecast-go/internal/protocol"
)

// Projector is the single consumer of topology data. The receive path is
// its only writer; readers always observe a fully applied snapshot, never
// a state mid-mutation.
type Projector struct {
	mu     sync.RWMutex
	synced bool

	groups      map[string]protocol.Group
	streams     map[string]protocol.Stream
	clients     map[string]protocol.ClientInfo
	clientGroup map[string]string
	zones       map[string]string // group id -> zone name, injected
}

// NewProjector creates an empty projector with no baseline
func NewProjector() *Projector {
	return &Projector{
		groups:      make(map[string]protocol.Group),
		streams:     make(map[string]protocol.Stream),
		clients:     make(map[string]protocol.ClientInfo),
		clientGroup: make(map[string]string),
		zones:       make(map[string]string),
	}
}

// SetZoneMapping injects the configured group-to-zone naming. Which zone
// maps to which group is configuration, not protocol.
func (p *Projector) SetZoneMapping(groupToZone map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.zones = make(map[string]string, len(groupToZone))
	for group, zone := range groupToZone {
		p.zones[group] = zone
	}
}

// ApplySnapshot replaces the entire raw model with a fresh topology query
// result and returns the change events it implies. The first application
// emits one discovery event per entity; later applications emit one event
// per changed attribute and removal events for vanished entities. Applying
// an identical snapshot twice emits nothing the second time.
func (p *Projector) ApplySnapshot(status protocol.ServerStatus) []events.Event {
	groups := make(map[string]protocol.Group, len(status.Server.Groups))
	clients := make(map[string]protocol.ClientInfo)
	clientGroup := make(map[string]string)
	for _, g := range status.Server.Groups {
		groups[g.ID] = g
		for _, c := range g.Clients {
			clients[c.ID] = c
			clientGroup[c.ID] = g.ID
		}
	}

	streams := make(map[string]protocol.Stream, len(status.Server.Streams))
	for _, s := range status.Server.Streams {
		streams[s.ID] = s
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var evs []events.Event
	if !p.synced {
		evs = p.discoveryEvents(streams, groups, clients, clientGroup)
	} else {
		evs = p.diffEvents(streams, groups, clients, clientGroup)
	}

	p.streams = streams
	p.groups = groups
	p.clients = clients
	p.clientGroup = clientGroup
	p.synced = true

	return evs
}

// discoveryEvents emits initial-state events for a first snapshot. There is
// no previous baseline to diff against.
func (p *Projector) discoveryEvents(streams map[string]protocol.Stream, groups map[string]protocol.Group, clients map[string]protocol.ClientInfo, clientGroup map[string]string) []events.Event {
	var evs []events.Event

	for _, id := range sortedKeys(streams) {
		s := streams[id]
		evs = append(evs, events.StreamDiscovered{ID: s.ID, Status: s.Status})
	}
	for _, id := range sortedKeys(groups) {
		g := groups[id]
		evs = append(evs, events.GroupDiscovered{ID: g.ID, Name: g.Name, Muted: g.Muted, StreamID: g.StreamID})
	}
	for _, id := range sortedKeys(clients) {
		c := clients[id]
		evs = append(evs, events.EndpointDiscovered{
			ID:        c.ID,
			Name:      c.DisplayName(),
			Connected: c.Connected,
			Percent:   c.Config.Volume.Percent,
			Muted:     c.Config.Volume.Muted,
			LatencyMs: c.Config.Latency,
			GroupID:   clientGroup[c.ID],
		})
	}

	return evs
}

// diffEvents compares a fresh snapshot against the current baseline
func (p *Projector) diffEvents(streams map[string]protocol.Stream, groups map[string]protocol.Group, clients map[string]protocol.ClientInfo, clientGroup map[string]string) []events.Event {
	var evs []events.Event

	for _, id := range sortedKeys(streams) {
		s := streams[id]
		old, known := p.streams[id]
		if !known {
			evs = append(evs, events.StreamDiscovered{ID: s.ID, Status: s.Status})
			continue
		}
		if old.Status != s.Status {
			evs = append(evs, events.StreamStatusChanged{ID: s.ID, Status: s.Status})
		}
	}
	for _, id := range sortedKeys(p.streams) {
		if _, still := streams[id]; !still {
			evs = append(evs, events.StreamRemoved{ID: id})
		}
	}

	for _, id := range sortedKeys(groups) {
		g := groups[id]
		old, known := p.groups[id]
		if !known {
			evs = append(evs, events.GroupDiscovered{ID: g.ID, Name: g.Name, Muted: g.Muted, StreamID: g.StreamID})
			continue
		}
		evs = append(evs, diffGroup(old, g)...)
	}
	for _, id := range sortedKeys(p.groups) {
		if _, still := groups[id]; !still {
			evs = append(evs, events.GroupRemoved{ID: id})
		}
	}

	for _, id := range sortedKeys(clients) {
		c := clients[id]
		old, known := p.clients[id]
		if !known {
			evs = append(evs, events.EndpointDiscovered{
				ID:        c.ID,
				Name:      c.DisplayName(),
				Connected: c.Connected,
				Percent:   c.Config.Volume.Percent,
				Muted:     c.Config.Volume.Muted,
				LatencyMs: c.Config.Latency,
				GroupID:   clientGroup[c.ID],
			})
			continue
		}
		evs = append(evs, diffClient(old, c)...)
		if p.clientGroup[id] != clientGroup[id] {
			evs = append(evs, events.EndpointGroupChanged{ID: id, GroupID: clientGroup[id]})
		}
	}
	for _, id := range sortedKeys(p.clients) {
		if _, still := clients[id]; !still {
			evs = append(evs, events.EndpointRemoved{ID: id})
		}
	}

	return evs
}

// ApplyNotification patches the single entity a notification addresses and
// returns diffs for that entity alone. Notifications for entities this
// client has not learned about yet are logged and ignored; that race is
// expected during startup. A parse failure is returned to the caller.
func (p *Projector) ApplyNotification(method string, params json.RawMessage) ([]events.Event, error) {
	switch method {
	case protocol.NotifyClientConnect, protocol.NotifyClientDisconnect:
		var n protocol.ClientConnectParams
		if err := protocol.DecodeParams(params, &n); err != nil {
			return nil, fmt.Errorf("parse %s: %w", method, err)
		}
		connected := method == protocol.NotifyClientConnect
		return p.patchClient(n.ID, func(c protocol.ClientInfo) protocol.ClientInfo {
			next := n.Client
			next.ID = n.ID
			next.Connected = connected
			return next
		}), nil

	case protocol.NotifyClientVolumeChanged:
		var n protocol.ClientVolumeParams
		if err := protocol.DecodeParams(params, &n); err != nil {
			return nil, fmt.Errorf("parse %s: %w", method, err)
		}
		return p.patchClient(n.ID, func(c protocol.ClientInfo) protocol.ClientInfo {
			c.Config.Volume = n.Volume
			return c
		}), nil

	case protocol.NotifyClientLatencyChanged:
		var n protocol.ClientLatencyParams
		if err := protocol.DecodeParams(params, &n); err != nil {
			return nil, fmt.Errorf("parse %s: %w", method, err)
		}
		return p.patchClient(n.ID, func(c protocol.ClientInfo) protocol.ClientInfo {
			c.Config.Latency = n.Latency
			return c
		}), nil

	case protocol.NotifyClientNameChanged:
		var n protocol.ClientNameParams
		if err := protocol.DecodeParams(params, &n); err != nil {
			return nil, fmt.Errorf("parse %s: %w", method, err)
		}
		return p.patchClient(n.ID, func(c protocol.ClientInfo) protocol.ClientInfo {
			c.Config.Name = n.Name
			return c
		}), nil

	case protocol.NotifyGroupMute:
		var n protocol.GroupMuteParams
		if err := protocol.DecodeParams(params, &n); err != nil {
			return nil, fmt.Errorf("parse %s: %w", method, err)
		}
		return p.patchGroup(n.ID, func(g protocol.Group) protocol.Group {
			g.Muted = n.Mute
			return g
		}), nil

	case protocol.NotifyGroupStreamChanged:
		var n protocol.GroupStreamParams
		if err := protocol.DecodeParams(params, &n); err != nil {
			return nil, fmt.Errorf("parse %s: %w", method, err)
		}
		return p.patchGroup(n.ID, func(g protocol.Group) protocol.Group {
			g.StreamID = n.StreamID
			return g
		}), nil

	case protocol.NotifyGroupNameChanged:
		var n protocol.GroupNameParams
		if err := protocol.DecodeParams(params, &n); err != nil {
			return nil, fmt.Errorf("parse %s: %w", method, err)
		}
		return p.patchGroup(n.ID, func(g protocol.Group) protocol.Group {
			g.Name = n.Name
			return g
		}), nil

	case protocol.NotifyStreamUpdate:
		var n protocol.StreamUpdateParams
		if err := protocol.DecodeParams(params, &n); err != nil {
			return nil, fmt.Errorf("parse %s: %w", method, err)
		}
		return p.patchStream(n.ID, n.Stream), nil

	default:
		log.Printf("Projector ignoring notification %s", method)
		return nil, nil
	}
}

// patchClient applies a mutation to one endpoint and diffs just that entity
func (p *Projector) patchClient(id string, mutate func(protocol.ClientInfo) protocol.ClientInfo) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	old, known := p.clients[id]
	if !known {
		log.Printf("Notification for unknown endpoint %q, ignoring", id)
		return nil
	}

	next := mutate(old)
	p.clients[id] = next

	if gid, ok := p.clientGroup[id]; ok {
		p.replaceGroupMember(gid, next)
	}

	return diffClient(old, next)
}

// replaceGroupMember keeps the group's member list in step with the
// per-client record.
func (p *Projector) replaceGroupMember(groupID string, c protocol.ClientInfo) {
	g, ok := p.groups[groupID]
	if !ok {
		return
	}

	members := make([]protocol.ClientInfo, len(g.Clients))
	copy(members, g.Clients)
	for i := range members {
		if members[i].ID == c.ID {
			members[i] = c
		}
	}
	g.Clients = members
	p.groups[groupID] = g
}

// patchGroup applies a mutation to one group and diffs just that entity
func (p *Projector) patchGroup(id string, mutate func(protocol.Group) protocol.Group) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	old, known := p.groups[id]
	if !known {
		log.Printf("Notification for unknown group %q, ignoring", id)
		return nil
	}

	next := mutate(old)
	p.groups[id] = next

	return diffGroup(old, next)
}

// patchStream replaces one stream record and diffs just that entity
func (p *Projector) patchStream(id string, next protocol.Stream) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	old, known := p.streams[id]
	if !known {
		log.Printf("Notification for unknown stream %q, ignoring", id)
		return nil
	}

	p.streams[id] = next

	if old.Status != next.Status {
		return []events.Event{events.StreamStatusChanged{ID: id, Status: next.Status}}
	}
	return nil
}

// diffClient emits one event per changed endpoint attribute
func diffClient(old, next protocol.ClientInfo) []events.Event {
	var evs []events.Event

	if old.Connected != next.Connected {
		evs = append(evs, events.EndpointConnectivityChanged{ID: next.ID, Connected: next.Connected})
	}
	if old.Config.Volume != next.Config.Volume {
		evs = append(evs, events.EndpointVolumeChanged{
			ID:      next.ID,
			Percent: next.Config.Volume.Percent,
			Muted:   next.Config.Volume.Muted,
		})
	}
	if old.Config.Latency != next.Config.Latency {
		evs = append(evs, events.EndpointLatencyChanged{ID: next.ID, LatencyMs: next.Config.Latency})
	}
	if old.DisplayName() != next.DisplayName() {
		evs = append(evs, events.EndpointNameChanged{ID: next.ID, Name: next.DisplayName()})
	}

	return evs
}

// diffGroup emits one event per changed group attribute
func diffGroup(old, next protocol.Group) []events.Event {
	var evs []events.Event

	if old.Muted != next.Muted {
		evs = append(evs, events.GroupMuteChanged{ID: next.ID, Muted: next.Muted})
	}
	if old.StreamID != next.StreamID {
		evs = append(evs, events.GroupStreamChanged{ID: next.ID, StreamID: next.StreamID})
	}
	if old.Name != next.Name {
		evs = append(evs, events.GroupNameChanged{ID: next.ID, Name: next.Name})
	}

	return evs
}

// Client returns the projected view of one endpoint
func (p *Projector) Client(id string) (ClientState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	c, ok := p.clients[id]
	if !ok {
		return ClientState{}, false
	}
	return p.clientView(c), true
}

// Clients returns every projected endpoint, ordered by id
func (p *Projector) Clients() []ClientState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	views := make([]ClientState, 0, len(p.clients))
	for _, id := range sortedKeys(p.clients) {
		views = append(views, p.clientView(p.clients[id]))
	}
	return views
}

// Zone returns the projected view of one group
func (p *Projector) Zone(groupID string) (ZoneState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	g, ok := p.groups[groupID]
	if !ok {
		return ZoneState{}, false
	}
	return p.zoneView(g), true
}

// Zones returns every projected group, ordered by id
func (p *Projector) Zones() []ZoneState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	views := make([]ZoneState, 0, len(p.groups))
	for _, id := range sortedKeys(p.groups) {
		views = append(views, p.zoneView(p.groups[id]))
	}
	return views
}

// GroupForClient returns the group an endpoint currently belongs to
func (p *Projector) GroupForClient(id string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	gid, ok := p.clientGroup[id]
	return gid, ok
}

// Synced reports whether a first snapshot has been applied
func (p *Projector) Synced() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.synced
}

// Reset forgets the baseline entirely; the next snapshot re-emits discovery
// events for everything.
func (p *Projector) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.synced = false
	p.groups = make(map[string]protocol.Group)
	p.streams = make(map[string]protocol.Stream)
	p.clients = make(map[string]protocol.ClientInfo)
	p.clientGroup = make(map[string]string)
}

func (p *Projector) clientView(c protocol.ClientInfo) ClientState {
	gid := p.clientGroup[c.ID]
	return ClientState{
		ID:        c.ID,
		Name:      c.DisplayName(),
		Connected: c.Connected,
		Percent:   c.Config.Volume.Percent,
		Muted:     c.Config.Volume.Muted,
		LatencyMs: c.Config.Latency,
		GroupID:   gid,
		Zone:      p.zones[gid],
	}
}

func (p *Projector) zoneView(g protocol.Group) ZoneState {
	return ZoneState{
		GroupID:      g.ID,
		Name:         g.Name,
		Zone:         p.zones[g.ID],
		Muted:        g.Muted,
		StreamID:     g.StreamID,
		StreamStatus: p.streams[g.StreamID].Status,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
