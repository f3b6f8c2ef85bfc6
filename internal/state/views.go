// ABOUTME: Projected per-endpoint and per-zone views of the raw topology
// ABOUTME: Derived on demand, never stored; they have no lifecycle of their own
package state

// ClientState is the projected view of one endpoint, combining the raw
// endpoint record with the group it belongs to.
type ClientState struct {
	ID        string
	Name      string
	Connected bool
	Percent   int
	Muted     bool
	LatencyMs int
	GroupID   string
	Zone      string
}

// ZoneState is the projected audio-topology view of one group
type ZoneState struct {
	GroupID      string
	Name         string
	Zone         string
	Muted        bool
	StreamID     string
	StreamStatus string
}
