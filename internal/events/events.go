// ABOUTME: Typed change events emitted by the state projector
// ABOUTME: One event per changed attribute, tagged per notification kind
package events

// Event is implemented by every change event. Kind returns a stable name
// for logging and routing by consumers.
type Event interface {
	Kind() string
}

// EndpointDiscovered announces an endpoint seen for the first time. It is
// an initial-state event, not a field diff: there was no prior value to
// diff against.
type EndpointDiscovered struct {
	ID        string
	Name      string
	Connected bool
	Percent   int
	Muted     bool
	LatencyMs int
	GroupID   string
}

func (EndpointDiscovered) Kind() string { return "endpoint.discovered" }

// EndpointRemoved announces an endpoint missing from the latest snapshot
type EndpointRemoved struct {
	ID string
}

func (EndpointRemoved) Kind() string { return "endpoint.removed" }

// EndpointConnectivityChanged reports a connect or disconnect
type EndpointConnectivityChanged struct {
	ID        string
	Connected bool
}

func (EndpointConnectivityChanged) Kind() string { return "endpoint.connectivity" }

// EndpointVolumeChanged reports a volume or mute move for one endpoint
type EndpointVolumeChanged struct {
	ID      string
	Percent int
	Muted   bool
}

func (EndpointVolumeChanged) Kind() string { return "endpoint.volume" }

// EndpointLatencyChanged reports a latency adjustment for one endpoint
type EndpointLatencyChanged struct {
	ID        string
	LatencyMs int
}

func (EndpointLatencyChanged) Kind() string { return "endpoint.latency" }

// EndpointNameChanged reports a rename of one endpoint
type EndpointNameChanged struct {
	ID   string
	Name string
}

func (EndpointNameChanged) Kind() string { return "endpoint.name" }

// EndpointGroupChanged reports an endpoint moving between groups
type EndpointGroupChanged struct {
	ID      string
	GroupID string
}

func (EndpointGroupChanged) Kind() string { return "endpoint.group" }

// GroupDiscovered announces a group seen for the first time
type GroupDiscovered struct {
	ID       string
	Name     string
	Muted    bool
	StreamID string
}

func (GroupDiscovered) Kind() string { return "group.discovered" }

// GroupRemoved announces a group missing from the latest snapshot
type GroupRemoved struct {
	ID string
}

func (GroupRemoved) Kind() string { return "group.removed" }

// GroupMuteChanged reports a mute toggle for one group
type GroupMuteChanged struct {
	ID    string
	Muted bool
}

func (GroupMuteChanged) Kind() string { return "group.mute" }

// GroupStreamChanged reports a stream reassignment for one group
type GroupStreamChanged struct {
	ID       string
	StreamID string
}

func (GroupStreamChanged) Kind() string { return "group.stream" }

// GroupNameChanged reports a rename of one group
type GroupNameChanged struct {
	ID   string
	Name string
}

func (GroupNameChanged) Kind() string { return "group.name" }

// StreamDiscovered announces a stream seen for the first time
type StreamDiscovered struct {
	ID     string
	Status string
}

func (StreamDiscovered) Kind() string { return "stream.discovered" }

// StreamRemoved announces a stream missing from the latest snapshot
type StreamRemoved struct {
	ID string
}

func (StreamRemoved) Kind() string { return "stream.removed" }

// StreamStatusChanged reports a playback status move for one stream
type StreamStatusChanged struct {
	ID     string
	Status string
}

func (StreamStatusChanged) Kind() string { return "stream.status" }

// ServerConnectionChanged is the consolidated connectivity signal for the
// control channel itself.
type ServerConnectionChanged struct {
	Connected bool
}

func (ServerConnectionChanged) Kind() string { return "server.connection" }
