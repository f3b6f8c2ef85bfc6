// ABOUTME: Raw Snapcast topology entities mirrored from the server
// ABOUTME: Value records constructed once per received frame, never mutated
package protocol

import "encoding/json"

// Volume is a percent level plus a mute flag
type Volume struct {
	Percent int  `json:"percent"`
	Muted   bool `json:"muted"`
}

// ClientConfig holds the server-side settings for one endpoint
type ClientConfig struct {
	Instance int    `json:"instance"`
	Latency  int    `json:"latency"`
	Name     string `json:"name"`
	Volume   Volume `json:"volume"`
}

// Host describes the machine an endpoint runs on
type Host struct {
	Arch string `json:"arch"`
	IP   string `json:"ip"`
	MAC  string `json:"mac"`
	Name string `json:"name"`
	OS   string `json:"os"`
}

// LastSeen is the server's record of when an endpoint was last heard from
type LastSeen struct {
	Sec  int64 `json:"sec"`
	Usec int64 `json:"usec"`
}

// ClientVersion identifies the snapclient software on an endpoint
type ClientVersion struct {
	Name            string `json:"name"`
	ProtocolVersion int    `json:"protocolVersion"`
	Version         string `json:"version"`
}

// ClientInfo is one audio-receiving endpoint as the server reports it
type ClientInfo struct {
	ID        string        `json:"id"`
	Connected bool          `json:"connected"`
	Config    ClientConfig  `json:"config"`
	Host      Host          `json:"host"`
	LastSeen  LastSeen      `json:"lastSeen"`
	Snapcast  ClientVersion `json:"snapclient"`
}

// DisplayName returns the configured name, falling back to the hostname
func (c ClientInfo) DisplayName() string {
	if c.Config.Name != "" {
		return c.Config.Name
	}
	return c.Host.Name
}

// Group is an ordered set of endpoints sharing one stream
type Group struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Muted    bool         `json:"muted"`
	StreamID string       `json:"stream_id"`
	Clients  []ClientInfo `json:"clients"`
}

// StreamURI holds the source location of a stream
type StreamURI struct {
	Raw      string            `json:"raw"`
	Scheme   string            `json:"scheme"`
	Host     string            `json:"host"`
	Path     string            `json:"path"`
	Fragment string            `json:"fragment"`
	Query    map[string]string `json:"query"`
}

// Stream is a named audio source with a playback status
type Stream struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	URI    StreamURI `json:"uri"`
}

// Server holds the full topology: every group and every stream
type Server struct {
	Groups  []Group  `json:"groups"`
	Streams []Stream `json:"streams"`
}

// ServerStatus is the result payload of Server.GetStatus and the params
// payload of Server.OnUpdate: a complete, consistent snapshot produced by
// a single query.
type ServerStatus struct {
	Server Server `json:"server"`
}

// RPCVersion is the result payload of Server.GetRPCVersion
type RPCVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// Notification parameter payloads. Each addresses exactly one entity.

// ClientConnectParams carries the full endpoint record on (dis)connect
type ClientConnectParams struct {
	ID     string     `json:"id"`
	Client ClientInfo `json:"client"`
}

// ClientVolumeParams reports a volume change for one endpoint
type ClientVolumeParams struct {
	ID     string `json:"id"`
	Volume Volume `json:"volume"`
}

// ClientLatencyParams reports a latency change for one endpoint
type ClientLatencyParams struct {
	ID      string `json:"id"`
	Latency int    `json:"latency"`
}

// ClientNameParams reports a rename of one endpoint
type ClientNameParams struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GroupMuteParams reports a mute toggle for one group
type GroupMuteParams struct {
	ID   string `json:"id"`
	Mute bool   `json:"mute"`
}

// GroupStreamParams reports a stream reassignment for one group
type GroupStreamParams struct {
	ID       string `json:"id"`
	StreamID string `json:"stream_id"`
}

// GroupNameParams reports a rename of one group
type GroupNameParams struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StreamUpdateParams carries the full stream record on any stream change
type StreamUpdateParams struct {
	ID     string `json:"id"`
	Stream Stream `json:"stream"`
}

// DecodeParams unmarshals a notification payload into its typed form
func DecodeParams(params json.RawMessage, v any) error {
	return json.Unmarshal(params, v)
}
