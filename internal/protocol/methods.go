// ABOUTME: Method name constants for the Snapcast JSON-RPC API
// ABOUTME: Covers both request methods and server-pushed notifications
package protocol

// Request methods
const (
	MethodServerGetStatus     = "Server.GetStatus"
	MethodServerGetRPCVersion = "Server.GetRPCVersion"
	MethodServerDeleteClient  = "Server.DeleteClient"
	MethodClientSetVolume     = "Client.SetVolume"
	MethodClientSetLatency    = "Client.SetLatency"
	MethodClientSetName       = "Client.SetName"
	MethodGroupSetStream      = "Group.SetStream"
	MethodGroupSetMute        = "Group.SetMute"
	MethodGroupSetClients     = "Group.SetClients"
	MethodGroupSetName        = "Group.SetName"
)

// Notification methods
const (
	NotifyClientConnect        = "Client.OnConnect"
	NotifyClientDisconnect     = "Client.OnDisconnect"
	NotifyClientVolumeChanged  = "Client.OnVolumeChanged"
	NotifyClientLatencyChanged = "Client.OnLatencyChanged"
	NotifyClientNameChanged    = "Client.OnNameChanged"
	NotifyGroupMute            = "Group.OnMute"
	NotifyGroupStreamChanged   = "Group.OnStreamChanged"
	NotifyGroupNameChanged     = "Group.OnNameChanged"
	NotifyStreamUpdate         = "Stream.OnUpdate"
	NotifyServerUpdate         = "Server.OnUpdate"
)

// Entity-kind prefixes for routing notifications by namespace
const (
	PrefixClient = "Client."
	PrefixGroup  = "Group."
	PrefixStream = "Stream."
	PrefixServer = "Server."
)
