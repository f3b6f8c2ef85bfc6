// ABOUTME: Connection lifecycle phases for the control-plane client
// ABOUTME: Disconnected -> Connecting -> Synchronizing -> Live and back
package control

// Phase is the controller's position in its connection lifecycle
type Phase int32

const (
	// Disconnected means no channel is open; calls fail fast.
	Disconnected Phase = iota
	// Connecting means a dial is in flight.
	Connecting
	// Synchronizing means the channel is open and the snapshot fetch is
	// in flight; incremental state is not yet trustworthy.
	Synchronizing
	// Live means the snapshot is applied and notifications are being
	// applied incrementally.
	Live
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Synchronizing:
		return "synchronizing"
	case Live:
		return "live"
	default:
		return "unknown"
	}
}
