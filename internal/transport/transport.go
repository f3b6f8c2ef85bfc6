// ABOUTME: Transport contract for the control channel
// ABOUTME: One complete logical message in, one out, no protocol knowledge
package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned by Send when the channel is not open.
var ErrClosed = errors.New("transport closed")

// ConnectError wraps a failure to establish the channel
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Transport owns one control channel's lifecycle. Implementations deliver
// each inbound logical message on Messages and close that channel exactly
// once when the connection ends, for any reason. After Messages is closed,
// Err reports the cause (nil for a local Close).
type Transport interface {
	// Connect establishes the channel. It must be called before Send and
	// before reading Messages.
	Connect(ctx context.Context) error

	// Send writes one complete logical message.
	Send(msg []byte) error

	// Messages yields inbound logical messages until the channel closes.
	Messages() <-chan []byte

	// Err returns the closure cause once Messages is closed.
	Err() error

	// Close tears the channel down. Idempotent, safe from any state.
	Close() error
}
