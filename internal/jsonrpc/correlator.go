// ABOUTME: Request/response correlation for the control channel
// ABOUTME: Tracks in-flight calls by id and resolves them out of order
package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/zonecast/zonecast-go/internal/protocol"
)

var (
	// ErrConnectionLost fails every pending call when the channel closes.
	ErrConnectionLost = errors.New("connection lost")

	// ErrTimeout fails a call whose deadline elapsed before a response.
	ErrTimeout = errors.New("request timed out")
)

// RemoteError is a server-returned error envelope for one specific request
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// Sender is the outbound half of a transport
type Sender interface {
	Send(msg []byte) error
}

type outcome struct {
	result json.RawMessage
	err    error
}

// Correlator assigns request ids, tracks in-flight requests, and resolves
// them when matching response frames arrive. Many calls may be pending at
// once; resolving one never blocks another.
type Correlator struct {
	sender Sender
	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan outcome
	failed  error
}

// NewCorrelator creates a correlator sending through the given transport
func NewCorrelator(sender Sender) *Correlator {
	return &Correlator{
		sender:  sender,
		pending: make(map[uint64]chan outcome),
	}
}

// Call sends one request and blocks until its response arrives, the context
// expires, or the connection is lost. Deadline expiry retires the id, so a
// late response is discarded rather than misapplied; ids are never reused
// within the process.
func (c *Correlator) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	ch := make(chan outcome, 1)

	c.mu.Lock()
	if c.failed != nil {
		err := c.failed
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	req := protocol.NewRequest(id, method, params)
	data, err := json.Marshal(req)
	if err != nil {
		c.retire(id)
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	if err := c.sender.Send(data); err != nil {
		c.retire(id)
		return nil, fmt.Errorf("send %s request: %w", method, err)
	}

	select {
	case out := <-ch:
		return out.result, out.err
	case <-ctx.Done():
		c.retire(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s (id %d)", ErrTimeout, method, id)
		}
		return nil, ctx.Err()
	}
}

// Resolve matches a response frame to its pending call. Frames with an
// unknown id are logged and discarded without affecting any pending call.
func (c *Correlator) Resolve(frame *protocol.Frame) {
	id, err := frame.ResponseID()
	if err != nil {
		log.Printf("Discarding response with unusable id: %v", err)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()

	if !ok {
		log.Printf("Discarding response for unknown or retired id %d", id)
		return
	}

	if frame.Error != nil {
		ch <- outcome{err: &RemoteError{Code: frame.Error.Code, Message: frame.Error.Message}}
		return
	}
	ch <- outcome{result: frame.Result}
}

// FailAll resolves every pending call as failed, exactly once each, and
// makes subsequent calls fail fast with the same cause.
func (c *Correlator) FailAll(cause error) {
	if cause == nil {
		cause = ErrConnectionLost
	}

	c.mu.Lock()
	c.failed = cause
	pending := c.pending
	c.pending = make(map[uint64]chan outcome)
	c.mu.Unlock()

	for id, ch := range pending {
		ch <- outcome{err: fmt.Errorf("%w (id %d)", cause, id)}
	}
}

// Pending reports the number of in-flight requests
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// retire removes a pending entry after timeout or cancellation
func (c *Correlator) retire(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
