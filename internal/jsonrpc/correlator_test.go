// ABOUTME: Tests for request/response correlation
// ABOUTME: Covers out-of-order resolution, timeouts, and disconnect failure
package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/zonecast/zonecast-go/internal/protocol"
)

// captureSender records every sent request for inspection
type captureSender struct {
	mu   sync.Mutex
	sent []protocol.Request
	err  error
}

func (s *captureSender) Send(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	var req protocol.Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return err
	}
	s.sent = append(s.sent, req)
	return nil
}

func (s *captureSender) lastID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[len(s.sent)-1].ID
}

func responseFrame(t *testing.T, id uint64, result string) *protocol.Frame {
	t.Helper()

	frame, err := protocol.DecodeFrame([]byte(fmt.Sprintf(`{"id":%d,"jsonrpc":"2.0","result":%s}`, id, result)))
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}
	return frame
}

func TestCallResolvesWithMatchingResponse(t *testing.T) {
	sender := &captureSender{}
	c := NewCorrelator(sender)

	done := make(chan struct{})
	var result json.RawMessage
	var callErr error

	go func() {
		defer close(done)
		result, callErr = c.Call(context.Background(), "Server.GetRPCVersion", nil)
	}()

	waitPending(t, c, 1)
	c.Resolve(responseFrame(t, sender.lastID(), `{"major":2}`))

	<-done
	if callErr != nil {
		t.Fatalf("call: %v", callErr)
	}
	if string(result) != `{"major":2}` {
		t.Errorf("unexpected result: %s", result)
	}
}

func TestOutOfOrderResolution(t *testing.T) {
	sender := &captureSender{}
	c := NewCorrelator(sender)

	const calls = 8
	results := make([]json.RawMessage, calls)
	errs := make([]error, calls)

	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Call(context.Background(), "Server.GetStatus", nil)
		}(i)
	}

	waitPending(t, c, calls)

	// Resolve in reverse id order; each caller must still get its own.
	sender.mu.Lock()
	ids := make([]uint64, len(sender.sent))
	for i, req := range sender.sent {
		ids[i] = req.ID
	}
	sender.mu.Unlock()

	for i := len(ids) - 1; i >= 0; i-- {
		c.Resolve(responseFrame(t, ids[i], fmt.Sprintf(`{"echo":%d}`, ids[i])))
	}

	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < calls; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		var payload struct {
			Echo uint64 `json:"echo"`
		}
		if err := json.Unmarshal(results[i], &payload); err != nil {
			t.Fatalf("call %d result: %v", i, err)
		}
		if seen[string(results[i])] {
			t.Errorf("result %s delivered twice", results[i])
		}
		seen[string(results[i])] = true
	}
}

func TestUnknownResponseIDDiscarded(t *testing.T) {
	sender := &captureSender{}
	c := NewCorrelator(sender)

	done := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), "Server.GetStatus", nil)
		done <- err
	}()

	waitPending(t, c, 1)

	// A response nobody asked for must not touch the pending call.
	c.Resolve(responseFrame(t, 9999, `{}`))

	select {
	case err := <-done:
		t.Fatalf("pending call resolved by unknown id: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	c.Resolve(responseFrame(t, sender.lastID(), `{}`))
	if err := <-done; err != nil {
		t.Fatalf("call: %v", err)
	}
}

func TestDisconnectFailsAllPendingOnce(t *testing.T) {
	sender := &captureSender{}
	c := NewCorrelator(sender)

	const calls = 5
	errs := make(chan error, calls)

	for i := 0; i < calls; i++ {
		go func() {
			_, err := c.Call(context.Background(), "Server.GetStatus", nil)
			errs <- err
		}()
	}

	waitPending(t, c, calls)
	c.FailAll(nil)

	for i := 0; i < calls; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, ErrConnectionLost) {
				t.Errorf("expected ErrConnectionLost, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("pending call not failed after disconnect")
		}
	}

	if c.Pending() != 0 {
		t.Errorf("expected no pending calls, got %d", c.Pending())
	}

	// New calls fail fast rather than hang.
	_, err := c.Call(context.Background(), "Server.GetStatus", nil)
	if !errors.Is(err, ErrConnectionLost) {
		t.Errorf("expected fail-fast ErrConnectionLost, got %v", err)
	}
}

func TestTimeoutRetiresIDAndDropsLateResponse(t *testing.T) {
	sender := &captureSender{}
	c := NewCorrelator(sender)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Call(ctx, "Server.GetStatus", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	if c.Pending() != 0 {
		t.Fatalf("timed-out id not retired, %d pending", c.Pending())
	}

	// The late response must be a harmless no-op.
	c.Resolve(responseFrame(t, sender.lastID(), `{}`))
}

func TestCancelledContextReturnsCancellation(t *testing.T) {
	sender := &captureSender{}
	c := NewCorrelator(sender)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Call(ctx, "Server.GetStatus", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("cancellation must not masquerade as timeout")
	}
}

func TestRemoteErrorSurfacedToCallerOnly(t *testing.T) {
	sender := &captureSender{}
	c := NewCorrelator(sender)

	failing := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), "Group.SetStream", nil)
		failing <- err
	}()

	waitPending(t, c, 1)
	failingID := sender.lastID()

	healthy := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), "Server.GetStatus", nil)
		healthy <- err
	}()

	waitPending(t, c, 2)

	errFrame, err := protocol.DecodeFrame([]byte(fmt.Sprintf(
		`{"id":%d,"jsonrpc":"2.0","error":{"code":-32602,"message":"Stream not found"}}`, failingID)))
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}
	c.Resolve(errFrame)

	var remote *RemoteError
	if err := <-failing; !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	} else if remote.Code != -32602 || remote.Message != "Stream not found" {
		t.Errorf("unexpected remote error: %+v", remote)
	}

	// The other call is unaffected.
	c.Resolve(responseFrame(t, sender.lastID(), `{}`))
	if err := <-healthy; err != nil {
		t.Errorf("healthy call failed: %v", err)
	}
}

func TestSendFailureRetiresID(t *testing.T) {
	sender := &captureSender{err: errors.New("boom")}
	c := NewCorrelator(sender)

	_, err := c.Call(context.Background(), "Server.GetStatus", nil)
	if err == nil {
		t.Fatal("expected send failure")
	}
	if c.Pending() != 0 {
		t.Errorf("failed send left %d pending entries", c.Pending())
	}
}

// waitPending polls until the correlator holds n in-flight calls
func waitPending(t *testing.T, c *Correlator, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Pending() == n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("never reached %d pending calls (have %d)", n, c.Pending())
}
