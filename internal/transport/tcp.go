// ABOUTME: Line-framed TCP transport for the Snapcast control port
// ABOUTME: One newline-delimited JSON object per logical message
package transport

import (
	"bufio"
	"bytes"
	"context"
	"log"
	"net"
	"sync"
	"time"
)

const (
	dialTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
)

// TCP talks newline-delimited JSON over a plain TCP connection, the framing
// the Snapcast server uses on its control port (1705).
type TCP struct {
	addr string

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      net.Conn
	receiving bool

	msgs      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	err       error
	errMu     sync.Mutex
}

// NewTCP creates a transport for the given host:port
func NewTCP(addr string) *TCP {
	return &TCP{
		addr: addr,
		msgs: make(chan []byte, 32),
		done: make(chan struct{}),
	}
}

// Connect dials the server and starts the receive loop
func (t *TCP) Connect(ctx context.Context) error {
	select {
	case <-t.done:
		return &ConnectError{Addr: t.addr, Err: ErrClosed}
	default:
	}

	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return &ConnectError{Addr: t.addr, Err: err}
	}

	t.mu.Lock()
	t.conn = conn
	t.receiving = true
	t.mu.Unlock()

	go t.receiveLoop(conn)

	return nil
}

// Send writes one message followed by the line terminator. Writes are
// serialized so concurrent callers cannot interleave partial messages.
func (t *TCP) Send(msg []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return ErrClosed
	}

	buf := make([]byte, 0, len(msg)+2)
	buf = append(buf, msg...)
	buf = append(buf, '\r', '\n')

	t.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := conn.Write(buf)
	t.writeMu.Unlock()

	if err != nil {
		t.shutdown(err)
		return err
	}

	return nil
}

// receiveLoop reads lines until the connection dies. bufio reassembles
// messages split across TCP segments and handles several messages arriving
// in one segment. Only this goroutine closes the message channel.
func (t *TCP) receiveLoop(conn net.Conn) {
	defer close(t.msgs)

	reader := bufio.NewReader(conn)

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			line = bytes.TrimRight(line, "\r\n")
			if len(line) > 0 {
				select {
				case t.msgs <- line:
				case <-t.done:
					return
				}
			}
		}
		if err != nil {
			t.shutdown(err)
			return
		}
	}
}

// Messages returns the inbound message channel
func (t *TCP) Messages() <-chan []byte {
	return t.msgs
}

// Err returns the closure cause after Messages is closed
func (t *TCP) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}

// Close tears the connection down; safe to call repeatedly
func (t *TCP) Close() error {
	t.shutdown(nil)
	return nil
}

// shutdown signals closure exactly once, recording the cause
func (t *TCP) shutdown(cause error) {
	t.closeOnce.Do(func() {
		t.errMu.Lock()
		t.err = cause
		t.errMu.Unlock()

		close(t.done)

		t.mu.Lock()
		conn := t.conn
		receiving := t.receiving
		t.conn = nil
		t.mu.Unlock()

		if conn != nil {
			conn.Close()
		}
		if !receiving {
			// Never connected, so no receive loop owns the channel.
			close(t.msgs)
		}

		if cause != nil {
			log.Printf("Control connection to %s lost: %v", t.addr, cause)
		}
	})
}
