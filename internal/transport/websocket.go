// ABOUTME: WebSocket transport for the Snapcast control channel
// ABOUTME: One text frame per logical message, via the server's /jsonrpc endpoint
package transport

import (
	"context"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket talks the same JSON-RPC envelopes over the server's HTTP port,
// where each logical message is one websocket text frame.
type WebSocket struct {
	addr string

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	receiving bool

	msgs      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	err       error
	errMu     sync.Mutex
}

// NewWebSocket creates a transport for the given host:port
func NewWebSocket(addr string) *WebSocket {
	return &WebSocket{
		addr: addr,
		msgs: make(chan []byte, 32),
		done: make(chan struct{}),
	}
}

// Connect dials ws://addr/jsonrpc and starts the receive loop
func (w *WebSocket) Connect(ctx context.Context) error {
	select {
	case <-w.done:
		return &ConnectError{Addr: w.addr, Err: ErrClosed}
	default:
	}

	u := url.URL{Scheme: "ws", Host: w.addr, Path: "/jsonrpc"}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = dialTimeout

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return &ConnectError{Addr: w.addr, Err: err}
	}

	w.mu.Lock()
	w.conn = conn
	w.receiving = true
	w.mu.Unlock()

	go w.receiveLoop(conn)

	return nil
}

// Send writes one message as a single text frame. gorilla connections allow
// one concurrent writer, so writes are serialized on writeMu.
func (w *WebSocket) Send(msg []byte) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return ErrClosed
	}

	w.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := conn.WriteMessage(websocket.TextMessage, msg)
	w.writeMu.Unlock()

	if err != nil {
		w.shutdown(err)
		return err
	}

	return nil
}

// receiveLoop reads frames until the connection dies. Only this goroutine
// closes the message channel.
func (w *WebSocket) receiveLoop(conn *websocket.Conn) {
	defer close(w.msgs)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			w.shutdown(err)
			return
		}

		if messageType != websocket.TextMessage {
			log.Printf("Ignoring non-text websocket frame (type %d)", messageType)
			continue
		}

		select {
		case w.msgs <- data:
		case <-w.done:
			return
		}
	}
}

// Messages returns the inbound message channel
func (w *WebSocket) Messages() <-chan []byte {
	return w.msgs
}

// Err returns the closure cause after Messages is closed
func (w *WebSocket) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

// Close tears the connection down; safe to call repeatedly
func (w *WebSocket) Close() error {
	w.shutdown(nil)
	return nil
}

func (w *WebSocket) shutdown(cause error) {
	w.closeOnce.Do(func() {
		w.errMu.Lock()
		w.err = cause
		w.errMu.Unlock()

		close(w.done)

		w.mu.Lock()
		conn := w.conn
		receiving := w.receiving
		w.conn = nil
		w.mu.Unlock()

		if conn != nil {
			conn.Close()
		}
		if !receiving {
			close(w.msgs)
		}

		if cause != nil {
			log.Printf("Control connection to %s lost: %v", w.addr, cause)
		}
	})
}
