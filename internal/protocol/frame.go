// ABOUTME: JSON-RPC 2.0 envelope types for the Snapcast control channel
// ABOUTME: Handles encoding requests and classifying inbound frames
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the JSON-RPC protocol version sent with every request.
const Version = "2.0"

// ErrMalformed is wrapped by DecodeFrame for frames that parse but make no
// sense as a request, response, or notification.
var ErrMalformed = errors.New("malformed frame")

// Request is an outbound call envelope
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewRequest builds a request envelope with the protocol version set
func NewRequest(id uint64, method string, params any) Request {
	return Request{
		JSONRPC: Version,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// Error is a server-side error envelope for a specific request
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Frame is any inbound message: a response (ID set) or a notification
// (Method set, no ID). The presence of the id field is the sole
// discriminator.
type Frame struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsResponse reports whether the frame answers an outstanding request
func (f *Frame) IsResponse() bool {
	return len(f.ID) > 0
}

// ResponseID returns the numeric request id the frame answers. This client
// only ever sends numeric ids, so a response carrying anything else answers
// a request it never made.
func (f *Frame) ResponseID() (uint64, error) {
	if len(f.ID) == 0 {
		return 0, fmt.Errorf("%w: frame has no id", ErrMalformed)
	}
	var n json.Number
	if err := json.Unmarshal(f.ID, &n); err != nil {
		return 0, fmt.Errorf("%w: non-numeric response id %s", ErrMalformed, f.ID)
	}
	id, err := n.Int64()
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: non-numeric response id %s", ErrMalformed, f.ID)
	}
	return uint64(id), nil
}

// DecodeFrame parses one complete logical message from the wire
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(f.ID) == 0 && f.Method == "" {
		return nil, fmt.Errorf("%w: neither id nor method present", ErrMalformed)
	}
	return &f, nil
}
