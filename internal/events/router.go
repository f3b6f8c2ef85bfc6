// ABOUTME: Method-keyed router for server-pushed notifications
// ABOUTME: Fans inbound frames out to handlers in registration order
package events

import (
	"encoding/json"
	"log"
	"strings"
)

// Handler consumes one notification. Handlers run synchronously on the
// receive path and must hand long-running work off to their own goroutines.
type Handler func(method string, params json.RawMessage)

type registration struct {
	pattern string
	handler Handler
}

// Router maps notification method names to handlers. A pattern either names
// a method exactly or, when it ends with a dot, matches an entity-kind
// namespace like "Client.".
type Router struct {
	registrations []registration
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{}
}

// Register adds a handler for a method name or namespace prefix. Handlers
// for the same frame run in registration order.
func (r *Router) Register(pattern string, h Handler) {
	r.registrations = append(r.registrations, registration{pattern: pattern, handler: h})
}

// Dispatch routes one notification to every matching handler. Unmatched
// methods are logged and dropped, never fatal.
func (r *Router) Dispatch(method string, params json.RawMessage) {
	matched := false
	for _, reg := range r.registrations {
		if reg.matches(method) {
			matched = true
			reg.handler(method, params)
		}
	}

	if !matched {
		log.Printf("No handler for notification %s, dropping", method)
	}
}

func (reg registration) matches(method string) bool {
	if strings.HasSuffix(reg.pattern, ".") {
		return strings.HasPrefix(method, reg.pattern)
	}
	return reg.pattern == method
}
