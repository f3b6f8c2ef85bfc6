// ABOUTME: Connection supervisor for the audio server's control plane
// ABOUTME: Owns reconnect, snapshot sync, frame routing, and the call surface
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zonecast/zonecast-go/internal/events"
	"github.com/zonecast/zonecast-go/internal/jsonrpc"
	"github.com/zonecast/zonecast-go/internal/protocol"
	"github.com/zonecast/zonecast-go/internal/state"
	"github.com/zonecast/zonecast-go/internal/transport"
)

const (
	defaultCallTimeout      = 10 * time.Second
	defaultReconnectInitial = time.Second
	defaultReconnectMax     = 30 * time.Second
)

// Config holds controller settings. Zones maps configured zone names to
// server group ids; that mapping is injected, never inferred.
type Config struct {
	CallTimeout      time.Duration
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	Zones            map[string]string
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.ReconnectInitial <= 0 {
		cfg.ReconnectInitial = defaultReconnectInitial
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = defaultReconnectMax
	}
	return cfg
}

// Controller is the control-plane client: one persistent channel to the
// audio server, request correlation, notification routing, and the
// projected topology model.
type Controller struct {
	cfg          Config
	newTransport func() transport.Transport

	projector *state.Projector
	bus       *events.Bus
	router    *events.Router

	phase  atomic.Int32
	resync chan struct{}

	mu   sync.Mutex
	corr *jsonrpc.Correlator

	syncGen  atomic.Uint64
	syncMu   sync.Mutex
	lastSync uint64
}

// New creates a controller that dials new transports from the given
// factory. Transports are single-use; every reconnect gets a fresh one.
func New(cfg Config, newTransport func() transport.Transport) *Controller {
	c := &Controller{
		cfg:          cfg.withDefaults(),
		newTransport: newTransport,
		projector:    state.NewProjector(),
		bus:          events.NewBus(),
		router:       events.NewRouter(),
		resync:       make(chan struct{}, 1),
	}

	groupToZone := make(map[string]string, len(c.cfg.Zones))
	for zone, group := range c.cfg.Zones {
		groupToZone[group] = zone
	}
	c.projector.SetZoneMapping(groupToZone)

	c.router.Register(protocol.PrefixClient, c.applyEntityNotification)
	c.router.Register(protocol.PrefixGroup, c.applyEntityNotification)
	c.router.Register(protocol.PrefixStream, c.applyEntityNotification)
	c.router.Register(protocol.NotifyServerUpdate, func(string, json.RawMessage) {
		c.RequestResync()
	})

	return c
}

// Run connects and keeps the channel alive until the context is cancelled,
// reconnecting with exponential backoff. Notifications may have been missed
// while disconnected, so every re-entry to Live starts with a fresh
// snapshot fetch rather than trusting stale incremental state.
func (c *Controller) Run(ctx context.Context) error {
	defer c.bus.Close()

	backoff := c.cfg.ReconnectInitial

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.setPhase(Connecting)
		tr := c.newTransport()

		if err := tr.Connect(ctx); err != nil {
			log.Printf("Control connect failed: %v (retrying in %s)", err, backoff)
			c.setPhase(Disconnected)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, c.cfg.ReconnectMax)
			continue
		}

		corr := jsonrpc.NewCorrelator(tr)
		c.setCorrelator(corr)

		recvDone := make(chan struct{})
		go c.receive(ctx, tr, corr, recvDone)

		c.setPhase(Synchronizing)
		if err := c.syncSnapshot(ctx, corr); err != nil {
			log.Printf("Snapshot sync failed: %v (retrying in %s)", err, backoff)
			tr.Close()
			<-recvDone
			c.teardown(corr)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, c.cfg.ReconnectMax)
			continue
		}

		c.setPhase(Live)
		c.bus.Publish(events.ServerConnectionChanged{Connected: true})
		backoff = c.cfg.ReconnectInitial

		<-recvDone
		c.teardown(corr)
		c.bus.Publish(events.ServerConnectionChanged{Connected: false})

		if err := ctx.Err(); err != nil {
			return err
		}

		log.Printf("Control channel lost, reconnecting in %s", backoff)
		if !sleepCtx(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, c.cfg.ReconnectMax)
	}
}

// receive is the single receive path: it routes every inbound frame until
// the transport closes. Responses go to the correlator, the rest to the
// notification router.
func (c *Controller) receive(ctx context.Context, tr transport.Transport, corr *jsonrpc.Correlator, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			// Ordered shutdown: close the transport, then drain until
			// the message channel closes.
			tr.Close()
			for range tr.Messages() {
			}
			return

		case msg, ok := <-tr.Messages():
			if !ok {
				return
			}
			c.route(ctx, msg, corr)

		case <-c.resync:
			// The snapshot fetch must not run on the receive path; its
			// own response has to flow through here to resolve.
			go func() {
				if err := c.syncSnapshot(ctx, corr); err != nil {
					log.Printf("Topology resync failed: %v", err)
				}
			}()
		}
	}
}

// route classifies one frame by the presence of a response id
func (c *Controller) route(ctx context.Context, msg []byte, corr *jsonrpc.Correlator) {
	frame, err := protocol.DecodeFrame(msg)
	if err != nil {
		log.Printf("Dropping malformed frame: %v", err)
		return
	}

	if frame.IsResponse() {
		corr.Resolve(frame)
		return
	}

	c.router.Dispatch(frame.Method, frame.Params)
}

// applyEntityNotification feeds one notification through the projector and
// publishes whatever diffs it produced.
func (c *Controller) applyEntityNotification(method string, params json.RawMessage) {
	evs, err := c.projector.ApplyNotification(method, params)
	if err != nil {
		log.Printf("Dropping malformed %s notification: %v", method, err)
		return
	}
	c.bus.PublishAll(evs)
}

// syncSnapshot fetches the full topology and applies it atomically. Fetches
// can overlap (a resync racing the reconnect-path sync, or two resyncs), so
// each one takes a generation number up front and application is serialized
// on that number.
func (c *Controller) syncSnapshot(ctx context.Context, corr *jsonrpc.Correlator) error {
	gen := c.syncGen.Add(1)

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	result, err := corr.Call(callCtx, protocol.MethodServerGetStatus, nil)
	if err != nil {
		return err
	}

	var status protocol.ServerStatus
	if err := json.Unmarshal(result, &status); err != nil {
		return fmt.Errorf("parse server status: %w", err)
	}

	c.applySnapshot(gen, status)
	return nil
}

// applySnapshot applies one fetched snapshot unless a later fetch has
// already landed; applying out of order would revert the model to stale
// topology and publish diffs for changes the server never made.
func (c *Controller) applySnapshot(gen uint64, status protocol.ServerStatus) {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	if gen <= c.lastSync {
		log.Printf("Discarding stale topology snapshot (fetch %d, newest %d)", gen, c.lastSync)
		return
	}
	c.lastSync = gen

	c.bus.PublishAll(c.projector.ApplySnapshot(status))
}

// teardown fails all pending calls after a connection ends
func (c *Controller) teardown(corr *jsonrpc.Correlator) {
	c.setCorrelator(nil)
	corr.FailAll(jsonrpc.ErrConnectionLost)
	c.setPhase(Disconnected)
}

// RequestResync schedules a full topology re-fetch. Requests made while one
// is already queued coalesce.
func (c *Controller) RequestResync() {
	select {
	case c.resync <- struct{}{}:
	default:
	}
}

// Phase returns the current lifecycle phase
func (c *Controller) Phase() Phase {
	return Phase(c.phase.Load())
}

// Subscribe attaches a consumer to the change-event stream
func (c *Controller) Subscribe(buffer int) *events.Subscription {
	return c.bus.Subscribe(buffer)
}

// Client returns the projected view of one endpoint
func (c *Controller) Client(id string) (state.ClientState, bool) {
	return c.projector.Client(id)
}

// Clients returns every projected endpoint
func (c *Controller) Clients() []state.ClientState {
	return c.projector.Clients()
}

// Zone returns the projected view of one group
func (c *Controller) Zone(groupID string) (state.ZoneState, bool) {
	return c.projector.Zone(groupID)
}

// Zones returns every projected group
func (c *Controller) Zones() []state.ZoneState {
	return c.projector.Zones()
}

// Status fetches the raw topology directly from the server
func (c *Controller) Status(ctx context.Context) (protocol.ServerStatus, error) {
	result, err := c.call(ctx, protocol.MethodServerGetStatus, nil)
	if err != nil {
		return protocol.ServerStatus{}, err
	}

	var status protocol.ServerStatus
	if err := json.Unmarshal(result, &status); err != nil {
		return protocol.ServerStatus{}, fmt.Errorf("parse server status: %w", err)
	}
	return status, nil
}

// RPCVersion asks the server which protocol revision it speaks
func (c *Controller) RPCVersion(ctx context.Context) (protocol.RPCVersion, error) {
	result, err := c.call(ctx, protocol.MethodServerGetRPCVersion, nil)
	if err != nil {
		return protocol.RPCVersion{}, err
	}

	var v protocol.RPCVersion
	if err := json.Unmarshal(result, &v); err != nil {
		return protocol.RPCVersion{}, fmt.Errorf("parse rpc version: %w", err)
	}
	return v, nil
}

// SetClientVolume sets one endpoint's volume percent
func (c *Controller) SetClientVolume(ctx context.Context, id string, percent int) error {
	_, err := c.call(ctx, protocol.MethodClientSetVolume, map[string]any{
		"id":     id,
		"volume": map[string]any{"percent": percent},
	})
	return err
}

// SetClientMute mutes or unmutes one endpoint
func (c *Controller) SetClientMute(ctx context.Context, id string, muted bool) error {
	_, err := c.call(ctx, protocol.MethodClientSetVolume, map[string]any{
		"id":     id,
		"volume": map[string]any{"muted": muted},
	})
	return err
}

// SetClientLatency sets one endpoint's playback latency in milliseconds
func (c *Controller) SetClientLatency(ctx context.Context, id string, latencyMs int) error {
	_, err := c.call(ctx, protocol.MethodClientSetLatency, map[string]any{
		"id":      id,
		"latency": latencyMs,
	})
	return err
}

// SetClientName renames one endpoint
func (c *Controller) SetClientName(ctx context.Context, id, name string) error {
	_, err := c.call(ctx, protocol.MethodClientSetName, map[string]any{
		"id":   id,
		"name": name,
	})
	return err
}

// DeleteClient removes a stale endpoint from the server
func (c *Controller) DeleteClient(ctx context.Context, id string) error {
	_, err := c.call(ctx, protocol.MethodServerDeleteClient, map[string]any{
		"id": id,
	})
	return err
}

// SetGroupStream assigns a stream to a group
func (c *Controller) SetGroupStream(ctx context.Context, groupID, streamID string) error {
	_, err := c.call(ctx, protocol.MethodGroupSetStream, map[string]any{
		"id":        groupID,
		"stream_id": streamID,
	})
	return err
}

// SetGroupMute mutes or unmutes a group
func (c *Controller) SetGroupMute(ctx context.Context, groupID string, muted bool) error {
	_, err := c.call(ctx, protocol.MethodGroupSetMute, map[string]any{
		"id":   groupID,
		"mute": muted,
	})
	return err
}

// SetGroupName renames a group
func (c *Controller) SetGroupName(ctx context.Context, groupID, name string) error {
	_, err := c.call(ctx, protocol.MethodGroupSetName, map[string]any{
		"id":   groupID,
		"name": name,
	})
	return err
}

// SetGroupClients replaces a group's membership
func (c *Controller) SetGroupClients(ctx context.Context, groupID string, clientIDs []string) error {
	_, err := c.call(ctx, protocol.MethodGroupSetClients, map[string]any{
		"id":      groupID,
		"clients": clientIDs,
	})
	return err
}

// SetZoneStream assigns a stream to a configured zone
func (c *Controller) SetZoneStream(ctx context.Context, zone, streamID string) error {
	groupID, err := c.groupForZone(zone)
	if err != nil {
		return err
	}
	return c.SetGroupStream(ctx, groupID, streamID)
}

// SetZoneMute mutes or unmutes a configured zone
func (c *Controller) SetZoneMute(ctx context.Context, zone string, muted bool) error {
	groupID, err := c.groupForZone(zone)
	if err != nil {
		return err
	}
	return c.SetGroupMute(ctx, groupID, muted)
}

func (c *Controller) groupForZone(zone string) (string, error) {
	groupID, ok := c.cfg.Zones[zone]
	if !ok {
		return "", fmt.Errorf("no group configured for zone %q", zone)
	}
	return groupID, nil
}

// call issues one correlated request, failing fast unless the channel is
// Live. During Synchronizing the channel is open but the model is not yet
// trustworthy, so callers wait out the sync and retry.
func (c *Controller) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.Phase() != Live {
		return nil, fmt.Errorf("%s: %w", method, jsonrpc.ErrConnectionLost)
	}

	c.mu.Lock()
	corr := c.corr
	c.mu.Unlock()

	if corr == nil {
		return nil, fmt.Errorf("%s: %w", method, jsonrpc.ErrConnectionLost)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	return corr.Call(callCtx, method, params)
}

func (c *Controller) setCorrelator(corr *jsonrpc.Correlator) {
	c.mu.Lock()
	c.corr = corr
	c.mu.Unlock()
}

func (c *Controller) setPhase(p Phase) {
	c.phase.Store(int32(p))
}

// nextBackoff doubles the delay up to the configured ceiling
func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

// sleepCtx waits out a backoff delay, reporting false on cancellation
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
