package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/chorushq/chorus/pkg/logger"
	"github.com/chorushq/chorus/pkg/metrics"
)

// EventPublisher is what the service layer sees of the hub. Services depend
// on this interface, never on the concrete Hub, so tests can swap in a
// recording fake.
type EventPublisher interface {
	BroadcastToAll(event Event)
	BroadcastToAllExcept(excludeUserID string, event Event)
	BroadcastToUser(userID string, event Event)
	BroadcastToUsers(userIDs []string, event Event)
	BroadcastToServer(serverID string, event Event)
	BroadcastToChannelViewers(channelID string, event Event)
	GetOnlineUserIDs() []string
	IsUserOnline(userID string) bool
	DisconnectUser(userID string)
}

// MemberResolver answers "who belongs to this server" for scoped fan-out.
type MemberResolver interface {
	ServerMemberIDs(serverID string) ([]string, error)
}

// ChannelViewerResolver answers "who may see this channel", member overrides
// included. Backed by the permission engine; injected so ws never imports
// services.
type ChannelViewerResolver interface {
	ChannelViewerIDs(channelID string) ([]string, error)
}

// IntentHandler processes one inbound client intent. Handlers run on their
// own goroutine and must not block on hub channels.
type IntentHandler func(c *Client, data json.RawMessage)

// registration carries a connecting client; done, when non-nil, is closed
// once the hub has processed it.
type registration struct {
	client *Client
	done   chan struct{}
}

// Hub tracks every live connection and fans events out to them. A user can
// hold several connections at once (multiple tabs); presence edges fire only
// on the first connect and the last disconnect.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]bool
	closed  bool

	register   chan registration
	unregister chan *Client

	// seq numbers every outbound event; clients detect gaps.
	seq atomic.Int64

	sendBuffer int

	intentMu sync.RWMutex
	intents  map[string]IntentHandler

	invisibleMu sync.RWMutex
	invisible   map[string]bool

	memberResolver MemberResolver
	viewerResolver ChannelViewerResolver

	onUserFirstConnect      func(userID string)
	onUserFullyDisconnected func(userID string)
	onClientSync            func(c *Client)
}

// NewHub builds a hub; sendBuffer is the per-connection outbound queue size.
func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan registration),
		unregister: make(chan *Client),
		sendBuffer: sendBuffer,
		intents:    make(map[string]IntentHandler),
		invisible:  make(map[string]bool),
	}
}

// SetMemberResolver wires server-scoped fan-out. Must be set before Run.
func (h *Hub) SetMemberResolver(r MemberResolver) { h.memberResolver = r }

// SetChannelViewerResolver wires permission-filtered fan-out. Must be set
// before Run.
func (h *Hub) SetChannelViewerResolver(r ChannelViewerResolver) { h.viewerResolver = r }

// SetOnUserFirstConnect registers the callback fired when a user's first
// connection registers. Runs on its own goroutine.
func (h *Hub) SetOnUserFirstConnect(fn func(userID string)) { h.onUserFirstConnect = fn }

// SetOnUserFullyDisconnected registers the callback fired when a user's last
// connection drops. Runs on its own goroutine.
func (h *Hub) SetOnUserFullyDisconnected(fn func(userID string)) { h.onUserFullyDisconnected = fn }

// SetOnClientSync registers the callback fired for each new connection right
// after its ready event, used to push the voice state snapshot.
func (h *Hub) SetOnClientSync(fn func(c *Client)) { h.onClientSync = fn }

// RegisterIntent binds an inbound op name to its handler. The read pump
// dispatches by lookup; the hub itself knows nothing about any op.
func (h *Hub) RegisterIntent(op string, fn IntentHandler) {
	h.intentMu.Lock()
	defer h.intentMu.Unlock()
	h.intents[op] = fn
}

func (h *Hub) intent(op string) (IntentHandler, bool) {
	h.intentMu.RLock()
	defer h.intentMu.RUnlock()
	fn, ok := h.intents[op]
	return fn, ok
}

// Run consumes the register/unregister channels. Exactly one goroutine runs
// this loop, which is what makes the first-connect and last-disconnect edges
// race-free.
func (h *Hub) Run() {
	logger.L().Info("websocket hub started")
	for {
		select {
		case reg := <-h.register:
			h.addClient(reg.client)
			if reg.done != nil {
				close(reg.done)
			}
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// registerSync hands the client to the hub goroutine and returns once it has
// been processed, so the caller can observe its own presence (the connecting
// user must appear in their own ready payload).
func (h *Hub) registerSync(client *Client) {
	done := make(chan struct{})
	h.register <- registration{client: client, done: done}
	<-done
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		client.closeSend()
		return
	}
	conns, ok := h.clients[client.userID]
	if !ok {
		conns = make(map[*Client]bool)
		h.clients[client.userID] = conns
	}
	first := len(conns) == 0
	conns[client] = true
	h.mu.Unlock()

	metrics.ActiveConnections.Inc()
	logger.L().Debug("client connected",
		zap.String("user_id", client.userID),
		zap.Bool("first_connection", first))

	// Callbacks run off the hub goroutine so they may broadcast freely.
	if first && h.onUserFirstConnect != nil {
		go h.onUserFirstConnect(client.userID)
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	conns, ok := h.clients[client.userID]
	if !ok || !conns[client] {
		h.mu.Unlock()
		return
	}
	delete(conns, client)
	client.closeSend()
	last := len(conns) == 0
	if last {
		delete(h.clients, client.userID)
	}
	h.mu.Unlock()

	metrics.ActiveConnections.Dec()
	logger.L().Debug("client disconnected",
		zap.String("user_id", client.userID),
		zap.Bool("last_connection", last))

	if last {
		h.invisibleMu.Lock()
		delete(h.invisible, client.userID)
		h.invisibleMu.Unlock()
		if h.onUserFullyDisconnected != nil {
			go h.onUserFullyDisconnected(client.userID)
		}
	}
}

// deliver queues data on one connection without blocking. A full buffer
// means the consumer has stalled; it gets scheduled for unregistration.
func (h *Hub) deliver(client *Client, data []byte) {
	if client.trySend(data) == sendFull {
		metrics.SlowConsumersTotal.Inc()
		logger.L().Warn("dropping slow consumer",
			zap.String("user_id", client.userID))
		go func() { h.unregister <- client }()
	}
}

// fanout stamps the sequence number, marshals once, and delivers to every
// connection the include filter admits. A nil filter means everyone.
func (h *Hub) fanout(scope string, event Event, include func(userID string) bool) {
	event.Seq = h.seq.Add(1)
	data, err := json.Marshal(event)
	if err != nil {
		logger.L().Warn("event marshal failed",
			zap.String("op", event.Op), zap.Error(err))
		return
	}

	start := time.Now()
	metrics.EventsTotal.WithLabelValues(event.Op).Inc()

	h.mu.RLock()
	for userID, conns := range h.clients {
		if include != nil && !include(userID) {
			continue
		}
		for client := range conns {
			h.deliver(client, data)
		}
	}
	h.mu.RUnlock()

	metrics.FanoutDuration.WithLabelValues(scope).Observe(time.Since(start).Seconds())
}

// BroadcastToAll delivers to every connected client.
func (h *Hub) BroadcastToAll(event Event) {
	h.fanout("all", event, nil)
}

// BroadcastToAllExcept delivers to everyone but one user, typically the
// originator of the action.
func (h *Hub) BroadcastToAllExcept(excludeUserID string, event Event) {
	h.fanout("all_except", event, func(userID string) bool {
		return userID != excludeUserID
	})
}

// BroadcastToUser delivers to every connection of one user.
func (h *Hub) BroadcastToUser(userID string, event Event) {
	h.fanout("user", event, func(id string) bool { return id == userID })
}

// BroadcastToUsers delivers to every connection of each listed user.
func (h *Hub) BroadcastToUsers(userIDs []string, event Event) {
	if len(userIDs) == 0 {
		return
	}
	set := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		set[id] = true
	}
	h.fanout("users", event, func(id string) bool { return set[id] })
}

// BroadcastToServer delivers to online members of one server.
func (h *Hub) BroadcastToServer(serverID string, event Event) {
	if h.memberResolver == nil {
		logger.L().Error("server broadcast without member resolver",
			zap.String("op", event.Op))
		return
	}
	ids, err := h.memberResolver.ServerMemberIDs(serverID)
	if err != nil {
		logger.L().Warn("member resolve failed",
			zap.String("server_id", serverID), zap.Error(err))
		return
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	h.fanout("server", event, func(id string) bool { return set[id] })
}

// BroadcastToChannelViewers delivers only to users whose effective channel
// permissions include viewing the channel.
func (h *Hub) BroadcastToChannelViewers(channelID string, event Event) {
	if h.viewerResolver == nil {
		logger.L().Error("channel broadcast without viewer resolver",
			zap.String("op", event.Op))
		return
	}
	ids, err := h.viewerResolver.ChannelViewerIDs(channelID)
	if err != nil {
		logger.L().Warn("viewer resolve failed",
			zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	h.fanout("channel", event, func(id string) bool { return set[id] })
}

// GetOnlineUserIDs returns users with at least one live connection,
// excluding those who set themselves invisible.
func (h *Hub) GetOnlineUserIDs() []string {
	h.invisibleMu.RLock()
	invisible := make(map[string]bool, len(h.invisible))
	for id := range h.invisible {
		invisible[id] = true
	}
	h.invisibleMu.RUnlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		if invisible[userID] {
			continue
		}
		ids = append(ids, userID)
	}
	return ids
}

// IsUserOnline reports whether the user has any live connection, regardless
// of invisibility.
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// SetInvisible marks whether the user should be hidden from online lists.
func (h *Hub) SetInvisible(userID string, invisible bool) {
	h.invisibleMu.Lock()
	defer h.invisibleMu.Unlock()
	if invisible {
		h.invisible[userID] = true
	} else {
		delete(h.invisible, userID)
	}
}

// DisconnectUser force-closes every connection of one user (kick, ban,
// account deletion). Closing the socket makes the read pump exit, which
// unregisters the client through the normal path.
func (h *Hub) DisconnectUser(userID string) {
	h.mu.RLock()
	conns := make([]*Client, 0, len(h.clients[userID]))
	for client := range h.clients[userID] {
		conns = append(conns, client)
	}
	h.mu.RUnlock()

	for _, client := range conns {
		client.close()
	}
}

// Shutdown closes every send channel and stops accepting registrations.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, conns := range h.clients {
		for client := range conns {
			client.closeSend()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
	logger.L().Info("websocket hub shut down")
}
