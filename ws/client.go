package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/chorushq/chorus/pkg/logger"
	"github.com/chorushq/chorus/pkg/metrics"
	"github.com/chorushq/chorus/pkg"
)

const (
	// writeWait bounds every write, pings included.
	writeWait = 10 * time.Second

	// readWait is the inbound silence budget. Clients heartbeat at most
	// every 45s, so one missed beat still fits.
	readWait = 60 * time.Second

	// pingPeriod must be shorter than readWait; pongs refresh the deadline.
	pingPeriod = 30 * time.Second

	// maxMessageSize caps inbound frames. Anything bulky goes over HTTP.
	maxMessageSize = 4096
)

// send outcomes for trySend.
const (
	sendQueued = iota
	sendFull
	sendClosed
)

// Client is one WebSocket connection. Each connection runs two goroutines:
// ReadPump decodes intents and dispatches them through the hub's handler
// table, WritePump drains the send channel onto the socket.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   string
	username string

	// send is the outbound queue. Guarded by sendMu so a fan-out can
	// never race a close; closed exactly once, by the hub.
	send       chan []byte
	sendMu     chan struct{} // 1-slot semaphore; see trySend
	sendClosed bool
}

func newClient(hub *Hub, conn *websocket.Conn, userID, username string) *Client {
	c := &Client{
		hub:      hub,
		conn:     conn,
		userID:   userID,
		username: username,
		send:     make(chan []byte, hub.sendBuffer),
		sendMu:   make(chan struct{}, 1),
	}
	c.sendMu <- struct{}{}
	return c
}

// UserID returns the authenticated user behind this connection.
func (c *Client) UserID() string { return c.userID }

// Username returns the username captured from the token at handshake.
func (c *Client) Username() string { return c.username }

// trySend queues data without blocking. The channel-based semaphore keeps
// the close in closeSend mutually exclusive with every send attempt.
func (c *Client) trySend(data []byte) int {
	<-c.sendMu
	defer func() { c.sendMu <- struct{}{} }()
	if c.sendClosed {
		return sendClosed
	}
	select {
	case c.send <- data:
		return sendQueued
	default:
		return sendFull
	}
}

// closeSend closes the outbound queue. Safe to call more than once.
func (c *Client) closeSend() {
	<-c.sendMu
	defer func() { c.sendMu <- struct{}{} }()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// close tears down the socket; the read pump then exits and unregisters the
// client through the normal path.
func (c *Client) close() {
	_ = c.conn.Close()
}

// SendEvent delivers one event to this connection only. Used for directed
// responses: ready, heartbeat_ack, voice sync, intent errors.
func (c *Client) SendEvent(event Event) {
	event.Seq = c.hub.seq.Add(1)
	data, err := json.Marshal(event)
	if err != nil {
		logger.L().Warn("event marshal failed",
			zap.String("op", event.Op), zap.Error(err))
		return
	}
	metrics.EventsTotal.WithLabelValues(event.Op).Inc()
	if c.trySend(data) == sendFull {
		metrics.SlowConsumersTotal.Inc()
		go func() { c.hub.unregister <- c }()
	}
}

// SendError reports an intent failure to this connection only. The kind is
// derived from the sentinel chain, so callers just pass the service error.
func (c *Client) SendError(err error) {
	c.SendEvent(Event{Op: OpError, Data: ErrorData{
		Kind:    pkg.Kind(err),
		Message: pkg.PublicMessage(err),
	}})
}

// ReadPump reads inbound frames until the connection dies. Runs on the
// handshake goroutine; its exit unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.L().Debug("unexpected close",
					zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}

		// Any inbound traffic proves liveness.
		_ = c.conn.SetReadDeadline(time.Now().Add(readWait))

		var ev inboundEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			logger.L().Warn("malformed frame",
				zap.String("user_id", c.userID), zap.Error(err))
			continue
		}
		c.dispatch(ev)
	}
}

// dispatch routes one inbound event. Heartbeats are answered inline; every
// other op goes through the registered intent table on a fresh goroutine so
// a slow handler never stalls the read loop.
func (c *Client) dispatch(ev inboundEvent) {
	if ev.Op == OpHeartbeat {
		c.SendEvent(Event{Op: OpHeartbeatAck})
		return
	}

	handler, ok := c.hub.intent(ev.Op)
	if !ok {
		metrics.IntentsTotal.WithLabelValues(ev.Op, "unknown").Inc()
		logger.L().Warn("unknown op",
			zap.String("user_id", c.userID), zap.String("op", ev.Op))
		return
	}
	metrics.IntentsTotal.WithLabelValues(ev.Op, "dispatched").Inc()
	go handler(c, ev.Data)
}

// WritePump drains the send channel onto the socket and keeps the
// connection alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the queue.
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
