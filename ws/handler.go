package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg/logger"
)

// TokenValidator is the slice of the auth service the handshake needs.
// Browsers cannot set headers on WebSocket upgrades, so the access token
// arrives as a query parameter and is validated here instead of in the
// regular auth middleware.
type TokenValidator interface {
	ValidateAccessToken(token string) (*models.TokenClaims, error)
}

// ReadyProvider assembles the per-user parts of the ready payload. The hub
// contributes the online user list itself.
type ReadyProvider interface {
	ServersFor(userID string) ([]ReadyServerItem, error)
	MutedServerIDsFor(userID string) ([]string, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser origin enforcement happens at the reverse proxy; the token
	// requirement below is the actual gate.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated HTTP requests to WebSocket connections.
type Handler struct {
	hub       *Hub
	validator TokenValidator
	ready     ReadyProvider
}

func NewHandler(hub *Hub, validator TokenValidator, ready ReadyProvider) *Handler {
	return &Handler{hub: hub, validator: validator, ready: ready}
}

// ServeHTTP lets the handler mount directly on any router.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.HandleConnection(w, r)
}

// HandleConnection serves GET /ws?token=. On success the client is
// registered, receives its ready event first, then a voice state snapshot
// through the sync callback, then the pumps take over.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.validator.ValidateAccessToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().Warn("websocket upgrade failed",
			zap.String("user_id", claims.UserID), zap.Error(err))
		return
	}

	client := newClient(h.hub, conn, claims.UserID, claims.Username)
	// Synchronous: the ready payload below must already see this user online.
	h.hub.registerSync(client)

	client.SendEvent(Event{Op: OpReady, Data: h.buildReady(claims.UserID)})
	if h.hub.onClientSync != nil {
		go h.hub.onClientSync(client)
	}

	go client.WritePump()
	client.ReadPump() // blocks until the connection dies
}

func (h *Handler) buildReady(userID string) ReadyData {
	ready := ReadyData{
		OnlineUserIDs:  h.hub.GetOnlineUserIDs(),
		Servers:        []ReadyServerItem{},
		MutedServerIDs: []string{},
	}

	servers, err := h.ready.ServersFor(userID)
	if err != nil {
		logger.L().Warn("ready servers lookup failed",
			zap.String("user_id", userID), zap.Error(err))
	} else {
		ready.Servers = servers
	}

	muted, err := h.ready.MutedServerIDsFor(userID)
	if err != nil {
		logger.L().Warn("ready mutes lookup failed",
			zap.String("user_id", userID), zap.Error(err))
	} else if muted != nil {
		ready.MutedServerIDs = muted
	}
	return ready
}
