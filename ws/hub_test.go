package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/chorushq/chorus/models"
)

// The hub's Run loop lives for the process lifetime; everything else must
// clean up after itself.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/chorushq/chorus/ws.(*Hub).Run"))
}

func newRunningHub(sendBuffer int) *Hub {
	h := NewHub(sendBuffer)
	go h.Run()
	return h
}

// connect registers a bare client (no socket) and waits until the hub
// tracks it.
func connect(t *testing.T, h *Hub, userID, username string) *Client {
	t.Helper()
	c := newClient(h, nil, userID, username)
	h.registerSync(c)
	require.True(t, h.IsUserOnline(userID))
	return c
}

func disconnect(t *testing.T, h *Hub, c *Client) {
	t.Helper()
	h.unregister <- c
}

// recv pops one queued event off a bare client.
func recv(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.send:
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event queued")
		return Event{}
	}
}

func TestHubPresenceEdges(t *testing.T) {
	h := newRunningHub(8)

	firstConnects := make(chan string, 4)
	lastDisconnects := make(chan string, 4)
	h.SetOnUserFirstConnect(func(userID string) { firstConnects <- userID })
	h.SetOnUserFullyDisconnected(func(userID string) { lastDisconnects <- userID })

	tab1 := connect(t, h, "u1", "alice")
	tab2 := newClient(h, nil, "u1", "alice")
	h.registerSync(tab2)

	// Only the first connection fires the edge.
	select {
	case id := <-firstConnects:
		assert.Equal(t, "u1", id)
	case <-time.After(time.Second):
		t.Fatal("first-connect edge never fired")
	}
	select {
	case <-firstConnects:
		t.Fatal("second tab fired a first-connect edge")
	case <-time.After(50 * time.Millisecond):
	}

	disconnect(t, h, tab1)
	select {
	case <-lastDisconnects:
		t.Fatal("disconnect fired with a tab still open")
	case <-time.After(50 * time.Millisecond):
	}

	disconnect(t, h, tab2)
	select {
	case id := <-lastDisconnects:
		assert.Equal(t, "u1", id)
	case <-time.After(time.Second):
		t.Fatal("last-disconnect edge never fired")
	}
	assert.False(t, h.IsUserOnline("u1"))
}

func TestHubBroadcastToUserTargetsOnlyThatUser(t *testing.T) {
	h := newRunningHub(8)

	alice := connect(t, h, "u1", "alice")
	bob := connect(t, h, "u2", "bob")
	defer disconnect(t, h, alice)
	defer disconnect(t, h, bob)

	h.BroadcastToUser("u1", Event{Op: "test_event"})

	ev := recv(t, alice)
	assert.Equal(t, "test_event", ev.Op)
	assert.Empty(t, bob.send)
}

func TestHubSequenceNumbersIncrease(t *testing.T) {
	h := newRunningHub(8)

	alice := connect(t, h, "u1", "alice")
	defer disconnect(t, h, alice)

	h.BroadcastToAll(Event{Op: "first"})
	h.BroadcastToAll(Event{Op: "second"})

	ev1 := recv(t, alice)
	ev2 := recv(t, alice)
	assert.Equal(t, "first", ev1.Op)
	assert.Equal(t, "second", ev2.Op)
	assert.Greater(t, ev2.Seq, ev1.Seq)
}

type staticMembers map[string][]string

func (m staticMembers) ServerMemberIDs(serverID string) ([]string, error) {
	return m[serverID], nil
}

func TestHubBroadcastToServerScopesByMembership(t *testing.T) {
	h := newRunningHub(8)
	h.SetMemberResolver(staticMembers{"srv-1": {"u1"}})

	alice := connect(t, h, "u1", "alice")
	bob := connect(t, h, "u2", "bob")
	defer disconnect(t, h, alice)
	defer disconnect(t, h, bob)

	h.BroadcastToServer("srv-1", Event{Op: "server_event"})

	ev := recv(t, alice)
	assert.Equal(t, "server_event", ev.Op)
	assert.Empty(t, bob.send)
}

type staticViewers map[string][]string

func (v staticViewers) ChannelViewerIDs(channelID string) ([]string, error) {
	return v[channelID], nil
}

func TestHubBroadcastToChannelViewersFiltersHidden(t *testing.T) {
	h := newRunningHub(8)
	h.SetChannelViewerResolver(staticViewers{"chan-1": {"u2"}})

	alice := connect(t, h, "u1", "alice")
	bob := connect(t, h, "u2", "bob")
	defer disconnect(t, h, alice)
	defer disconnect(t, h, bob)

	h.BroadcastToChannelViewers("chan-1", Event{Op: "channel_event"})

	ev := recv(t, bob)
	assert.Equal(t, "channel_event", ev.Op)
	assert.Empty(t, alice.send)
}

func TestHubInvisibleUsersHiddenFromOnlineList(t *testing.T) {
	h := newRunningHub(8)

	alice := connect(t, h, "u1", "alice")
	defer disconnect(t, h, alice)

	h.SetInvisible("u1", true)
	assert.NotContains(t, h.GetOnlineUserIDs(), "u1")
	// Invisibility hides, it does not disconnect.
	assert.True(t, h.IsUserOnline("u1"))

	h.SetInvisible("u1", false)
	assert.Contains(t, h.GetOnlineUserIDs(), "u1")
}

func TestHubInvisibilityClearedOnFullDisconnect(t *testing.T) {
	h := newRunningHub(8)

	alice := connect(t, h, "u1", "alice")
	h.SetInvisible("u1", true)
	disconnect(t, h, alice)

	require.Eventually(t, func() bool { return !h.IsUserOnline("u1") },
		time.Second, time.Millisecond)

	// Reconnecting starts visible again.
	alice = connect(t, h, "u1", "alice")
	defer disconnect(t, h, alice)
	assert.Contains(t, h.GetOnlineUserIDs(), "u1")
}

func TestHubSlowConsumerEvicted(t *testing.T) {
	h := newRunningHub(1)

	alice := connect(t, h, "u1", "alice")
	_ = alice // never drained

	h.BroadcastToAll(Event{Op: "fills_buffer"})
	h.BroadcastToAll(Event{Op: "overflows"})

	require.Eventually(t, func() bool { return !h.IsUserOnline("u1") },
		time.Second, time.Millisecond)
}

func TestHubShutdownRejectsNewClients(t *testing.T) {
	h := newRunningHub(8)

	alice := connect(t, h, "u1", "alice")
	h.Shutdown()

	// The existing queue is closed.
	_, open := <-alice.send
	assert.False(t, open)

	late := newClient(h, nil, "u2", "bob")
	h.registerSync(late)
	_, open = <-late.send
	assert.False(t, open)
	assert.False(t, h.IsUserOnline("u2"))
}

func TestHubRegisterIntentDispatch(t *testing.T) {
	h := NewHub(8)
	h.RegisterIntent("custom_op", func(c *Client, data json.RawMessage) {})

	_, ok := h.intent("custom_op")
	assert.True(t, ok)
	_, ok = h.intent("unknown_op")
	assert.False(t, ok)
}

// staticValidator accepts exactly one token.
type staticValidator struct {
	token  string
	claims *models.TokenClaims
}

func (v *staticValidator) ValidateAccessToken(token string) (*models.TokenClaims, error) {
	if token != v.token {
		return nil, assert.AnError
	}
	return v.claims, nil
}

type staticReady struct{}

func (staticReady) ServersFor(userID string) ([]ReadyServerItem, error) {
	return []ReadyServerItem{{ID: "srv-1", Name: "general"}}, nil
}

func (staticReady) MutedServerIDsFor(userID string) ([]string, error) {
	return []string{"srv-2"}, nil
}

// dialWS connects a real websocket client through the handshake handler.
func dialWS(t *testing.T, h *Hub, token string) *websocket.Conn {
	t.Helper()

	handler := NewHandler(h, &staticValidator{
		token:  "valid-token",
		claims: &models.TokenClaims{UserID: "u1", Username: "alice"},
	}, staticReady{})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		require.NotNil(t, resp)
		require.Equal(t, 401, resp.StatusCode)
		return nil
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	h := newRunningHub(8)

	conn := dialWS(t, h, "wrong")
	assert.Nil(t, conn)
}

func TestHandshakeSendsReadyFirst(t *testing.T) {
	h := newRunningHub(8)

	conn := dialWS(t, h, "valid-token")
	require.NotNil(t, conn)
	defer conn.Close()

	var ev struct {
		Op   string    `json:"op"`
		Data ReadyData `json:"d"`
		Seq  int64     `json:"seq"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))

	assert.Equal(t, OpReady, ev.Op)
	require.Len(t, ev.Data.Servers, 1)
	assert.Equal(t, "srv-1", ev.Data.Servers[0].ID)
	assert.Equal(t, []string{"srv-2"}, ev.Data.MutedServerIDs)
	assert.Contains(t, ev.Data.OnlineUserIDs, "u1")
}

func TestHeartbeatAnsweredInline(t *testing.T) {
	h := newRunningHub(8)

	conn := dialWS(t, h, "valid-token")
	require.NotNil(t, conn)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var ready Event
	require.NoError(t, conn.ReadJSON(&ready)) // discard ready

	require.NoError(t, conn.WriteJSON(Event{Op: OpHeartbeat}))

	var ack Event
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, OpHeartbeatAck, ack.Op)
}

func TestDisconnectUserClosesSocket(t *testing.T) {
	h := newRunningHub(8)

	conn := dialWS(t, h, "valid-token")
	require.NotNil(t, conn)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.IsUserOnline("u1") },
		time.Second, time.Millisecond)

	h.DisconnectUser("u1")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
	}
	require.Eventually(t, func() bool { return !h.IsUserOnline("u1") },
		time.Second, time.Millisecond)
}
