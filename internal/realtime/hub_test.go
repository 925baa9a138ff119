package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub, userID string, streams ...string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(userID, streams, w, r)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, stream string, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.Subscribers(stream) == want
	}, 2*time.Second, 10*time.Millisecond)
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubDeliversUserScopedMessages(t *testing.T) {
	hub := NewHub()
	alice := dialHub(t, hub, "alice", StreamNotifications)
	bob := dialHub(t, hub, "bob", StreamNotifications)
	waitForSubscribers(t, hub, StreamNotifications, 2)

	hub.BroadcastToUser(StreamNotifications, "alice", Message{
		Event: EventNotificationCreated,
		Data:  map[string]any{"id": "n-1"},
	})

	msg := readMessage(t, alice)
	require.Equal(t, StreamNotifications, msg.Stream)
	require.Equal(t, EventNotificationCreated, msg.Event)
	require.Equal(t, "n-1", msg.Data.(map[string]any)["id"])

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	var unexpected Message
	require.Error(t, bob.ReadJSON(&unexpected), "bob must not receive alice's notification")
}

func TestHubBroadcastStreamReachesEverySubscriber(t *testing.T) {
	hub := NewHub()
	first := dialHub(t, hub, "alice")
	second := dialHub(t, hub, "bob")
	waitForSubscribers(t, hub, StreamAnnouncements, 2)

	hub.BroadcastStream(StreamAnnouncements, Message{Event: EventGlobalNotificationCreated})

	require.Equal(t, EventGlobalNotificationCreated, readMessage(t, first).Event)
	require.Equal(t, EventGlobalNotificationCreated, readMessage(t, second).Event)
}

func TestHubIgnoresUnknownStreams(t *testing.T) {
	hub := NewHub()
	dialHub(t, hub, "alice", "admin.audit", StreamNotifications)
	waitForSubscribers(t, hub, StreamNotifications, 1)

	require.Zero(t, hub.Subscribers("admin.audit"))
}

func TestHubControlMessages(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "alice", StreamNotifications)
	waitForSubscribers(t, hub, StreamNotifications, 1)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "ping"}))
	require.Equal(t, "pong", readMessage(t, conn).Event)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "subscribe", "streams": []string{StreamAnnouncements}}))
	waitForSubscribers(t, hub, StreamAnnouncements, 1)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "unsubscribe", "streams": []string{StreamNotifications}}))
	waitForSubscribers(t, hub, StreamNotifications, 0)
}

func TestHubUnregistersClosedConnections(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "alice")
	waitForSubscribers(t, hub, StreamNotifications, 1)

	require.NoError(t, conn.Close())
	waitForSubscribers(t, hub, StreamNotifications, 0)
	waitForSubscribers(t, hub, StreamAnnouncements, 0)
}

func TestHostWithoutPort(t *testing.T) {
	require.Equal(t, "example.com", hostWithoutPort("https://example.com:8443"))
	require.Equal(t, "localhost", hostWithoutPort("localhost:3000"))
	require.True(t, isLoopback("127.0.0.1"))
	require.False(t, isLoopback("example.com"))
}
