package realtime

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBroker(t *testing.T) *Broker {
	t.Helper()
	b := NewBroker(nil)
	go b.Run()
	t.Cleanup(b.Stop)
	return b
}

func waitForConnections(t *testing.T, b *Broker, userID string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return b.Connections(userID) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestBroker_RequiresUser(t *testing.T) {
	b := startBroker(t)

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"sse", b.ServeHTTP},
		{"websocket", b.ServeWS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestBroker_SSE(t *testing.T) {
	b := startBroker(t)
	srv := httptest.NewServer(b)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?user_id=u1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	waitForConnections(t, b, "u1", 1)
	require.NoError(t, b.PublishToUser("u2", "alert_created", map[string]string{"id": "other"}))
	require.NoError(t, b.PublishToUser("u1", "alert_created", map[string]string{"id": "a1"}))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))

	var event struct {
		Event   string            `json:"event"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &event))
	assert.Equal(t, "alert_created", event.Event)
	assert.Equal(t, "a1", event.Payload["id"])
}

func TestBroker_WebSocket(t *testing.T) {
	b := startBroker(t)
	srv := httptest.NewServer(http.HandlerFunc(b.ServeWS))
	defer srv.Close()

	header := http.Header{}
	header.Set(UserHeader, "u1")
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.NoError(t, err)

	waitForConnections(t, b, "u1", 1)
	require.NoError(t, b.PublishToUser("u1", "alert_digest", []string{"a1", "a2"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event struct {
		Event   string   `json:"event"`
		Payload []string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, "alert_digest", event.Event)
	assert.Equal(t, []string{"a1", "a2"}, event.Payload)

	require.NoError(t, conn.Close())
	waitForConnections(t, b, "u1", 0)
}
