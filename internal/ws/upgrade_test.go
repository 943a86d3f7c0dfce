package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingDispatcher struct {
	mu           sync.Mutex
	events       []Envelope
	disconnected []string
	done         chan struct{}
}

func (r *recordingDispatcher) Handle(_ context.Context, _ string, env Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, env)
}

func (r *recordingDispatcher) Disconnected(_ context.Context, connID string) {
	r.mu.Lock()
	r.disconnected = append(r.disconnected, connID)
	r.mu.Unlock()
	close(r.done)
}

func (r *recordingDispatcher) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.events...)
}

func newWSServer(t *testing.T, hub *Hub, d Dispatcher, origins []string) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", Upgrade(hub, d, origins, zap.NewNop()))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestUpgrade_DispatchesAndBroadcasts(t *testing.T) {
	hub := NewHub()
	d := &recordingDispatcher{done: make(chan struct{})}
	url := newWSServer(t, hub, d, []string{"*"})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"join","data":"alice"}`)))
	require.Eventually(t, func() bool { return len(d.Events()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "join", d.Events()[0].Event)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	_, err = hub.BroadcastEvent("client-deleted", "abc")
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"client-deleted","data":"abc"}`, string(frame))

	require.NoError(t, conn.Close())
	select {
	case <-d.done:
	case <-time.After(time.Second):
		t.Fatal("disconnect not dispatched")
	}
	assert.Zero(t, hub.ClientCount())
}

func TestUpgrade_CloseAllDisconnects(t *testing.T) {
	hub := NewHub()
	d := &recordingDispatcher{done: make(chan struct{})}
	url := newWSServer(t, hub, d, nil)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.CloseAll()
	select {
	case <-d.done:
	case <-time.After(time.Second):
		t.Fatal("disconnect not dispatched")
	}
}

func TestUpgrade_RejectsUnknownOrigin(t *testing.T) {
	hub := NewHub()
	d := &recordingDispatcher{done: make(chan struct{})}
	url := newWSServer(t, hub, d, []string{"http://localhost:5173"})

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://localhost:5173")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}
