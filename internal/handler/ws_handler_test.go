package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/duwdu-messenger/internal/app"
	"github.com/weiawesome/duwdu-messenger/internal/config"
	"github.com/weiawesome/duwdu-messenger/internal/hub"
)

type feedService struct {
	stubService
	feed chan app.Snapshot
}

func (s *feedService) Subscribe() (<-chan app.Snapshot, func()) {
	return s.feed, func() {}
}

var wsCfg = config.WebSocketConfig{
	WriteWait:      time.Second,
	PongWait:       5 * time.Second,
	PingInterval:   4 * time.Second,
	MaxMessageSize: 4096,
}

func startFeed(t *testing.T, svc Service) (*hub.Hub, *WSHandler, *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(wsCfg)
	go h.Run(ctx)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	ws := NewWSHandler(h, svc, wsCfg)
	ws.RegisterRoutes(r)
	srv := httptest.NewServer(r)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		srv.Close()
		cancel()
	})
	return h, ws, conn
}

func readFrame(t *testing.T, conn *websocket.Conn) hubFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f hubFrame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

type hubFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func snapshotVersion(t *testing.T, f hubFrame) uint64 {
	t.Helper()
	require.Equal(t, hub.TypeSnapshot, f.Type)
	var snap app.Snapshot
	require.NoError(t, json.Unmarshal(f.Data, &snap))
	return snap.Version
}

func TestFeedSendsSnapshotOnConnect(t *testing.T) {
	svc := &feedService{stubService: stubService{snap: app.Snapshot{Version: 3}}}
	_, _, conn := startFeed(t, svc)

	assert.EqualValues(t, 3, snapshotVersion(t, readFrame(t, conn)))
}

func TestFeedCommands(t *testing.T) {
	svc := &feedService{stubService: stubService{snap: app.Snapshot{Version: 1}}}
	_, _, conn := startFeed(t, svc)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(hub.Inbound{Type: hub.TypePing}))
	assert.Equal(t, hub.TypePong, readFrame(t, conn).Type)

	require.NoError(t, conn.WriteJSON(hub.Inbound{Type: hub.TypeSync}))
	assert.EqualValues(t, 1, snapshotVersion(t, readFrame(t, conn)))

	open := true
	require.NoError(t, conn.WriteJSON(hub.Inbound{Type: hub.TypeSearch, Text: "bo", Open: &open}))
	require.NoError(t, conn.WriteJSON(hub.Inbound{Type: "bogus"}))
	assert.Equal(t, hub.TypeError, readFrame(t, conn).Type)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, []bool{true}, svc.open)
	assert.Equal(t, []string{"bo"}, svc.search)
}

func TestStreamBroadcastsSnapshots(t *testing.T) {
	svc := &feedService{
		stubService: stubService{snap: app.Snapshot{Version: 1}},
		feed:        make(chan app.Snapshot, 1),
	}
	h, ws, conn := startFeed(t, svc)
	readFrame(t, conn)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ws.Stream(ctx)
		close(done)
	}()

	svc.feed <- app.Snapshot{Version: 9}
	assert.EqualValues(t, 9, snapshotVersion(t, readFrame(t, conn)))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not stop")
	}
}
