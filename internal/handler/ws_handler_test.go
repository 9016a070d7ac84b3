package handler

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-collab/internal/config"
	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/internal/hub"
)

type recordedSessions struct {
	mu      sync.Mutex
	handles []domain.Handle
	joins   []string
	frames  []string
	closed  []domain.Handle
}

func (s *recordedSessions) Connect(h domain.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles = append(s.handles, h)
}

func (s *recordedSessions) ConnectAndJoin(h domain.Handle, username, roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles = append(s.handles, h)
	s.joins = append(s.joins, username+"@"+roomID)
}

func (s *recordedSessions) Inbound(h domain.Handle, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, string(data))
}

func (s *recordedSessions) Disconnect(h domain.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, h)
}

func (s *recordedSessions) snapshot() (handles []domain.Handle, joins, frames []string, closed []domain.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(handles, s.handles...), append(joins, s.joins...), append(frames, s.frames...), append(closed, s.closed...)
}

func TestWebSocketLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := &recordedSessions{}
	wsCfg := config.WebSocketConfig{PingInterval: time.Minute, PongWait: time.Minute, WriteWait: time.Second, MaxMessageSize: 4096}
	h := hub.NewHub(wsCfg, sessions.Disconnect)
	go h.Run()
	defer h.Stop()

	r := gin.New()
	NewWSHandler(h, sessions, wsCfg).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?username=alice&room_id=r1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	var handle domain.Handle
	require.Eventually(t, func() bool {
		handles, joins, _, _ := sessions.snapshot()
		if len(handles) == 1 && len(joins) == 1 {
			handle = handles[0]
			return true
		}
		return false
	}, time.Second, 5*time.Millisecond)
	_, joins, _, _ := sessions.snapshot()
	assert.Equal(t, []string{"alice@r1"}, joins)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	require.Eventually(t, func() bool {
		_, _, frames, _ := sessions.snapshot()
		return len(frames) == 1 && frames[0] == `{"type":"ping"}`
	}, time.Second, 5*time.Millisecond)

	require.True(t, h.Send(handle, []byte(`{"type":"pong"}`)))
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"pong"}`, string(data))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		_, _, _, closed := sessions.snapshot()
		return len(closed) == 1 && closed[0] == handle
	}, time.Second, 5*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	allowAll := originChecker(nil)
	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.True(t, allowAll(req))

	strict := originChecker([]string{"https://app.example"})
	assert.False(t, strict(req))
	req.Header.Set("Origin", "https://app.example")
	assert.True(t, strict(req))
}
