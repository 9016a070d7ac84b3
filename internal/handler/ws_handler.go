package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-collab/internal/config"
	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/internal/hub"
	"github.com/weiawesome/wes-io-collab/pkg/log"
)

// Sessions receives transport events for the coordinator loop.
type Sessions interface {
	Connect(h domain.Handle)
	ConnectAndJoin(h domain.Handle, username, roomID string)
	Inbound(h domain.Handle, data []byte)
}

type WSHandler struct {
	hub      *hub.Hub
	sessions Sessions
	upgrader websocket.Upgrader
}

func NewWSHandler(h *hub.Hub, sessions Sessions, cfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:      h,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

// HandleWebSocket upgrades the request and registers the connection under a
// fresh handle. When username and room_id are given as query parameters the
// connection joins that room straight away.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	l := log.Ctx(c.Request.Context())

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	handle := domain.NewHandle()
	client := hub.NewClient(handle, h.hub, conn)
	h.hub.Register(client)

	username, roomID := c.Query("username"), c.Query("room_id")
	if username != "" && roomID != "" {
		h.sessions.ConnectAndJoin(handle, username, roomID)
	} else {
		h.sessions.Connect(handle)
	}
	l.Info().Str(log.FieldHandle, handle.String()).Str(log.FieldRoomID, roomID).Msg("websocket connected")

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	h.sessions.Inbound(client.Handle, message)
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleWebSocket)
}
