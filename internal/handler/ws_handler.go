package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/chempion-hawk/messenger/internal/config"
	"github.com/chempion-hawk/messenger/internal/hub"
	"github.com/chempion-hawk/messenger/internal/service"
	"github.com/chempion-hawk/messenger/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades connections and feeds inbound events to the service.
type WSHandler struct {
	service service.ChatService
	wsCfg   config.WebSocketConfig
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(svc service.ChatService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		service: svc,
		wsCfg:   wsCfg,
	}
}

// HandleWebSocket upgrades GET /ws/:session_id. The session token must have
// been issued by login; unknown tokens get the socket closed right away.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	sessionID := c.Param("session_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(sessionID, conn, h.wsCfg)

	if err := h.service.OnConnectionOpened(c.Request.Context(), sessionID, client); err != nil {
		client.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(h.handleInbound, h.service.OnConnectionClosed)
}

func (h *WSHandler) handleInbound(sessionID string, raw []byte) {
	h.service.OnInboundEvent(context.Background(), sessionID, raw)
}

// RegisterRoutes mounts the WebSocket endpoint.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws/:session_id", h.HandleWebSocket)
}
