package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/duwdu-messenger/internal/config"
	"github.com/weiawesome/duwdu-messenger/internal/hub"
	"github.com/weiawesome/duwdu-messenger/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler streams snapshots to UIs and accepts a few commands back.
type WSHandler struct {
	hub   *hub.Hub
	svc   Service
	wsCfg config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, svc Service, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:   h,
		svc:   svc,
		wsCfg: wsCfg,
	}
}

// RegisterRoutes registers the feed endpoint.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/v1/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and sends the current snapshot.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)
	h.hub.Register(client)
	client.SendMessage(hub.TypeSnapshot, h.svc.Snapshot())

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func (h *WSHandler) handleMessage(client *hub.Client, in hub.Inbound) {
	switch in.Type {
	case hub.TypePing:
		client.SendMessage(hub.TypePong, nil)

	case hub.TypeSync:
		client.SendMessage(hub.TypeSnapshot, h.svc.Snapshot())

	case hub.TypeSearch:
		if in.Open != nil {
			h.svc.SetSearchOpen(*in.Open)
			if !*in.Open {
				return
			}
		}
		h.svc.SearchInput(in.Text)

	default:
		client.SendMessage(hub.TypeError, "unknown message type")
	}
}

// Stream broadcasts every snapshot the service publishes until ctx ends.
func (h *WSHandler) Stream(ctx context.Context) {
	snaps, stop := h.svc.Subscribe()
	defer stop()

	l := log.L()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			if err := h.hub.Broadcast(hub.TypeSnapshot, snap); err != nil {
				l.Debug().Err(err).Msg("state feed stopped")
				return
			}
		}
	}
}
