package handler

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-market/internal/ws"
)

// WSHandler подключает клиентов к хабу уведомлений о заказах.
type WSHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	log      *logrus.Logger
}

// NewWSHandler пустой allowedOrigins разрешает любой origin.
func NewWSHandler(hub *ws.Hub, allowedOrigins []string, log *logrus.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// Handle обслуживает GET /api/ws?token=... Авторизацию выполняет AuthMiddleware.
func (h *WSHandler) Handle(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.log.WithError(err).Warn("ws: не удалось установить соединение")
		return
	}

	ws.NewClient(conn, h.hub, userID).Serve()
}
