package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/monitoring"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/notifier"
)

type WSHandler struct {
	hub *notifier.Hub
}

func NewWSHandler(hub *notifier.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

func (h *WSHandler) Serve(c *gin.Context) {
	h.hub.HandleConnection(c.Writer, c.Request)
	monitoring.SetWebSocketClients(h.hub.ClientCount())
}
