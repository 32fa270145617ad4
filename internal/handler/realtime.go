package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/makkenzo/ledgerpro-license-api/internal/realtime"
	"github.com/makkenzo/ledgerpro-license-api/internal/service"
	"go.uber.org/zap"
)

type RealtimeHandler struct {
	hub    *realtime.Hub
	auth   *service.AuthService
	logger *zap.Logger
}

func NewRealtimeHandler(hub *realtime.Hub, auth *service.AuthService, logger *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		hub:    hub,
		auth:   auth,
		logger: logger.Named("RealtimeHandler"),
	}
}

// Serve upgrades to a websocket. Without a token the client joins the public
// audience and only sees price updates; a valid admin token adds admin
// events. An invalid token is refused rather than downgraded.
func (h *RealtimeHandler) Serve(c *gin.Context) {
	audience := realtime.AudiencePublic
	if token := c.Query("token"); token != "" {
		if _, err := h.auth.ValidateToken(token); err != nil {
			h.logger.Info("Realtime admin token rejected", zap.String("client_ip", c.ClientIP()))
			_ = c.Error(err)
			c.Abort()
			return
		}
		audience = realtime.AudienceAdmin
	}

	h.hub.ServeWS(c.Writer, c.Request, audience)
}
