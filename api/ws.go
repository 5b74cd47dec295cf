package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/solroute/orderengine/internal/ws"
)

// serveWS upgrades the request and attaches the connection as a subscriber of
// the order. The session owns the connection lifecycle from here on.
func (s *Server) serveWS(c *gin.Context) {
	orderID := c.Param("orderId")

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.logger.Warn("WebSocket upgrade failed",
			zap.String("order_id", orderID), zap.Error(err))
		return
	}

	s.logger.Info("WebSocket connection established", zap.String("order_id", orderID))
	ws.NewSession(s.broadcaster, orderID, conn, s.logger)
}
