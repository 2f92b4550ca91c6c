package broadcast

import (
	"github.com/gin-gonic/gin"

	"github.com/eljaska/telara/internal/platform/logging"
)

// Handler returns a gin handler that upgrades the request to a
// WebSocket connection and serves it until the client disconnects.
func (h *Hub) Handler(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := Upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.WithError(err).Error("websocket upgrade failed")
			return
		}

		client := NewClient(h, conn, logger)
		client.Serve()
	}
}
