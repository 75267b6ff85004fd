package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/richxcame/fraud-investigator/pkg/logger"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades the request and attaches the connection to hub as a viewer.
// Authentication is left to the middleware chain in front of it.
func Handler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.WarnContext(c.Request.Context(), "failed to upgrade websocket", zap.Error(err))
			return
		}

		client := NewClient(uuid.NewString(), conn, hub)
		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}
