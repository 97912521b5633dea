package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"fleettemp/forecast"
	"fleettemp/ingest"
	"fleettemp/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var liveMessageTypes = map[string]string{
	ingest.LiveChannel:          "batch_merged",
	forecast.PredictionsChannel: "predictions_applied",
}

// LiveWebSocket relays ingestion and forecast events to dashboard clients.
// Browsers cannot set headers on a websocket upgrade, so the token travels
// in the query string. A nil authService accepts every client.
func LiveWebSocket(cache *services.CacheService, authService *services.AuthService, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authService != nil {
			tokenStr := c.Query("token")
			if tokenStr == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token query parameter"})
				return
			}
			if _, err := authService.ValidateToken(tokenStr); err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
				return
			}
		}
		if !cache.Available() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live feed unavailable"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		// read pump: detect client disconnect
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		pubsub := cache.Subscribe(ctx, ingest.LiveChannel, forecast.PredictionsChannel)
		defer pubsub.Close()
		ch := pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				err := conn.WriteJSON(gin.H{
					"type": liveMessageTypes[msg.Channel],
					"data": json.RawMessage(msg.Payload),
				})
				if err != nil {
					log.Debug("websocket write failed", "error", err)
					return
				}
			}
		}
	}
}
