package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Parthmh361/pure-harvest/internal/realtime"
	"github.com/Parthmh361/pure-harvest/pkg/errors"
	"github.com/Parthmh361/pure-harvest/pkg/response"
)

// RealtimeHandler serves the notification websocket.
type RealtimeHandler struct {
	hub *realtime.Hub
}

func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Stream joins the caller to the streams named by ?stream=a&stream=b or
// ?streams=a,b, or to the notifications stream when none are named.
// Identity comes from StreamAuth. Plain HTTP requests get a JSON 400 rather
// than the upgrader's text response.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if !websocket.IsWebSocketUpgrade(c.Request) {
		response.Error(c, errors.NewBadRequest("websocket upgrade required"))
		return
	}

	requested := append([]string{c.Query("streams")}, c.QueryArray("stream")...)
	h.hub.Serve(userID, realtime.ParseStreams(requested...), c.Writer, c.Request)
}
