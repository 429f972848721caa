package handler

import (
	"io"
	"net/http"

	"costcompass/internal/events"
	"costcompass/internal/middleware"
	"costcompass/pkg/response"

	"github.com/gin-gonic/gin"
)

// EventsHandler exposes the notification bus over two transports: an SSE
// stream for the browser tab that owns the session, and a WebSocket for
// clients that prefer a bidirectional channel. Both feed off the same bus.
type EventsHandler struct {
	bus *events.Bus
	mw  *middleware.Middleware
}

func NewEventsHandler(bus *events.Bus, mw *middleware.Middleware) *EventsHandler {
	return &EventsHandler{bus: bus, mw: mw}
}

func (h *EventsHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/events")
	group.Use(h.mw.Authenticate())
	{
		group.GET("/stream", h.Stream)
		group.GET("/ws", h.WebSocket)
		group.GET("/status", h.Status)
	}
}

// Stream handles GET /api/events/stream as Server-Sent Events.
// EventSource cannot set headers, so clients authenticate via the cookie or
// a token query parameter.
func (h *EventsHandler) Stream(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	stream := h.bus.Subscribe(sub.ID, string(sub.Role))
	defer stream.Close()

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-stream.C:
			if !open {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-clientGone:
			return false
		}
	})
}

// WebSocket handles GET /api/events/ws
func (h *EventsHandler) WebSocket(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	events.ServeWS(h.bus, c, sub.ID, string(sub.Role))
}

// Status reports the number of live subscriber connections
func (h *EventsHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"connections": h.bus.ConnectionCount(),
	}))
}
