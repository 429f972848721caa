package events

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for dev simplicity
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS upgrades an authenticated request to a WebSocket and streams
// notification events to it. The caller authenticates the request before
// invoking this.
func ServeWS(bus *Bus, c *gin.Context, userID uuid.UUID, userRole string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("events: websocket upgrade failed:", err)
		return
	}

	sub := bus.Subscribe(userID, userRole)

	go writePump(conn, sub)
	go readPump(conn, sub)
}

// writePump forwards bus events to the socket until the subscription is
// closed or a write fails.
func writePump(conn *websocket.Conn, sub *Subscription) {
	defer func() {
		_ = conn.Close()
	}()
	for ev := range sub.C {
		if err := conn.WriteJSON(ev); err != nil {
			sub.Close()
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump drains client frames so pings are processed and disconnects are
// noticed promptly.
func readPump(conn *websocket.Conn, sub *Subscription) {
	defer func() {
		sub.Close()
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("events: websocket read error: %v", err)
			}
			return
		}
	}
}
