package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades an authenticated request and registers the
// connection for userID until the peer goes away.
func HandleWebSocket(c echo.Context, hub *Hub, userID primitive.ObjectID) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{UserID: userID, Conn: conn}
	hub.add(client)

	// Send a welcome message
	client.send(Notification{
		Type:    NotificationTypeConnected,
		Message: "WebSocket connection established",
		UserID:  userID.Hex(),
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				client.mu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
				client.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	// Handle disconnection; clients only listen, anything they send is discarded
	go func() {
		defer func() {
			close(done)
			hub.remove(client)
		}()

		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	return nil
}
