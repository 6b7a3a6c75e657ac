package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kaiboard/backend/internal/api/middleware"
	ws "github.com/kaiboard/backend/internal/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMessage = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketUpgrade upgrades the connection and attaches it to the hub.
// Clients start subscribed to ?team_id= values, if any. The acting user
// comes from the identity header or, for browsers that cannot set
// headers on an upgrade, ?user_id=; only identified clients see meetings
// that belong to no team.
func WebSocketUpgrade(hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zerolog.Ctx(r.Context()).With().Str("component", "websocket").Logger()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		userID := middleware.UserID(r.Context())
		if userID == "" {
			userID = r.URL.Query().Get("user_id")
		}

		client := ws.NewClient(hub)
		client.SetUser(userID)
		client.Subscribe(r.URL.Query()["team_id"]...)
		hub.Register(client)
		logger.Debug().Int("clients", hub.ClientCount()).Msg("websocket client connected")

		go writePump(conn, client)
		go readPump(conn, client, hub, logger)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
func writePump(conn *websocket.Conn, client *ws.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump applies client commands and queues their replies.
func readPump(conn *websocket.Conn, client *ws.Client, hub *ws.Hub, logger zerolog.Logger) {
	defer func() {
		hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		reply, err := ws.HandleClientMessage(client, message).JSON()
		if err != nil {
			logger.Error().Err(err).Msg("encoding websocket reply")
			continue
		}
		if !client.Reply(reply) {
			logger.Warn().Msg("dropping websocket reply")
		}
	}
}
