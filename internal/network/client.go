package network

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/MRamiBalles/BacklotTycoon/server/internal/platform/errors"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer. A script with a full cast fits.
	maxMessageSize = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard runs on its own dev server
	},
}

// Client holds one WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, hub.sendBuffer),
	}
}

// Register adds the client to the hub.
func (c *Client) Register() {
	select {
	case c.hub.register <- c:
	case <-c.hub.done:
	}
}

// ServeWS upgrades the request and starts the client pumps. Commands are
// dispatched with the request's context detached, so an in-flight week is not
// cut short when the socket drops.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if limit := h.maxClients.Load(); limit > 0 && int64(h.ClientCount()) >= limit {
		h.logger.Warn("Refusing websocket connection, studio is full")
		if h.metrics != nil {
			h.metrics.RecordWSError()
		}
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket connection: " + err.Error())
		if h.metrics != nil {
			h.metrics.RecordWSError()
		}
		return
	}

	client := NewClient(h, conn)
	client.Register()

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump(context.Background())
}

// ReadPump reads commands from the websocket connection and answers each one.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read: " + err.Error())
				if c.hub.metrics != nil {
					c.hub.metrics.RecordWSError()
				}
			}
			break
		}
		if c.hub.metrics != nil {
			c.hub.metrics.RecordWSMessage(true)
		}

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.hub.logger.Warn("Failed to parse Command from WebSocket: " + err.Error())
			if c.hub.metrics != nil {
				c.hub.metrics.RecordRejectedCommand()
			}
			c.hub.reply(c, Envelope{
				Type:  MsgError,
				Error: errorDetail(apperrors.Wrap(apperrors.KindValidation, apperrors.CodeMalformedCommand, "command is not valid JSON", err)),
			})
			continue
		}

		c.hub.reply(c, c.hub.dispatcher.Dispatch(ctx, cmd))
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One envelope per frame so clients can decode each message on its own.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				if c.hub.metrics != nil {
					c.hub.metrics.RecordWSError()
				}
				return
			}
			if c.hub.metrics != nil {
				c.hub.metrics.RecordWSMessage(false)
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
