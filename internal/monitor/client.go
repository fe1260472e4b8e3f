package monitor

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket subscriber of a single job.
type Client struct {
	hub   *Hub
	jobID string
	conn  *websocket.Conn
	send  chan []byte
}

// ServeWS upgrades an HTTP request to a websocket subscription for jobID.
func ServeWS(hub *Hub, jobID string, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket for job %s: %v", jobID, err)
		return
	}
	client := &Client{
		hub:   hub,
		jobID: jobID,
		conn:  conn,
		send:  make(chan []byte, 256),
	}
	hub.Subscribe(jobID, client)

	go client.writePump()
	go client.readPump()
}

// readPump drains inbound frames. Any text from the browser is treated as a
// keepalive probe and answered with a pong message. Exiting the loop
// detaches the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unsubscribe(c.jobID, c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Websocket error on job %s: %v", c.jobID, err)
			}
			return
		}
		pong, _ := json.Marshal(map[string]string{"type": "pong"})
		select {
		case c.send <- pong:
		default:
		}
	}
}

// writePump pushes queued events to the connection and keeps it alive with
// pings. A closed send channel means this client has detached. A pruned
// client never sees its channel close; its closed conn fails the next
// write or ping instead.
func (c *Client) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
