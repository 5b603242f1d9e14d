package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize  = 512
	sendChannelSize = 64
)

// Message is one frame pushed to websocket clients
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans status messages out to connected websocket clients.
// The client set is owned by the Run goroutine.
type Hub struct {
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	clients    atomic.Int64

	logger *zap.SugaredLogger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The diagnostics listener binds to loopback by default
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewHub creates a hub; Run must be started before clients connect
func NewHub(ctx context.Context, logger *zap.SugaredLogger) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		logger:     logger,
		ctx:        hubCtx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. Call it exactly once.
func (h *Hub) Run() {
	defer close(h.done)

	clients := make(map[*client]struct{})
	drop := func(c *client) {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
			h.clients.Store(int64(len(clients)))
		}
	}

	for {
		select {
		case <-h.ctx.Done():
			for c := range clients {
				close(c.send)
				c.conn.Close()
			}
			h.clients.Store(0)
			h.logger.Debug("Status websocket hub stopped")
			return

		case c := <-h.register:
			clients[c] = struct{}{}
			h.clients.Store(int64(len(clients)))
			h.logger.Debugw("Status websocket client connected", "clients", len(clients))

		case c := <-h.unregister:
			drop(c)

		case message := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- message:
				default:
					// Slow client; its write pump closes the connection.
					drop(c)
				}
			}
		}
	}
}

// Broadcast queues a message for every client. It never blocks the caller
// for more than a second.
func (h *Hub) Broadcast(msgType string, data interface{}) error {
	payload, err := json.Marshal(Message{Type: msgType, Data: data, Timestamp: time.Now().UTC()})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- payload:
	case <-h.ctx.Done():
	case <-time.After(time.Second):
		h.logger.Warnw("Status websocket broadcast timed out", "type", msgType)
	}
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	return int(h.clients.Load())
}

// Stop closes every client and waits for Run to return
func (h *Hub) Stop() {
	h.cancel()
	<-h.done
}

// ServeHTTP upgrades the request and attaches the connection to the hub
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("Status websocket upgrade failed", "error", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendChannelSize)}
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only exists to notice disconnects and answer pings
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debugw("Status websocket closed unexpectedly", "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
