package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/metrics"
	"github.com/aamsco/awardswithfriends/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub maintains the set of active clients. Every client is bound to one
// view session for its whole lifetime.
type Hub struct {
	log        logger.Logger
	metrics    *metrics.Metrics
	clients    map[*Client]bool
	broadcast  chan models.WSMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
}

// Client is a middleman between the websocket connection and its session
type Client struct {
	id      string
	uid     string
	hub     *Hub
	conn    *websocket.Conn
	session Session
	base    context.Context

	mu     sync.Mutex
	send   chan models.WSMessage
	quit   chan struct{}
	closed bool
}

// New creates a new Hub instance with injected dependencies
func New(log logger.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		log:        log,
		metrics:    m,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.WSMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run handles client registration, unregistration and broadcasts until ctx
// ends. Remaining clients are disconnected on the way out.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mutex.Unlock()
			h.log.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.metrics.ClientConnected(client.session.Name())
			h.log.Debug("Client connected", "client_id", client.id, "user_id", client.uid, "view", client.session.Name(), "total_clients", total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client disconnected", "client_id", client.id, "total_clients", total)

		case message := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				client.push(message)
			}
			h.mutex.RUnlock()
		}
	}
}

// drop releases a registered client. Callers hold h.mutex.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	c.session.Close()
	c.close()
	h.metrics.ClientDisconnected(c.session.Name())
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// BroadcastMessage sends a message to all connected clients
func (h *Hub) BroadcastMessage(msgType string, payload interface{}) {
	select {
	case h.broadcast <- models.WSMessage{Type: msgType, Payload: payload}:
	case <-h.done:
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// push queues a message without blocking. A client that cannot keep up is
// disconnected.
func (c *Client) push(message models.WSMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- message:
	default:
		c.hub.log.Warn("Client send buffer full, disconnecting", "client_id", c.id)
		go c.hub.leave(c)
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
		close(c.quit)
	}
}

// readPump reads actions from the connection and hands them to the session
func (c *Client) readPump() {
	ctx, cancel := context.WithCancel(c.base)
	defer func() {
		cancel()
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket error", "client_id", c.id, "error", err)
			}
			break
		}

		var action models.WSAction
		if err := json.Unmarshal(message, &action); err != nil {
			c.push(errorMessage("", err))
			continue
		}
		c.hub.log.Debug("Received action", "client_id", c.id, "action", action.Action)

		// Actions may wait on the network, so reads continue meanwhile
		go func() {
			if err := c.session.Handle(ctx, action); err != nil {
				c.hub.log.Debug("Action failed", "client_id", c.id, "action", action.Action, "error", err)
				c.push(errorMessage(action.Action, err))
				return
			}
			c.push(models.WSMessage{Type: "ack", Payload: map[string]interface{}{"action": action.Action}})
		}()
	}
}

// writePump pumps messages from the send buffer to the websocket connection
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

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			msgBytes, err := json.Marshal(message)
			if err != nil {
				c.hub.log.Error("Failed to encode message", "type", message.Type, "error", err)
				w.Close()
				continue
			}
			w.Write(msgBytes)

			if err := w.Close(); err != nil {
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

// ServeWs upgrades the request and binds the connection to session. The
// session is closed when the connection goes away. Actions run with the
// values of the request context, such as the caller's credentials.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, uid string, session Session) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade error", "error", err)
		session.Close()
		return
	}

	client := &Client{
		id:      uuid.NewString(),
		uid:     uid,
		hub:     h,
		conn:    conn,
		session: session,
		base:    context.WithoutCancel(r.Context()),
		send:    make(chan models.WSMessage, sendBuffer),
		quit:    make(chan struct{}),
	}

	select {
	case h.register <- client:
	case <-h.done:
		session.Close()
		conn.Close()
		return
	}

	unwatch := session.Watch(client.push)
	go func() {
		<-client.quit
		unwatch()
	}()

	go client.writePump()
	go client.readPump()
}

func errorMessage(action string, err error) models.WSMessage {
	return models.WSMessage{
		Type: "error",
		Payload: map[string]interface{}{
			"action": action,
			"error":  err.Error(),
		},
	}
}
