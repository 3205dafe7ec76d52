package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/duli1982/aitalentsonardemo-sub003/bus"
)

// WebSocket timeout constants following Gorilla best practices
// See: https://github.com/gorilla/websocket/blob/master/examples/chat/client.go
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames
	maxMessageSize = 4096
)

// Client is one operator connection receiving bus events as JSON frames.
type Client struct {
	server    *Server
	conn      *websocket.Conn
	events    chan bus.Event
	done      chan struct{}
	id        string
	closeOnce sync.Once
}

// HandleWebSocket upgrades the request and streams bus events until either
// side goes away.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.ClientCount() >= MaxClients {
		writeError(w, http.StatusServiceUnavailable, "too many clients")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		s.logger.Debugw("WebSocket upgrade failed", "error", err)
		return
	}

	c := &Client{
		server: s,
		conn:   conn,
		events: s.bus.Subscribe(clientBuffer),
		done:   make(chan struct{}),
		id:     uuid.NewString(),
	}

	s.mu.Lock()
	s.clients[c] = true
	total := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected", "client_id", c.id, "total_clients", total)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		c.writePump()
	}()
	go func() {
		defer s.wg.Done()
		c.readPump()
	}()
}

// close unsubscribes from the bus and unblocks both pumps. Safe to call more
// than once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.server.bus.Unsubscribe(c.events)
		close(c.done)
		c.conn.Close()

		c.server.mu.Lock()
		delete(c.server.clients, c)
		remaining := len(c.server.clients)
		c.server.mu.Unlock()

		c.server.logger.Infow("Client disconnected", "client_id", c.id, "total_clients", remaining)
	})
}

// readPump discards inbound frames; it exists to process pongs and notice
// the peer going away.
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.handleReadError(err)
			return
		}
	}
}

// handleReadError logs unexpected WebSocket read errors.
// Expected closure codes (going away, abnormal, no status) are silently ignored.
func (c *Client) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		c.server.logger.Warnw("WebSocket read error", "client_id", c.id, "error", err)
	}
}

// writePump forwards bus events and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case <-c.server.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case ev := <-c.events:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.server.logger.Debugw("Event write error", "client_id", c.id, "error", err)
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
