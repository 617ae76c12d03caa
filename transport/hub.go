/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
// Package transport delivers hot update messages to browsers over
// WebSocket and serves the dev server's HTTP routes.
package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"bennypowers.dev/hotswap/hmr"
)

// writeTimeout bounds a single send to a client.
const writeTimeout = 5 * time.Second

// Hub fans messages out to every connected client. It implements
// hmr.Delegate. Slow clients drop messages rather than block the sender.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a Hub. A nil logger logs through slog.Default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the WebSocket endpoint clients connect to.
func (h *Hub) Handler() http.Handler {
	return websocket.Server{
		// Any origin may connect to the dev server.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   h.serve,
	}
}

func (h *Hub) serve(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, 16)}
	h.add(c)
	defer h.remove(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for data := range c.send {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := websocket.Message.Send(conn, string(data)); err != nil {
				h.logger.Debug("send failed", "remote", conn.Request().RemoteAddr, "error", err)
				conn.Close()
				return
			}
		}
	}()

	// Clients never send anything meaningful; reading detects disconnects.
	for {
		var discard string
		if err := websocket.Message.Receive(conn, &discard); err != nil {
			break
		}
	}
	h.remove(c)
	<-done
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.logger.Debug("client connected", "remote", c.conn.Request().RemoteAddr, "clients", len(h.clients))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.logger.Debug("client disconnected", "clients", len(h.clients))
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Send queues msg for every connected client. With no clients it does nothing.
func (h *Hub) Send(msg hmr.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encoding message", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("client too slow, dropping message", "type", msg.Type)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
	}
}

var _ hmr.Delegate = (*Hub)(nil)
