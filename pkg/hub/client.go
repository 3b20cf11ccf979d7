/*
 * Copyright 2026 Guestflow, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guestflow/pairing/pkg/logger"
	"github.com/guestflow/pairing/pkg/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong before the connection is
	// treated as closed.
	pongWait = 60 * time.Second

	// Period between server pings; must be less than pongWait.
	pingPeriod = 54 * time.Second

	// Signature data URLs dominate message size.
	maxMessageSize = 4 << 20

	sendQueueSize = 64
)

var errClientClosed = errors.New("hub: client closed")

// client is one WebSocket connection. Registration state is mutated only
// by the connection's own read loop; the send queue and closed flag are
// the only fields other goroutines touch.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	logger logger.Logger

	send      chan models.Envelope
	closeOnce sync.Once
	closed    chan struct{}

	// Set on successful register, cleared on unregister. Read-loop only.
	registered bool
	deviceID   string
	hotelID    string
	class      models.DeviceClass
}

func newClient(h *Hub, conn *websocket.Conn, log logger.Logger) *client {
	return &client{
		hub:    h,
		conn:   conn,
		logger: log,
		send:   make(chan models.Envelope, sendQueueSize),
		closed: make(chan struct{}),
	}
}

// Send queues an envelope for delivery. Delivery is best-effort: a closed
// connection or a full queue drops the message rather than blocking a
// handler on a slow peer.
func (c *client) Send(env models.Envelope) error {
	select {
	case <-c.closed:
		return errClientClosed
	default:
	}

	select {
	case c.send <- env:
		return nil
	case <-c.closed:
		return errClientClosed
	default:
		return errors.New("hub: send queue full, message dropped")
	}
}

// Open reports whether the transport can still accept writes.
func (c *client) Open() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

func (c *client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

// readLoop processes inbound messages one at a time, in arrival order, and
// runs the disconnect transition when the transport closes.
func (c *client) readLoop(ctx context.Context) {
	defer func() {
		c.shutdown()
		c.hub.handleDisconnect(ctx, c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env models.Envelope

		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().
					Err(err).
					Str("device_id", c.deviceID).
					Msg("WebSocket read error")
			}

			return
		}

		c.hub.handleMessage(ctx, c, &env)
	}
}

// writeLoop is the single writer on the connection. It drains the send
// queue and keeps the peer alive with periodic pings.
func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case env := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}
