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

// Package hub routes messages between front-desk dashboards and guest
// signing tablets over persistent WebSocket connections. It implements the
// pairing protocol (register/unregister), the contract hand-off protocol
// (dispatch, viewed, signed), and best-effort roster fan-out per hotel.
package hub

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/guestflow/pairing/pkg/db"
	"github.com/guestflow/pairing/pkg/logger"
	"github.com/guestflow/pairing/pkg/models"
	"github.com/guestflow/pairing/pkg/registry"
)

// EventPublisher mirrors hotel-scoped fan-out events to other processes.
// It is optional; a nil publisher keeps all traffic process-local.
type EventPublisher interface {
	PublishHotelEvent(hotelID string, env models.Envelope)
}

// Hub owns the connection registry and drives the protocol state machines.
// Registry access is serialized inside the registry itself; everything a
// handler touches beyond that is either per-connection state (only the
// connection's own read loop mutates it) or the durable store.
type Hub struct {
	registry *registry.ConnRegistry
	store    db.Service
	logger   logger.Logger
	relay    EventPublisher

	upgrader websocket.Upgrader
}

// New creates a Hub on top of the given durable store.
func New(store db.Service, log logger.Logger) *Hub {
	return &Hub{
		registry: registry.NewConnRegistry(),
		store:    store,
		logger:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Tablets and dashboards connect from the hotel's own
			// origin as well as the embedded check-in webview.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// SetRelay installs the optional cross-process event publisher.
func (h *Hub) SetRelay(relay EventPublisher) {
	h.relay = relay
}

// Registry exposes the connection registry for read-side consumers such as
// the REST roster endpoint.
func (h *Hub) Registry() *registry.ConnRegistry {
	return h.registry
}

// ServeWS upgrades the HTTP request and runs the connection until the
// transport closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("Failed to upgrade to WebSocket")

		return
	}

	h.logger.Debug().
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	client := newClient(h, conn, h.logger)

	go client.writeLoop()
	client.readLoop(r.Context())
}

// BroadcastToHotel pushes env to every open connection registered under
// hotelID. Closed peers are skipped; nothing is queued or retried.
func (h *Hub) BroadcastToHotel(hotelID string, env models.Envelope) {
	for _, entry := range h.registry.Connections(hotelID) {
		if !entry.Handle.Open() {
			continue
		}

		if err := entry.Handle.Send(env); err != nil {
			h.logger.Debug().
				Err(err).
				Str("device_id", entry.DeviceID).
				Str("hotel_id", hotelID).
				Msg("Fan-out send skipped")
		}
	}
}

// broadcastHotelEvent fans out locally and mirrors to the relay when one
// is configured.
func (h *Hub) broadcastHotelEvent(hotelID string, env models.Envelope) {
	h.BroadcastToHotel(hotelID, env)

	if h.relay != nil {
		h.relay.PublishHotelEvent(hotelID, env)
	}
}

// buildRoster annotates the hotel's directory rows with live connectivity.
func (h *Hub) buildRoster(ctx context.Context, hotelID string) ([]models.RosterEntry, error) {
	devices, err := h.store.ListDevicesByHotel(ctx, hotelID)
	if err != nil {
		return nil, err
	}

	roster := make([]models.RosterEntry, 0, len(devices))

	for i := range devices {
		roster = append(roster, models.RosterFromDevice(&devices[i], h.registry.IsOnline(devices[i].ID)))
	}

	return roster, nil
}

// broadcastRoster recomputes the hotel roster and pushes it to every
// connection in the hotel.
func (h *Hub) broadcastRoster(ctx context.Context, hotelID string) {
	roster, err := h.buildRoster(ctx, hotelID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("hotel_id", hotelID).
			Msg("Roster recompute failed, skipping fan-out")

		return
	}

	env := models.NewEnvelope(models.TypeDeviceListUpdate, models.DeviceList{Devices: roster})
	h.broadcastHotelEvent(hotelID, env)
}

// Roster returns the annotated device list for one hotel. Shared with the
// REST surface so both views are computed the same way.
func (h *Hub) Roster(ctx context.Context, hotelID string) ([]models.RosterEntry, error) {
	return h.buildRoster(ctx, hotelID)
}

// BroadcastRoster lets the REST surface trigger a roster fan-out after it
// mutates the directory, e.g. an explicit device removal.
func (h *Hub) BroadcastRoster(ctx context.Context, hotelID string) {
	h.broadcastRoster(ctx, hotelID)
}
