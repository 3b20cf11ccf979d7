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
	"time"

	"github.com/guestflow/pairing/pkg/db"
	"github.com/guestflow/pairing/pkg/models"
)

// handleMessage validates one inbound envelope and dispatches it to the
// protocol handlers. Every failure is contained here: malformed messages
// are logged and ignored, and the connection stays open.
func (h *Hub) handleMessage(ctx context.Context, c *client, env *models.Envelope) {
	msg, err := models.DecodeClientMessage(env)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("type", env.Type).
			Str("device_id", c.deviceID).
			Msg("Ignoring malformed message")

		return
	}

	// Ping is legal in every connection state.
	if _, ok := msg.(*models.Ping); ok {
		if err := c.Send(models.NewEnvelope(models.TypePong, nil)); err != nil {
			h.logger.Debug().Err(err).Msg("Pong reply dropped")
		}

		return
	}

	if register, ok := msg.(*models.RegisterDevice); ok {
		h.handleRegister(ctx, c, register)
		return
	}

	// Everything else requires a registered connection.
	if !c.registered {
		h.logger.Debug().
			Str("type", env.Type).
			Msg("Ignoring message from unregistered connection")

		return
	}

	switch m := msg.(type) {
	case *models.UnregisterDevice:
		h.handleUnregister(ctx, c, m)
	case *models.SendContract:
		h.handleDispatch(ctx, c, m)
	case *models.ContractViewed:
		h.handleViewed(ctx, c, m)
	case *models.ContractSigned:
		h.handleSigned(ctx, c, m)
	case *models.GetDeviceList:
		h.handleDeviceList(ctx, c, m)
	}
}

// handleRegister runs the Unregistered -> Registered transition: directory
// upsert, registry insert, acknowledgement, roster fan-out. Replaying a
// register for an already-registered device just refreshes state.
func (h *Hub) handleRegister(ctx context.Context, c *client, m *models.RegisterDevice) {
	now := time.Now().UTC()

	device, err := h.store.GetDevice(ctx, m.DeviceID)

	switch {
	case errors.Is(err, db.ErrNotFound):
		device = &models.Device{
			ID:         m.DeviceID,
			HotelID:    m.HotelID,
			Name:       m.DeviceName,
			Class:      m.DeviceType,
			Browser:    m.Browser,
			OS:         m.OS,
			ScreenSize: m.ScreenSize,
		}
	case err != nil:
		h.logger.Error().
			Err(err).
			Str("device_id", m.DeviceID).
			Msg("Device directory read failed, abandoning register")

		return
	default:
		if device.HotelID != m.HotelID {
			// Deliberate self-healing: a device moved between hotels
			// keeps its identity and the newer hotel wins.
			h.logger.Warn().
				Str("device_id", m.DeviceID).
				Str("stored_hotel_id", device.HotelID).
				Str("hotel_id", m.HotelID).
				Msg("Device re-registered under a different hotel, correcting stored property")

			device.HotelID = m.HotelID
		}

		device.Class = m.DeviceType

		if m.DeviceName != "" {
			device.Name = m.DeviceName
		}

		if m.Browser != "" {
			device.Browser = m.Browser
		}

		if m.OS != "" {
			device.OS = m.OS
		}

		if m.ScreenSize != "" {
			device.ScreenSize = m.ScreenSize
		}
	}

	device.LastSeen = now
	device.Online = true

	if err := h.store.UpsertDevice(ctx, device); err != nil {
		h.logger.Error().
			Err(err).
			Str("device_id", m.DeviceID).
			Msg("Device directory write failed, abandoning register")

		return
	}

	// The same connection re-registering under a new identity abandons
	// its previous registry entry.
	if c.registered && c.deviceID != m.DeviceID {
		if entry, ok := h.registry.RemoveConn(c.deviceID, c); ok {
			if err := h.store.SetOnline(ctx, entry.DeviceID, false); err != nil && !errors.Is(err, db.ErrNotFound) {
				h.logger.Error().Err(err).Str("device_id", entry.DeviceID).Msg("Failed to mark device offline")
			}

			h.broadcastRoster(ctx, entry.HotelID)
		}
	}

	h.registry.Upsert(m.DeviceID, m.HotelID, m.DeviceType, c)

	c.registered = true
	c.deviceID = m.DeviceID
	c.hotelID = m.HotelID
	c.class = m.DeviceType

	ack := models.NewEnvelope(models.TypeRegistrationConfirmed, models.RegistrationConfirmed{
		DeviceID: m.DeviceID,
		HotelID:  m.HotelID,
	})
	if err := c.Send(ack); err != nil {
		h.logger.Debug().Err(err).Str("device_id", m.DeviceID).Msg("Registration ack dropped")
	}

	h.logger.Info().
		Str("device_id", m.DeviceID).
		Str("hotel_id", m.HotelID).
		Str("device_type", string(m.DeviceType)).
		Msg("Device registered")

	h.broadcastRoster(ctx, m.HotelID)
}

// handleUnregister runs the explicit Registered -> Closed transition. The
// directory row is marked offline but otherwise retained, and the
// connection is terminal afterwards.
func (h *Hub) handleUnregister(ctx context.Context, c *client, m *models.UnregisterDevice) {
	entry, removed := h.registry.Remove(m.DeviceID)

	if err := h.store.SetOnline(ctx, m.DeviceID, false); err != nil && !errors.Is(err, db.ErrNotFound) {
		h.logger.Error().
			Err(err).
			Str("device_id", m.DeviceID).
			Msg("Failed to mark device offline")
	}

	if removed {
		h.logger.Info().
			Str("device_id", m.DeviceID).
			Str("hotel_id", entry.HotelID).
			Msg("Device unregistered")

		h.broadcastRoster(ctx, entry.HotelID)
	}

	if m.DeviceID == c.deviceID {
		c.registered = false
		c.deviceID = ""
		c.hotelID = ""
		c.shutdown()
	}
}

// handleDisconnect is the transport-close transition, treated identically
// to a clean unregister. A close racing a re-register on a fresh
// connection leaves the newer registration alone.
func (h *Hub) handleDisconnect(ctx context.Context, c *client) {
	if !c.registered {
		return
	}

	// The request context is already cancelled once the transport is
	// gone; the offline write and roster fan-out must still happen.
	ctx = context.WithoutCancel(ctx)

	entry, ok := h.registry.RemoveConn(c.deviceID, c)
	if !ok {
		return
	}

	if err := h.store.SetOnline(ctx, c.deviceID, false); err != nil && !errors.Is(err, db.ErrNotFound) {
		h.logger.Error().
			Err(err).
			Str("device_id", c.deviceID).
			Msg("Failed to mark device offline")
	}

	h.logger.Info().
		Str("device_id", c.deviceID).
		Str("hotel_id", entry.HotelID).
		Msg("Device disconnected")

	h.broadcastRoster(ctx, entry.HotelID)
}

// handleDispatch pushes a contract to the target device. The reply to the
// caller depends only on whether the registry had an open transport, never
// on delivery confirmation from the device.
func (h *Hub) handleDispatch(ctx context.Context, c *client, m *models.SendContract) {
	entry, ok := h.registry.Lookup(m.DeviceID)
	if !ok || !entry.Handle.Open() {
		reply := models.NewEnvelope(models.TypeContractSentConfirmation, models.ContractSentConfirmation{
			ContractID: m.ContractID,
			DeviceID:   m.DeviceID,
			Success:    false,
			Error:      "device not connected",
		})
		if err := c.Send(reply); err != nil {
			h.logger.Debug().Err(err).Msg("Dispatch failure reply dropped")
		}

		return
	}

	assignmentID := m.AssignmentID
	if assignmentID == "" {
		assignmentID = m.ContractID
	}

	push := models.NewEnvelope(models.TypeReceiveContract, models.ReceiveContract{
		ContractID:   m.ContractID,
		AssignmentID: assignmentID,
		Contract:     m.Contract,
	})
	if err := entry.Handle.Send(push); err != nil {
		h.logger.Debug().
			Err(err).
			Str("device_id", m.DeviceID).
			Msg("Contract push dropped by target queue")
	}

	assignment := &models.Assignment{
		ID:         assignmentID,
		ContractID: m.ContractID,
		DeviceID:   m.DeviceID,
		HotelID:    entry.HotelID,
		Status:     models.AssignmentSent,
		SentAt:     time.Now().UTC(),
	}
	if err := h.store.InsertAssignment(ctx, assignment); err != nil {
		h.logger.Error().
			Err(err).
			Str("assignment_id", assignmentID).
			Str("contract_id", m.ContractID).
			Msg("Assignment write failed, dispatch reply abandoned")

		return
	}

	reply := models.NewEnvelope(models.TypeContractSentConfirmation, models.ContractSentConfirmation{
		ContractID: m.ContractID,
		DeviceID:   m.DeviceID,
		Success:    true,
	})
	if err := c.Send(reply); err != nil {
		h.logger.Debug().Err(err).Msg("Dispatch success reply dropped")
	}

	h.logger.Info().
		Str("contract_id", m.ContractID).
		Str("assignment_id", assignmentID).
		Str("device_id", m.DeviceID).
		Str("hotel_id", entry.HotelID).
		Msg("Contract dispatched")
}

// handleViewed advances the assignment to viewing and relays progress to
// the whole hotel so every watching dashboard updates live.
func (h *Hub) handleViewed(ctx context.Context, c *client, m *models.ContractViewed) {
	if err := h.store.AdvanceAssignment(ctx, m.AssignmentID, models.AssignmentViewing); err != nil {
		h.logger.Warn().
			Err(err).
			Str("assignment_id", m.AssignmentID).
			Msg("Viewing transition rejected")

		return
	}

	env := models.NewEnvelope(models.TypeContractStatusUpdate, models.ContractStatusUpdate{
		ContractID:   m.ContractID,
		AssignmentID: m.AssignmentID,
		Status:       models.AssignmentViewing,
	})
	h.broadcastHotelEvent(c.hotelID, env)
}

// handleSigned advances the assignment, persists the signature against the
// contract, then fans the signed event out with the signature payload.
func (h *Hub) handleSigned(ctx context.Context, c *client, m *models.ContractSigned) {
	if err := h.store.AdvanceAssignment(ctx, m.AssignmentID, models.AssignmentSigned); err != nil {
		h.logger.Warn().
			Err(err).
			Str("assignment_id", m.AssignmentID).
			Msg("Signed transition rejected")

		return
	}

	if err := h.store.SaveSignature(ctx, m.ContractID, m.SignatureDataURL, m.Email, m.Phone); err != nil {
		h.logger.Error().
			Err(err).
			Str("contract_id", m.ContractID).
			Msg("Signature persistence failed, fan-out abandoned")

		return
	}

	h.logger.Info().
		Str("contract_id", m.ContractID).
		Str("assignment_id", m.AssignmentID).
		Str("device_id", c.deviceID).
		Msg("Contract signed")

	env := models.NewEnvelope(models.TypeContractStatusUpdate, models.ContractStatusUpdate{
		ContractID:       m.ContractID,
		AssignmentID:     m.AssignmentID,
		Status:           models.AssignmentSigned,
		SignatureDataURL: m.SignatureDataURL,
		Email:            m.Email,
		Phone:            m.Phone,
	})
	h.broadcastHotelEvent(c.hotelID, env)
}

// handleDeviceList answers a one-shot roster query on the same connection.
func (h *Hub) handleDeviceList(ctx context.Context, c *client, m *models.GetDeviceList) {
	roster, err := h.buildRoster(ctx, m.HotelID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("hotel_id", m.HotelID).
			Msg("Roster query failed")

		return
	}

	if err := c.Send(models.NewEnvelope(models.TypeDeviceList, models.DeviceList{Devices: roster})); err != nil {
		h.logger.Debug().Err(err).Msg("Roster reply dropped")
	}
}
