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

// Package relay mirrors hotel-scoped fan-out events across pairing
// processes over NATS. It extends the per-process broadcast so dashboards
// connected to one instance observe roster and contract progress changes
// that originate on another.
//
// The relay carries notifications only. Dispatch stays strictly local: a
// contract can only be pushed to a device whose connection is registered
// in the same process, so deployments that scale out still need sticky
// routing per hotel.
package relay

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/guestflow/pairing/pkg/logger"
	"github.com/guestflow/pairing/pkg/models"
)

// LocalBroadcaster is the hub-side sink for events arriving from peers.
type LocalBroadcaster interface {
	BroadcastToHotel(hotelID string, env models.Envelope)
}

// natsConn is the slice of *nats.Conn the relay uses, split out so tests
// can run without a broker.
type natsConn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Drain() error
}

type frame struct {
	Origin  string          `json:"origin"`
	HotelID string          `json:"hotelId"`
	Event   models.Envelope `json:"event"`
}

// Relay is a best-effort, at-most-once event mirror. Events published
// while a peer is down are simply lost, matching the fan-out semantics of
// the hub itself.
type Relay struct {
	conn   natsConn
	prefix string
	origin string
	local  LocalBroadcaster
	logger logger.Logger
	sub    *nats.Subscription
}

// Connect dials NATS and starts mirroring events for every hotel.
func Connect(url, subjectPrefix string, local LocalBroadcaster, log logger.Logger) (*Relay, error) {
	nc, err := nats.Connect(url,
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("relay: failed to connect to NATS: %w", err)
	}

	r, err := start(nc, subjectPrefix, local, log)
	if err != nil {
		nc.Close()
		return nil, err
	}

	log.Info().Str("url", url).Str("subject_prefix", subjectPrefix).Msg("Fan-out relay connected")

	return r, nil
}

func start(conn natsConn, subjectPrefix string, local LocalBroadcaster, log logger.Logger) (*Relay, error) {
	r := &Relay{
		conn:   conn,
		prefix: subjectPrefix,
		origin: uuid.NewString(),
		local:  local,
		logger: log,
	}

	sub, err := conn.Subscribe(subjectPrefix+".hotel.>", r.handleRemote)
	if err != nil {
		return nil, fmt.Errorf("relay: subscribe failed: %w", err)
	}

	r.sub = sub

	return r, nil
}

// PublishHotelEvent implements hub.EventPublisher. Publish failures are
// logged and dropped; the local fan-out has already happened.
func (r *Relay) PublishHotelEvent(hotelID string, env models.Envelope) {
	data, err := json.Marshal(frame{Origin: r.origin, HotelID: hotelID, Event: env})
	if err != nil {
		r.logger.Error().Err(err).Msg("Relay frame marshal failed")
		return
	}

	if err := r.conn.Publish(r.subject(hotelID), data); err != nil {
		r.logger.Warn().
			Err(err).
			Str("hotel_id", hotelID).
			Msg("Relay publish dropped")
	}
}

func (r *Relay) handleRemote(msg *nats.Msg) {
	var f frame

	if err := json.Unmarshal(msg.Data, &f); err != nil {
		r.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("Ignoring malformed relay frame")
		return
	}

	// Our own publishes come back on the wildcard subscription.
	if f.Origin == r.origin {
		return
	}

	r.local.BroadcastToHotel(f.HotelID, f.Event)
}

func (r *Relay) subject(hotelID string) string {
	return r.prefix + ".hotel." + hotelID
}

// Close drains the subscription.
func (r *Relay) Close() error {
	return r.conn.Drain()
}
