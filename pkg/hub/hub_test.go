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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guestflow/pairing/pkg/db"
	"github.com/guestflow/pairing/pkg/logger"
	"github.com/guestflow/pairing/pkg/models"
)

type testServer struct {
	hub    *Hub
	store  *db.MemStore
	server *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := db.NewMemStore()
	h := New(store, logger.NewTestLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testServer{hub: h, store: store, server: srv}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(models.NewEnvelope(msgType, payload)))
}

// waitFor reads envelopes until one of the wanted type arrives, skipping
// interleaved fan-out traffic.
func waitFor(t *testing.T, conn *websocket.Conn, msgType string) models.Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	for {
		var env models.Envelope

		err := conn.ReadJSON(&env)
		require.NoError(t, err, "waiting for %s", msgType)

		if env.Type == msgType {
			return env
		}
	}
}

func decodePayload(t *testing.T, env models.Envelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Payload, dst))
}

func register(t *testing.T, conn *websocket.Conn, deviceID, hotelID string, class models.DeviceClass) {
	t.Helper()

	send(t, conn, models.TypeRegisterDevice, models.RegisterDevice{
		DeviceID:   deviceID,
		HotelID:    hotelID,
		DeviceType: class,
	})

	env := waitFor(t, conn, models.TypeRegistrationConfirmed)

	var ack models.RegistrationConfirmed
	decodePayload(t, env, &ack)
	require.Equal(t, deviceID, ack.DeviceID)
	require.Equal(t, hotelID, ack.HotelID)
}

func TestRegisterCreatesDirectoryRowAndRosterUpdate(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	send(t, conn, models.TypeRegisterDevice, models.RegisterDevice{
		DeviceID:   "t1",
		HotelID:    "h1",
		DeviceType: models.DeviceClassTablet,
		DeviceName: "Lobby iPad",
		Browser:    "Safari",
	})

	waitFor(t, conn, models.TypeRegistrationConfirmed)

	env := waitFor(t, conn, models.TypeDeviceListUpdate)

	var list models.DeviceList
	decodePayload(t, env, &list)
	require.Len(t, list.Devices, 1)
	assert.Equal(t, "t1", list.Devices[0].ID)
	assert.True(t, list.Devices[0].IsOnline)
	assert.Equal(t, "Lobby iPad", list.Devices[0].DeviceName)

	device, err := ts.store.GetDevice(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "h1", device.HotelID)
	assert.True(t, device.Online)
	assert.ElementsMatch(t, []string{"t1"}, ts.hub.Registry().MembersOf("h1"))
}

func TestRegisterIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	register(t, conn, "t1", "h1", models.DeviceClassTablet)
	register(t, conn, "t1", "h1", models.DeviceClassTablet)

	devices, err := ts.store.ListDevicesByHotel(context.Background(), "h1")
	require.NoError(t, err)
	assert.Len(t, devices, 1)
	assert.Len(t, ts.hub.Registry().MembersOf("h1"), 1)
}

func TestHotelReassignmentCorrectsDirectory(t *testing.T) {
	ts := newTestServer(t)

	conn := ts.dial(t)
	register(t, conn, "t1", "h1", models.DeviceClassTablet)
	conn.Close()

	// Reconnect under a different hotel; the newer property wins.
	conn2 := ts.dial(t)
	register(t, conn2, "t1", "h2", models.DeviceClassTablet)

	device, err := ts.store.GetDevice(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "h2", device.HotelID)

	assert.Empty(t, ts.hub.Registry().MembersOf("h1"))
	assert.ElementsMatch(t, []string{"t1"}, ts.hub.Registry().MembersOf("h2"))
}

func TestDispatchToOfflineDeviceFailsWithoutAssignment(t *testing.T) {
	ts := newTestServer(t)

	dash := ts.dial(t)
	register(t, dash, "d1", "h1", models.DeviceClassDashboard)

	send(t, dash, models.TypeSendContract, models.SendContract{
		ContractID: "c1",
		DeviceID:   "ghost",
		Contract:   json.RawMessage(`{"id":"c1"}`),
	})

	env := waitFor(t, dash, models.TypeContractSentConfirmation)

	var confirmation models.ContractSentConfirmation
	decodePayload(t, env, &confirmation)
	assert.False(t, confirmation.Success)
	assert.Equal(t, "device not connected", confirmation.Error)

	_, err := ts.store.GetAssignment(context.Background(), "c1")
	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestDispatchToDirectoryOnlyDeviceFails(t *testing.T) {
	ts := newTestServer(t)

	// t1 has a directory row from an earlier session but no connection.
	tablet := ts.dial(t)
	register(t, tablet, "t1", "h1", models.DeviceClassTablet)
	tablet.Close()

	dash := ts.dial(t)
	register(t, dash, "d1", "h1", models.DeviceClassDashboard)

	require.Eventually(t, func() bool {
		return !ts.hub.Registry().IsOnline("t1")
	}, 2*time.Second, 10*time.Millisecond)

	send(t, dash, models.TypeSendContract, models.SendContract{
		ContractID: "c1",
		DeviceID:   "t1",
		Contract:   json.RawMessage(`{"id":"c1"}`),
	})

	env := waitFor(t, dash, models.TypeContractSentConfirmation)

	var confirmation models.ContractSentConfirmation
	decodePayload(t, env, &confirmation)
	assert.False(t, confirmation.Success)
	assert.Equal(t, "device not connected", confirmation.Error)

	_, err := ts.store.GetAssignment(context.Background(), "c1")
	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestDispatchSignFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.store.SeedContract("c1")

	tablet := ts.dial(t)
	register(t, tablet, "t1", "h1", models.DeviceClassTablet)

	dash := ts.dial(t)
	register(t, dash, "d1", "h1", models.DeviceClassDashboard)

	send(t, dash, models.TypeSendContract, models.SendContract{
		ContractID: "c1",
		DeviceID:   "t1",
		Contract:   json.RawMessage(`{"id":"c1","guest":"Ada Lovelace"}`),
	})

	env := waitFor(t, dash, models.TypeContractSentConfirmation)

	var confirmation models.ContractSentConfirmation
	decodePayload(t, env, &confirmation)
	require.True(t, confirmation.Success)

	env = waitFor(t, tablet, models.TypeReceiveContract)

	var push models.ReceiveContract
	decodePayload(t, env, &push)
	assert.Equal(t, "c1", push.ContractID)
	assert.Equal(t, "c1", push.AssignmentID)
	assert.JSONEq(t, `{"id":"c1","guest":"Ada Lovelace"}`, string(push.Contract))

	assignment, err := ts.store.GetAssignment(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentSent, assignment.Status)

	// The guest opens the form, then signs.
	send(t, tablet, models.TypeContractViewed, models.ContractViewed{ContractID: "c1", AssignmentID: "c1"})

	env = waitFor(t, dash, models.TypeContractStatusUpdate)

	var status models.ContractStatusUpdate
	decodePayload(t, env, &status)
	assert.Equal(t, models.AssignmentViewing, status.Status)

	send(t, tablet, models.TypeContractSigned, models.ContractSigned{
		ContractID:       "c1",
		AssignmentID:     "c1",
		SignatureDataURL: "data:image/png;base64,AAAA",
		Email:            "ada@example.com",
	})

	env = waitFor(t, dash, models.TypeContractStatusUpdate)
	decodePayload(t, env, &status)
	assert.Equal(t, models.AssignmentSigned, status.Status)
	assert.Equal(t, "data:image/png;base64,AAAA", status.SignatureDataURL)

	assignment, err = ts.store.GetAssignment(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentSigned, assignment.Status)

	rec, ok := ts.store.Signature("c1")
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,AAAA", rec.SignatureDataURL)
	assert.Equal(t, "ada@example.com", rec.Email)
}

func TestDispatchHonorsCallerAssignmentID(t *testing.T) {
	ts := newTestServer(t)

	tablet := ts.dial(t)
	register(t, tablet, "t1", "h1", models.DeviceClassTablet)

	dash := ts.dial(t)
	register(t, dash, "d1", "h1", models.DeviceClassDashboard)

	send(t, dash, models.TypeSendContract, models.SendContract{
		ContractID:   "c7",
		DeviceID:     "t1",
		AssignmentID: "a-42",
		Contract:     json.RawMessage(`{"id":"c7"}`),
	})

	env := waitFor(t, tablet, models.TypeReceiveContract)

	var push models.ReceiveContract
	decodePayload(t, env, &push)
	assert.Equal(t, "c7", push.ContractID)
	assert.Equal(t, "a-42", push.AssignmentID)

	assignment, err := ts.store.GetAssignment(context.Background(), "a-42")
	require.NoError(t, err)
	assert.Equal(t, "c7", assignment.ContractID)
}

func TestDisconnectRemovesFromRosterAndNotifiesPeers(t *testing.T) {
	ts := newTestServer(t)

	tablet := ts.dial(t)
	register(t, tablet, "t1", "h1", models.DeviceClassTablet)

	dash := ts.dial(t)
	register(t, dash, "d1", "h1", models.DeviceClassDashboard)

	// Drain the roster update triggered by the dashboard's own register.
	waitFor(t, dash, models.TypeDeviceListUpdate)

	tablet.Close()

	// The next roster update must show t1 offline.
	deadline := time.Now().Add(2 * time.Second)

	for {
		env := waitFor(t, dash, models.TypeDeviceListUpdate)

		var list models.DeviceList
		decodePayload(t, env, &list)

		var t1Online bool

		for _, d := range list.Devices {
			if d.ID == "t1" {
				t1Online = d.IsOnline
			}
		}

		if !t1Online {
			break
		}

		require.True(t, time.Now().Before(deadline), "t1 never went offline in roster")
	}

	assert.NotContains(t, ts.hub.Registry().MembersOf("h1"), "t1")

	device, err := ts.store.GetDevice(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, device.Online)
}

func TestUnregisterMarksOfflineAndRetainsDirectoryRow(t *testing.T) {
	ts := newTestServer(t)

	conn := ts.dial(t)
	register(t, conn, "t1", "h1", models.DeviceClassTablet)

	send(t, conn, models.TypeUnregisterDevice, models.UnregisterDevice{DeviceID: "t1"})

	require.Eventually(t, func() bool {
		return !ts.hub.Registry().IsOnline("t1")
	}, 2*time.Second, 10*time.Millisecond)

	device, err := ts.store.GetDevice(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, device.Online)
}

func TestUnregisteredConnectionOnlyAnswersPing(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	// Non-register traffic from an unregistered connection is ignored.
	send(t, conn, models.TypeGetDeviceList, models.GetDeviceList{HotelID: "h1"})
	send(t, conn, models.TypePing, nil)

	env := waitFor(t, conn, models.TypePong)
	assert.Equal(t, models.TypePong, env.Type)
}

func TestMalformedMessageKeepsConnectionOpen(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"reboot_everything","payload":{}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"register_device","payload":{"deviceId":"t1"}}`)))

	// The connection survives both and still serves the protocol.
	register(t, conn, "t1", "h1", models.DeviceClassTablet)
}

func TestGetDeviceListSnapshot(t *testing.T) {
	ts := newTestServer(t)

	tablet := ts.dial(t)
	register(t, tablet, "t1", "h1", models.DeviceClassTablet)

	dash := ts.dial(t)
	register(t, dash, "d1", "h1", models.DeviceClassDashboard)

	send(t, dash, models.TypeGetDeviceList, models.GetDeviceList{HotelID: "h1"})

	env := waitFor(t, dash, models.TypeDeviceList)

	var list models.DeviceList
	decodePayload(t, env, &list)
	require.Len(t, list.Devices, 2)
}

func TestConcurrentDispatchesBothSucceed(t *testing.T) {
	ts := newTestServer(t)

	t1 := ts.dial(t)
	register(t, t1, "t1", "h1", models.DeviceClassTablet)

	t2 := ts.dial(t)
	register(t, t2, "t2", "h1", models.DeviceClassTablet)

	dashA := ts.dial(t)
	register(t, dashA, "d1", "h1", models.DeviceClassDashboard)

	dashB := ts.dial(t)
	register(t, dashB, "d2", "h1", models.DeviceClassDashboard)

	// Two dashboards push the same contract to two different tablets.
	// There is no single-assignment-per-contract rule; both succeed.
	send(t, dashA, models.TypeSendContract, models.SendContract{
		ContractID:   "c1",
		DeviceID:     "t1",
		AssignmentID: "a1",
		Contract:     json.RawMessage(`{"id":"c1"}`),
	})
	send(t, dashB, models.TypeSendContract, models.SendContract{
		ContractID:   "c1",
		DeviceID:     "t2",
		AssignmentID: "a2",
		Contract:     json.RawMessage(`{"id":"c1"}`),
	})

	var confirmation models.ContractSentConfirmation

	decodePayload(t, waitFor(t, dashA, models.TypeContractSentConfirmation), &confirmation)
	assert.True(t, confirmation.Success)
	decodePayload(t, waitFor(t, dashB, models.TypeContractSentConfirmation), &confirmation)
	assert.True(t, confirmation.Success)

	waitFor(t, t1, models.TypeReceiveContract)
	waitFor(t, t2, models.TypeReceiveContract)

	ctx := context.Background()

	a1, err := ts.store.GetAssignment(ctx, "a1")
	require.NoError(t, err)

	a2, err := ts.store.GetAssignment(ctx, "a2")
	require.NoError(t, err)

	assert.Equal(t, "t1", a1.DeviceID)
	assert.Equal(t, "t2", a2.DeviceID)
}
