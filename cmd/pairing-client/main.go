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

// pairing-client is a smoke-test WebSocket client for the pairing service.
// It registers as a tablet or dashboard and prints every server push; with
// -auto-sign it acknowledges pushed contracts the way a signing tablet
// would, which makes it useful for exercising a dashboard end to end.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/guestflow/pairing/pkg/models"
)

func main() {
	var (
		host     = flag.String("host", "localhost:8090", "Pairing server host:port")
		hotel    = flag.String("hotel", "", "Hotel ID to register under")
		device   = flag.String("device", "", "Device ID (defaults to a random UUID)")
		class    = flag.String("type", "tablet", "Device type: tablet or dashboard")
		name     = flag.String("name", "pairing-client", "Display name")
		secure   = flag.Bool("secure", false, "Use WSS instead of WS")
		autoSign = flag.Bool("auto-sign", false, "Automatically view and sign received contracts")
	)
	flag.Parse()

	if *hotel == "" {
		log.Fatal("Hotel ID required: provide via -hotel")
	}

	deviceID := *device
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	deviceClass := models.DeviceClass(*class)
	if !deviceClass.Valid() {
		log.Fatalf("Invalid device type %q: must be tablet or dashboard", *class)
	}

	scheme := "ws"
	if *secure {
		scheme = "wss"
	}

	u := url.URL{Scheme: scheme, Host: *host, Path: "/ws"}

	log.Printf("Connecting to %s", u.String())

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		if resp != nil {
			log.Printf("HTTP response status: %s", resp.Status)
		}

		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	register := models.NewEnvelope(models.TypeRegisterDevice, models.RegisterDevice{
		DeviceID:   deviceID,
		HotelID:    *hotel,
		DeviceType: deviceClass,
		DeviceName: *name,
		OS:         runtime.GOOS,
	})
	if err := conn.WriteJSON(register); err != nil {
		log.Fatalf("Failed to register: %v", err)
	}

	log.Printf("Registered as %s (%s) under hotel %s", deviceID, deviceClass, *hotel)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	messages := make(chan models.Envelope, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			var env models.Envelope

			if err := conn.ReadJSON(&env); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}

				return
			}

			messages <- env
		}
	}()

	for {
		select {
		case env := <-messages:
			printEnvelope(env)

			if *autoSign && env.Type == models.TypeReceiveContract {
				acknowledge(conn, env)
			}
		case <-interrupt:
			log.Println("Interrupted, closing connection")

			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

			return
		case <-done:
			log.Println("Connection closed by server")
			return
		}
	}
}

func printEnvelope(env models.Envelope) {
	pretty, err := json.MarshalIndent(env.Payload, "", "  ")
	if err != nil || len(env.Payload) == 0 {
		log.Printf("<- %s", env.Type)
		return
	}

	log.Printf("<- %s %s", env.Type, pretty)
}

func acknowledge(conn *websocket.Conn, env models.Envelope) {
	var push models.ReceiveContract

	if err := json.Unmarshal(env.Payload, &push); err != nil {
		log.Printf("Bad receive_contract payload: %v", err)
		return
	}

	viewed := models.NewEnvelope(models.TypeContractViewed, models.ContractViewed{
		ContractID:   push.ContractID,
		AssignmentID: push.AssignmentID,
	})
	if err := conn.WriteJSON(viewed); err != nil {
		log.Printf("Failed to send contract_viewed: %v", err)
		return
	}

	signed := models.NewEnvelope(models.TypeContractSigned, models.ContractSigned{
		ContractID:       push.ContractID,
		AssignmentID:     push.AssignmentID,
		SignatureDataURL: "data:image/png;base64,iVBORw0KGgo=",
	})
	if err := conn.WriteJSON(signed); err != nil {
		log.Printf("Failed to send contract_signed: %v", err)
		return
	}

	log.Printf("-> auto-signed contract %s", push.ContractID)
}
