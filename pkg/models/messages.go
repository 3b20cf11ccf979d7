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

package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message types accepted from clients.
const (
	TypeRegisterDevice   = "register_device"
	TypeUnregisterDevice = "unregister_device"
	TypeSendContract     = "send_contract_to_device"
	TypeContractViewed   = "contract_viewed"
	TypeContractSigned   = "contract_signed"
	TypeGetDeviceList    = "get_device_list"
	TypePing             = "ping"
)

// Message types produced by the server.
const (
	TypeRegistrationConfirmed    = "registration_confirmed"
	TypeDeviceList               = "device_list"
	TypeDeviceListUpdate         = "device_list_update"
	TypeReceiveContract          = "receive_contract"
	TypeContractSentConfirmation = "contract_sent_confirmation"
	TypeContractStatusUpdate     = "contract_status_update"
	TypePong                     = "pong"
)

// ErrUnknownMessageType marks envelopes whose type is outside the protocol.
var ErrUnknownMessageType = errors.New("unknown message type")

// Envelope is the outer frame of every message in either direction.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an outbound envelope. It panics only
// on unmarshalable payload types, which is a programming error.
func NewEnvelope(msgType string, payload interface{}) Envelope {
	if payload == nil {
		return Envelope{Type: msgType}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("models: unmarshalable payload for %s: %v", msgType, err))
	}

	return Envelope{Type: msgType, Payload: raw}
}

// ClientMessage is the closed set of inbound payloads. Every implementation
// validates its own required fields at the decode boundary.
type ClientMessage interface {
	Validate() error

	isClientMessage()
}

// RegisterDevice attaches a device or dashboard session to a hotel.
type RegisterDevice struct {
	DeviceID   string      `json:"deviceId"`
	HotelID    string      `json:"hotelId"`
	DeviceType DeviceClass `json:"deviceType"`
	DeviceName string      `json:"deviceName,omitempty"`
	Browser    string      `json:"browser,omitempty"`
	OS         string      `json:"os,omitempty"`
	ScreenSize string      `json:"screenSize,omitempty"`
}

func (m *RegisterDevice) Validate() error {
	if m.DeviceID == "" {
		return errors.New("register_device: deviceId is required")
	}

	if m.HotelID == "" {
		return errors.New("register_device: hotelId is required")
	}

	if !m.DeviceType.Valid() {
		return fmt.Errorf("register_device: invalid deviceType %q", m.DeviceType)
	}

	return nil
}

// UnregisterDevice detaches a device without closing the transport.
type UnregisterDevice struct {
	DeviceID string `json:"deviceId"`
}

func (m *UnregisterDevice) Validate() error {
	if m.DeviceID == "" {
		return errors.New("unregister_device: deviceId is required")
	}

	return nil
}

// SendContract pushes a contract snapshot to a target device. The contract
// body is carried opaquely; only its identity matters to the hand-off.
type SendContract struct {
	ContractID   string          `json:"contractId"`
	DeviceID     string          `json:"deviceId"`
	AssignmentID string          `json:"assignmentId,omitempty"`
	Contract     json.RawMessage `json:"contract"`
}

func (m *SendContract) Validate() error {
	if m.ContractID == "" {
		return errors.New("send_contract_to_device: contractId is required")
	}

	if m.DeviceID == "" {
		return errors.New("send_contract_to_device: deviceId is required")
	}

	return nil
}

// ContractViewed reports that the target device opened the pushed form.
type ContractViewed struct {
	ContractID   string `json:"contractId"`
	AssignmentID string `json:"assignmentId"`
}

func (m *ContractViewed) Validate() error {
	if m.ContractID == "" {
		return errors.New("contract_viewed: contractId is required")
	}

	if m.AssignmentID == "" {
		return errors.New("contract_viewed: assignmentId is required")
	}

	return nil
}

// ContractSigned carries the captured signature and any guest-corrected
// contact fields back from the device.
type ContractSigned struct {
	ContractID       string `json:"contractId"`
	AssignmentID     string `json:"assignmentId"`
	SignatureDataURL string `json:"signatureDataUrl"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
}

func (m *ContractSigned) Validate() error {
	if m.ContractID == "" {
		return errors.New("contract_signed: contractId is required")
	}

	if m.AssignmentID == "" {
		return errors.New("contract_signed: assignmentId is required")
	}

	if m.SignatureDataURL == "" {
		return errors.New("contract_signed: signatureDataUrl is required")
	}

	return nil
}

// GetDeviceList asks for a one-shot roster snapshot.
type GetDeviceList struct {
	HotelID string `json:"hotelId"`
}

func (m *GetDeviceList) Validate() error {
	if m.HotelID == "" {
		return errors.New("get_device_list: hotelId is required")
	}

	return nil
}

// Ping is a liveness probe, legal in any connection state.
type Ping struct{}

func (*Ping) Validate() error { return nil }

func (*RegisterDevice) isClientMessage()   {}
func (*UnregisterDevice) isClientMessage() {}
func (*SendContract) isClientMessage()     {}
func (*ContractViewed) isClientMessage()   {}
func (*ContractSigned) isClientMessage()   {}
func (*GetDeviceList) isClientMessage()    {}
func (*Ping) isClientMessage()             {}

// DecodeClientMessage turns a raw envelope into a validated member of the
// ClientMessage union. Unknown types return ErrUnknownMessageType so the
// caller can log and ignore them without tearing down the connection.
func DecodeClientMessage(env *Envelope) (ClientMessage, error) {
	var msg ClientMessage

	switch env.Type {
	case TypeRegisterDevice:
		msg = &RegisterDevice{}
	case TypeUnregisterDevice:
		msg = &UnregisterDevice{}
	case TypeSendContract:
		msg = &SendContract{}
	case TypeContractViewed:
		msg = &ContractViewed{}
	case TypeContractSigned:
		msg = &ContractSigned{}
	case TypeGetDeviceList:
		msg = &GetDeviceList{}
	case TypePing:
		return &Ping{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, msg); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	return msg, nil
}

// RegistrationConfirmed acknowledges a successful register_device.
type RegistrationConfirmed struct {
	DeviceID string `json:"deviceId"`
	HotelID  string `json:"hotelId"`
}

// DeviceList carries a roster snapshot, both as the reply to
// get_device_list and as the device_list_update fan-out.
type DeviceList struct {
	Devices []RosterEntry `json:"devices"`
}

// ReceiveContract is the push delivered to the target device.
type ReceiveContract struct {
	ContractID   string          `json:"contractId"`
	AssignmentID string          `json:"assignmentId"`
	Contract     json.RawMessage `json:"contract"`
}

// ContractSentConfirmation is the synchronous dispatch result returned to
// the dashboard that sent the contract.
type ContractSentConfirmation struct {
	ContractID string `json:"contractId"`
	DeviceID   string `json:"deviceId"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// ContractStatusUpdate relays viewing/signed progress to the whole hotel.
type ContractStatusUpdate struct {
	ContractID       string           `json:"contractId"`
	AssignmentID     string           `json:"assignmentId"`
	Status           AssignmentStatus `json:"status"`
	SignatureDataURL string           `json:"signatureDataUrl,omitempty"`
	Email            string           `json:"email,omitempty"`
	Phone            string           `json:"phone,omitempty"`
}
