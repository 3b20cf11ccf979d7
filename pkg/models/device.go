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

// Package models defines the shared domain types and the wire protocol for
// the device pairing service.
package models

import "time"

// DeviceClass distinguishes guest-facing signing devices from staff
// dashboard sessions. Both register through the same channel and are
// tracked identically in the connection registry.
type DeviceClass string

const (
	DeviceClassTablet    DeviceClass = "tablet"
	DeviceClassDashboard DeviceClass = "dashboard"
)

// Valid reports whether the class is one of the two known kinds.
func (c DeviceClass) Valid() bool {
	return c == DeviceClassTablet || c == DeviceClassDashboard
}

// Device is the durable directory record for every device that has ever
// registered with a hotel. Rows are created on first registration and
// mutated on every register/connect/disconnect; they are only removed by
// an explicit delete through the admin surface.
type Device struct {
	ID         string      `json:"id"`
	HotelID    string      `json:"hotelId"`
	Name       string      `json:"deviceName"`
	Class      DeviceClass `json:"deviceType"`
	Browser    string      `json:"browser,omitempty"`
	OS         string      `json:"os,omitempty"`
	ScreenSize string      `json:"screenSize,omitempty"`
	LastSeen   time.Time   `json:"lastSeen"`
	Online     bool        `json:"isOnline"`
}

// RosterEntry is the wire shape of one device in a device_list payload:
// the directory row annotated with live connectivity.
type RosterEntry struct {
	ID         string      `json:"id"`
	DeviceName string      `json:"deviceName"`
	DeviceType DeviceClass `json:"deviceType"`
	IsOnline   bool        `json:"isOnline"`
	Browser    string      `json:"browser,omitempty"`
	OS         string      `json:"os,omitempty"`
	ScreenSize string      `json:"screenSize,omitempty"`
	LastSeen   time.Time   `json:"lastSeen"`
}

// RosterFromDevice annotates a directory row with the live online flag
// from the connection registry.
func RosterFromDevice(d *Device, online bool) RosterEntry {
	return RosterEntry{
		ID:         d.ID,
		DeviceName: d.Name,
		DeviceType: d.Class,
		IsOnline:   online,
		Browser:    d.Browser,
		OS:         d.OS,
		ScreenSize: d.ScreenSize,
		LastSeen:   d.LastSeen,
	}
}
