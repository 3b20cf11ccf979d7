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

// Package registry tracks which devices are connected to this process.
//
// The registry is purely derived state: it is rebuilt empty on restart and
// every device must re-register after a reconnect. It is the only component
// allowed to map device identities to live transports; callers never reach
// the underlying maps directly.
package registry

import (
	"sync"

	"github.com/guestflow/pairing/pkg/models"
)

// Handle is the live transport side of a registered connection. Sends are
// best-effort; a closed handle reports Open() == false and is skipped by
// fan-out.
type Handle interface {
	Send(env models.Envelope) error
	Open() bool
}

// Entry pairs a device identity with its live transport.
type Entry struct {
	DeviceID string
	HotelID  string
	Class    models.DeviceClass
	Handle   Handle
}

// ConnRegistry is the process-local connection table. All access is
// serialized behind one mutex so message handlers observe it atomically.
type ConnRegistry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	byHotel map[string]map[string]struct{}
}

// NewConnRegistry creates an empty registry.
func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{
		entries: make(map[string]*Entry),
		byHotel: make(map[string]map[string]struct{}),
	}
}

// Upsert installs the entry for deviceID, replacing any prior one
// (last register wins). If the device was previously listed under a
// different hotel, it is moved to the new hotel's membership set.
func (r *ConnRegistry) Upsert(deviceID, hotelID string, class models.DeviceClass, handle Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.entries[deviceID]; ok && prev.HotelID != hotelID {
		r.dropMemberLocked(prev.HotelID, deviceID)
	}

	r.entries[deviceID] = &Entry{
		DeviceID: deviceID,
		HotelID:  hotelID,
		Class:    class,
		Handle:   handle,
	}

	members, ok := r.byHotel[hotelID]
	if !ok {
		members = make(map[string]struct{})
		r.byHotel[hotelID] = members
	}

	members[deviceID] = struct{}{}
}

// Remove unconditionally deletes the entry for deviceID. It returns the
// removed entry so the caller can fan out to the affected hotel.
func (r *ConnRegistry) Remove(deviceID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(deviceID)
}

// RemoveConn deletes the entry for deviceID only if it still points at
// handle. A transport close that races a re-register on a fresh connection
// must not evict the newer entry.
func (r *ConnRegistry) RemoveConn(deviceID string, handle Handle) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[deviceID]
	if !ok || entry.Handle != handle {
		return Entry{}, false
	}

	return r.removeLocked(deviceID)
}

func (r *ConnRegistry) removeLocked(deviceID string) (Entry, bool) {
	entry, ok := r.entries[deviceID]
	if !ok {
		return Entry{}, false
	}

	delete(r.entries, deviceID)
	r.dropMemberLocked(entry.HotelID, deviceID)

	return *entry, true
}

func (r *ConnRegistry) dropMemberLocked(hotelID, deviceID string) {
	members, ok := r.byHotel[hotelID]
	if !ok {
		return
	}

	delete(members, deviceID)

	if len(members) == 0 {
		delete(r.byHotel, hotelID)
	}
}

// IsOnline reports whether deviceID has a live entry.
func (r *ConnRegistry) IsOnline(deviceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.entries[deviceID]

	return ok
}

// Lookup returns a copy of the entry for deviceID.
func (r *ConnRegistry) Lookup(deviceID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[deviceID]
	if !ok {
		return Entry{}, false
	}

	return *entry, true
}

// MembersOf returns the device identities currently connected under hotelID.
func (r *ConnRegistry) MembersOf(hotelID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.byHotel[hotelID]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}

	return ids
}

// Connections returns a snapshot of the entries registered under hotelID,
// taken under the lock so fan-out can iterate without holding it.
func (r *ConnRegistry) Connections(hotelID string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.byHotel[hotelID]
	if !ok {
		return nil
	}

	entries := make([]Entry, 0, len(members))

	for id := range members {
		if entry, ok := r.entries[id]; ok {
			entries = append(entries, *entry)
		}
	}

	return entries
}
