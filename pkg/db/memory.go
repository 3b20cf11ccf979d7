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

package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/guestflow/pairing/pkg/models"
)

// SignatureRecord is what MemStore retains from a SaveSignature call.
type SignatureRecord struct {
	SignatureDataURL string
	Email            string
	Phone            string
}

// MemStore is an in-memory Service used by tests and local development.
// It mirrors the Postgres semantics, including ErrNotFound and the
// forward-only assignment transition guard.
type MemStore struct {
	mu          sync.Mutex
	devices     map[string]models.Device
	assignments map[string]models.Assignment
	contracts   map[string]SignatureRecord
	known       map[string]bool
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		devices:     make(map[string]models.Device),
		assignments: make(map[string]models.Assignment),
		contracts:   make(map[string]SignatureRecord),
		known:       make(map[string]bool),
	}
}

var _ Service = (*MemStore)(nil)

func (m *MemStore) GetDevice(_ context.Context, deviceID string) (*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[deviceID]
	if !ok {
		return nil, ErrNotFound
	}

	return &d, nil
}

func (m *MemStore) UpsertDevice(_ context.Context, device *models.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.devices[device.ID] = *device

	return nil
}

func (m *MemStore) SetOnline(_ context.Context, deviceID string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[deviceID]
	if !ok {
		return ErrNotFound
	}

	d.Online = online
	d.LastSeen = time.Now().UTC()
	m.devices[deviceID] = d

	return nil
}

func (m *MemStore) ListDevicesByHotel(_ context.Context, hotelID string) ([]models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var devices []models.Device

	for _, d := range m.devices {
		if d.HotelID == hotelID {
			devices = append(devices, d)
		}
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

	return devices, nil
}

func (m *MemStore) DeleteDevice(_ context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[deviceID]; !ok {
		return ErrNotFound
	}

	delete(m.devices, deviceID)

	return nil
}

func (m *MemStore) GetAssignment(_ context.Context, assignmentID string) (*models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assignments[assignmentID]
	if !ok {
		return nil, ErrNotFound
	}

	return &a, nil
}

func (m *MemStore) InsertAssignment(_ context.Context, assignment *models.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := *assignment
	a.ViewedAt = nil
	a.SignedAt = nil
	a.CompletedAt = nil
	m.assignments[assignment.ID] = a

	return nil
}

func (m *MemStore) AdvanceAssignment(_ context.Context, assignmentID string, next models.AssignmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assignments[assignmentID]
	if !ok {
		return ErrNotFound
	}

	if !a.Status.CanAdvance(next) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, a.Status, next)
	}

	now := time.Now().UTC()

	switch next {
	case models.AssignmentViewing:
		a.ViewedAt = &now
	case models.AssignmentSigned:
		a.SignedAt = &now
	case models.AssignmentCompleted:
		a.CompletedAt = &now
	}

	a.Status = next
	m.assignments[assignmentID] = a

	return nil
}

func (m *MemStore) ListAssignmentsByHotel(_ context.Context, hotelID string) ([]models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var assignments []models.Assignment

	for _, a := range m.assignments {
		if a.HotelID == hotelID {
			assignments = append(assignments, a)
		}
	}

	sort.Slice(assignments, func(i, j int) bool { return assignments[i].SentAt.After(assignments[j].SentAt) })

	return assignments, nil
}

// SeedContract registers a contract identity so SaveSignature can target it.
func (m *MemStore) SeedContract(contractID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.known[contractID] = true
}

func (m *MemStore) SaveSignature(_ context.Context, contractID, signatureDataURL, email, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.known[contractID] {
		return ErrNotFound
	}

	m.contracts[contractID] = SignatureRecord{
		SignatureDataURL: signatureDataURL,
		Email:            email,
		Phone:            phone,
	}

	return nil
}

// Signature returns the persisted signature record for a contract.
func (m *MemStore) Signature(contractID string) (SignatureRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.contracts[contractID]

	return rec, ok
}
