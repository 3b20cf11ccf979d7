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
	"errors"

	"github.com/guestflow/pairing/pkg/models"
)

// ErrNotFound marks lookups whose identity has no row.
var ErrNotFound = errors.New("db: not found")

// DeviceStore is the durable device directory.
type DeviceStore interface {
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
	UpsertDevice(ctx context.Context, device *models.Device) error
	SetOnline(ctx context.Context, deviceID string, online bool) error
	ListDevicesByHotel(ctx context.Context, hotelID string) ([]models.Device, error)
	DeleteDevice(ctx context.Context, deviceID string) error
}

// AssignmentStore records contract hand-off attempts that reached a device.
type AssignmentStore interface {
	GetAssignment(ctx context.Context, assignmentID string) (*models.Assignment, error)
	InsertAssignment(ctx context.Context, assignment *models.Assignment) error
	AdvanceAssignment(ctx context.Context, assignmentID string, next models.AssignmentStatus) error
	ListAssignmentsByHotel(ctx context.Context, hotelID string) ([]models.Assignment, error)
}

// ContractStore is the narrow slice of the check-in application's contract
// table this service is allowed to touch: persisting a captured signature
// and guest-corrected contact fields, keyed by contract identity.
type ContractStore interface {
	SaveSignature(ctx context.Context, contractID, signatureDataURL, email, phone string) error
}

// Service aggregates the durable stores behind one dependency.
type Service interface {
	DeviceStore
	AssignmentStore
	ContractStore
}
