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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guestflow/pairing/pkg/models"
)

func TestMemStoreDeviceLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	_, err := store.GetDevice(ctx, "t1")
	assert.True(t, errors.Is(err, ErrNotFound))

	device := &models.Device{
		ID:       "t1",
		HotelID:  "h1",
		Name:     "Lobby iPad",
		Class:    models.DeviceClassTablet,
		LastSeen: time.Now().UTC(),
		Online:   true,
	}
	require.NoError(t, store.UpsertDevice(ctx, device))

	// Upsert under a new hotel corrects the stored property.
	device.HotelID = "h2"
	require.NoError(t, store.UpsertDevice(ctx, device))

	got, err := store.GetDevice(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.HotelID)

	h1, err := store.ListDevicesByHotel(ctx, "h1")
	require.NoError(t, err)
	assert.Empty(t, h1)

	require.NoError(t, store.SetOnline(ctx, "t1", false))
	got, err = store.GetDevice(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, got.Online)

	require.NoError(t, store.DeleteDevice(ctx, "t1"))
	assert.True(t, errors.Is(store.DeleteDevice(ctx, "t1"), ErrNotFound))
}

func TestMemStoreAssignmentTransitions(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	a := &models.Assignment{
		ID:         "c1",
		ContractID: "c1",
		DeviceID:   "t1",
		HotelID:    "h1",
		Status:     models.AssignmentSent,
		SentAt:     time.Now().UTC(),
	}
	require.NoError(t, store.InsertAssignment(ctx, a))

	require.NoError(t, store.AdvanceAssignment(ctx, "c1", models.AssignmentViewing))
	require.NoError(t, store.AdvanceAssignment(ctx, "c1", models.AssignmentSigned))

	err := store.AdvanceAssignment(ctx, "c1", models.AssignmentViewing)
	assert.True(t, errors.Is(err, ErrBadTransition))

	got, err := store.GetAssignment(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentSigned, got.Status)
	assert.NotNil(t, got.ViewedAt)
	assert.NotNil(t, got.SignedAt)
	assert.Nil(t, got.CompletedAt)

	assert.True(t, errors.Is(store.AdvanceAssignment(ctx, "missing", models.AssignmentViewing), ErrNotFound))
}

func TestMemStoreSignatures(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	err := store.SaveSignature(ctx, "c1", "data:image/png;base64,AAAA", "", "")
	assert.True(t, errors.Is(err, ErrNotFound))

	store.SeedContract("c1")
	require.NoError(t, store.SaveSignature(ctx, "c1", "data:image/png;base64,AAAA", "ada@example.com", ""))

	rec, ok := store.Signature("c1")
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,AAAA", rec.SignatureDataURL)
	assert.Equal(t, "ada@example.com", rec.Email)
}
