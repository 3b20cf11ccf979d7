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

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guestflow/pairing/pkg/models"
)

type fakeHandle struct {
	open bool
	sent []models.Envelope
}

func (f *fakeHandle) Send(env models.Envelope) error {
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeHandle) Open() bool { return f.open }

func TestUpsertAndMembership(t *testing.T) {
	reg := NewConnRegistry()
	h := &fakeHandle{open: true}

	reg.Upsert("t1", "h1", models.DeviceClassTablet, h)

	assert.True(t, reg.IsOnline("t1"))
	assert.ElementsMatch(t, []string{"t1"}, reg.MembersOf("h1"))

	entry, ok := reg.Lookup("t1")
	require.True(t, ok)
	assert.Equal(t, "h1", entry.HotelID)
	assert.Equal(t, models.DeviceClassTablet, entry.Class)
}

func TestUpsertReplacesPriorEntry(t *testing.T) {
	reg := NewConnRegistry()
	first := &fakeHandle{open: true}
	second := &fakeHandle{open: true}

	reg.Upsert("t1", "h1", models.DeviceClassTablet, first)
	reg.Upsert("t1", "h1", models.DeviceClassTablet, second)

	entry, ok := reg.Lookup("t1")
	require.True(t, ok)
	assert.Same(t, second, entry.Handle.(*fakeHandle))
	assert.Len(t, reg.MembersOf("h1"), 1)
}

func TestUpsertMovesDeviceBetweenHotels(t *testing.T) {
	reg := NewConnRegistry()
	h := &fakeHandle{open: true}

	reg.Upsert("t1", "h1", models.DeviceClassTablet, h)
	reg.Upsert("t1", "h2", models.DeviceClassTablet, h)

	assert.Empty(t, reg.MembersOf("h1"))
	assert.ElementsMatch(t, []string{"t1"}, reg.MembersOf("h2"))
}

func TestRemoveDropsEmptyHotelSet(t *testing.T) {
	reg := NewConnRegistry()
	reg.Upsert("t1", "h1", models.DeviceClassTablet, &fakeHandle{open: true})

	entry, ok := reg.Remove("t1")
	require.True(t, ok)
	assert.Equal(t, "h1", entry.HotelID)

	assert.False(t, reg.IsOnline("t1"))
	assert.Nil(t, reg.MembersOf("h1"))

	_, ok = reg.Remove("t1")
	assert.False(t, ok)
}

func TestRemoveConnIgnoresStaleHandle(t *testing.T) {
	reg := NewConnRegistry()
	stale := &fakeHandle{open: false}
	fresh := &fakeHandle{open: true}

	reg.Upsert("t1", "h1", models.DeviceClassTablet, stale)
	reg.Upsert("t1", "h1", models.DeviceClassTablet, fresh)

	// The old connection's close arrives after the re-register.
	_, ok := reg.RemoveConn("t1", stale)
	assert.False(t, ok)
	assert.True(t, reg.IsOnline("t1"))

	entry, ok := reg.RemoveConn("t1", fresh)
	require.True(t, ok)
	assert.Equal(t, "t1", entry.DeviceID)
	assert.False(t, reg.IsOnline("t1"))
}

func TestConnectionsSnapshot(t *testing.T) {
	reg := NewConnRegistry()
	reg.Upsert("t1", "h1", models.DeviceClassTablet, &fakeHandle{open: true})
	reg.Upsert("d1", "h1", models.DeviceClassDashboard, &fakeHandle{open: true})
	reg.Upsert("t9", "h2", models.DeviceClassTablet, &fakeHandle{open: true})

	entries := reg.Connections("h1")
	require.Len(t, entries, 2)

	ids := []string{entries[0].DeviceID, entries[1].DeviceID}
	assert.ElementsMatch(t, []string{"t1", "d1"}, ids)

	assert.Nil(t, reg.Connections("h3"))
}
