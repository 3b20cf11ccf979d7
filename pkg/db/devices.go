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
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guestflow/pairing/pkg/logger"
	"github.com/guestflow/pairing/pkg/models"
)

// Store implements Service against a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// NewStore wraps the pool in the Service implementation.
func NewStore(pool *pgxpool.Pool, log logger.Logger) *Store {
	return &Store{pool: pool, logger: log}
}

var _ Service = (*Store)(nil)

const getDeviceSQL = `
SELECT id, hotel_id, device_name, device_type, browser, os, screen_size, last_seen, is_online
FROM devices
WHERE id = $1`

func (s *Store) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	row := s.pool.QueryRow(ctx, getDeviceSQL, deviceID)

	var d models.Device

	err := row.Scan(&d.ID, &d.HotelID, &d.Name, &d.Class, &d.Browser, &d.OS, &d.ScreenSize, &d.LastSeen, &d.Online)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get device %s: %w", deviceID, err)
	}

	return &d, nil
}

const upsertDeviceSQL = `
INSERT INTO devices (
	id,
	hotel_id,
	device_name,
	device_type,
	browser,
	os,
	screen_size,
	last_seen,
	is_online
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (id) DO UPDATE SET
	hotel_id = EXCLUDED.hotel_id,
	device_name = EXCLUDED.device_name,
	device_type = EXCLUDED.device_type,
	browser = EXCLUDED.browser,
	os = EXCLUDED.os,
	screen_size = EXCLUDED.screen_size,
	last_seen = EXCLUDED.last_seen,
	is_online = EXCLUDED.is_online`

func (s *Store) UpsertDevice(ctx context.Context, device *models.Device) error {
	_, err := s.pool.Exec(ctx, upsertDeviceSQL,
		device.ID,
		device.HotelID,
		device.Name,
		device.Class,
		device.Browser,
		device.OS,
		device.ScreenSize,
		device.LastSeen,
		device.Online,
	)
	if err != nil {
		return fmt.Errorf("upsert device %s: %w", device.ID, err)
	}

	return nil
}

const setOnlineSQL = `
UPDATE devices SET is_online = $2, last_seen = now() WHERE id = $1`

func (s *Store) SetOnline(ctx context.Context, deviceID string, online bool) error {
	tag, err := s.pool.Exec(ctx, setOnlineSQL, deviceID, online)
	if err != nil {
		return fmt.Errorf("set online %s: %w", deviceID, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

const listDevicesByHotelSQL = `
SELECT id, hotel_id, device_name, device_type, browser, os, screen_size, last_seen, is_online
FROM devices
WHERE hotel_id = $1
ORDER BY device_name, id`

func (s *Store) ListDevicesByHotel(ctx context.Context, hotelID string) ([]models.Device, error) {
	rows, err := s.pool.Query(ctx, listDevicesByHotelSQL, hotelID)
	if err != nil {
		return nil, fmt.Errorf("list devices for hotel %s: %w", hotelID, err)
	}
	defer rows.Close()

	var devices []models.Device

	for rows.Next() {
		var d models.Device

		if err := rows.Scan(&d.ID, &d.HotelID, &d.Name, &d.Class, &d.Browser, &d.OS, &d.ScreenSize, &d.LastSeen, &d.Online); err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}

		devices = append(devices, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device rows: %w", err)
	}

	return devices, nil
}

const deleteDeviceSQL = `DELETE FROM devices WHERE id = $1`

func (s *Store) DeleteDevice(ctx context.Context, deviceID string) error {
	tag, err := s.pool.Exec(ctx, deleteDeviceSQL, deviceID)
	if err != nil {
		return fmt.Errorf("delete device %s: %w", deviceID, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
