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

	"github.com/jackc/pgx/v5/pgxpool"
)

// The contracts table is owned by the check-in application; it is created
// here only so a standalone deployment of this service can run the signed
// write-through without a separate migration step.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS devices (
	id           TEXT PRIMARY KEY,
	hotel_id     TEXT NOT NULL,
	device_name  TEXT NOT NULL DEFAULT '',
	device_type  TEXT NOT NULL,
	browser      TEXT NOT NULL DEFAULT '',
	os           TEXT NOT NULL DEFAULT '',
	screen_size  TEXT NOT NULL DEFAULT '',
	last_seen    TIMESTAMPTZ NOT NULL DEFAULT now(),
	is_online    BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_devices_hotel ON devices (hotel_id);

CREATE TABLE IF NOT EXISTS assignments (
	id            TEXT PRIMARY KEY,
	contract_id   TEXT NOT NULL,
	device_id     TEXT NOT NULL,
	hotel_id      TEXT NOT NULL,
	status        TEXT NOT NULL,
	sent_at       TIMESTAMPTZ NOT NULL,
	viewed_at     TIMESTAMPTZ,
	signed_at     TIMESTAMPTZ,
	completed_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_assignments_hotel ON assignments (hotel_id);
CREATE INDEX IF NOT EXISTS idx_assignments_contract ON assignments (contract_id);

CREATE TABLE IF NOT EXISTS contracts (
	id                 TEXT PRIMARY KEY,
	hotel_id           TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'draft',
	signature_data_url TEXT,
	email              TEXT,
	phone              TEXT,
	signed_at          TIMESTAMPTZ,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema applies the idempotent DDL on startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("db: schema bootstrap failed: %w", err)
	}

	return nil
}
