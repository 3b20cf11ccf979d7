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

	"github.com/guestflow/pairing/pkg/models"
)

// ErrBadTransition marks an attempted assignment status move that is not
// strictly forward.
var ErrBadTransition = errors.New("db: assignment status cannot move backward")

const getAssignmentSQL = `
SELECT id, contract_id, device_id, hotel_id, status, sent_at, viewed_at, signed_at, completed_at
FROM assignments
WHERE id = $1`

func (s *Store) GetAssignment(ctx context.Context, assignmentID string) (*models.Assignment, error) {
	row := s.pool.QueryRow(ctx, getAssignmentSQL, assignmentID)

	var a models.Assignment

	err := row.Scan(&a.ID, &a.ContractID, &a.DeviceID, &a.HotelID, &a.Status,
		&a.SentAt, &a.ViewedAt, &a.SignedAt, &a.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get assignment %s: %w", assignmentID, err)
	}

	return &a, nil
}

const insertAssignmentSQL = `
INSERT INTO assignments (
	id,
	contract_id,
	device_id,
	hotel_id,
	status,
	sent_at
) VALUES (
	$1,$2,$3,$4,$5,$6
)
ON CONFLICT (id) DO UPDATE SET
	contract_id = EXCLUDED.contract_id,
	device_id = EXCLUDED.device_id,
	hotel_id = EXCLUDED.hotel_id,
	status = EXCLUDED.status,
	sent_at = EXCLUDED.sent_at,
	viewed_at = NULL,
	signed_at = NULL,
	completed_at = NULL`

// InsertAssignment records a push that reached a connected device. A
// re-dispatch under the same assignment identity restarts the record at
// sent, which matches last-dispatch-wins on the dashboard side.
func (s *Store) InsertAssignment(ctx context.Context, assignment *models.Assignment) error {
	_, err := s.pool.Exec(ctx, insertAssignmentSQL,
		assignment.ID,
		assignment.ContractID,
		assignment.DeviceID,
		assignment.HotelID,
		assignment.Status,
		assignment.SentAt,
	)
	if err != nil {
		return fmt.Errorf("insert assignment %s: %w", assignment.ID, err)
	}

	return nil
}

const advanceAssignmentSQL = `
UPDATE assignments SET
	status = $2,
	viewed_at = CASE WHEN $2 = 'viewing' THEN now() ELSE viewed_at END,
	signed_at = CASE WHEN $2 = 'signed' THEN now() ELSE signed_at END,
	completed_at = CASE WHEN $2 = 'completed' THEN now() ELSE completed_at END
WHERE id = $1`

// AdvanceAssignment moves the record forward to next. Backward or repeated
// transitions return ErrBadTransition and leave the row untouched.
func (s *Store) AdvanceAssignment(ctx context.Context, assignmentID string, next models.AssignmentStatus) error {
	current, err := s.GetAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}

	if !current.Status.CanAdvance(next) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, current.Status, next)
	}

	if _, err := s.pool.Exec(ctx, advanceAssignmentSQL, assignmentID, next); err != nil {
		return fmt.Errorf("advance assignment %s to %s: %w", assignmentID, next, err)
	}

	return nil
}

const listAssignmentsByHotelSQL = `
SELECT id, contract_id, device_id, hotel_id, status, sent_at, viewed_at, signed_at, completed_at
FROM assignments
WHERE hotel_id = $1
ORDER BY sent_at DESC`

func (s *Store) ListAssignmentsByHotel(ctx context.Context, hotelID string) ([]models.Assignment, error) {
	rows, err := s.pool.Query(ctx, listAssignmentsByHotelSQL, hotelID)
	if err != nil {
		return nil, fmt.Errorf("list assignments for hotel %s: %w", hotelID, err)
	}
	defer rows.Close()

	var assignments []models.Assignment

	for rows.Next() {
		var a models.Assignment

		if err := rows.Scan(&a.ID, &a.ContractID, &a.DeviceID, &a.HotelID, &a.Status,
			&a.SentAt, &a.ViewedAt, &a.SignedAt, &a.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan assignment row: %w", err)
		}

		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignment rows: %w", err)
	}

	return assignments, nil
}
