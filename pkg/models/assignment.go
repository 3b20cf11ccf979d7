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

import "time"

// AssignmentStatus tracks one contract pushed to one device. Transitions
// only move forward; there is no failed terminal state. A push that never
// reaches a connected device creates no assignment at all.
type AssignmentStatus string

const (
	AssignmentSent    AssignmentStatus = "sent"
	AssignmentViewing AssignmentStatus = "viewing"
	AssignmentSigned  AssignmentStatus = "signed"
	// AssignmentCompleted is defined in the status vocabulary but no
	// event currently produces it. See DESIGN.md.
	AssignmentCompleted AssignmentStatus = "completed"
)

var statusRank = map[AssignmentStatus]int{
	AssignmentSent:      0,
	AssignmentViewing:   1,
	AssignmentSigned:    2,
	AssignmentCompleted: 3,
}

// CanAdvance reports whether moving from the current status to next is a
// strictly forward transition.
func (s AssignmentStatus) CanAdvance(next AssignmentStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}

	to, ok := statusRank[next]
	if !ok {
		return false
	}

	return to > from
}

// Assignment is the durable record of one contract hand-off attempt that
// actually reached a connected device.
type Assignment struct {
	ID          string           `json:"assignmentId"`
	ContractID  string           `json:"contractId"`
	DeviceID    string           `json:"deviceId"`
	HotelID     string           `json:"hotelId"`
	Status      AssignmentStatus `json:"status"`
	SentAt      time.Time        `json:"sentAt"`
	ViewedAt    *time.Time       `json:"viewedAt,omitempty"`
	SignedAt    *time.Time       `json:"signedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}
