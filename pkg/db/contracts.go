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
)

const saveSignatureSQL = `
UPDATE contracts SET
	signature_data_url = $2,
	status = 'signed',
	signed_at = now(),
	email = COALESCE(NULLIF($3, ''), email),
	phone = COALESCE(NULLIF($4, ''), phone),
	updated_at = now()
WHERE id = $1`

// SaveSignature persists the captured signature against the contract row
// keyed by contract identity. Blank contact fields leave the stored guest
// contact untouched.
func (s *Store) SaveSignature(ctx context.Context, contractID, signatureDataURL, email, phone string) error {
	tag, err := s.pool.Exec(ctx, saveSignatureSQL, contractID, signatureDataURL, email, phone)
	if err != nil {
		return fmt.Errorf("save signature for contract %s: %w", contractID, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
