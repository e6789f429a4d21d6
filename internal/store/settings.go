// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"database/sql"
)

// GetSetting returns a SystemSetting value by key, or ("", false, nil) if
// unset. Used for wan_commitment_bps, power_budget_watts and the
// flow_rollup_backfilled marker (§3, §4.4).
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	row := s.db.QueryRowContext(ctx, `SELECT value FROM system_setting WHERE key=?`, key)
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapExec(err, "get setting")
	}
	return value, true, nil
}

// SetSetting upserts a SystemSetting.
func (s *Store) SetSetting(ctx context.Context, key, value string, isSecret bool, updatedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_setting (key, value, is_secret, updated_by) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, is_secret=excluded.is_secret, updated_by=excluded.updated_by`,
		key, value, boolToInt(isSecret), updatedBy)
	return wrapExec(err, "set setting")
}
