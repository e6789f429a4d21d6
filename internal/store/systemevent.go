// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"encoding/json"

	"github.com/grimm-is/netmond/internal/systemevent"
)

// InsertSystemEvent implements systemevent.Writer, persisting append-only
// operational log rows (§3).
func (s *Store) InsertSystemEvent(ctx context.Context, e systemevent.Event) error {
	var details string
	if len(e.Details) > 0 {
		if b, err := json.Marshal(e.Details); err == nil {
			details = string(b)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_event (timestamp, level, source, event_type, resource_type, resource_id, message, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.Unix(), e.Level, e.Source, e.EventType, e.ResourceType, e.ResourceID, e.Message, details)
	return wrapExec(err, "insert system event")
}

// CleanupSystemEvents deletes rows older than retention.
func (s *Store) CleanupSystemEvents(ctx context.Context, retentionSeconds int64, nowUnix int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM system_event WHERE timestamp < ?`, nowUnix-retentionSeconds)
	if err != nil {
		return 0, wrapExec(err, "cleanup system events")
	}
	return res.RowsAffected()
}
