// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package systemevent implements the append-only operational log (§3): poll
// failures, backup outcomes, scheduler errors. Distinct from any per-user
// audit trail — this log has no user/session/API-key fields, only the
// operational resource a background job was acting on.
package systemevent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/grimm-is/netmond/internal/logging"
)

// Event is a single operational log row.
type Event struct {
	Timestamp    time.Time
	Level        string // info, warning, error
	Source       string // e.g. "snmp_poll", "flow_rollup", "scheduler"
	EventType    string
	ResourceType string
	ResourceID   string
	Message      string
	Details      map[string]any
}

// Writer persists an Event. internal/store implements this so Log can
// record to the SystemEvent table without systemevent importing store.
type Writer interface {
	InsertSystemEvent(ctx context.Context, e Event) error
}

// Log appends operational events, dual-writing to the structured logger and
// (when configured) a persistent Writer.
type Log struct {
	writer Writer
	logger *logging.Logger
}

// New builds a Log. writer may be nil (structured-logging-only mode, useful
// in tests and before the store is open).
func New(writer Writer, logger *logging.Logger) *Log {
	if logger == nil {
		logger = logging.Default()
	}
	return &Log{writer: writer, logger: logger.WithComponent("systemevent")}
}

// Append records e, defaulting Timestamp to now if zero. The structured-log
// write never fails; the persistence write's error is returned but callers
// are expected to log-and-continue per §7, never abort on it.
func (l *Log) Append(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	switch e.Level {
	case "error":
		l.logger.Error(e.Message, "source", e.Source, "event_type", e.EventType, "resource_type", e.ResourceType, "resource_id", e.ResourceID)
	case "warning":
		l.logger.Warn(e.Message, "source", e.Source, "event_type", e.EventType, "resource_type", e.ResourceType, "resource_id", e.ResourceID)
	default:
		l.logger.Info(e.Message, "source", e.Source, "event_type", e.EventType, "resource_type", e.ResourceType, "resource_id", e.ResourceID)
	}
	if len(e.Details) > 0 {
		if data, err := json.Marshal(e.Details); err == nil {
			l.logger.Debug("system_event_detail", "data", string(data))
		}
	}

	if l.writer == nil {
		return nil
	}
	return l.writer.InsertSystemEvent(ctx, e)
}
