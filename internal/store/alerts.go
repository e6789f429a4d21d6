// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"database/sql"
	"time"
)

// RuleRef identifies which of the three rule tables an AlertEvent belongs
// to. Exactly one field is non-nil (§3 invariant).
type RuleRef struct {
	RuleID      *int64
	WanRuleID   *int64
	PowerRuleID *int64
}

// ListActiveAlertRules returns device-scoped instantaneous rules (§4.5).
func (s *Store) ListActiveAlertRules(ctx context.Context) ([]AlertRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, metric, condition, threshold, warning_threshold, critical_threshold,
			default_severity, cooldown_minutes, email_sink, webhook_sink, device_id, interface_id, is_active
		FROM alert_rule WHERE is_active = 1`)
	if err != nil {
		return nil, wrapExec(err, "list active alert rules")
	}
	defer rows.Close()

	var out []AlertRule
	for rows.Next() {
		var r AlertRule
		var threshold, warn, crit sql.NullFloat64
		var deviceID, ifaceID sql.NullInt64
		var isActive int
		if err := rows.Scan(&r.ID, &r.Name, &r.Metric, &r.Condition, &threshold, &warn, &crit,
			&r.DefaultSeverity, &r.CooldownMinutes, &r.EmailSink, &r.WebhookSink, &deviceID, &ifaceID, &isActive); err != nil {
			return nil, wrapExec(err, "scan alert rule")
		}
		r.Threshold = nullFloatPtr(threshold)
		r.WarningThreshold = nullFloatPtr(warn)
		r.CriticalThreshold = nullFloatPtr(crit)
		r.DeviceID = nullIntPtr(deviceID)
		r.InterfaceID = nullIntPtr(ifaceID)
		r.IsActive = isActive != 0
		out = append(out, r)
	}
	return out, wrapExec(rows.Err(), "scan alert rules")
}

// ListActiveWanAlertRules returns WAN aggregate rules (§4.5.1).
func (s *Store) ListActiveWanAlertRules(ctx context.Context) ([]WanAlertRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, metric, condition, lookback_minutes, warning_threshold, critical_threshold, email_sink, webhook_sink, is_active
		FROM wan_alert_rule WHERE is_active = 1`)
	if err != nil {
		return nil, wrapExec(err, "list active wan alert rules")
	}
	defer rows.Close()

	var out []WanAlertRule
	for rows.Next() {
		var r WanAlertRule
		var warn, crit sql.NullFloat64
		var isActive int
		if err := rows.Scan(&r.ID, &r.Name, &r.Metric, &r.Condition, &r.LookbackMinutes, &warn, &crit, &r.EmailSink, &r.WebhookSink, &isActive); err != nil {
			return nil, wrapExec(err, "scan wan alert rule")
		}
		r.WarningThreshold = nullFloatPtr(warn)
		r.CriticalThreshold = nullFloatPtr(crit)
		r.IsActive = isActive != 0
		out = append(out, r)
	}
	return out, wrapExec(rows.Err(), "scan wan alert rules")
}

// ListActivePowerAlertRules returns power aggregate rules (§4.5.2).
func (s *Store) ListActivePowerAlertRules(ctx context.Context) ([]PowerAlertRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, metric, condition, lookback_minutes, warning_threshold, critical_threshold, email_sink, webhook_sink, is_active
		FROM power_alert_rule WHERE is_active = 1`)
	if err != nil {
		return nil, wrapExec(err, "list active power alert rules")
	}
	defer rows.Close()

	var out []PowerAlertRule
	for rows.Next() {
		var r PowerAlertRule
		var warn, crit sql.NullFloat64
		var isActive int
		if err := rows.Scan(&r.ID, &r.Name, &r.Metric, &r.Condition, &r.LookbackMinutes, &warn, &crit, &r.EmailSink, &r.WebhookSink, &isActive); err != nil {
			return nil, wrapExec(err, "scan power alert rule")
		}
		r.WarningThreshold = nullFloatPtr(warn)
		r.CriticalThreshold = nullFloatPtr(crit)
		r.IsActive = isActive != 0
		out = append(out, r)
	}
	return out, wrapExec(rows.Err(), "scan power alert rules")
}

// GetOpenAlertEvent returns the single open-or-acknowledged event for
// (ref, severity, deviceID), if any — the lookup behind §4.5 step 4's
// upsert-or-update rule. deviceID may be nil for global/aggregate rules.
func (s *Store) GetOpenAlertEvent(ctx context.Context, ref RuleRef, severity string, deviceID *int64) (AlertEvent, bool, error) {
	query := `
		SELECT id, rule_id, wan_rule_id, power_rule_id, device_id, severity, status, message,
			metric_value, threshold_value, triggered_at, acknowledged_at, acknowledged_by, resolved_at, notes
		FROM alert_event
		WHERE status IN ('open', 'acknowledged') AND severity = ?
			AND rule_id IS ? AND wan_rule_id IS ? AND power_rule_id IS ? AND device_id IS ?
		LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, severity, ref.RuleID, ref.WanRuleID, ref.PowerRuleID, deviceID)
	return scanAlertEvent(row)
}

// ListOpenAlertEvents returns every open-or-acknowledged event for a rule
// (any severity, any device) — used by the ladder-down/auto-resolve steps
// of §4.5 which must find siblings to close.
func (s *Store) ListOpenAlertEvents(ctx context.Context, ref RuleRef, deviceID *int64) ([]AlertEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_id, wan_rule_id, power_rule_id, device_id, severity, status, message,
			metric_value, threshold_value, triggered_at, acknowledged_at, acknowledged_by, resolved_at, notes
		FROM alert_event
		WHERE status IN ('open', 'acknowledged')
			AND rule_id IS ? AND wan_rule_id IS ? AND power_rule_id IS ? AND device_id IS ?`,
		ref.RuleID, ref.WanRuleID, ref.PowerRuleID, deviceID)
	if err != nil {
		return nil, wrapExec(err, "list open alert events")
	}
	defer rows.Close()

	var out []AlertEvent
	for rows.Next() {
		e, err := scanAlertEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, wrapExec(rows.Err(), "scan open alert events")
}

// InsertAlertEvent creates a new open event and returns its id. Callers
// insert only when no open event exists for the rule, severity and device,
// so notification fires only on first transition (§4.6).
func (s *Store) InsertAlertEvent(ctx context.Context, e AlertEvent) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_event (rule_id, wan_rule_id, power_rule_id, device_id, severity, status, message, metric_value, threshold_value, triggered_at)
		VALUES (?, ?, ?, ?, ?, 'open', ?, ?, ?, ?)`,
		e.RuleID, e.WanRuleID, e.PowerRuleID, e.DeviceID, e.Severity, e.Message, e.MetricValue, e.ThresholdValue, e.TriggeredAt.Unix())
	if err != nil {
		return 0, wrapExec(err, "insert alert event")
	}
	return res.LastInsertId()
}

// UpdateAlertEventValue refreshes an in-place event's observed value and
// message without touching its status or triggered_at — the "do not
// create a duplicate" branch of §4.5 step 4.
func (s *Store) UpdateAlertEventValue(ctx context.Context, id int64, metricValue, thresholdValue float64, message string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE alert_event SET metric_value=?, threshold_value=?, message=? WHERE id=?`,
		metricValue, thresholdValue, message, id)
	return wrapExec(err, "update alert event value")
}

// ResolveAlertEvent closes an open/acknowledged event (ladder-down or
// clear, §4.5 steps 5/6).
func (s *Store) ResolveAlertEvent(ctx context.Context, id int64, resolvedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE alert_event SET status='resolved', resolved_at=? WHERE id=?`, resolvedAt.Unix(), id)
	return wrapExec(err, "resolve alert event")
}

func scanAlertEvent(row rowScanner) (AlertEvent, bool, error) {
	var e AlertEvent
	var ruleID, wanRuleID, powerRuleID, deviceID sql.NullInt64
	var triggeredAt int64
	var ackAt, resolvedAt sql.NullInt64
	err := row.Scan(&e.ID, &ruleID, &wanRuleID, &powerRuleID, &deviceID, &e.Severity, &e.Status, &e.Message,
		&e.MetricValue, &e.ThresholdValue, &triggeredAt, &ackAt, &e.AcknowledgedBy, &resolvedAt, &e.Notes)
	if err == sql.ErrNoRows {
		return AlertEvent{}, false, nil
	}
	if err != nil {
		return AlertEvent{}, false, wrapExec(err, "scan alert event")
	}
	e.RuleID = nullIntPtr(ruleID)
	e.WanRuleID = nullIntPtr(wanRuleID)
	e.PowerRuleID = nullIntPtr(powerRuleID)
	e.DeviceID = nullIntPtr(deviceID)
	e.TriggeredAt = time.Unix(triggeredAt, 0).UTC()
	if ackAt.Valid {
		t := time.Unix(ackAt.Int64, 0).UTC()
		e.AcknowledgedAt = &t
	}
	if resolvedAt.Valid {
		t := time.Unix(resolvedAt.Int64, 0).UTC()
		e.ResolvedAt = &t
	}
	return e, true, nil
}

func nullFloatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func nullIntPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
