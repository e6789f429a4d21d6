// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/grimm-is/netmond/internal/logging"
	"github.com/grimm-is/netmond/internal/notification"
	"github.com/grimm-is/netmond/internal/store"
	"github.com/grimm-is/netmond/internal/systemevent"
)

// Engine evaluates device/interface-scoped instantaneous alert rules
// (§4.5) once per scheduler tick.
type Engine struct {
	store    *store.Store
	notifier *notification.Dispatcher
	events   *systemevent.Log
	logger   *logging.Logger
}

// New builds an Engine. notifier may be nil, in which case no
// notifications are sent even when a rule names a sink.
func New(st *store.Store, notifier *notification.Dispatcher, events *systemevent.Log, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{store: st, notifier: notifier, events: events, logger: logger.WithComponent("alerting")}
}

// EvaluateRules runs every active AlertRule once (§4.5 steps 1-6). A
// single rule's error is logged and never aborts evaluation of the rest.
func (e *Engine) EvaluateRules(ctx context.Context) error {
	rules, err := e.store.ListActiveAlertRules(ctx)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		if err := e.evaluateRule(ctx, rule); err != nil {
			e.logger.Error("error evaluating alert rule", "rule_id", rule.ID, "error", err)
			if e.events != nil {
				e.events.Append(ctx, systemevent.Event{
					Level: "error", Source: "alert_engine", EventType: "rule_eval_failed",
					ResourceType: "alert_rule", ResourceID: fmt.Sprintf("%d", rule.ID), Message: err.Error(),
				})
			}
		}
	}
	return nil
}

func (e *Engine) evaluateRule(ctx context.Context, rule store.AlertRule) error {
	ref := store.RuleRef{RuleID: &rule.ID}

	// Global rules (no device_id): evaluate against every known device.
	if rule.DeviceID == nil && isGlobalMetric(rule.Metric) {
		devices, err := e.store.ListActiveDevices(ctx)
		if err != nil {
			return err
		}
		for _, d := range devices {
			if d.Status == "unknown" {
				continue
			}
			value, ok := globalDeviceMetricValue(rule.Metric, d)
			if !ok {
				continue
			}
			sev := ruleSeverity(value, rule)
			if sev != "" {
				if err := e.trigger(ctx, ref, rule, value, sev, &d.ID, d.Hostname); err != nil {
					return err
				}
			} else if err := e.resolve(ctx, ref, nil, &d.ID); err != nil {
				return err
			}
		}
		return nil
	}

	value, ok, err := e.metricValue(ctx, rule)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	sev := ruleSeverity(value, rule)
	if sev == "" {
		return e.resolve(ctx, ref, nil, rule.DeviceID)
	}

	// Ladder: an active warning means any lingering critical event for this
	// rule is stale and closes first (§4.5 step 5); an active critical
	// likewise closes a lingering warning event.
	if sev == "warning" || sev == "critical" {
		other := "critical"
		if sev == "critical" {
			other = "warning"
		}
		if err := e.resolve(ctx, ref, &other, rule.DeviceID); err != nil {
			return err
		}
	}

	deviceName := "unknown"
	if rule.DeviceID != nil {
		if d, ok, err := e.store.GetDevice(ctx, *rule.DeviceID); err == nil && ok {
			deviceName = d.Hostname
		}
	}
	return e.trigger(ctx, ref, rule, value, sev, rule.DeviceID, deviceName)
}

// metricValue resolves the current value for a per-device/per-interface
// rule (§4.5 step 1's per-metric dispatch).
func (e *Engine) metricValue(ctx context.Context, rule store.AlertRule) (float64, bool, error) {
	switch rule.Metric {
	case "device_status", "cpu_usage", "memory_usage":
		if rule.DeviceID == nil {
			return 0, false, nil
		}
		d, ok, err := e.store.GetDevice(ctx, *rule.DeviceID)
		if err != nil || !ok {
			return 0, false, err
		}
		v, ok := globalDeviceMetricValue(rule.Metric, d)
		return v, ok, nil

	case "if_utilization_in", "if_utilization_out", "if_status", "if_errors":
		if rule.InterfaceID == nil {
			return 0, false, nil
		}
		switch rule.Metric {
		case "if_status":
			iface, ok, err := e.store.GetInterface(ctx, *rule.InterfaceID)
			if err != nil {
				return 0, false, err
			}
			if !ok {
				return 0, false, nil
			}
			if iface.OperStatus == "up" {
				return 0, true, nil
			}
			return 1, true, nil
		default:
			m, ok, err := e.store.LatestInterfaceMetric(ctx, *rule.InterfaceID)
			if err != nil || !ok {
				return 0, false, err
			}
			switch rule.Metric {
			case "if_utilization_in":
				return m.UtilizationIn, true, nil
			case "if_utilization_out":
				return m.UtilizationOut, true, nil
			case "if_errors":
				return float64(m.InErrors + m.OutErrors), true, nil
			}
		}
	}
	return 0, false, nil
}

func isGlobalMetric(metric string) bool {
	switch metric {
	case "device_status", "cpu_usage", "memory_usage":
		return true
	default:
		return false
	}
}

func globalDeviceMetricValue(metric string, d store.Device) (float64, bool) {
	switch metric {
	case "device_status":
		if d.Status == "up" {
			return 0, true
		}
		return 1, true
	case "cpu_usage":
		return d.CPUUsage, true
	case "memory_usage":
		return d.MemoryUsage, true
	default:
		return 0, false
	}
}

// ruleSeverity applies critical > warning > legacy single-threshold
// priority (§4.5 step 3).
func ruleSeverity(value float64, rule store.AlertRule) string {
	if rule.CriticalThreshold != nil && evaluateCondition(value, rule.Condition, *rule.CriticalThreshold) {
		return "critical"
	}
	if rule.WarningThreshold != nil && evaluateCondition(value, rule.Condition, *rule.WarningThreshold) {
		return "warning"
	}
	if rule.Threshold != nil && evaluateCondition(value, rule.Condition, *rule.Threshold) {
		return rule.DefaultSeverity
	}
	return ""
}

func ruleBreachedThreshold(sev string, rule store.AlertRule) float64 {
	switch {
	case sev == "critical" && rule.CriticalThreshold != nil:
		return *rule.CriticalThreshold
	case sev == "warning" && rule.WarningThreshold != nil:
		return *rule.WarningThreshold
	case rule.Threshold != nil:
		return *rule.Threshold
	default:
		return 0
	}
}

// trigger creates or updates the open alert_event for (rule, severity,
// deviceID), firing notifications only when the event is newly created
// (§4.6).
func (e *Engine) trigger(ctx context.Context, ref store.RuleRef, rule store.AlertRule, value float64, sev string, deviceID *int64, deviceName string) error {
	threshold := ruleBreachedThreshold(sev, rule)
	message := fmt.Sprintf("Alert: %s | Device: %s | Metric: %s = %.2f %s %.2f",
		rule.Name, deviceName, rule.Metric, value, rule.Condition, threshold)

	existing, ok, err := e.store.GetOpenAlertEvent(ctx, ref, sev, deviceID)
	if err != nil {
		return err
	}
	if ok {
		return e.store.UpdateAlertEventValue(ctx, existing.ID, value, threshold, message)
	}

	id, err := e.store.InsertAlertEvent(ctx, store.AlertEvent{
		RuleID: ref.RuleID, DeviceID: deviceID, Severity: sev, Message: message,
		MetricValue: value, ThresholdValue: threshold, TriggeredAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	e.logger.Warn("alert triggered", "severity", sev, "rule", rule.Name, "message", message)
	e.notify(ctx, id, "device", rule.Name, rule.EmailSink, rule.WebhookSink, sev, message, value, threshold)
	return nil
}

// resolve bulk-closes open events for a rule, optionally filtered by
// severity and/or device (§4.5 steps 5-6).
func (e *Engine) resolve(ctx context.Context, ref store.RuleRef, severity *string, deviceID *int64) error {
	open, err := e.store.ListOpenAlertEvents(ctx, ref, deviceID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, ev := range open {
		if severity != nil && ev.Severity != *severity {
			continue
		}
		if err := e.store.ResolveAlertEvent(ctx, ev.ID, now); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, alertID int64, ruleType, ruleName, email, webhook, severity, message string, value, threshold float64) {
	if e.notifier == nil {
		return
	}
	if email != "" {
		subject := fmt.Sprintf("[NetMon Alert] %s: %s", severity, ruleName)
		body := fmt.Sprintf("<h2>NetMon Alert Triggered</h2><p><strong>Rule:</strong> %s</p><p><strong>Severity:</strong> %s</p><p><strong>Message:</strong> %s</p>",
			ruleName, severity, message)
		go func() {
			if err := e.notifier.SendEmail(ctx, email, subject, body); err != nil {
				e.logger.Error("alert email failed", "error", err)
			}
		}()
	}
	if webhook != "" {
		go func() {
			err := e.notifier.SendWebhook(ctx, webhook, notification.WebhookEvent{
				AlertID: alertID, RuleName: ruleName, RuleType: ruleType, Severity: severity,
				Message: message, MetricValue: value, Threshold: threshold, Timestamp: time.Now().UTC(),
			})
			if err != nil {
				e.logger.Error("alert webhook failed", "error", err)
			}
		}()
	}
}
