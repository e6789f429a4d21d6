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

const powerBudgetSetting = "power_budget_watts"

// PowerEngine evaluates power-aggregate rules (§4.5.2): total power, load,
// and temperature across all PDU devices, bucketed to one-minute
// resolution.
type PowerEngine struct {
	store    *store.Store
	notifier *notification.Dispatcher
	events   *systemevent.Log
	logger   *logging.Logger
}

func NewPowerEngine(st *store.Store, notifier *notification.Dispatcher, events *systemevent.Log, logger *logging.Logger) *PowerEngine {
	if logger == nil {
		logger = logging.Default()
	}
	return &PowerEngine{store: st, notifier: notifier, events: events, logger: logger.WithComponent("power_alerting")}
}

type powerAggregates struct {
	totalPower float64
	avgLoad    float64
	maxLoad    float64
	avgTemp    float64
	maxTemp    float64
	budgetPct  float64
}

func (p *PowerEngine) metric(agg powerAggregates, metric string) (float64, bool) {
	switch metric {
	case "total_power":
		return agg.totalPower, true
	case "avg_load":
		return agg.avgLoad, true
	case "max_load":
		return agg.maxLoad, true
	case "avg_temp":
		return agg.avgTemp, true
	case "max_temp":
		return agg.maxTemp, true
	case "budget_pct":
		return agg.budgetPct, true
	default:
		return 0, false
	}
}

// EvaluateRules runs every active PowerAlertRule, grouping by lookback
// window so rules sharing a window reuse one aggregate computation
// (§4.5.2 step 2).
func (p *PowerEngine) EvaluateRules(ctx context.Context) error {
	rules, err := p.store.ListActivePowerAlertRules(ctx)
	if err != nil {
		return err
	}

	cache := map[int]powerAggregates{}
	cacheOK := map[int]bool{}
	for _, rule := range rules {
		if err := p.evaluateRule(ctx, rule, cache, cacheOK); err != nil {
			p.logger.Error("error evaluating power rule", "rule_id", rule.ID, "error", err)
			if p.events != nil {
				p.events.Append(ctx, systemevent.Event{
					Level: "error", Source: "power_alert_engine", EventType: "rule_eval_failed",
					ResourceType: "power_alert_rule", ResourceID: fmt.Sprintf("%d", rule.ID), Message: err.Error(),
				})
			}
		}
	}
	return nil
}

func (p *PowerEngine) evaluateRule(ctx context.Context, rule store.PowerAlertRule, cache map[int]powerAggregates, cacheOK map[int]bool) error {
	agg, ok := cache[rule.LookbackMinutes]
	if !cacheOK[rule.LookbackMinutes] {
		var err error
		agg, ok, err = p.computeAggregates(ctx, rule.LookbackMinutes)
		if err != nil {
			return err
		}
		cache[rule.LookbackMinutes] = agg
		cacheOK[rule.LookbackMinutes] = true
	}
	if !ok {
		return nil
	}

	value, ok := p.metric(agg, rule.Metric)
	if !ok {
		return nil
	}

	ref := store.RuleRef{PowerRuleID: &rule.ID}
	sev := severity(value, rule.Condition, rule.WarningThreshold, rule.CriticalThreshold)
	if sev == "" {
		return p.resolve(ctx, ref, nil)
	}
	if sev == "warning" {
		critical := "critical"
		if err := p.resolve(ctx, ref, &critical); err != nil {
			return err
		}
	}
	return p.trigger(ctx, ref, rule, value, sev)
}

// computeAggregates returns the power aggregates over the last
// lookbackMinutes, or ok=false when there is no PDU sample in the window
// (§4.5.2 step 1). total_power is the last minute bucket's summed wattage
// across all PDUs, matching the latest-snapshot semantics of the source
// aggregation rather than a window-wide sum.
func (p *PowerEngine) computeAggregates(ctx context.Context, lookbackMinutes int) (powerAggregates, bool, error) {
	since := time.Now().UTC().Add(-time.Duration(lookbackMinutes) * time.Minute)
	metrics, err := p.store.PduMetricsSince(ctx, since)
	if err != nil {
		return powerAggregates{}, false, err
	}
	if len(metrics) == 0 {
		return powerAggregates{}, false, nil
	}

	type bucket struct {
		powerWatts float64
		minute     int64
	}
	buckets := map[int64]*bucket{}
	order := []int64{}
	var loadValues, tempValues []float64

	for _, m := range metrics {
		key := m.Timestamp.Unix() / 60 * 60
		b, ok := buckets[key]
		if !ok {
			b = &bucket{minute: key}
			buckets[key] = b
			order = append(order, key)
		}
		b.powerWatts += m.TotalPowerWatts
		loadValues = append(loadValues, m.LoadPct)
		if m.TemperatureC != nil {
			tempValues = append(tempValues, *m.TemperatureC)
		}
	}

	latestMinute := order[0]
	for _, k := range order {
		if k > latestMinute {
			latestMinute = k
		}
	}

	agg := powerAggregates{
		totalPower: buckets[latestMinute].powerWatts,
		avgLoad:    avgOf(loadValues), maxLoad: maxOf(loadValues),
		avgTemp: avgOf(tempValues), maxTemp: maxOf(tempValues),
	}

	if v, ok, err := p.store.GetSetting(ctx, powerBudgetSetting); err == nil && ok {
		if budget := parseFloatOrZero(v); budget > 0 {
			agg.budgetPct = (agg.totalPower / budget) * 100
		}
	}
	return agg, true, nil
}

func (p *PowerEngine) trigger(ctx context.Context, ref store.RuleRef, rule store.PowerAlertRule, value float64, sev string) error {
	threshold := breachedThreshold(sev, rule.WarningThreshold, rule.CriticalThreshold)
	message := fmt.Sprintf("Power Alert: %s | %s (%s) = %s %s %s",
		rule.Name, powerMetricLabel(rule.Metric), formatLookback(rule.LookbackMinutes),
		formatPowerValue(rule.Metric, value), rule.Condition, formatPowerValue(rule.Metric, threshold))

	existing, ok, err := p.store.GetOpenAlertEvent(ctx, ref, sev, nil)
	if err != nil {
		return err
	}
	if ok {
		return p.store.UpdateAlertEventValue(ctx, existing.ID, value, threshold, message)
	}

	id, err := p.store.InsertAlertEvent(ctx, store.AlertEvent{
		PowerRuleID: ref.PowerRuleID, Severity: sev, Message: message,
		MetricValue: value, ThresholdValue: threshold, TriggeredAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	p.logger.Warn("power alert triggered", "severity", sev, "rule", rule.Name, "message", message)
	if p.notifier != nil {
		if rule.EmailSink != "" {
			subject := fmt.Sprintf("[NetMon Power Alert] %s: %s", sev, rule.Name)
			body := fmt.Sprintf("<h2>Power Aggregate Alert Triggered</h2><p><strong>Rule:</strong> %s</p><p><strong>Message:</strong> %s</p>", rule.Name, message)
			go func() {
				if err := p.notifier.SendEmail(ctx, rule.EmailSink, subject, body); err != nil {
					p.logger.Error("power alert email failed", "error", err)
				}
			}()
		}
		if rule.WebhookSink != "" {
			go func() {
				err := p.notifier.SendWebhook(ctx, rule.WebhookSink, notification.WebhookEvent{
					AlertID: id, RuleName: rule.Name, RuleType: "power_aggregate", Severity: sev,
					Message: message, MetricValue: value, Threshold: threshold, Timestamp: time.Now().UTC(),
				})
				if err != nil {
					p.logger.Error("power alert webhook failed", "error", err)
				}
			}()
		}
	}
	return nil
}

func (p *PowerEngine) resolve(ctx context.Context, ref store.RuleRef, severity *string) error {
	open, err := p.store.ListOpenAlertEvents(ctx, ref, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, ev := range open {
		if severity != nil && ev.Severity != *severity {
			continue
		}
		if err := p.store.ResolveAlertEvent(ctx, ev.ID, now); err != nil {
			return err
		}
	}
	return nil
}

func powerMetricLabel(metric string) string {
	labels := map[string]string{
		"total_power": "Total Power", "avg_load": "Avg Load", "max_load": "Max Load",
		"max_temp": "Max Temperature", "avg_temp": "Avg Temperature", "budget_pct": "Budget %",
	}
	if l, ok := labels[metric]; ok {
		return l
	}
	return metric
}

func formatPowerValue(metric string, value float64) string {
	if metric == "total_power" {
		if value >= 1000 {
			return fmt.Sprintf("%.2f kW", value/1000)
		}
		return fmt.Sprintf("%.0f W", value)
	}
	units := map[string]string{"avg_load": "%", "max_load": "%", "max_temp": "°C", "avg_temp": "°C", "budget_pct": "%"}
	return fmt.Sprintf("%.1f%s", value, units[metric])
}
