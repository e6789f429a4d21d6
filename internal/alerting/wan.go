// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package alerting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/grimm-is/netmond/internal/logging"
	"github.com/grimm-is/netmond/internal/notification"
	"github.com/grimm-is/netmond/internal/store"
	"github.com/grimm-is/netmond/internal/systemevent"
)

const wanCommitmentSetting = "wan_commitment_bps"

// WanEngine evaluates WAN-aggregate rules (§4.5.1): p95/max/avg bandwidth
// across all WAN interfaces, bucketed to one-minute resolution.
type WanEngine struct {
	store    *store.Store
	notifier *notification.Dispatcher
	events   *systemevent.Log
	logger   *logging.Logger
}

func NewWanEngine(st *store.Store, notifier *notification.Dispatcher, events *systemevent.Log, logger *logging.Logger) *WanEngine {
	if logger == nil {
		logger = logging.Default()
	}
	return &WanEngine{store: st, notifier: notifier, events: events, logger: logger.WithComponent("wan_alerting")}
}

type wanAggregates struct {
	p95In, p95Out, p95Max   float64
	maxIn, maxOut           float64
	avgIn, avgOut           float64
	commitmentPct           float64
}

func (w *WanEngine) metric(agg wanAggregates, metric string) (float64, bool) {
	switch metric {
	case "p95_in":
		return agg.p95In, true
	case "p95_out":
		return agg.p95Out, true
	case "p95_max":
		return agg.p95Max, true
	case "max_in":
		return agg.maxIn, true
	case "max_out":
		return agg.maxOut, true
	case "avg_in":
		return agg.avgIn, true
	case "avg_out":
		return agg.avgOut, true
	case "commitment_pct":
		return agg.commitmentPct, true
	default:
		return 0, false
	}
}

// EvaluateRules runs every active WanAlertRule, grouping by lookback
// window so rules sharing a window reuse one aggregate computation
// (§4.5.1 step 2).
func (w *WanEngine) EvaluateRules(ctx context.Context) error {
	rules, err := w.store.ListActiveWanAlertRules(ctx)
	if err != nil {
		return err
	}

	cache := map[int]wanAggregates{}
	cacheOK := map[int]bool{}
	for _, rule := range rules {
		if err := w.evaluateRule(ctx, rule, cache, cacheOK); err != nil {
			w.logger.Error("error evaluating wan rule", "rule_id", rule.ID, "error", err)
			if w.events != nil {
				w.events.Append(ctx, systemevent.Event{
					Level: "error", Source: "wan_alert_engine", EventType: "rule_eval_failed",
					ResourceType: "wan_alert_rule", ResourceID: fmt.Sprintf("%d", rule.ID), Message: err.Error(),
				})
			}
		}
	}
	return nil
}

func (w *WanEngine) evaluateRule(ctx context.Context, rule store.WanAlertRule, cache map[int]wanAggregates, cacheOK map[int]bool) error {
	agg, ok := cache[rule.LookbackMinutes]
	if !cacheOK[rule.LookbackMinutes] {
		var err error
		agg, ok, err = w.computeAggregates(ctx, rule.LookbackMinutes)
		if err != nil {
			return err
		}
		cache[rule.LookbackMinutes] = agg
		cacheOK[rule.LookbackMinutes] = true
	}
	if !ok {
		return nil
	}

	value, ok := w.metric(agg, rule.Metric)
	if !ok {
		return nil
	}

	ref := store.RuleRef{WanRuleID: &rule.ID}
	sev := severity(value, rule.Condition, rule.WarningThreshold, rule.CriticalThreshold)
	if sev == "" {
		return w.resolve(ctx, ref, nil)
	}
	if sev == "warning" {
		critical := "critical"
		if err := w.resolve(ctx, ref, &critical); err != nil {
			return err
		}
	}
	return w.trigger(ctx, ref, rule, value, sev)
}

// computeAggregates returns the bandwidth aggregates over the last
// lookbackMinutes, or ok=false when there is no WAN interface or no
// samples in the window (§4.5.1 step 1).
func (w *WanEngine) computeAggregates(ctx context.Context, lookbackMinutes int) (wanAggregates, bool, error) {
	ifaces, err := w.store.ListWANInterfaces(ctx)
	if err != nil {
		return wanAggregates{}, false, err
	}
	if len(ifaces) == 0 {
		return wanAggregates{}, false, nil
	}

	since := time.Now().UTC().Add(-time.Duration(lookbackMinutes) * time.Minute)
	metrics, err := w.store.WANMetricsSince(ctx, since)
	if err != nil {
		return wanAggregates{}, false, err
	}
	if len(metrics) == 0 {
		return wanAggregates{}, false, nil
	}

	buckets := map[int64]*struct{ in, out float64 }{}
	for _, m := range metrics {
		key := m.Timestamp.Unix() / 60 * 60
		b, ok := buckets[key]
		if !ok {
			b = &struct{ in, out float64 }{}
			buckets[key] = b
		}
		b.in += m.InBps
		b.out += m.OutBps
	}

	allIn := make([]float64, 0, len(buckets))
	allOut := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		allIn = append(allIn, b.in)
		allOut = append(allOut, b.out)
	}

	p95In := percentile95(allIn)
	p95Out := percentile95(allOut)

	agg := wanAggregates{
		p95In: p95In, p95Out: p95Out, p95Max: math.Max(p95In, p95Out),
		maxIn: maxOf(allIn), maxOut: maxOf(allOut),
		avgIn: avgOf(allIn), avgOut: avgOf(allOut),
	}

	if v, ok, err := w.store.GetSetting(ctx, wanCommitmentSetting); err == nil && ok {
		if commitment := parseFloatOrZero(v); commitment > 0 {
			agg.commitmentPct = (agg.p95Max / commitment) * 100
		}
	}
	return agg, true, nil
}

func (w *WanEngine) trigger(ctx context.Context, ref store.RuleRef, rule store.WanAlertRule, value float64, sev string) error {
	threshold := breachedThreshold(sev, rule.WarningThreshold, rule.CriticalThreshold)
	message := fmt.Sprintf("WAN Alert: %s | %s (%s) = %s %s %s",
		rule.Name, wanMetricLabel(rule.Metric), formatLookback(rule.LookbackMinutes),
		formatWanValue(rule.Metric, value), rule.Condition, formatWanValue(rule.Metric, threshold))

	existing, ok, err := w.store.GetOpenAlertEvent(ctx, ref, sev, nil)
	if err != nil {
		return err
	}
	if ok {
		return w.store.UpdateAlertEventValue(ctx, existing.ID, value, threshold, message)
	}

	id, err := w.store.InsertAlertEvent(ctx, store.AlertEvent{
		WanRuleID: ref.WanRuleID, Severity: sev, Message: message,
		MetricValue: value, ThresholdValue: threshold, TriggeredAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	w.logger.Warn("wan alert triggered", "severity", sev, "rule", rule.Name, "message", message)
	if w.notifier != nil {
		if rule.EmailSink != "" {
			subject := fmt.Sprintf("[NetMon WAN Alert] %s: %s", sev, rule.Name)
			body := fmt.Sprintf("<h2>WAN Aggregate Alert Triggered</h2><p><strong>Rule:</strong> %s</p><p><strong>Message:</strong> %s</p>", rule.Name, message)
			go func() {
				if err := w.notifier.SendEmail(ctx, rule.EmailSink, subject, body); err != nil {
					w.logger.Error("wan alert email failed", "error", err)
				}
			}()
		}
		if rule.WebhookSink != "" {
			go func() {
				err := w.notifier.SendWebhook(ctx, rule.WebhookSink, notification.WebhookEvent{
					AlertID: id, RuleName: rule.Name, RuleType: "wan_aggregate", Severity: sev,
					Message: message, MetricValue: value, Threshold: threshold, Timestamp: time.Now().UTC(),
				})
				if err != nil {
					w.logger.Error("wan alert webhook failed", "error", err)
				}
			}()
		}
	}
	return nil
}

func (w *WanEngine) resolve(ctx context.Context, ref store.RuleRef, severity *string) error {
	open, err := w.store.ListOpenAlertEvents(ctx, ref, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, ev := range open {
		if severity != nil && ev.Severity != *severity {
			continue
		}
		if err := w.store.ResolveAlertEvent(ctx, ev.ID, now); err != nil {
			return err
		}
	}
	return nil
}

func percentile95(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	s := append([]float64(nil), data...)
	sort.Float64s(s)
	k := float64(len(s)-1) * 0.95
	f := math.Floor(k)
	c := math.Ceil(k)
	if f == c {
		return s[int(k)]
	}
	return s[int(f)]*(c-k) + s[int(c)]*(k-f)
}

func maxOf(data []float64) float64 {
	m := 0.0
	for _, v := range data {
		if v > m {
			m = v
		}
	}
	return m
}

func avgOf(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

func parseFloatOrZero(s string) float64 {
	var v float64
	_, err := fmt.Sscanf(s, "%g", &v)
	if err != nil {
		return 0
	}
	return v
}

func formatLookback(minutes int) string {
	switch {
	case minutes < 60:
		return fmt.Sprintf("%dm", minutes)
	case minutes < 1440:
		return fmt.Sprintf("%dh", minutes/60)
	default:
		return fmt.Sprintf("%dd", minutes/1440)
	}
}

func wanMetricLabel(metric string) string {
	labels := map[string]string{
		"p95_in": "95th Percentile In", "p95_out": "95th Percentile Out", "p95_max": "95th Percentile Max",
		"max_in": "Max In", "max_out": "Max Out", "avg_in": "Average In", "avg_out": "Average Out",
		"commitment_pct": "Commitment %",
	}
	if l, ok := labels[metric]; ok {
		return l
	}
	return metric
}

func formatWanValue(metric string, value float64) string {
	if metric == "commitment_pct" {
		return fmt.Sprintf("%.1f%%", value)
	}
	switch {
	case value >= 1_000_000_000:
		return fmt.Sprintf("%.2f Gbps", value/1_000_000_000)
	case value >= 1_000_000:
		return fmt.Sprintf("%.2f Mbps", value/1_000_000)
	default:
		return fmt.Sprintf("%.0f bps", value)
	}
}
