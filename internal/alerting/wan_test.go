// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/grimm-is/netmond/internal/store"
)

func insertWanRule(t *testing.T, db *store.Store, metric, condition string, lookback int, warning, critical *float64) int64 {
	t.Helper()
	res, err := db.DB().Exec(`
		INSERT INTO wan_alert_rule (name, metric, condition, lookback_minutes, warning_threshold, critical_threshold, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1)`,
		metric+"-wan-rule", metric, condition, lookback, warning, critical)
	if err != nil {
		t.Fatalf("insert wan_alert_rule: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func TestWanEngineTriggersOnP95Breach(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	deviceID, err := s.InsertDevice(ctx, store.Device{Hostname: "edge-1", IPAddress: "10.1.0.1", DeviceType: "router", IsActive: true})
	if err != nil {
		t.Fatalf("InsertDevice: %v", err)
	}
	ifaceID, err := s.UpsertInterface(ctx, store.Interface{DeviceID: deviceID, Name: "eth0", IsWAN: true, SpeedBps: 1_000_000_000})
	if err != nil {
		t.Fatalf("UpsertInterface: %v", err)
	}

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		if err := s.InsertInterfaceMetric(ctx, store.InterfaceMetric{
			InterfaceID: ifaceID, Timestamp: now.Add(time.Duration(i) * time.Minute),
			InBps: 900_000_000, OutBps: 100_000_000,
		}); err != nil {
			t.Fatalf("InsertInterfaceMetric: %v", err)
		}
	}

	warn := 500_000_000.0
	insertWanRule(t, s, "p95_in", "gt", 60, &warn, nil)

	engine := NewWanEngine(s, nil, nil, nil)
	if err := engine.EvaluateRules(ctx); err != nil {
		t.Fatalf("EvaluateRules: %v", err)
	}

	events, err := s.ListOpenAlertEvents(ctx, store.RuleRef{WanRuleID: int64Ptr(1)}, nil)
	if err != nil {
		t.Fatalf("ListOpenAlertEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d open wan events, want 1", len(events))
	}
}

func TestWanEngineNoWanInterfacesSkipsSilently(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	warn := 1.0
	insertWanRule(t, s, "p95_in", "gt", 60, &warn, nil)

	engine := NewWanEngine(s, nil, nil, nil)
	if err := engine.EvaluateRules(ctx); err != nil {
		t.Fatalf("EvaluateRules: %v", err)
	}
}

func TestPercentile95Interpolates(t *testing.T) {
	data := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	got := percentile95(data)
	if got < 95 || got > 100 {
		t.Fatalf("percentile95 = %v, want in [95,100]", got)
	}
}
