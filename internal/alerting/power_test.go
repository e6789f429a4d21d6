// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/grimm-is/netmond/internal/store"
)

func insertPowerRule(t *testing.T, db *store.Store, metric, condition string, lookback int, warning, critical *float64) int64 {
	t.Helper()
	res, err := db.DB().Exec(`
		INSERT INTO power_alert_rule (name, metric, condition, lookback_minutes, warning_threshold, critical_threshold, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1)`,
		metric+"-power-rule", metric, condition, lookback, warning, critical)
	if err != nil {
		t.Fatalf("insert power_alert_rule: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func TestPowerEngineTriggersOnTotalPowerBreach(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	deviceID, err := s.InsertDevice(ctx, store.Device{Hostname: "pdu-1", IPAddress: "10.2.0.1", DeviceType: "pdu", IsActive: true})
	if err != nil {
		t.Fatalf("InsertDevice: %v", err)
	}

	now := time.Now().UTC()
	if err := s.InsertPduMetric(ctx, store.PduMetric{
		DeviceID: deviceID, Timestamp: now, TotalPowerWatts: 4500, LoadPct: 70,
	}); err != nil {
		t.Fatalf("InsertPduMetric: %v", err)
	}

	warn := 3000.0
	insertPowerRule(t, s, "total_power", "gt", 60, &warn, nil)

	engine := NewPowerEngine(s, nil, nil, nil)
	if err := engine.EvaluateRules(ctx); err != nil {
		t.Fatalf("EvaluateRules: %v", err)
	}

	events, err := s.ListOpenAlertEvents(ctx, store.RuleRef{PowerRuleID: int64Ptr(1)}, nil)
	if err != nil {
		t.Fatalf("ListOpenAlertEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d open power events, want 1", len(events))
	}
}

func TestPowerEngineResolvesWhenLoadDrops(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	deviceID, err := s.InsertDevice(ctx, store.Device{Hostname: "pdu-2", IPAddress: "10.2.0.2", DeviceType: "pdu", IsActive: true})
	if err != nil {
		t.Fatalf("InsertDevice: %v", err)
	}

	now := time.Now().UTC()
	if err := s.InsertPduMetric(ctx, store.PduMetric{
		DeviceID: deviceID, Timestamp: now, TotalPowerWatts: 100, LoadPct: 95,
	}); err != nil {
		t.Fatalf("InsertPduMetric: %v", err)
	}

	warn := 80.0
	// avg_load, not max_load: the breach is diluted by later low samples
	// rather than permanently pinning the window's maximum.
	insertPowerRule(t, s, "avg_load", "gt", 60, &warn, nil)

	engine := NewPowerEngine(s, nil, nil, nil)
	if err := engine.EvaluateRules(ctx); err != nil {
		t.Fatalf("EvaluateRules: %v", err)
	}
	events, err := s.ListOpenAlertEvents(ctx, store.RuleRef{PowerRuleID: int64Ptr(1)}, nil)
	if err != nil || len(events) != 1 {
		t.Fatalf("expected 1 open event before clearing, got %d (err=%v)", len(events), err)
	}

	for i := 1; i <= 5; i++ {
		if err := s.InsertPduMetric(ctx, store.PduMetric{
			DeviceID: deviceID, Timestamp: now.Add(time.Duration(i) * time.Minute), TotalPowerWatts: 100, LoadPct: 10,
		}); err != nil {
			t.Fatalf("InsertPduMetric: %v", err)
		}
	}

	if err := engine.EvaluateRules(ctx); err != nil {
		t.Fatalf("EvaluateRules (clear): %v", err)
	}
	events, err = s.ListOpenAlertEvents(ctx, store.RuleRef{PowerRuleID: int64Ptr(1)}, nil)
	if err != nil {
		t.Fatalf("ListOpenAlertEvents: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("got %d open power events after load dropped, want 0", len(events))
	}
}
