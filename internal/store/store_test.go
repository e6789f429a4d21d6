// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "netmond.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDeviceInsertAndSoftDeleteExclusion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.InsertDevice(ctx, Device{
		Hostname: "spine-1", IPAddress: "10.0.0.1", DeviceType: "spine",
		IsActive: true, PollingEnabled: true, FlowEnabled: true,
	})
	if err != nil {
		t.Fatalf("InsertDevice: %v", err)
	}

	got, ok, err := s.GetDevice(ctx, id)
	if err != nil || !ok {
		t.Fatalf("GetDevice: %v, ok=%v", err, ok)
	}
	if got.Hostname != "spine-1" || !got.IsActive {
		t.Fatalf("unexpected device: %+v", got)
	}

	devices, err := s.ListActiveDevices(ctx)
	if err != nil || len(devices) != 1 {
		t.Fatalf("ListActiveDevices: %v, %d rows", err, len(devices))
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE device SET is_active=0 WHERE id=?`, id); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	devices, err = s.ListActiveDevices(ctx)
	if err != nil || len(devices) != 0 {
		t.Fatalf("expected soft-deleted device excluded, got %d rows", len(devices))
	}
}

func TestInterfaceUpsertByIfIndex(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	devID, _ := s.InsertDevice(ctx, Device{Hostname: "leaf-1", IPAddress: "10.0.0.2", DeviceType: "leaf", IsActive: true})
	idx := int64(5)

	id1, err := s.UpsertInterface(ctx, Interface{DeviceID: devID, IfIndex: &idx, Name: "eth0", SpeedBps: 1_000_000_000, IsMonitored: true})
	if err != nil {
		t.Fatalf("UpsertInterface: %v", err)
	}

	id2, err := s.UpsertInterface(ctx, Interface{DeviceID: devID, IfIndex: &idx, Name: "eth0-renamed", SpeedBps: 10_000_000_000, IsMonitored: true})
	if err != nil {
		t.Fatalf("UpsertInterface (update): %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same row on re-upsert, got %d and %d", id1, id2)
	}

	got, err := s.GetInterface(ctx, id1)
	if err != nil {
		t.Fatalf("GetInterface: %v", err)
	}
	if got.Name != "eth0-renamed" || got.SpeedBps != 10_000_000_000 {
		t.Fatalf("update did not apply: %+v", got)
	}
}

func TestLatestInterfaceMetricNoneYet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	devID, _ := s.InsertDevice(ctx, Device{Hostname: "leaf-2", IPAddress: "10.0.0.3", DeviceType: "leaf", IsActive: true})
	idx := int64(1)
	ifaceID, _ := s.UpsertInterface(ctx, Interface{DeviceID: devID, IfIndex: &idx, Name: "eth0", IsMonitored: true})

	_, ok, err := s.LatestInterfaceMetric(ctx, ifaceID)
	if err != nil {
		t.Fatalf("LatestInterfaceMetric: %v", err)
	}
	if ok {
		t.Fatal("expected no prior sample")
	}

	now := time.Now().UTC()
	if err := s.InsertInterfaceMetric(ctx, InterfaceMetric{InterfaceID: ifaceID, Timestamp: now, InOctets: 1000, InBps: 8000}); err != nil {
		t.Fatalf("InsertInterfaceMetric: %v", err)
	}

	latest, ok, err := s.LatestInterfaceMetric(ctx, ifaceID)
	if err != nil || !ok {
		t.Fatalf("LatestInterfaceMetric after insert: ok=%v err=%v", ok, err)
	}
	if latest.InOctets != 1000 {
		t.Fatalf("unexpected in_octets: %d", latest.InOctets)
	}
}

func TestAlertEventUpsertAndLadderDown(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ruleID := int64(1)
	ref := RuleRef{RuleID: &ruleID}
	devID, _ := s.InsertDevice(ctx, Device{Hostname: "core-1", IPAddress: "10.0.0.4", DeviceType: "core", IsActive: true})

	// First transition into critical: insert.
	id, err := s.InsertAlertEvent(ctx, AlertEvent{RuleID: &ruleID, DeviceID: &devID, Severity: "critical",
		Message: "cpu high", MetricValue: 98, ThresholdValue: 90, TriggeredAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("InsertAlertEvent: %v", err)
	}

	// Still critical on next tick: must update in place, not duplicate.
	existing, ok, err := s.GetOpenAlertEvent(ctx, ref, "critical", &devID)
	if err != nil || !ok {
		t.Fatalf("GetOpenAlertEvent: ok=%v err=%v", ok, err)
	}
	if existing.ID != id {
		t.Fatalf("expected same event id, got %d want %d", existing.ID, id)
	}
	if err := s.UpdateAlertEventValue(ctx, existing.ID, 99, 90, "cpu still high"); err != nil {
		t.Fatalf("UpdateAlertEventValue: %v", err)
	}

	open, err := s.ListOpenAlertEvents(ctx, ref, &devID)
	if err != nil || len(open) != 1 {
		t.Fatalf("expected exactly one open event, got %d (err=%v)", len(open), err)
	}

	// Ladder down to warning: resolve the critical event.
	if err := s.ResolveAlertEvent(ctx, existing.ID, time.Now().UTC()); err != nil {
		t.Fatalf("ResolveAlertEvent: %v", err)
	}
	open, err = s.ListOpenAlertEvents(ctx, ref, &devID)
	if err != nil || len(open) != 0 {
		t.Fatalf("expected no open events after resolve, got %d", len(open))
	}
}

func TestFlowRollupReplaceSemantics(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	bucketStart := time.Unix(1_700_000_000, 0).UTC()
	bucket := (bucketStart.Unix() / 300) * 300

	records := []FlowRecord{
		{Timestamp: bucketStart, SrcIP: "10.0.0.1", DstIP: "1.1.1.1", SrcPort: 5000, DstPort: 443,
			ProtocolName: "tcp", Application: "https", Bytes: 1000, Packets: 10, FlowType: "netflow_v5"},
	}
	if err := s.InsertFlowRecords(ctx, records); err != nil {
		t.Fatalf("InsertFlowRecords: %v", err)
	}

	from := bucketStart.Add(-time.Second)
	to := bucketStart.Add(time.Second)
	if err := s.RollupBucket(ctx, bucket, from, to); err != nil {
		t.Fatalf("RollupBucket: %v", err)
	}

	// Late-arriving record revises the same bucket; REPLACE semantics means
	// the second rollup reflects the full re-scan, not bytes+=bytes.
	more := []FlowRecord{
		{Timestamp: bucketStart.Add(time.Millisecond), SrcIP: "10.0.0.1", DstIP: "1.1.1.1", SrcPort: 5000, DstPort: 443,
			ProtocolName: "tcp", Application: "https", Bytes: 500, Packets: 5, FlowType: "netflow_v5"},
	}
	if err := s.InsertFlowRecords(ctx, more); err != nil {
		t.Fatalf("InsertFlowRecords (late): %v", err)
	}
	if err := s.RollupBucket(ctx, bucket, from, to); err != nil {
		t.Fatalf("RollupBucket (revise): %v", err)
	}

	bw, err := s.FlowBandwidth(ctx, time.Unix(bucket, 0), time.Unix(bucket, 0))
	if err != nil {
		t.Fatalf("FlowBandwidth: %v", err)
	}
	if len(bw) != 1 {
		t.Fatalf("expected one bucket, got %d", len(bw))
	}
	if bw[0].Bytes != 1500 {
		t.Fatalf("expected 1500 bytes (1000+500 from full re-scan), got %d", bw[0].Bytes)
	}
}
