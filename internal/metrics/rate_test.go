// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/grimm-is/netmond/internal/logging"
)

func testCollector() *Collector {
	logger := logging.New(logging.DefaultConfig())
	return NewCollector(logger)
}

func TestCalculateRate_Normal(t *testing.T) {
	rate := calculateRate(1000, 500, 1.0)
	if rate != 500.0 {
		t.Errorf("expected rate 500.0, got %f", rate)
	}
}

func TestCalculateRate_Reset(t *testing.T) {
	rate := calculateRate(100, 1000, 1.0)
	if rate != 100.0 {
		t.Errorf("on reset, expected rate 100.0 (current value), got %f", rate)
	}
}

func TestCalculateRate_ZeroElapsed(t *testing.T) {
	rate := calculateRate(1000, 500, 0.0)
	if rate != 0.0 {
		t.Errorf("expected rate 0.0 for zero elapsed, got %f", rate)
	}
}

func TestRecordPing_LossRatioOverWindow(t *testing.T) {
	c := testCollector()
	for i := 0; i < pingWindowSize; i++ {
		lost := i%2 == 0
		c.RecordPing("10.0.0.1", 5*time.Millisecond, lost)
	}
	c.mu.RLock()
	w := c.pingHistory["10.0.0.1"]
	c.mu.RUnlock()
	if w.sent != 0 {
		t.Fatalf("window should reset after reaching pingWindowSize, got sent=%d", w.sent)
	}
}

func TestRecordPoll_SetsLastUpdate(t *testing.T) {
	c := testCollector()
	c.RecordPoll("router", 10*time.Millisecond, nil, "")
	c.RecordPoll("router", 10*time.Millisecond, context.Canceled, "timeout")
	if got := c.GetLastUpdate(); got.IsZero() {
		t.Fatalf("expected GetLastUpdate to be set after RecordPoll")
	}
}
