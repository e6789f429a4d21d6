// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package flowrollup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/grimm-is/netmond/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "netmond.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTickExcludesInProgressBucket(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	r := New(s, nil, nil)

	if err := r.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if _, ok, err := s.GetSetting(ctx, settingWatermark); err != nil || !ok {
		t.Fatalf("expected watermark set, ok=%v err=%v", ok, err)
	}

	wm, err := r.watermark(ctx, time.Time{})
	if err != nil {
		t.Fatalf("watermark: %v", err)
	}
	if wm.After(time.Now().UTC()) {
		t.Fatalf("watermark should not be in the future: %v", wm)
	}
	if wm.Truncate(bucketSize) != wm {
		t.Fatalf("watermark %v is not bucket-aligned", wm)
	}
}

func TestBackfillRunsOnceAndIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	r := New(s, nil, nil)

	if err := r.Backfill(ctx, 1); err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if _, ok, err := s.GetSetting(ctx, settingBackfilled); err != nil || !ok {
		t.Fatalf("expected backfilled marker set, ok=%v err=%v", ok, err)
	}

	// Second call must be a no-op (idempotent), not an error or re-scan.
	if err := r.Backfill(ctx, 1); err != nil {
		t.Fatalf("second Backfill: %v", err)
	}
}
