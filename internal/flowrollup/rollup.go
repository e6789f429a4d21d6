// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package flowrollup periodically aggregates raw flow_record rows into
// flow_summary_5m buckets (§4.4), plus a one-time historical backfill.
package flowrollup

import (
	"context"
	"strconv"
	"time"

	"github.com/grimm-is/netmond/internal/logging"
	"github.com/grimm-is/netmond/internal/store"
	"github.com/grimm-is/netmond/internal/systemevent"
)

const (
	bucketSize = 5 * time.Minute

	settingWatermark  = "flow_rollup_watermark"
	settingBackfilled = "flow_rollup_backfilled"

	backfillChunk = time.Hour
)

// Roller owns the periodic rollup tick and the one-time backfill.
type Roller struct {
	store  *store.Store
	events *systemevent.Log
	logger *logging.Logger
}

// New builds a Roller.
func New(st *store.Store, events *systemevent.Log, logger *logging.Logger) *Roller {
	if logger == nil {
		logger = logging.Default()
	}
	return &Roller{store: st, events: events, logger: logger.WithComponent("flowrollup")}
}

// Tick rolls up every completed 5-minute bucket since the last run, and
// re-rolls the completed buckets of the last 15 minutes so late-arriving
// rows revise their bucket. The bucket currently in progress is excluded —
// its source rows are still arriving, so summarizing it now would leave a
// short count until the next run (§4.4).
func (r *Roller) Tick(ctx context.Context) error {
	const overlap = 15 * time.Minute
	now := time.Now().UTC()
	currentBucketStart := now.Truncate(bucketSize)

	watermark, err := r.watermark(ctx, currentBucketStart.Add(-bucketSize))
	if err != nil {
		return err
	}
	start := currentBucketStart.Add(-overlap)
	if watermark.Before(start) {
		start = watermark
	}

	rolled := 0
	for bucket := start; bucket.Before(currentBucketStart); bucket = bucket.Add(bucketSize) {
		if err := r.store.RollupBucket(ctx, bucket.Unix(), bucket, bucket.Add(bucketSize)); err != nil {
			r.logger.Error("rollup bucket failed", "bucket", bucket, "error", err)
			if r.events != nil {
				r.events.Append(ctx, systemevent.Event{
					Level: "error", Source: "flow_rollup", EventType: "rollup_failed",
					Message: err.Error(), Details: map[string]any{"bucket": bucket.Unix()},
				})
			}
			return err
		}
		rolled++
	}
	if rolled > 0 {
		r.logger.Info("rolled up flow buckets", "count", rolled, "through", currentBucketStart)
	}

	return r.store.SetSetting(ctx, settingWatermark, strconv.FormatInt(currentBucketStart.Unix(), 10), false, "flow_rollup")
}

func (r *Roller) watermark(ctx context.Context, fallback time.Time) (time.Time, error) {
	raw, ok, err := r.store.GetSetting(ctx, settingWatermark)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return fallback, nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback, nil
	}
	return time.Unix(secs, 0).UTC(), nil
}

// Backfill rolls up the last `days` of history in 1-hour chunks, then
// marks completion via the flow_rollup_backfilled setting so it only ever
// runs once (idempotent across restarts). A partial prior run (process
// killed mid-backfill) simply resumes: buckets already upserted are
// overwritten with identical sums, never double counted, because
// RollupBucket uses REPLACE semantics.
func (r *Roller) Backfill(ctx context.Context, days int) error {
	if _, ok, err := r.store.GetSetting(ctx, settingBackfilled); err != nil {
		return err
	} else if ok {
		return nil
	}

	end := time.Now().UTC().Truncate(bucketSize)
	start := end.Add(-time.Duration(days) * 24 * time.Hour).Truncate(bucketSize)

	r.logger.Info("starting flow rollup backfill", "days", days, "start", start, "end", end)
	for chunkStart := start; chunkStart.Before(end); chunkStart = chunkStart.Add(backfillChunk) {
		chunkEnd := chunkStart.Add(backfillChunk)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		for bucket := chunkStart; bucket.Before(chunkEnd); bucket = bucket.Add(bucketSize) {
			if err := r.store.RollupBucket(ctx, bucket.Unix(), bucket, bucket.Add(bucketSize)); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	r.logger.Info("flow rollup backfill complete", "days", days)
	return r.store.SetSetting(ctx, settingBackfilled, "true", false, "flow_rollup")
}
