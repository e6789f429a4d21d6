// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"database/sql"
	"time"
)

// InsertFlowRecords persists a batch of parsed flow records in one
// transaction. A nil DeviceID (unknown exporter) is accepted — §4.3
// permits flows with no matching Device row, and a single exporter match
// failure must not drop the rest of the batch.
func (s *Store) InsertFlowRecords(ctx context.Context, records []FlowRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO flow_record (
				device_id, timestamp, src_ip, dst_ip, src_port, dst_port, protocol,
				protocol_name, bytes, packets, duration_ms, tcp_flags, application,
				flow_type, src_country, dst_country
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return wrapExec(err, "prepare insert flow record")
		}
		defer stmt.Close()

		for _, r := range records {
			_, err := stmt.ExecContext(ctx, nullableID(r.DeviceID), r.Timestamp.Unix(), r.SrcIP, r.DstIP,
				r.SrcPort, r.DstPort, r.Protocol, r.ProtocolName, r.Bytes, r.Packets, r.DurationMs,
				r.TCPFlags, r.Application, r.FlowType, r.SrcCountry, r.DstCountry)
			if err != nil {
				return wrapExec(err, "insert flow record")
			}
		}
		return nil
	})
}

// RollupBucket aggregates FlowRecord rows in [from, to) grouped by the
// summary key and upserts flow_summary_5m. REPLACE semantics (not additive
// +=) per §4.4: a revised bucket within the 15-minute overlap window
// replaces the prior sums rather than double-counting them, since the
// aggregation re-scans the same source rows each tick.
func (s *Store) RollupBucket(ctx context.Context, bucket int64, from, to time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flow_summary_5m (bucket, device_id, src_ip, dst_ip, src_port, dst_port, protocol_name, application, bytes, packets, flow_count)
		SELECT ?, device_id, src_ip, dst_ip, src_port, dst_port, protocol_name, application,
			SUM(bytes), SUM(packets), COUNT(*)
		FROM flow_record
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY device_id, src_ip, dst_ip, src_port, dst_port, protocol_name, application
		ON CONFLICT(bucket, device_id, src_ip, dst_ip, src_port, dst_port, protocol_name, application) DO UPDATE SET
			bytes = excluded.bytes,
			packets = excluded.packets,
			flow_count = excluded.flow_count`,
		bucket, from.Unix(), to.Unix())
	return wrapExec(err, "rollup bucket")
}

// CleanupFlowRecords deletes raw flow rows older than retention (30 days
// default, §3).
func (s *Store) CleanupFlowRecords(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM flow_record WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, wrapExec(err, "cleanup flow records")
	}
	return res.RowsAffected()
}

// FlowBandwidth returns summed bytes per 5-minute bucket in [from, to]. It
// always reads flow_summary_5m, whatever the span; short spans are not
// routed to flow_record.
func (s *Store) FlowBandwidth(ctx context.Context, from, to time.Time) ([]struct {
	Bucket time.Time
	Bytes  int64
}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bucket, SUM(bytes) FROM flow_summary_5m
		WHERE bucket >= ? AND bucket <= ?
		GROUP BY bucket ORDER BY bucket ASC`, from.Unix(), to.Unix())
	if err != nil {
		return nil, wrapExec(err, "flow bandwidth")
	}
	defer rows.Close()

	var out []struct {
		Bucket time.Time
		Bytes  int64
	}
	for rows.Next() {
		var ts, bytes int64
		if err := rows.Scan(&ts, &bytes); err != nil {
			return nil, wrapExec(err, "scan flow bandwidth")
		}
		out = append(out, struct {
			Bucket time.Time
			Bytes  int64
		}{time.Unix(ts, 0).UTC(), bytes})
	}
	return out, wrapExec(rows.Err(), "scan flow bandwidth rows")
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
