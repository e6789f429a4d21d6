// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"database/sql"
	"time"
)

// InsertInterfaceMetric appends a new sample (§4.2 step 3).
func (s *Store) InsertInterfaceMetric(ctx context.Context, m InterfaceMetric) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interface_metric (
			interface_id, timestamp, in_octets, out_octets, in_packets, out_packets,
			in_errors, out_errors, in_discards, out_discards, in_broadcast, in_multicast,
			in_bps, out_bps, utilization_in, utilization_out, pps
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.InterfaceID, m.Timestamp.Unix(), m.InOctets, m.OutOctets, m.InPackets, m.OutPackets,
		m.InErrors, m.OutErrors, m.InDiscards, m.OutDiscards, m.InBroadcast, m.InMulticast,
		m.InBps, m.OutBps, m.UtilizationIn, m.UtilizationOut, m.PPS)
	return wrapExec(err, "insert interface metric")
}

// LatestInterfaceMetric returns the most recent sample for an interface, or
// (zero value, false, nil) when none exists yet — the "no prior sample"
// case of §3 where rate fields are emitted as zero.
func (s *Store) LatestInterfaceMetric(ctx context.Context, interfaceID int64) (InterfaceMetric, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, interface_id, timestamp, in_octets, out_octets, in_packets, out_packets,
			in_errors, out_errors, in_discards, out_discards, in_broadcast, in_multicast,
			in_bps, out_bps, utilization_in, utilization_out, pps
		FROM interface_metric WHERE interface_id=? ORDER BY timestamp DESC LIMIT 1`, interfaceID)

	var m InterfaceMetric
	var ts int64
	err := row.Scan(&m.ID, &m.InterfaceID, &ts, &m.InOctets, &m.OutOctets, &m.InPackets, &m.OutPackets,
		&m.InErrors, &m.OutErrors, &m.InDiscards, &m.OutDiscards, &m.InBroadcast, &m.InMulticast,
		&m.InBps, &m.OutBps, &m.UtilizationIn, &m.UtilizationOut, &m.PPS)
	if err == sql.ErrNoRows {
		return InterfaceMetric{}, false, nil
	}
	if err != nil {
		return InterfaceMetric{}, false, wrapExec(err, "latest interface metric")
	}
	m.Timestamp = time.Unix(ts, 0).UTC()
	return m, true, nil
}

// WANMetricsSince returns every InterfaceMetric row for WAN interfaces with
// timestamp >= since, the sample set for §4.5.1's per-minute bucketing.
func (s *Store) WANMetricsSince(ctx context.Context, since time.Time) ([]InterfaceMetric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.timestamp, m.in_bps, m.out_bps
		FROM interface_metric m
		JOIN interface i ON i.id = m.interface_id
		WHERE i.is_wan = 1 AND m.timestamp >= ?
		ORDER BY m.timestamp ASC`, since.Unix())
	if err != nil {
		return nil, wrapExec(err, "wan metrics since")
	}
	defer rows.Close()

	var out []InterfaceMetric
	for rows.Next() {
		var m InterfaceMetric
		var ts int64
		if err := rows.Scan(&ts, &m.InBps, &m.OutBps); err != nil {
			return nil, wrapExec(err, "scan wan metric")
		}
		m.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, m)
	}
	return out, wrapExec(rows.Err(), "scan wan metrics")
}

// CleanupInterfaceMetrics deletes samples older than the retention cutoff
// (metrics_cleanup job, §4.1).
func (s *Store) CleanupInterfaceMetrics(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM interface_metric WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, wrapExec(err, "cleanup interface metrics")
	}
	return res.RowsAffected()
}
