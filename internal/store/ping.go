// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"time"
)

// InsertPingMetric records one ICMP probe result.
func (s *Store) InsertPingMetric(ctx context.Context, m PingMetric) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ping_metric (device_id, timestamp, rtt_min_ms, rtt_avg_ms, rtt_max_ms,
			packet_loss_pct, packets_sent, packets_received, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.DeviceID, m.Timestamp.Unix(), nullableFloat(m.RTTMinMs), nullableFloat(m.RTTAvgMs),
		nullableFloat(m.RTTMaxMs), m.PacketLossPct, m.PacketsSent, m.PacketsReceived, m.Status)
	return wrapExec(err, "insert ping metric")
}

// UpdateDevicePingHealth writes only rtt_ms/packet_loss_pct, leaving the
// CPU/memory/uptime fields the SNMP poller owns untouched — a ping tick
// must never clobber the richer SNMP health snapshot (original_source
// ping_monitor.py does the same narrow UPDATE).
func (s *Store) UpdateDevicePingHealth(ctx context.Context, id int64, rttMs, lossPct float64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE device SET rtt_ms=?, packet_loss_pct=?, updated_at=? WHERE id=?`,
		rttMs, lossPct, time.Now().UTC().Unix(), id)
	return wrapExec(err, "update device ping health")
}

// CleanupPingMetrics deletes ping_metric rows older than retention.
func (s *Store) CleanupPingMetrics(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM ping_metric WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, wrapExec(err, "cleanup ping metrics")
	}
	return res.RowsAffected()
}
