// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/grimm-is/netmond/internal/errors"
)

// InsertDevice inserts a new Device and returns its ID.
func (s *Store) InsertDevice(ctx context.Context, d Device) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO device (
			hostname, ip_address, device_type, snmp_community, snmpv3_user,
			snmpv3_auth_key, snmpv3_priv_key, api_username, api_password,
			status, is_active, polling_enabled, flow_enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Hostname, d.IPAddress, d.DeviceType, d.SNMPCommunity, d.SNMPv3User,
		d.SNMPv3AuthKey, d.SNMPv3PrivKey, d.APIUsername, d.APIPassword,
		orDefault(d.Status, "unknown"), boolToInt(d.IsActive), boolToInt(d.PollingEnabled),
		boolToInt(d.FlowEnabled), now.Unix(), now.Unix(),
	)
	if err != nil {
		return 0, wrapExec(err, "insert device")
	}
	return res.LastInsertId()
}

// GetDevice loads a single Device by ID. ok is false on a missing row.
func (s *Store) GetDevice(ctx context.Context, id int64) (Device, bool, error) {
	row := s.db.QueryRowContext(ctx, deviceSelectCols+" WHERE id = ?", id)
	d, err := scanDevice(row)
	if errors.GetKind(err) == errors.KindNotFound {
		return Device{}, false, nil
	}
	if err != nil {
		return Device{}, false, err
	}
	return d, true, nil
}

// GetDeviceByIP loads a Device by its exporter IP, used by the flow
// collector for exporter-IP attribution (§4.3). ok is false on a miss,
// the expected case for traffic from an unregistered exporter.
func (s *Store) GetDeviceByIP(ctx context.Context, ip string) (Device, bool, error) {
	row := s.db.QueryRowContext(ctx, deviceSelectCols+" WHERE ip_address = ?", ip)
	d, err := scanDevice(row)
	if errors.GetKind(err) == errors.KindNotFound {
		return Device{}, false, nil
	}
	if err != nil {
		return Device{}, false, err
	}
	return d, true, nil
}

// ListActiveDevices returns every device with is_active=true (§3 invariant:
// soft-deleted devices are excluded from all schedulers).
func (s *Store) ListActiveDevices(ctx context.Context) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx, deviceSelectCols+" WHERE is_active = 1")
	if err != nil {
		return nil, wrapExec(err, "list active devices")
	}
	defer rows.Close()
	return scanDevices(rows)
}

// ListActiveDevicesByType returns active devices of a given device_type,
// e.g. "pdu" for the PDU sub-poller or "spine" for route learning.
func (s *Store) ListActiveDevicesByType(ctx context.Context, deviceType string) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx, deviceSelectCols+" WHERE is_active = 1 AND device_type = ?", deviceType)
	if err != nil {
		return nil, wrapExec(err, "list active devices by type")
	}
	defer rows.Close()
	return scanDevices(rows)
}

// UpdateDeviceHealth applies a poll result's health snapshot (§4.2 step 1/5).
func (s *Store) UpdateDeviceHealth(ctx context.Context, id int64, status string, uptime time.Duration, cpu, mem, rtt, loss float64, lastSeen time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE device SET status=?, uptime_seconds=?, cpu_usage=?, memory_usage=?,
			rtt_ms=?, packet_loss_pct=?, last_seen=?, updated_at=?
		WHERE id=?`,
		status, int64(uptime.Seconds()), cpu, mem, rtt, loss, lastSeen.Unix(), time.Now().UTC().Unix(), id)
	return wrapExec(err, "update device health")
}

// SetDeviceStatus is the minimal update path used when a poll only
// determines reachability (§4.2 step 1: sysUpTime absent → status=down).
func (s *Store) SetDeviceStatus(ctx context.Context, id int64, status string, lastSeen time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE device SET status=?, last_seen=?, updated_at=? WHERE id=?`,
		status, lastSeen.Unix(), time.Now().UTC().Unix(), id)
	return wrapExec(err, "set device status")
}

const deviceSelectCols = `
	SELECT id, hostname, ip_address, device_type, snmp_community, snmpv3_user,
		snmpv3_auth_key, snmpv3_priv_key, api_username, api_password, status,
		uptime_seconds, cpu_usage, memory_usage, rtt_ms, packet_loss_pct,
		last_seen, is_active, polling_enabled, flow_enabled, created_at, updated_at
	FROM device`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (Device, error) {
	var d Device
	var uptimeSecs int64
	var lastSeen, createdAt, updatedAt sql.NullInt64
	var isActive, pollingEnabled, flowEnabled int
	err := row.Scan(&d.ID, &d.Hostname, &d.IPAddress, &d.DeviceType, &d.SNMPCommunity,
		&d.SNMPv3User, &d.SNMPv3AuthKey, &d.SNMPv3PrivKey, &d.APIUsername, &d.APIPassword,
		&d.Status, &uptimeSecs, &d.CPUUsage, &d.MemoryUsage, &d.RTTMs, &d.PacketLossPct,
		&lastSeen, &isActive, &pollingEnabled, &flowEnabled, &createdAt, &updatedAt)
	if err != nil {
		return Device{}, wrapExec(err, "scan device")
	}
	d.Uptime = time.Duration(uptimeSecs) * time.Second
	if lastSeen.Valid {
		d.LastSeen = time.Unix(lastSeen.Int64, 0).UTC()
	}
	if createdAt.Valid {
		d.CreatedAt = time.Unix(createdAt.Int64, 0).UTC()
	}
	if updatedAt.Valid {
		d.UpdatedAt = time.Unix(updatedAt.Int64, 0).UTC()
	}
	d.IsActive = isActive != 0
	d.PollingEnabled = pollingEnabled != 0
	d.FlowEnabled = flowEnabled != 0
	return d, nil
}

func scanDevices(rows *sql.Rows) ([]Device, error) {
	var out []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, wrapExec(rows.Err(), "scan devices")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
