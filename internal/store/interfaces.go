// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"database/sql"
	"time"
)

// UpsertInterface inserts or updates an Interface keyed on (device_id,
// if_index). if_index may be null (§3: manually created interfaces), in
// which case rediscovery cannot match it and a new row is always created.
func (s *Store) UpsertInterface(ctx context.Context, iface Interface) (int64, error) {
	if iface.IfIndex == nil {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO interface (device_id, if_index, name, alias, speed_bps, admin_status, oper_status, last_change, is_monitored, is_wan, is_uplink)
			VALUES (?, NULL, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			iface.DeviceID, iface.Name, iface.Alias, iface.SpeedBps, iface.AdminStatus, iface.OperStatus,
			timeOrZero(iface.LastChange), boolToInt(iface.IsMonitored), boolToInt(iface.IsWAN), boolToInt(iface.IsUplink))
		if err != nil {
			return 0, wrapExec(err, "insert interface")
		}
		return res.LastInsertId()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interface (device_id, if_index, name, alias, speed_bps, admin_status, oper_status, last_change, is_monitored, is_wan, is_uplink)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id, if_index) DO UPDATE SET
			name=excluded.name, alias=excluded.alias, speed_bps=excluded.speed_bps,
			admin_status=excluded.admin_status, oper_status=excluded.oper_status,
			last_change=excluded.last_change`,
		iface.DeviceID, *iface.IfIndex, iface.Name, iface.Alias, iface.SpeedBps, iface.AdminStatus, iface.OperStatus,
		timeOrZero(iface.LastChange), boolToInt(iface.IsMonitored), boolToInt(iface.IsWAN), boolToInt(iface.IsUplink))
	if err != nil {
		return 0, wrapExec(err, "upsert interface")
	}

	var id int64
	row := s.db.QueryRowContext(ctx, `SELECT id FROM interface WHERE device_id=? AND if_index=?`, iface.DeviceID, *iface.IfIndex)
	if err := row.Scan(&id); err != nil {
		return 0, wrapExec(err, "lookup upserted interface id")
	}
	return id, nil
}

// SetInterfaceOperStatus updates oper_status, used when §4.2's poll loop
// detects a change and records a PortStateChange alongside.
func (s *Store) SetInterfaceOperStatus(ctx context.Context, id int64, status string, changedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE interface SET oper_status=?, last_change=? WHERE id=?`, status, changedAt.Unix(), id)
	return wrapExec(err, "set interface oper status")
}

// InsertPortStateChange appends a transition row (§3, used by flap
// detection: >5 changes in 10 minutes).
func (s *Store) InsertPortStateChange(ctx context.Context, p PortStateChange) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO port_state_change (interface_id, old_status, new_status, changed_at)
		VALUES (?, ?, ?, ?)`, p.InterfaceID, p.OldStatus, p.NewStatus, p.ChangedAt.Unix())
	return wrapExec(err, "insert port state change")
}

// CountRecentPortStateChanges returns the number of transitions for iface
// since cutoff — the flap-detection input (§3: >5 in 10 minutes = flapping).
func (s *Store) CountRecentPortStateChanges(ctx context.Context, interfaceID int64, since time.Time) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM port_state_change WHERE interface_id=? AND changed_at >= ?`,
		interfaceID, since.Unix())
	if err := row.Scan(&n); err != nil {
		return 0, wrapExec(err, "count recent port state changes")
	}
	return n, nil
}

// ListMonitoredInterfaces returns monitored interfaces for a device, used
// by the poller to match discovered ifIndexes against known rows (§4.2
// step 3).
func (s *Store) ListMonitoredInterfaces(ctx context.Context, deviceID int64) ([]Interface, error) {
	rows, err := s.db.QueryContext(ctx, interfaceSelectCols+` WHERE device_id=? AND is_monitored=1`, deviceID)
	if err != nil {
		return nil, wrapExec(err, "list monitored interfaces")
	}
	defer rows.Close()
	return scanInterfaces(rows)
}

// ListInterfacesByDevice returns every known interface for a device,
// monitored or not — the ifIndex universe MAC table discovery matches
// bridge ports against (§4.2.2), unlike ListMonitoredInterfaces which
// scopes to counter polling.
func (s *Store) ListInterfacesByDevice(ctx context.Context, deviceID int64) ([]Interface, error) {
	rows, err := s.db.QueryContext(ctx, interfaceSelectCols+` WHERE device_id=?`, deviceID)
	if err != nil {
		return nil, wrapExec(err, "list interfaces by device")
	}
	defer rows.Close()
	return scanInterfaces(rows)
}

// ListWANInterfaces returns every interface flagged is_wan, the target set
// for the WAN aggregate engine (§4.5.1).
func (s *Store) ListWANInterfaces(ctx context.Context) ([]Interface, error) {
	rows, err := s.db.QueryContext(ctx, interfaceSelectCols+` WHERE is_wan=1`)
	if err != nil {
		return nil, wrapExec(err, "list wan interfaces")
	}
	defer rows.Close()
	return scanInterfaces(rows)
}

// GetInterface loads a single Interface by ID.
func (s *Store) GetInterface(ctx context.Context, id int64) (Interface, error) {
	row := s.db.QueryRowContext(ctx, interfaceSelectCols+` WHERE id=?`, id)
	return scanInterface(row)
}

const interfaceSelectCols = `
	SELECT id, device_id, if_index, name, alias, speed_bps, admin_status, oper_status,
		last_change, is_monitored, is_wan, is_uplink FROM interface`

func scanInterface(row rowScanner) (Interface, error) {
	var i Interface
	var ifIndex sql.NullInt64
	var lastChange sql.NullInt64
	var isMonitored, isWAN, isUplink int
	err := row.Scan(&i.ID, &i.DeviceID, &ifIndex, &i.Name, &i.Alias, &i.SpeedBps, &i.AdminStatus,
		&i.OperStatus, &lastChange, &isMonitored, &isWAN, &isUplink)
	if err != nil {
		return Interface{}, wrapExec(err, "scan interface")
	}
	if ifIndex.Valid {
		v := ifIndex.Int64
		i.IfIndex = &v
	}
	if lastChange.Valid {
		i.LastChange = time.Unix(lastChange.Int64, 0).UTC()
	}
	i.IsMonitored = isMonitored != 0
	i.IsWAN = isWAN != 0
	i.IsUplink = isUplink != 0
	return i, nil
}

func scanInterfaces(rows *sql.Rows) ([]Interface, error) {
	var out []Interface
	for rows.Next() {
		i, err := scanInterface(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, wrapExec(rows.Err(), "scan interfaces")
}

func timeOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
