// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"database/sql"
	"time"
)

// GetMacAddressEntry returns the existing row for (device_id, mac_address),
// if any (§4.2.2).
func (s *Store) GetMacAddressEntry(ctx context.Context, deviceID int64, mac string) (MacAddressEntry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, mac_address, interface_id, vlan_id, ip_address, hostname, vendor, entry_type, first_seen, last_seen
		FROM mac_address_entry WHERE device_id = ? AND mac_address = ?`, deviceID, mac)
	e, err := scanMacAddressEntry(row)
	if err == sql.ErrNoRows {
		return MacAddressEntry{}, false, nil
	}
	if err != nil {
		return MacAddressEntry{}, false, wrapExec(err, "get mac address entry")
	}
	return e, true, nil
}

// UpsertMacAddressEntry inserts a new entry or refreshes an existing one.
// A zero-value VlanID/InterfaceID/IPAddress/Hostname/Vendor on the incoming
// entry does not overwrite a previously known value (§4.2.2: "updates
// last_seen", not a blind overwrite).
func (s *Store) UpsertMacAddressEntry(ctx context.Context, e MacAddressEntry) error {
	existing, ok, err := s.GetMacAddressEntry(ctx, e.DeviceID, e.MacAddress)
	if err != nil {
		return err
	}
	if !ok {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO mac_address_entry (device_id, mac_address, interface_id, vlan_id, ip_address, hostname, vendor, entry_type, first_seen, last_seen)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.DeviceID, e.MacAddress, nullableInt64(e.InterfaceID), nullableInt(e.VlanID),
			orDefault(e.IPAddress, ""), orDefault(e.Hostname, ""), orDefault(e.Vendor, ""),
			orDefault(e.EntryType, "dynamic"), e.FirstSeen.Unix(), e.LastSeen.Unix())
		return wrapExec(err, "insert mac address entry")
	}

	if e.InterfaceID != nil {
		existing.InterfaceID = e.InterfaceID
	}
	if e.VlanID != nil {
		existing.VlanID = e.VlanID
	}
	if e.IPAddress != "" {
		existing.IPAddress = e.IPAddress
	}
	if e.Hostname != "" {
		existing.Hostname = e.Hostname
	}
	if e.Vendor != "" {
		existing.Vendor = e.Vendor
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE mac_address_entry
		SET interface_id=?, vlan_id=?, ip_address=?, hostname=?, vendor=?, entry_type=?, last_seen=?
		WHERE id=?`,
		nullableInt64(existing.InterfaceID), nullableInt(existing.VlanID), existing.IPAddress,
		existing.Hostname, existing.Vendor, e.EntryType, e.LastSeen.Unix(), existing.ID)
	return wrapExec(err, "update mac address entry")
}

// ListMacAddressEntries returns every known entry for a device.
func (s *Store) ListMacAddressEntries(ctx context.Context, deviceID int64) ([]MacAddressEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, mac_address, interface_id, vlan_id, ip_address, hostname, vendor, entry_type, first_seen, last_seen
		FROM mac_address_entry WHERE device_id = ? ORDER BY mac_address`, deviceID)
	if err != nil {
		return nil, wrapExec(err, "list mac address entries")
	}
	defer rows.Close()

	var out []MacAddressEntry
	for rows.Next() {
		e, err := scanMacAddressEntry(rows)
		if err != nil {
			return nil, wrapExec(err, "scan mac address entry")
		}
		out = append(out, e)
	}
	return out, wrapExec(rows.Err(), "scan mac address entries")
}

func scanMacAddressEntry(row rowScanner) (MacAddressEntry, error) {
	var e MacAddressEntry
	var ifaceID sql.NullInt64
	var vlanID sql.NullInt64
	var ip, hostname, vendor sql.NullString
	var firstSeen, lastSeen int64

	if err := row.Scan(&e.ID, &e.DeviceID, &e.MacAddress, &ifaceID, &vlanID, &ip, &hostname, &vendor, &e.EntryType, &firstSeen, &lastSeen); err != nil {
		return MacAddressEntry{}, err
	}
	if ifaceID.Valid {
		v := ifaceID.Int64
		e.InterfaceID = &v
	}
	if vlanID.Valid {
		v := int(vlanID.Int64)
		e.VlanID = &v
	}
	e.IPAddress = ip.String
	e.Hostname = hostname.String
	e.Vendor = vendor.String
	e.FirstSeen = time.Unix(firstSeen, 0).UTC()
	e.LastSeen = time.Unix(lastSeen, 0).UTC()
	return e, nil
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
