// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"database/sql"
)

// GetMlagDomain returns the MLAG domain for a device, if observed.
func (s *Store) GetMlagDomain(ctx context.Context, deviceID int64) (MlagDomain, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, domain_id, local_role, peer_address, peer_link_status
		FROM mlag_domain WHERE device_id = ?`, deviceID)
	var m MlagDomain
	err := row.Scan(&m.ID, &m.DeviceID, &m.DomainID, &m.LocalRole, &m.PeerAddress, &m.PeerLinkStatus)
	if err == sql.ErrNoRows {
		return MlagDomain{}, false, nil
	}
	if err != nil {
		return MlagDomain{}, false, wrapExec(err, "get mlag domain")
	}
	return m, true, nil
}

// UpsertMlagDomain replaces a device's MLAG domain row. MLAG domains are
// current-state, not time-series: a device has at most one.
func (s *Store) UpsertMlagDomain(ctx context.Context, m MlagDomain) (int64, error) {
	existing, ok, err := s.GetMlagDomain(ctx, m.DeviceID)
	if err != nil {
		return 0, err
	}
	if ok {
		_, err := s.db.ExecContext(ctx, `
			UPDATE mlag_domain SET domain_id=?, local_role=?, peer_address=?, peer_link_status=?
			WHERE id=?`, m.DomainID, m.LocalRole, m.PeerAddress, m.PeerLinkStatus, existing.ID)
		return existing.ID, wrapExec(err, "update mlag domain")
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO mlag_domain (device_id, domain_id, local_role, peer_address, peer_link_status)
		VALUES (?, ?, ?, ?, ?)`, m.DeviceID, m.DomainID, m.LocalRole, m.PeerAddress, m.PeerLinkStatus)
	if err != nil {
		return 0, wrapExec(err, "insert mlag domain")
	}
	return res.LastInsertId()
}

// DeleteMlagDomain removes a device's MLAG domain and, via ON DELETE
// CASCADE, its member interfaces — the no-MLAG-observed case (§4.2.2).
func (s *Store) DeleteMlagDomain(ctx context.Context, deviceID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM mlag_domain WHERE device_id = ?`, deviceID)
	return wrapExec(err, "delete mlag domain")
}

// ReplaceMlagInterfaces replaces every interface child of a domain with the
// set observed this poll cycle.
func (s *Store) ReplaceMlagInterfaces(ctx context.Context, domainID int64, interfaces []MlagInterface) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapExec(err, "begin replace mlag interfaces")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM mlag_interface WHERE domain_id = ?`, domainID); err != nil {
		return wrapExec(err, "clear mlag interfaces")
	}
	for _, iface := range interfaces {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO mlag_interface (domain_id, mlag_id, local_interface, status)
			VALUES (?, ?, ?, ?)`, domainID, iface.MlagID, iface.LocalInterface, iface.Status); err != nil {
			return wrapExec(err, "insert mlag interface")
		}
	}
	return wrapExec(tx.Commit(), "commit replace mlag interfaces")
}

// ListMlagInterfaces returns every interface belonging to a domain.
func (s *Store) ListMlagInterfaces(ctx context.Context, domainID int64) ([]MlagInterface, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, domain_id, mlag_id, local_interface, status
		FROM mlag_interface WHERE domain_id = ? ORDER BY mlag_id`, domainID)
	if err != nil {
		return nil, wrapExec(err, "list mlag interfaces")
	}
	defer rows.Close()

	var out []MlagInterface
	for rows.Next() {
		var m MlagInterface
		if err := rows.Scan(&m.ID, &m.DomainID, &m.MlagID, &m.LocalInterface, &m.Status); err != nil {
			return nil, wrapExec(err, "scan mlag interface")
		}
		out = append(out, m)
	}
	return out, wrapExec(rows.Err(), "scan mlag interfaces")
}
