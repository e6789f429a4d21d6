// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import "context"

// UpsertOwnedSubnet inserts or reactivates a learned/manual CIDR (§3: a
// manual override row can suppress a learned one sharing the same CIDR).
func (s *Store) UpsertOwnedSubnet(ctx context.Context, sub OwnedSubnet) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO owned_subnet (cidr, source, is_active) VALUES (?, ?, ?)
		ON CONFLICT(cidr) DO UPDATE SET source=excluded.source, is_active=excluded.is_active`,
		sub.CIDR, sub.Source, boolToInt(sub.IsActive))
	return wrapExec(err, "upsert owned subnet")
}

// ListActiveOwnedSubnets returns every active subnet declaration.
func (s *Store) ListActiveOwnedSubnets(ctx context.Context) ([]OwnedSubnet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, cidr, source, is_active FROM owned_subnet WHERE is_active=1`)
	if err != nil {
		return nil, wrapExec(err, "list active owned subnets")
	}
	defer rows.Close()

	var out []OwnedSubnet
	for rows.Next() {
		var sub OwnedSubnet
		var isActive int
		if err := rows.Scan(&sub.ID, &sub.CIDR, &sub.Source, &isActive); err != nil {
			return nil, wrapExec(err, "scan owned subnet")
		}
		sub.IsActive = isActive != 0
		out = append(out, sub)
	}
	return out, wrapExec(rows.Err(), "scan owned subnets")
}
