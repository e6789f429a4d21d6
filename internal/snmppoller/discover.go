// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package snmppoller

import (
	"context"

	"github.com/grimm-is/netmond/internal/snmpclient"
	"github.com/grimm-is/netmond/internal/store"
)

// DiscoverInterfaces walks IF-MIB once to create Interface rows for every
// ifIndex the device reports that doesn't already have one. Existing rows
// are left untouched — rediscovery only adds, matching the original
// behavior of skipping indexes that already have a row.
func (p *Poller) DiscoverInterfaces(ctx context.Context, d store.Device) (int, error) {
	sess, err := snmpclient.Dial(d.IPAddress, 161, p.credentialsFor(d), p.timeout, p.retries)
	if err != nil {
		return 0, nil
	}
	defer sess.Close()

	descr := indexByLastOID(sess.BulkWalk(oidIfDescr))
	speed := indexByLastOID(sess.BulkWalk(oidIfHighSpeed))
	admin := indexByLastOID(sess.BulkWalk(oidIfAdmin))
	oper := indexByLastOID(sess.BulkWalk(oidIfOper))
	alias := indexByLastOID(sess.BulkWalk(oidIfAlias))

	existing, err := p.store.ListMonitoredInterfaces(ctx, d.ID)
	if err != nil {
		return 0, err
	}
	have := make(map[int64]bool, len(existing))
	for _, e := range existing {
		if e.IfIndex != nil {
			have[*e.IfIndex] = true
		}
	}

	created := 0
	for ifIndex, nameVal := range descr {
		if have[ifIndex] {
			continue
		}
		idx := ifIndex
		speedMbps := int64(speed[ifIndex].Uint)
		adminStr := "down"
		if admin[ifIndex].Uint == 1 || admin[ifIndex].Int == 1 {
			adminStr = "up"
		}
		operStr := "down"
		if oper[ifIndex].Uint == 1 || oper[ifIndex].Int == 1 {
			operStr = "up"
		}
		_, err := p.store.UpsertInterface(ctx, store.Interface{
			DeviceID: d.ID, IfIndex: &idx, Name: nameVal.Str, Alias: alias[ifIndex].Str,
			SpeedBps: speedMbps * 1_000_000, AdminStatus: adminStr, OperStatus: operStr, IsMonitored: true,
		})
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
