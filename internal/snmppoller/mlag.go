// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package snmppoller

import (
	"context"
	"fmt"

	"github.com/grimm-is/netmond/internal/snmpclient"
	"github.com/grimm-is/netmond/internal/store"
)

// Arista MLAG MIB OIDs (enterprise 30065), the SNMP fallback path.
const (
	oidAristaMlagDomainID     = "1.3.6.1.4.1.30065.3.16.1.1.0"
	oidAristaMlagLocalRole    = "1.3.6.1.4.1.30065.3.16.1.2.0"
	oidAristaMlagPeerLink     = "1.3.6.1.4.1.30065.3.16.1.3.0"
	oidAristaMlagIfName       = "1.3.6.1.4.1.30065.3.16.2.1.1.2"
	oidAristaMlagIfLocalState = "1.3.6.1.4.1.30065.3.16.2.1.1.3"
)

// MlagSnapshot is what a MLAG probe (eAPI or SNMP) returns for one device.
type MlagSnapshot struct {
	DomainID       string
	LocalRole      string
	PeerAddress    string
	PeerLinkStatus string
	Interfaces     []store.MlagInterface
}

// MlagDiscoverer reaches a device's native MLAG control plane. The Arista
// eAPI implementation is injected by the process entrypoint since it needs
// an HTTP client and device API credentials this package has no other use
// for; found=false with a nil error means the device simply isn't running
// MLAG.
type MlagDiscoverer interface {
	Discover(ctx context.Context, d store.Device) (MlagSnapshot, bool, error)
}

// DiscoverMlagDomains runs DiscoverMlagDomain over every active,
// polling-enabled device. eapi may be nil, in which case every device goes
// straight to the SNMP fallback.
func (p *Poller) DiscoverMlagDomains(ctx context.Context, eapi MlagDiscoverer) error {
	devices, err := p.store.ListActiveDevices(ctx)
	if err != nil {
		return err
	}
	for _, d := range devices {
		if !d.PollingEnabled || d.DeviceType == "pdu" {
			continue
		}
		if err := p.DiscoverMlagDomain(ctx, d, eapi); err != nil {
			p.logger.Warn("mlag discovery failed", "device", d.Hostname, "error", err)
			p.logEvent(ctx, "warning", "mlag_discovery", d.ID, err.Error())
		}
	}
	return nil
}

// DiscoverMlagDomain implements the MLAG sub-poller (§4.2.2): Arista eAPI is
// tried first when eapi is configured and answers, falling back to the
// Arista MLAG MIB over SNMP. A device with neither deletes any previously
// recorded domain rather than leaving it stale.
func (p *Poller) DiscoverMlagDomain(ctx context.Context, d store.Device, eapi MlagDiscoverer) error {
	var snap MlagSnapshot
	var found bool

	if eapi != nil {
		s, ok, err := eapi.Discover(ctx, d)
		if err != nil {
			p.logger.Debug("mlag eapi probe failed", "device", d.Hostname, "error", err)
		} else if ok {
			snap, found = s, true
		}
	}

	if !found {
		s, ok := p.discoverMlagSNMP(d)
		snap, found = s, ok
	}

	if !found {
		return p.store.DeleteMlagDomain(ctx, d.ID)
	}

	domainID, err := p.store.UpsertMlagDomain(ctx, store.MlagDomain{
		DeviceID: d.ID, DomainID: snap.DomainID, LocalRole: snap.LocalRole,
		PeerAddress: snap.PeerAddress, PeerLinkStatus: snap.PeerLinkStatus,
	})
	if err != nil {
		return err
	}

	for i := range snap.Interfaces {
		snap.Interfaces[i].DomainID = domainID
	}
	return p.store.ReplaceMlagInterfaces(ctx, domainID, snap.Interfaces)
}

func (p *Poller) discoverMlagSNMP(d store.Device) (MlagSnapshot, bool) {
	sess, err := snmpclient.Dial(d.IPAddress, 161, p.credentialsFor(d), p.timeout, p.retries)
	if err != nil {
		return MlagSnapshot{}, false
	}
	defer sess.Close()

	domainID, ok := get1Str(sess, oidAristaMlagDomainID)
	if !ok || domainID == "" {
		return MlagSnapshot{}, false
	}

	roleVal, _ := get1(sess, oidAristaMlagLocalRole)
	peerLink, _ := get1Str(sess, oidAristaMlagPeerLink)

	roleMap := map[int64]string{1: "primary", 2: "secondary"}
	role := roleMap[int64(roleVal)]

	names := indexByLastOID(sess.BulkWalk(oidAristaMlagIfName))
	statuses := indexByLastOID(sess.BulkWalk(oidAristaMlagIfLocalState))

	var interfaces []store.MlagInterface
	for mlagID, nameVal := range names {
		interfaces = append(interfaces, store.MlagInterface{
			MlagID:         int(mlagID),
			LocalInterface: nameVal.Str,
			Status:         statuses[mlagID].Str,
		})
	}

	return MlagSnapshot{
		DomainID:       domainID,
		LocalRole:      role,
		PeerLinkStatus: peerLink,
		Interfaces:     interfaces,
	}, true
}

// get1Str issues a single GET and returns its value as a string, accepting
// both OctetString and numeric varbinds — the Arista MLAG MIB mixes both
// across its scalar OIDs depending on device firmware.
func get1Str(sess *snmpclient.Session, oid string) (string, bool) {
	vals, err := sess.Get(oid)
	if err != nil || len(vals) == 0 || vals[0].IsError {
		return "", false
	}
	v := vals[0]
	if v.Str != "" {
		return v.Str, true
	}
	if v.Kind == "" {
		return "", false
	}
	if v.Uint != 0 {
		return fmt.Sprintf("%d", v.Uint), true
	}
	return fmt.Sprintf("%d", v.Int), true
}
