// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package snmppoller

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/grimm-is/netmond/internal/snmpclient"
	"github.com/grimm-is/netmond/internal/store"
)

// Q-BRIDGE-MIB (VLAN-aware, preferred) and BRIDGE-MIB (fallback) OIDs, plus
// the bridge-port-to-ifIndex and ARP tables used to enrich entries (§4.2.2).
const (
	oidDot1qTpFdbPort       = "1.3.6.1.2.1.17.7.1.2.2.1.2" // index: vlan.<6-octet mac>
	oidDot1dTpFdbAddress    = "1.3.6.1.2.1.17.4.3.1.1"     // index: <6-octet mac>, value: mac bytes
	oidDot1dTpFdbPort       = "1.3.6.1.2.1.17.4.3.1.2"     // index: <6-octet mac>
	oidDot1dTpFdbStatus     = "1.3.6.1.2.1.17.4.3.1.3"     // index: <6-octet mac>
	oidDot1dBasePortIfIndex = "1.3.6.1.2.1.17.1.4.1.2"     // index: bridge port
	oidIPNetToMediaPhys     = "1.3.6.1.2.1.4.22.1.2"       // index: ifIndex.<4-octet ip>

	nullMAC      = "00:00:00:00:00:00"
	broadcastMAC = "FF:FF:FF:FF:FF:FF"
)

var fdbStatusName = map[int64]string{
	1: "other", 2: "invalid", 3: "dynamic", 4: "static", 5: "self",
}

// A representative subset of OUI prefixes; unrecognized prefixes leave
// Vendor empty rather than guessing.
var ouiVendors = map[string]string{
	"00:1B:21": "Intel", "3C:FD:FE": "Cisco", "00:1C:0E": "Cisco",
	"00:50:56": "VMware", "00:0C:29": "VMware", "00:1A:A0": "Dell",
	"F4:CE:46": "Dell", "00:26:B9": "Dell", "00:1C:73": "Arista",
	"00:1B:54": "Juniper", "F8:C0:01": "Juniper", "00:25:90": "Super Micro",
	"B8:2A:72": "Ubiquiti", "DC:A6:32": "Raspberry Pi", "00:0D:3A": "Microsoft",
	"00:1E:C9": "Dell", "AC:1F:6B": "HP", "00:23:04": "HP",
}

// DiscoverMacTables runs DiscoverMacTable over every active, polling-enabled
// device. One device's failure never aborts the rest (§7).
func (p *Poller) DiscoverMacTables(ctx context.Context) error {
	devices, err := p.store.ListActiveDevices(ctx)
	if err != nil {
		return err
	}
	for _, d := range devices {
		if !d.PollingEnabled || d.DeviceType == "pdu" {
			continue
		}
		if err := p.DiscoverMacTable(ctx, d); err != nil {
			p.logger.Warn("mac discovery failed", "device", d.Hostname, "error", err)
			p.logEvent(ctx, "warning", "mac_discovery", d.ID, err.Error())
		}
	}
	return nil
}

// DiscoverMacTable implements the MAC/VLAN sub-poller (§4.2.2): Q-BRIDGE-MIB
// is tried first since it carries VLAN membership, BRIDGE-MIB is the
// fallback on devices that don't expose it. Entries are enriched with an
// ARP-resolved IP and an OUI vendor guess, then upserted keyed on
// (device_id, mac_address).
func (p *Poller) DiscoverMacTable(ctx context.Context, d store.Device) error {
	sess, err := snmpclient.Dial(d.IPAddress, 161, p.credentialsFor(d), p.timeout, p.retries)
	if err != nil {
		return nil
	}
	defer sess.Close()

	ifaces, err := p.store.ListInterfacesByDevice(ctx, d.ID)
	if err != nil {
		return err
	}
	byIfIndex := make(map[int64]store.Interface, len(ifaces))
	for _, iface := range ifaces {
		if iface.IfIndex != nil {
			byIfIndex[*iface.IfIndex] = iface
		}
	}

	bridgeToIfIndex := indexByLastOID(sess.BulkWalk(oidDot1dBasePortIfIndex))
	arpIPs := arpTable(sess)
	now := time.Now().UTC()

	entries := p.walkQBridgeFDB(sess, d, bridgeToIfIndex, byIfIndex, now)
	if len(entries) == 0 {
		entries = p.walkLegacyFDB(sess, d, bridgeToIfIndex, byIfIndex, now)
	}

	for mac, entry := range entries {
		if ip, ok := arpIPs[mac]; ok {
			entry.IPAddress = ip
		}
		entry.Vendor = lookupVendor(mac)
		if err := p.store.UpsertMacAddressEntry(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (p *Poller) walkQBridgeFDB(sess *snmpclient.Session, d store.Device, bridgeToIfIndex map[int64]snmpclient.Value, byIfIndex map[int64]store.Interface, now time.Time) map[string]store.MacAddressEntry {
	vals, err := sess.BulkWalk(oidDot1qTpFdbPort)
	if err != nil {
		return nil
	}
	out := make(map[string]store.MacAddressEntry)
	for _, v := range vals {
		if v.IsError {
			continue
		}
		parts := oidSuffixParts(v.OID, oidDot1qTpFdbPort)
		if len(parts) != 7 {
			continue
		}
		vlan, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		mac, ok := macFromDecimalOctets(parts[1:])
		if !ok || isNullOrBroadcast(mac) {
			continue
		}

		var interfaceID *int64
		if ifIndexVal, ok := bridgeToIfIndex[v.Int]; ok {
			if iface, ok := byIfIndex[ifIndexVal.Int]; ok {
				id := iface.ID
				interfaceID = &id
			}
		}

		out[mac] = store.MacAddressEntry{
			DeviceID: d.ID, MacAddress: mac, InterfaceID: interfaceID,
			VlanID: &vlan, EntryType: "dynamic", FirstSeen: now, LastSeen: now,
		}
	}
	return out
}

func (p *Poller) walkLegacyFDB(sess *snmpclient.Session, d store.Device, bridgeToIfIndex map[int64]snmpclient.Value, byIfIndex map[int64]store.Interface, now time.Time) map[string]store.MacAddressEntry {
	addrVals, err := sess.BulkWalk(oidDot1dTpFdbAddress)
	if err != nil {
		return nil
	}
	portVals, _ := sess.BulkWalk(oidDot1dTpFdbPort)
	portBySuffix := indexByMacSuffix(portVals, oidDot1dTpFdbPort)
	statusVals, _ := sess.BulkWalk(oidDot1dTpFdbStatus)
	statusBySuffix := indexByMacSuffix(statusVals, oidDot1dTpFdbStatus)

	out := make(map[string]store.MacAddressEntry)
	for _, v := range addrVals {
		if v.IsError {
			continue
		}
		mac := formatMacFromBytes(v.Str)
		if mac == "" || isNullOrBroadcast(mac) {
			continue
		}
		suffix := strings.Join(oidSuffixParts(v.OID, oidDot1dTpFdbAddress), ".")

		entryType := fdbStatusName[statusBySuffix[suffix].Int]
		if entryType == "" {
			entryType = "dynamic"
		}
		if entryType == "invalid" {
			continue
		}

		var interfaceID *int64
		if ifIndexVal, ok := bridgeToIfIndex[portBySuffix[suffix].Int]; ok {
			if iface, ok := byIfIndex[ifIndexVal.Int]; ok {
				id := iface.ID
				interfaceID = &id
			}
		}

		out[mac] = store.MacAddressEntry{
			DeviceID: d.ID, MacAddress: mac, InterfaceID: interfaceID,
			EntryType: entryType, FirstSeen: now, LastSeen: now,
		}
	}
	return out
}

func arpTable(sess *snmpclient.Session) map[string]string {
	vals, err := sess.BulkWalk(oidIPNetToMediaPhys)
	if err != nil {
		return nil
	}
	out := make(map[string]string)
	for _, v := range vals {
		if v.IsError {
			continue
		}
		mac := formatMacFromBytes(v.Str)
		if mac == "" {
			continue
		}
		parts := oidSuffixParts(v.OID, oidIPNetToMediaPhys)
		if len(parts) < 4 {
			continue
		}
		ip := strings.Join(parts[len(parts)-4:], ".")
		out[mac] = ip
	}
	return out
}

func lookupVendor(mac string) string {
	if len(mac) < 8 {
		return ""
	}
	return ouiVendors[strings.ToUpper(mac[:8])]
}

func isNullOrBroadcast(mac string) bool {
	return mac == nullMAC || mac == broadcastMAC
}

// oidSuffixParts returns the dot-separated index components of oid that
// follow prefix, or nil if oid is not rooted at prefix.
func oidSuffixParts(oid, prefix string) []string {
	oid = strings.TrimPrefix(oid, ".")
	prefix = strings.TrimPrefix(prefix, ".")
	if !strings.HasPrefix(oid, prefix) {
		return nil
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(oid, prefix), ".")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, ".")
}

// indexByMacSuffix keys vals by their 6-octet MAC index suffix, dropping any
// OID that doesn't carry exactly one.
func indexByMacSuffix(vals []snmpclient.Value, prefix string) map[string]snmpclient.Value {
	out := make(map[string]snmpclient.Value)
	for _, v := range vals {
		if v.IsError {
			continue
		}
		parts := oidSuffixParts(v.OID, prefix)
		if len(parts) != 6 {
			continue
		}
		out[strings.Join(parts, ".")] = v
	}
	return out
}

func macFromDecimalOctets(parts []string) (string, bool) {
	if len(parts) != 6 {
		return "", false
	}
	octets := make([]string, 6)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return "", false
		}
		octets[i] = fmt.Sprintf("%02X", n)
	}
	return strings.Join(octets, ":"), true
}

func formatMacFromBytes(raw string) string {
	b := []byte(raw)
	if len(b) != 6 {
		return ""
	}
	octets := make([]string, 6)
	for i, c := range b {
		octets[i] = fmt.Sprintf("%02X", c)
	}
	return strings.Join(octets, ":")
}
