// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package snmppoller

import "testing"

func TestMacFromDecimalOctets(t *testing.T) {
	mac, ok := macFromDecimalOctets([]string{"0", "26", "183", "1", "2", "3"})
	if !ok {
		t.Fatal("expected ok")
	}
	if mac != "00:1A:B7:01:02:03" {
		t.Errorf("got %q", mac)
	}

	if _, ok := macFromDecimalOctets([]string{"1", "2", "3"}); ok {
		t.Error("expected short suffix to fail")
	}
	if _, ok := macFromDecimalOctets([]string{"0", "26", "183", "1", "2", "999"}); ok {
		t.Error("expected out-of-range octet to fail")
	}
}

func TestFormatMacFromBytes(t *testing.T) {
	mac := formatMacFromBytes(string([]byte{0x00, 0x1A, 0xB7, 0x01, 0x02, 0x03}))
	if mac != "00:1A:B7:01:02:03" {
		t.Errorf("got %q", mac)
	}
	if formatMacFromBytes("short") != "" {
		t.Error("expected empty for wrong-length input")
	}
}

func TestIsNullOrBroadcast(t *testing.T) {
	if !isNullOrBroadcast(nullMAC) || !isNullOrBroadcast(broadcastMAC) {
		t.Error("expected null and broadcast MACs to be flagged")
	}
	if isNullOrBroadcast("00:1A:B7:01:02:03") {
		t.Error("expected a real MAC to pass")
	}
}

func TestOidSuffixParts(t *testing.T) {
	parts := oidSuffixParts(".1.3.6.1.2.1.17.4.3.1.1.0.26.183.1.2.3", oidDot1dTpFdbAddress)
	if len(parts) != 6 {
		t.Fatalf("got %v", parts)
	}
	if parts[0] != "0" || parts[5] != "3" {
		t.Errorf("got %v", parts)
	}
	if oidSuffixParts(".1.2.3", oidDot1dTpFdbAddress) != nil {
		t.Error("expected nil for non-matching prefix")
	}
}

func TestLookupVendor(t *testing.T) {
	if lookupVendor("00:1C:73:11:22:33") != "Arista" {
		t.Error("expected Arista vendor match")
	}
	if lookupVendor("DE:AD:BE:EF:00:00") != "" {
		t.Error("expected empty vendor for unknown prefix")
	}
}
