// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package geoip

import (
	"net"
	"testing"
)

func TestLookupableFiltersPrivateAndLoopback(t *testing.T) {
	cases := []struct {
		ip   string
		want bool
	}{
		{"8.8.8.8", true},
		{"1.1.1.1", true},
		{"10.0.0.1", false},
		{"192.168.1.1", false},
		{"172.16.0.1", false},
		{"127.0.0.1", false},
		{"not-an-ip", false},
	}
	for _, tc := range cases {
		got := lookupable(net.ParseIP(tc.ip))
		if got != tc.want {
			t.Errorf("lookupable(%q) = %v, want %v", tc.ip, got, tc.want)
		}
	}
}
