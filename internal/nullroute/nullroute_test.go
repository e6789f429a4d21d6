// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nullroute

import (
	"testing"

	"github.com/grimm-is/netmond/internal/errors"
)

func TestHostAddressRejectsWideCIDR(t *testing.T) {
	_, err := hostAddress("10.0.0.0/24")
	if err == nil {
		t.Fatal("expected error for non-host CIDR")
	}
	if errors.GetKind(err) != errors.KindValidation {
		t.Fatalf("got kind %v, want KindValidation", errors.GetKind(err))
	}
}

func TestHostAddressRejectsIPv6(t *testing.T) {
	_, err := hostAddress("::1/128")
	if err == nil {
		t.Fatal("expected error for ipv6 address")
	}
}

func TestHostAddressAcceptsHostCIDR(t *testing.T) {
	v4, err := hostAddress("203.0.113.5/32")
	if err != nil {
		t.Fatalf("hostAddress: %v", err)
	}
	if v4.String() != "203.0.113.5" {
		t.Fatalf("got %s, want 203.0.113.5", v4.String())
	}
}

func TestHostAddressRejectsMalformed(t *testing.T) {
	if _, err := hostAddress("not-a-cidr"); err == nil {
		t.Fatal("expected error for malformed cidr")
	}
}
