// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package snmppoller

import (
	"testing"

	"github.com/grimm-is/netmond/internal/snmpclient"
)

func TestWrapCorrectNormalIncrement(t *testing.T) {
	if got := wrapCorrect(2000, 1000); got != 1000 {
		t.Fatalf("got %d, want 1000", got)
	}
}

func TestWrapCorrectHandlesCounterWrap(t *testing.T) {
	const max64 = ^uint64(0)
	previous := max64 - 499 // 500 away from wrapping
	current := uint64(500)  // wrapped around and advanced 1000 total

	got := wrapCorrect(current, previous)
	if got != 1000 {
		t.Fatalf("got %d, want 1000 (500 to wrap + 500 after)", got)
	}
}

func TestLastOIDComponent(t *testing.T) {
	idx, ok := lastOIDComponent(".1.3.6.1.2.1.31.1.1.1.6.42")
	if !ok || idx != 42 {
		t.Fatalf("got (%d, %v), want (42, true)", idx, ok)
	}

	if _, ok := lastOIDComponent(""); ok {
		t.Fatal("expected ok=false for empty OID")
	}
}

func TestIndexByLastOIDSkipsErrorsAndPropagatesErr(t *testing.T) {
	vals := []snmpclient.Value{
		{OID: ".1.3.6.1.2.1.2.2.1.10.1", Uint: 100},
		{OID: ".1.3.6.1.2.1.2.2.1.10.2", IsError: true},
	}
	m := indexByLastOID(vals, nil)
	if len(m) != 1 || m[1].Uint != 100 {
		t.Fatalf("unexpected map: %+v", m)
	}

	m = indexByLastOID(vals, errSentinel)
	if len(m) != 0 {
		t.Fatalf("expected empty map on walk error, got %+v", m)
	}
}

var errSentinel = &walkError{}

type walkError struct{}

func (*walkError) Error() string { return "walk failed" }
