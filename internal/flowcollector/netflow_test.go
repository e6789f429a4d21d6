// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package flowcollector

import (
	"encoding/binary"
	"testing"
)

func buildNetFlowV5Datagram(t *testing.T, records int) []byte {
	t.Helper()
	buf := make([]byte, netflowHeaderSize+records*netflowRecordSize)
	binary.BigEndian.PutUint16(buf[0:2], 5)
	binary.BigEndian.PutUint16(buf[2:4], uint16(records))

	off := netflowHeaderSize
	for i := 0; i < records; i++ {
		rec := buf[off : off+netflowRecordSize]
		copy(rec[0:4], []byte{10, 0, 0, byte(1 + i)})
		copy(rec[4:8], []byte{10, 0, 0, 254})
		binary.BigEndian.PutUint32(rec[16:20], 5)   // dPkts
		binary.BigEndian.PutUint32(rec[20:24], 1500) // dOctets
		binary.BigEndian.PutUint32(rec[24:28], 1000) // First
		binary.BigEndian.PutUint32(rec[28:32], 1500) // Last
		binary.BigEndian.PutUint16(rec[32:34], 443)
		binary.BigEndian.PutUint16(rec[34:36], 51000)
		rec[38] = 6 // TCP
		off += netflowRecordSize
	}
	return buf
}

func TestParseNetFlowV5MinimalDatagram(t *testing.T) {
	data := buildNetFlowV5Datagram(t, 2)
	records := ParseNetFlowV5(data)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	r := records[0]
	if r.SrcIP != "10.0.0.1" || r.DstIP != "10.0.0.254" {
		t.Fatalf("unexpected addresses: %+v", r)
	}
	if r.Bytes != 1500 || r.Packets != 5 || r.DurationMs != 500 {
		t.Fatalf("unexpected counters: %+v", r)
	}
	if r.ProtocolName != "TCP" || r.FlowType != "netflow_v5" {
		t.Fatalf("unexpected classification: %+v", r)
	}
	if r.Application != "HTTPS" {
		t.Fatalf("got application %q, want HTTPS (src port 443)", r.Application)
	}
}

func TestParseNetFlowV5RejectsWrongVersion(t *testing.T) {
	data := buildNetFlowV5Datagram(t, 1)
	binary.BigEndian.PutUint16(data[0:2], 9) // NetFlow v9 header, not supported
	if got := ParseNetFlowV5(data); got != nil {
		t.Fatalf("expected nil for wrong version, got %+v", got)
	}
}

func TestParseNetFlowV5TruncatedDatagramStopsCleanly(t *testing.T) {
	data := buildNetFlowV5Datagram(t, 2)
	truncated := data[:netflowHeaderSize+netflowRecordSize+10] // second record cut short
	records := ParseNetFlowV5(truncated)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (truncated second record dropped)", len(records))
	}
}

func TestParseNetFlowV5RejectsShortHeader(t *testing.T) {
	if got := ParseNetFlowV5([]byte{0, 5, 0, 1}); got != nil {
		t.Fatalf("expected nil for undersized header, got %+v", got)
	}
}
