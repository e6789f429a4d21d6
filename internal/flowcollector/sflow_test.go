// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package flowcollector

import (
	"encoding/binary"
	"net"
	"testing"
)

// buildEthernetIPv4UDP builds a minimal Ethernet+IPv4+UDP header, the kind
// sFlow embeds (truncated, usually just the headers) in a raw-packet-header
// record.
func buildEthernetIPv4UDP(srcIP, dstIP string, srcPort, dstPort uint16) []byte {
	buf := make([]byte, 14+20+8)

	// Ethernet: dst mac, src mac, ethertype=IPv4
	copy(buf[0:6], []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})
	copy(buf[6:12], []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66})
	binary.BigEndian.PutUint16(buf[12:14], 0x0800)

	ip := buf[14:34]
	ip[0] = 0x45 // version 4, IHL 5
	ip[9] = 17   // protocol UDP
	copy(ip[12:16], net.ParseIP(srcIP).To4())
	copy(ip[16:20], net.ParseIP(dstIP).To4())

	udp := buf[34:42]
	binary.BigEndian.PutUint16(udp[0:2], srcPort)
	binary.BigEndian.PutUint16(udp[2:4], dstPort)

	return buf
}

func buildSFlowV5Datagram(t *testing.T, headerData []byte, samplingRate uint32) []byte {
	t.Helper()

	record := make([]byte, 16+len(headerData))
	binary.BigEndian.PutUint32(record[0:4], 1) // header_protocol=Ethernet
	binary.BigEndian.PutUint32(record[4:8], uint32(len(headerData)+4))
	binary.BigEndian.PutUint32(record[8:12], 0) // stripped
	binary.BigEndian.PutUint32(record[12:16], uint32(len(headerData)))
	copy(record[16:], headerData)

	sample := make([]byte, 32+8+len(record))
	binary.BigEndian.PutUint32(sample[0:4], 1)            // sequence_number
	binary.BigEndian.PutUint32(sample[4:8], 1)             // source_id
	binary.BigEndian.PutUint32(sample[8:12], samplingRate) // sampling_rate
	binary.BigEndian.PutUint32(sample[12:16], 0)           // sample_pool
	binary.BigEndian.PutUint32(sample[16:20], 0)           // drops
	binary.BigEndian.PutUint32(sample[20:24], 1)           // input_if
	binary.BigEndian.PutUint32(sample[24:28], 0)           // output_if
	binary.BigEndian.PutUint32(sample[28:32], 1)           // num_records
	binary.BigEndian.PutUint32(sample[32:36], 1)           // record_type = format 1
	binary.BigEndian.PutUint32(sample[36:40], uint32(len(record)))
	copy(sample[40:], record)

	datagram := make([]byte, 28+8+len(sample))
	binary.BigEndian.PutUint32(datagram[0:4], 5) // version
	binary.BigEndian.PutUint32(datagram[4:8], 1) // agent address type = IPv4
	copy(datagram[8:12], net.ParseIP("192.0.2.1").To4())
	binary.BigEndian.PutUint32(datagram[12:16], 1)  // sub_agent_id
	binary.BigEndian.PutUint32(datagram[16:20], 100) // sequence_number
	binary.BigEndian.PutUint32(datagram[20:24], 5000) // uptime
	binary.BigEndian.PutUint32(datagram[24:28], 1)  // num_samples
	binary.BigEndian.PutUint32(datagram[28:32], 1)  // sample_type = flow_sample
	binary.BigEndian.PutUint32(datagram[32:36], uint32(len(sample)))
	copy(datagram[36:], sample)

	return datagram
}

func TestParseSFlowV5FlowSampleRawPacketHeader(t *testing.T) {
	inner := buildEthernetIPv4UDP("203.0.113.5", "198.51.100.9", 51000, 53)
	datagram := buildSFlowV5Datagram(t, inner, 100)

	records := ParseSFlowV5(datagram, nil)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	r := records[0]
	if r.SrcIP != "203.0.113.5" || r.DstIP != "198.51.100.9" {
		t.Fatalf("unexpected addresses: %+v", r)
	}
	if r.DstPort != 53 || r.Application != "DNS" {
		t.Fatalf("unexpected classification: %+v", r)
	}
	if r.Packets != 100 {
		t.Fatalf("got packets=%d, want sampling_rate=100", r.Packets)
	}
	if r.FlowType != "sflow" {
		t.Fatalf("got flow type %q, want sflow", r.FlowType)
	}
}

func TestParseSFlowV5ZeroSamplingRateFloorsToOne(t *testing.T) {
	inner := buildEthernetIPv4UDP("203.0.113.5", "198.51.100.9", 51000, 53)
	datagram := buildSFlowV5Datagram(t, inner, 0)

	records := ParseSFlowV5(datagram, nil)
	if len(records) != 1 || records[0].Packets != 1 {
		t.Fatalf("expected sampling rate floored to 1, got %+v", records)
	}
}

func TestParseSFlowV5RejectsWrongVersion(t *testing.T) {
	inner := buildEthernetIPv4UDP("203.0.113.5", "198.51.100.9", 51000, 53)
	datagram := buildSFlowV5Datagram(t, inner, 1)
	binary.BigEndian.PutUint32(datagram[0:4], 4)
	if got := ParseSFlowV5(datagram, nil); got != nil {
		t.Fatalf("expected nil for wrong version, got %+v", got)
	}
}

func TestParseSFlowV5TruncatedDatagramDoesNotPanic(t *testing.T) {
	inner := buildEthernetIPv4UDP("203.0.113.5", "198.51.100.9", 51000, 53)
	datagram := buildSFlowV5Datagram(t, inner, 1)
	for _, cut := range []int{0, 10, 27, 28, 40, len(datagram) - 5} {
		if cut > len(datagram) {
			continue
		}
		_ = ParseSFlowV5(datagram[:cut], nil)
	}
}
