// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package flowcollector

import (
	"encoding/binary"
	"net"
)

const (
	netflowHeaderSize = 24 // version, count, sys_uptime, unix_secs, unix_nsecs, flow_sequence, engine_type, engine_id, sampling_interval
	netflowRecordSize = 48 // standard NetFlow v5 flow record
)

// ParseNetFlowV5 decodes a NetFlow v5 datagram (§4.3). Datagrams with the
// wrong version, or shorter than the header, yield nil. A truncated
// trailing record ("fewer bytes remain than one more full record") simply
// stops iteration rather than erroring, so the complete records before it
// are still returned — a partial final record is not an attack, just a
// clipped read.
func ParseNetFlowV5(data []byte) []Record {
	if len(data) < netflowHeaderSize {
		return nil
	}
	version := binary.BigEndian.Uint16(data[0:2])
	if version != 5 {
		return nil
	}
	count := int(binary.BigEndian.Uint16(data[2:4]))

	records := make([]Record, 0, count)
	offset := netflowHeaderSize
	for i := 0; i < count; i++ {
		if offset+netflowRecordSize > len(data) {
			break
		}
		rec := data[offset : offset+netflowRecordSize]
		offset += netflowRecordSize

		srcIP := ipv4String(rec[0:4])
		dstIP := ipv4String(rec[4:8])
		first := binary.BigEndian.Uint32(rec[24:28])
		last := binary.BigEndian.Uint32(rec[28:32])
		duration := int64(last) - int64(first)
		if duration < 0 {
			duration = 0
		}
		srcPort := int(binary.BigEndian.Uint16(rec[32:34]))
		dstPort := int(binary.BigEndian.Uint16(rec[34:36]))
		tcpFlags := int(rec[37])
		protocol := int(rec[38])

		records = append(records, Record{
			SrcIP: srcIP, DstIP: dstIP, SrcPort: srcPort, DstPort: dstPort,
			Protocol: protocol, ProtocolName: protocolName(protocol),
			Bytes:       int64(binary.BigEndian.Uint32(rec[20:24])),
			Packets:     int64(binary.BigEndian.Uint32(rec[16:20])),
			DurationMs:  duration,
			TCPFlags:    tcpFlags,
			Application: detectApplication(srcPort, dstPort, protocol),
			FlowType:    "netflow_v5",
		})
	}
	return records
}

func ipv4String(b []byte) string {
	return net.IP(b).String()
}
