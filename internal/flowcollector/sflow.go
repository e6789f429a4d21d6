// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package flowcollector

import (
	"encoding/binary"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/grimm-is/netmond/internal/logging"
)

// ParseSFlowV5 decodes an sFlow v5 datagram (§4.3): header, then samples,
// handling only enterprise=0 flow_sample/expanded_flow_sample (format 1/3)
// and within those only raw-packet-header records (format 1). Counter
// samples (format 2/4) are silently skipped — expected, not an error.
func ParseSFlowV5(data []byte, log *logging.Logger) []Record {
	if len(data) < 28 {
		return nil
	}
	if log == nil {
		log = logging.Default()
	}

	offset := 0
	version := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	if version != 5 {
		return nil
	}
	agentAddrType := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	switch agentAddrType {
	case 1:
		offset += 4
	case 2:
		offset += 16
	default:
		log.Debug("sflow: unsupported agent address type", "type", agentAddrType)
		return nil
	}
	if offset+16 > len(data) {
		return nil
	}
	offset += 12 // sub_agent_id + sequence_number + uptime
	numSamples := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4

	var records []Record
	for i := 0; i < numSamples; i++ {
		if offset+8 > len(data) {
			break
		}
		sampleType := binary.BigEndian.Uint32(data[offset : offset+4])
		offset += 4
		sampleLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		offset += 4
		sampleEnd := offset + sampleLen
		if sampleEnd > len(data) {
			break
		}

		enterprise, format := sampleType>>12, sampleType&0xFFF
		switch {
		case enterprise == 0 && (format == 1 || format == 3):
			records = append(records, parseFlowSample(data, offset, sampleEnd, format == 3)...)
		case enterprise == 0 && (format == 2 || format == 4):
			// counter sample: expected, skip
		default:
			log.Debug("sflow: unknown sample type", "enterprise", enterprise, "format", format)
		}
		offset = sampleEnd
	}
	return records
}

func parseFlowSample(data []byte, offset, end int, expanded bool) []Record {
	minSize := 28
	if expanded {
		minSize = 32
	}
	if offset+minSize > end {
		return nil
	}
	offset += 4 // sequence_number
	if expanded {
		offset += 8 // source_id_type + source_id_index
	} else {
		offset += 4 // source_id
	}
	if offset+4 > end {
		return nil
	}
	samplingRate := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4
	offset += 8 // sample_pool + drops
	if expanded {
		offset += 16 // input/output if_format + if_value x2
	} else {
		offset += 8 // input_if + output_if
	}
	if offset+4 > end {
		return nil
	}
	numRecords := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4

	var records []Record
	for i := 0; i < numRecords; i++ {
		if offset+8 > end {
			break
		}
		recordType := binary.BigEndian.Uint32(data[offset : offset+4])
		offset += 4
		recordLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		offset += 4
		recordEnd := offset + recordLen
		if recordEnd > end {
			break
		}
		enterprise, format := recordType>>12, recordType&0xFFF
		if enterprise == 0 && format == 1 {
			if rec, ok := parseRawHeaderRecord(data, offset, recordEnd, samplingRate); ok {
				records = append(records, rec)
			}
		}
		offset = recordEnd
	}
	return records
}

func parseRawHeaderRecord(data []byte, offset, end, samplingRate int) (Record, bool) {
	if offset+16 > end {
		return Record{}, false
	}
	headerProtocol := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	frameLength := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4
	offset += 4 // stripped
	headerSize := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if offset+headerSize > end || offset+headerSize > len(data) {
		return Record{}, false
	}
	headerData := data[offset : offset+headerSize]

	rate := samplingRate
	if rate < 1 {
		rate = 1
	}

	switch headerProtocol {
	case 1: // Ethernet
		return decodeEthernetHeader(headerData, frameLength, rate)
	case 11: // raw IPv4
		return decodeIPPacket(gopacket.NewPacket(headerData, layers.LayerTypeIPv4, gopacket.NoCopy), frameLength, rate)
	default:
		return Record{}, false
	}
}

// decodeEthernetHeader decodes the inner Ethernet/IP/TCP/UDP headers
// embedded in a raw-packet-header sFlow record using gopacket's layer
// decoders, rather than hand-rolled offset math.
func decodeEthernetHeader(headerData []byte, frameLength, rate int) (Record, bool) {
	packet := gopacket.NewPacket(headerData, layers.LayerTypeEthernet, gopacket.NoCopy)
	return decodeIPPacket(packet, frameLength, rate)
}

func decodeIPPacket(packet gopacket.Packet, frameLength, rate int) (Record, bool) {
	var srcIP, dstIP string
	var protocol int

	if v4 := packet.Layer(layers.LayerTypeIPv4); v4 != nil {
		ip := v4.(*layers.IPv4)
		srcIP, dstIP = ip.SrcIP.String(), ip.DstIP.String()
		protocol = int(ip.Protocol)
	} else if v6 := packet.Layer(layers.LayerTypeIPv6); v6 != nil {
		ip := v6.(*layers.IPv6)
		srcIP, dstIP = ip.SrcIP.String(), ip.DstIP.String()
		protocol = int(ip.NextHeader)
	} else {
		return Record{}, false
	}

	var srcPort, dstPort, tcpFlags int
	if tcp := packet.Layer(layers.LayerTypeTCP); tcp != nil {
		t := tcp.(*layers.TCP)
		srcPort, dstPort = int(t.SrcPort), int(t.DstPort)
		tcpFlags = tcpFlagsByte(t)
	} else if udp := packet.Layer(layers.LayerTypeUDP); udp != nil {
		u := udp.(*layers.UDP)
		srcPort, dstPort = int(u.SrcPort), int(u.DstPort)
	}

	return Record{
		SrcIP: srcIP, DstIP: dstIP, SrcPort: srcPort, DstPort: dstPort,
		Protocol: protocol, ProtocolName: protocolName(protocol),
		Packets: int64(rate), Bytes: int64(frameLength) * int64(rate), DurationMs: 0,
		TCPFlags:    tcpFlags,
		Application: detectApplication(srcPort, dstPort, protocol),
		FlowType:    "sflow",
	}, true
}

func tcpFlagsByte(t *layers.TCP) int {
	var flags int
	if t.FIN {
		flags |= 1 << 0
	}
	if t.SYN {
		flags |= 1 << 1
	}
	if t.RST {
		flags |= 1 << 2
	}
	if t.PSH {
		flags |= 1 << 3
	}
	if t.ACK {
		flags |= 1 << 4
	}
	if t.URG {
		flags |= 1 << 5
	}
	if t.ECE {
		flags |= 1 << 6
	}
	if t.CWR {
		flags |= 1 << 7
	}
	return flags
}
