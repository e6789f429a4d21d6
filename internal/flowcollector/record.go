// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package flowcollector

// Record is a parsed flow, prior to device attribution and geoip
// enrichment (§4.3).
type Record struct {
	SrcIP   string
	DstIP   string
	SrcPort int
	DstPort int

	Protocol     int
	ProtocolName string

	Bytes      int64
	Packets    int64
	DurationMs int64
	TCPFlags   int

	Application string
	FlowType    string // netflow_v5, sflow
}
