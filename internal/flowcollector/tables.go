// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package flowcollector

import "strconv"

// protocolNames maps IP protocol numbers to their common name, used to
// populate FlowRecord.ProtocolName (§4.3).
var protocolNames = map[int]string{
	1: "ICMP", 6: "TCP", 17: "UDP", 47: "GRE",
	50: "ESP", 51: "AH", 89: "OSPF", 132: "SCTP",
}

// portApps maps well-known ports to application names for the derived
// FlowRecord.Application field.
var portApps = map[int]string{
	80: "HTTP", 443: "HTTPS", 22: "SSH", 23: "Telnet",
	25: "SMTP", 53: "DNS", 110: "POP3", 143: "IMAP",
	3306: "MySQL", 5432: "PostgreSQL", 6379: "Redis",
	161: "SNMP", 162: "SNMP-Trap", 389: "LDAP", 636: "LDAPS",
	8080: "HTTP-Alt", 8443: "HTTPS-Alt", 3389: "RDP", 5900: "VNC",
}

func protocolName(p int) string {
	if n, ok := protocolNames[p]; ok {
		return n
	}
	return strconv.Itoa(p)
}

// detectApplication checks the destination port first, then the source
// port (§4.3: "dst port first, then src port").
func detectApplication(srcPort, dstPort, protocol int) string {
	if protocol == 1 {
		return "ICMP"
	}
	if app, ok := portApps[dstPort]; ok {
		return app
	}
	if app, ok := portApps[srcPort]; ok {
		return app
	}
	return "port/" + strconv.Itoa(dstPort)
}
