// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package snmppoller

// Standard MIB-II and IF-MIB OIDs used by poll_device (§4.2).
const (
	oidSysUptime  = "1.3.6.1.2.1.1.3.0"
	oidSysName    = "1.3.6.1.2.1.1.5.0"
	oidCPU5Min    = "1.3.6.1.4.1.9.2.1.58.0" // Cisco-specific; best-effort

	oidIfDescr   = "1.3.6.1.2.1.2.2.1.2"
	oidIfAdmin   = "1.3.6.1.2.1.2.2.1.7"
	oidIfOper    = "1.3.6.1.2.1.2.2.1.8"
	oidIfInOctets  = "1.3.6.1.2.1.2.2.1.10"
	oidIfOutOctets = "1.3.6.1.2.1.2.2.1.16"
	oidIfAlias     = "1.3.6.1.2.1.31.1.1.1.18"
	oidIfHighSpeed = "1.3.6.1.2.1.31.1.1.1.15" // Mbps
	oidIfHCInOctets  = "1.3.6.1.2.1.31.1.1.1.6"
	oidIfHCOutOctets = "1.3.6.1.2.1.31.1.1.1.10"
)
