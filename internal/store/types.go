// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import "time"

// Device is a monitored network element (§3).
type Device struct {
	ID         int64
	Hostname   string
	IPAddress  string
	DeviceType string // spine, leaf, tor, switch, access, distribution, core, router, firewall, pdu

	SNMPCommunity  string
	SNMPv3User     string
	SNMPv3AuthKey  string // encrypted at rest via internal/secrets
	SNMPv3PrivKey  string // encrypted at rest via internal/secrets
	APIUsername    string
	APIPassword    string // encrypted at rest via internal/secrets

	Status         string // up, down, degraded, unknown
	Uptime         time.Duration
	CPUUsage       float64
	MemoryUsage    float64
	RTTMs          float64
	PacketLossPct  float64
	LastSeen       time.Time

	IsActive       bool
	PollingEnabled bool
	FlowEnabled    bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interface belongs to exactly one Device.
type Interface struct {
	ID         int64
	DeviceID   int64
	IfIndex    *int64 // nullable: manually created interfaces have no SNMP ifIndex
	Name       string
	Alias      string
	SpeedBps   int64
	AdminStatus string
	OperStatus  string
	LastChange  time.Time

	IsMonitored bool
	IsWAN       bool
	IsUplink    bool
}

// InterfaceMetric is one time-series sample for an Interface.
type InterfaceMetric struct {
	ID           int64
	InterfaceID  int64
	Timestamp    time.Time

	InOctets      uint64
	OutOctets     uint64
	InPackets     uint64
	OutPackets    uint64
	InErrors      uint64
	OutErrors     uint64
	InDiscards    uint64
	OutDiscards   uint64
	InBroadcast   uint64
	InMulticast   uint64

	InBps          float64
	OutBps         float64
	UtilizationIn  float64
	UtilizationOut float64
	PPS            float64
}

// PingMetric is one ICMP probe result for a Device (§4 Ping Monitor).
type PingMetric struct {
	ID        int64
	DeviceID  int64
	Timestamp time.Time

	RTTMinMs *float64
	RTTAvgMs *float64
	RTTMaxMs *float64

	PacketLossPct    float64
	PacketsSent      int
	PacketsReceived  int
	Status           string // ok, loss, timeout
}

// FlowRecord is a single observed flow (§3, §4.3).
type FlowRecord struct {
	ID         int64
	DeviceID   *int64
	Timestamp  time.Time

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

	SrcCountry string // supplemented: §1.3 geoip enrichment
	DstCountry string
}

// FlowSummary5m is a pre-aggregated 5-minute flow bucket.
type FlowSummary5m struct {
	Bucket       int64 // floor(epoch/300)*300
	DeviceID     *int64
	SrcIP        string
	DstIP        string
	SrcPort      int
	DstPort      int
	ProtocolName string
	Application  string

	Bytes     int64
	Packets   int64
	FlowCount int64
}

// PduMetric is a time-series sample for a PDU device.
type PduMetric struct {
	ID              int64
	DeviceID        int64
	Timestamp       time.Time
	TotalPowerWatts float64
	EnergyKWh       float64
	ApparentPowerVA float64
	PowerFactor     float64
	LoadPct         float64
	TemperatureC    *float64
	HumidityPct     *float64
}

// PduBank is a current-state row, unique per (device_id, number).
type PduBank struct {
	ID               int64
	DeviceID         int64
	Number           int
	OverloadThreshold float64
}

// PduBankMetric is a time-series sample for a PduBank.
type PduBankMetric struct {
	ID         int64
	BankID     int64
	Timestamp  time.Time
	CurrentAmps float64
	PowerWatts  float64
	LoadPct     float64
}

// PduOutlet is a current-state row, unique per (device_id, number).
type PduOutlet struct {
	ID       int64
	DeviceID int64
	Number   int
	Name     string
	State    string // on, off
}

// MacAddressEntry is a current-state row, unique per (device_id, mac_address).
type MacAddressEntry struct {
	ID          int64
	DeviceID    int64
	MacAddress  string
	InterfaceID *int64
	VlanID      *int
	IPAddress   string
	Hostname    string
	Vendor      string
	EntryType   string // dynamic, static, other, invalid, self
	FirstSeen   time.Time
	LastSeen    time.Time
}

// MlagDomain is a current-state row, unique per device_id.
type MlagDomain struct {
	ID             int64
	DeviceID       int64
	DomainID       string
	LocalRole      string
	PeerAddress    string
	PeerLinkStatus string
}

// MlagInterface is a child row of MlagDomain, unique per (domain_id, mlag_id).
type MlagInterface struct {
	ID             int64
	DomainID       int64
	MlagID         int
	LocalInterface string
	Status         string
}

// AlertRule is a device-scoped instantaneous rule (§3, §4.5).
type AlertRule struct {
	ID          int64
	Name        string
	Metric      string // device_status, cpu_usage, memory_usage, if_utilization_in, if_utilization_out, if_status, if_errors
	Condition   string // gt, gte, lt, lte, eq, ne

	Threshold         *float64 // legacy single threshold
	WarningThreshold  *float64
	CriticalThreshold *float64
	DefaultSeverity   string

	CooldownMinutes int
	EmailSink       string
	WebhookSink     string

	DeviceID    *int64
	InterfaceID *int64

	IsActive bool
}

// WanAlertRule is an aggregate rule over WAN interfaces (§4.5.1).
type WanAlertRule struct {
	ID               int64
	Name             string
	Metric           string // p95_in, p95_out, p95_max, max_in, max_out, avg_in, avg_out, commitment_pct
	Condition        string // gt, gte, lt, lte, eq, ne
	LookbackMinutes  int
	WarningThreshold  *float64
	CriticalThreshold *float64
	EmailSink        string
	WebhookSink      string
	IsActive         bool
}

// PowerAlertRule is an aggregate rule over PDU devices (§4.5.2).
type PowerAlertRule struct {
	ID               int64
	Name             string
	Metric           string // total_power, avg_load, max_load, max_temp, avg_temp, budget_pct
	Condition        string // gt, gte, lt, lte, eq, ne
	LookbackMinutes  int
	WarningThreshold  *float64
	CriticalThreshold *float64
	EmailSink        string
	WebhookSink      string
	IsActive         bool
}

// AlertEvent is a lifecycle row. Exactly one of RuleID/WanRuleID/PowerRuleID
// is non-nil (§3 invariant).
type AlertEvent struct {
	ID           int64
	RuleID       *int64
	WanRuleID    *int64
	PowerRuleID  *int64
	DeviceID     *int64

	Severity      string
	Status        string // open, acknowledged, resolved
	Message       string
	MetricValue   float64
	ThresholdValue float64

	TriggeredAt    time.Time
	AcknowledgedAt *time.Time
	AcknowledgedBy string
	ResolvedAt     *time.Time
	Notes          string
}

// PortStateChange is an append-only transition record (§3).
type PortStateChange struct {
	ID          int64
	InterfaceID int64
	OldStatus   string
	NewStatus   string
	ChangedAt   time.Time
}

// OwnedSubnet is a CIDR owned by the network, learned or manually declared.
type OwnedSubnet struct {
	ID       int64
	CIDR     string
	Source   string // learned, manual
	IsActive bool
}

// SystemSetting is a key/value configuration row, some secret.
type SystemSetting struct {
	Key       string
	Value     string
	IsSecret  bool
	UpdatedBy string
}
