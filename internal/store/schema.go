// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

// migrate applies the full schema idempotently. Every statement is
// CREATE TABLE/INDEX IF NOT EXISTS so repeated Opens against an existing
// database are no-ops, matching the teacher's analytics.initSchema idiom.
// Timestamps are stored as Unix seconds (INTEGER), consistent with the
// teacher's flow_summaries table.
func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS device (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hostname TEXT NOT NULL,
		ip_address TEXT NOT NULL UNIQUE,
		device_type TEXT NOT NULL,
		snmp_community TEXT,
		snmpv3_user TEXT,
		snmpv3_auth_key TEXT,
		snmpv3_priv_key TEXT,
		api_username TEXT,
		api_password TEXT,
		status TEXT NOT NULL DEFAULT 'unknown',
		uptime_seconds INTEGER DEFAULT 0,
		cpu_usage REAL DEFAULT 0,
		memory_usage REAL DEFAULT 0,
		rtt_ms REAL DEFAULT 0,
		packet_loss_pct REAL DEFAULT 0,
		last_seen INTEGER,
		is_active INTEGER NOT NULL DEFAULT 1,
		polling_enabled INTEGER NOT NULL DEFAULT 1,
		flow_enabled INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_device_active ON device(is_active);
	CREATE INDEX IF NOT EXISTS idx_device_type ON device(device_type);

	CREATE TABLE IF NOT EXISTS interface (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL REFERENCES device(id) ON DELETE CASCADE,
		if_index INTEGER,
		name TEXT NOT NULL,
		alias TEXT,
		speed_bps INTEGER DEFAULT 0,
		admin_status TEXT,
		oper_status TEXT,
		last_change INTEGER,
		is_monitored INTEGER NOT NULL DEFAULT 1,
		is_wan INTEGER NOT NULL DEFAULT 0,
		is_uplink INTEGER NOT NULL DEFAULT 0,
		UNIQUE(device_id, if_index)
	);
	CREATE INDEX IF NOT EXISTS idx_interface_device ON interface(device_id);
	CREATE INDEX IF NOT EXISTS idx_interface_wan ON interface(is_wan);

	CREATE TABLE IF NOT EXISTS interface_metric (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		interface_id INTEGER NOT NULL REFERENCES interface(id) ON DELETE CASCADE,
		timestamp INTEGER NOT NULL,
		in_octets INTEGER DEFAULT 0,
		out_octets INTEGER DEFAULT 0,
		in_packets INTEGER DEFAULT 0,
		out_packets INTEGER DEFAULT 0,
		in_errors INTEGER DEFAULT 0,
		out_errors INTEGER DEFAULT 0,
		in_discards INTEGER DEFAULT 0,
		out_discards INTEGER DEFAULT 0,
		in_broadcast INTEGER DEFAULT 0,
		in_multicast INTEGER DEFAULT 0,
		in_bps REAL DEFAULT 0,
		out_bps REAL DEFAULT 0,
		utilization_in REAL DEFAULT 0,
		utilization_out REAL DEFAULT 0,
		pps REAL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_ifmetric_iface_time ON interface_metric(interface_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_ifmetric_time ON interface_metric(timestamp);

	CREATE TABLE IF NOT EXISTS port_state_change (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		interface_id INTEGER NOT NULL REFERENCES interface(id) ON DELETE CASCADE,
		old_status TEXT,
		new_status TEXT,
		changed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_portstate_iface_time ON port_state_change(interface_id, changed_at);

	CREATE TABLE IF NOT EXISTS ping_metric (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL REFERENCES device(id) ON DELETE CASCADE,
		timestamp INTEGER NOT NULL,
		rtt_min_ms REAL,
		rtt_avg_ms REAL,
		rtt_max_ms REAL,
		packet_loss_pct REAL DEFAULT 0,
		packets_sent INTEGER DEFAULT 0,
		packets_received INTEGER DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'unknown'
	);
	CREATE INDEX IF NOT EXISTS idx_pingmetric_device_time ON ping_metric(device_id, timestamp);

	CREATE TABLE IF NOT EXISTS flow_record (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER REFERENCES device(id),
		timestamp INTEGER NOT NULL,
		src_ip TEXT,
		dst_ip TEXT,
		src_port INTEGER,
		dst_port INTEGER,
		protocol INTEGER,
		protocol_name TEXT,
		bytes INTEGER DEFAULT 0,
		packets INTEGER DEFAULT 0,
		duration_ms INTEGER DEFAULT 0,
		tcp_flags INTEGER DEFAULT 0,
		application TEXT,
		flow_type TEXT NOT NULL,
		src_country TEXT,
		dst_country TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_flowrecord_time ON flow_record(timestamp);
	CREATE INDEX IF NOT EXISTS idx_flowrecord_device_time ON flow_record(device_id, timestamp);

	CREATE TABLE IF NOT EXISTS flow_summary_5m (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bucket INTEGER NOT NULL,
		device_id INTEGER REFERENCES device(id),
		src_ip TEXT,
		dst_ip TEXT,
		src_port INTEGER,
		dst_port INTEGER,
		protocol_name TEXT,
		application TEXT,
		bytes INTEGER DEFAULT 0,
		packets INTEGER DEFAULT 0,
		flow_count INTEGER DEFAULT 0,
		UNIQUE(bucket, device_id, src_ip, dst_ip, src_port, dst_port, protocol_name, application)
	);
	CREATE INDEX IF NOT EXISTS idx_flowsummary_bucket ON flow_summary_5m(bucket);

	CREATE TABLE IF NOT EXISTS pdu_metric (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL REFERENCES device(id) ON DELETE CASCADE,
		timestamp INTEGER NOT NULL,
		total_power_watts REAL DEFAULT 0,
		energy_kwh REAL DEFAULT 0,
		apparent_power_va REAL DEFAULT 0,
		power_factor REAL DEFAULT 0,
		load_pct REAL DEFAULT 0,
		temperature_c REAL,
		humidity_pct REAL
	);
	CREATE INDEX IF NOT EXISTS idx_pdumetric_device_time ON pdu_metric(device_id, timestamp);

	CREATE TABLE IF NOT EXISTS pdu_bank (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL REFERENCES device(id) ON DELETE CASCADE,
		number INTEGER NOT NULL,
		overload_threshold REAL DEFAULT 0,
		UNIQUE(device_id, number)
	);

	CREATE TABLE IF NOT EXISTS pdu_bank_metric (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bank_id INTEGER NOT NULL REFERENCES pdu_bank(id) ON DELETE CASCADE,
		timestamp INTEGER NOT NULL,
		current_amps REAL DEFAULT 0,
		power_watts REAL DEFAULT 0,
		load_pct REAL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_bankmetric_bank_time ON pdu_bank_metric(bank_id, timestamp);

	CREATE TABLE IF NOT EXISTS pdu_outlet (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL REFERENCES device(id) ON DELETE CASCADE,
		number INTEGER NOT NULL,
		name TEXT,
		state TEXT,
		UNIQUE(device_id, number)
	);

	CREATE TABLE IF NOT EXISTS mac_address_entry (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL REFERENCES device(id) ON DELETE CASCADE,
		mac_address TEXT NOT NULL,
		interface_id INTEGER REFERENCES interface(id) ON DELETE SET NULL,
		vlan_id INTEGER,
		ip_address TEXT,
		hostname TEXT,
		vendor TEXT,
		entry_type TEXT NOT NULL DEFAULT 'dynamic',
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		UNIQUE(device_id, mac_address)
	);

	CREATE TABLE IF NOT EXISTS mlag_domain (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL REFERENCES device(id) ON DELETE CASCADE,
		domain_id TEXT NOT NULL,
		local_role TEXT,
		peer_address TEXT,
		peer_link_status TEXT,
		UNIQUE(device_id)
	);

	CREATE TABLE IF NOT EXISTS mlag_interface (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain_id INTEGER NOT NULL REFERENCES mlag_domain(id) ON DELETE CASCADE,
		mlag_id INTEGER NOT NULL,
		local_interface TEXT,
		status TEXT,
		UNIQUE(domain_id, mlag_id)
	);

	CREATE TABLE IF NOT EXISTS alert_rule (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		metric TEXT NOT NULL,
		condition TEXT NOT NULL,
		threshold REAL,
		warning_threshold REAL,
		critical_threshold REAL,
		default_severity TEXT NOT NULL DEFAULT 'warning',
		cooldown_minutes INTEGER DEFAULT 0,
		email_sink TEXT,
		webhook_sink TEXT,
		device_id INTEGER REFERENCES device(id),
		interface_id INTEGER REFERENCES interface(id),
		is_active INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_alertrule_active ON alert_rule(is_active);

	CREATE TABLE IF NOT EXISTS wan_alert_rule (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		metric TEXT NOT NULL,
		condition TEXT NOT NULL DEFAULT 'gt',
		lookback_minutes INTEGER NOT NULL DEFAULT 60,
		warning_threshold REAL,
		critical_threshold REAL,
		email_sink TEXT,
		webhook_sink TEXT,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS power_alert_rule (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		metric TEXT NOT NULL,
		condition TEXT NOT NULL DEFAULT 'gt',
		lookback_minutes INTEGER NOT NULL DEFAULT 60,
		warning_threshold REAL,
		critical_threshold REAL,
		email_sink TEXT,
		webhook_sink TEXT,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS alert_event (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		rule_id INTEGER REFERENCES alert_rule(id) ON DELETE CASCADE,
		wan_rule_id INTEGER REFERENCES wan_alert_rule(id) ON DELETE CASCADE,
		power_rule_id INTEGER REFERENCES power_alert_rule(id) ON DELETE CASCADE,
		device_id INTEGER,
		severity TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		message TEXT,
		metric_value REAL,
		threshold_value REAL,
		triggered_at INTEGER NOT NULL,
		acknowledged_at INTEGER,
		acknowledged_by TEXT,
		resolved_at INTEGER,
		notes TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_alertevent_open ON alert_event(status, rule_id, wan_rule_id, power_rule_id, device_id);

	CREATE TABLE IF NOT EXISTS owned_subnet (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cidr TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS system_setting (
		key TEXT PRIMARY KEY,
		value TEXT,
		is_secret INTEGER NOT NULL DEFAULT 0,
		updated_by TEXT
	);

	CREATE TABLE IF NOT EXISTS system_event (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		level TEXT NOT NULL,
		source TEXT,
		event_type TEXT,
		resource_type TEXT,
		resource_id TEXT,
		message TEXT,
		details TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_systemevent_time ON system_event(timestamp);
	`
	_, err := s.db.Exec(schema)
	return wrapExec(err, "migrate")
}
