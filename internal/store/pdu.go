// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"database/sql"
	"time"
)

// InsertPduMetric appends one PDU sample (§4.2.1).
func (s *Store) InsertPduMetric(ctx context.Context, m PduMetric) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pdu_metric (device_id, timestamp, total_power_watts, energy_kwh, apparent_power_va, power_factor, load_pct, temperature_c, humidity_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.DeviceID, m.Timestamp.Unix(), m.TotalPowerWatts, m.EnergyKWh, m.ApparentPowerVA, m.PowerFactor, m.LoadPct,
		nullableFloat(m.TemperatureC), nullableFloat(m.HumidityPct))
	return wrapExec(err, "insert pdu metric")
}

// UpsertPduBank inserts or updates a bank's current state, keyed on
// (device_id, number) per §3.
func (s *Store) UpsertPduBank(ctx context.Context, b PduBank) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pdu_bank (device_id, number, overload_threshold)
		VALUES (?, ?, ?)
		ON CONFLICT(device_id, number) DO UPDATE SET overload_threshold=excluded.overload_threshold`,
		b.DeviceID, b.Number, b.OverloadThreshold)
	if err != nil {
		return 0, wrapExec(err, "upsert pdu bank")
	}
	var id int64
	row := s.db.QueryRowContext(ctx, `SELECT id FROM pdu_bank WHERE device_id=? AND number=?`, b.DeviceID, b.Number)
	return id, wrapExec(row.Scan(&id), "lookup pdu bank id")
}

// InsertPduBankMetric appends one per-bank sample.
func (s *Store) InsertPduBankMetric(ctx context.Context, m PduBankMetric) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pdu_bank_metric (bank_id, timestamp, current_amps, power_watts, load_pct)
		VALUES (?, ?, ?, ?, ?)`, m.BankID, m.Timestamp.Unix(), m.CurrentAmps, m.PowerWatts, m.LoadPct)
	return wrapExec(err, "insert pdu bank metric")
}

// UpsertPduOutlet inserts or updates an outlet's current state, keyed on
// (device_id, number) per §3.
func (s *Store) UpsertPduOutlet(ctx context.Context, o PduOutlet) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pdu_outlet (device_id, number, name, state)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id, number) DO UPDATE SET name=excluded.name, state=excluded.state`,
		o.DeviceID, o.Number, o.Name, o.State)
	return wrapExec(err, "upsert pdu outlet")
}

// PduMetricsSince returns PduMetric rows across every active pdu-type
// device since cutoff, the sample set for §4.5.2's aggregate computation.
func (s *Store) PduMetricsSince(ctx context.Context, since time.Time) ([]PduMetric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.device_id, m.timestamp, m.total_power_watts, m.load_pct, m.temperature_c
		FROM pdu_metric m
		JOIN device d ON d.id = m.device_id
		WHERE d.is_active = 1 AND d.device_type = 'pdu' AND m.timestamp >= ?
		ORDER BY m.timestamp ASC`, since.Unix())
	if err != nil {
		return nil, wrapExec(err, "pdu metrics since")
	}
	defer rows.Close()

	var out []PduMetric
	for rows.Next() {
		var m PduMetric
		var ts int64
		var temp sql.NullFloat64
		if err := rows.Scan(&m.DeviceID, &ts, &m.TotalPowerWatts, &m.LoadPct, &temp); err != nil {
			return nil, wrapExec(err, "scan pdu metric")
		}
		m.Timestamp = time.Unix(ts, 0).UTC()
		if temp.Valid {
			v := temp.Float64
			m.TemperatureC = &v
		}
		out = append(out, m)
	}
	return out, wrapExec(rows.Err(), "scan pdu metrics")
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
