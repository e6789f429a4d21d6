// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package snmppoller

import (
	"context"
	"fmt"
	"time"

	"github.com/grimm-is/netmond/internal/snmpclient"
	"github.com/grimm-is/netmond/internal/store"
)

// APC rPDU2 (Gen2) OIDs.
const (
	oidPdu2Power  = "1.3.6.1.4.1.318.1.1.26.4.3.1.5" // decaWatts, .1 index
	oidPdu2Energy = "1.3.6.1.4.1.318.1.1.26.4.3.1.6" // kWh x10, .1 index

	oidPdu2PhaseNearOverload = "1.3.6.1.4.1.318.1.1.26.6.1.1.6" // Amps, whole
	oidPdu2PhaseOverload     = "1.3.6.1.4.1.318.1.1.26.6.1.1.7" // Amps, whole

	oidPdu2PhaseCurrent = "1.3.6.1.4.1.318.1.1.26.6.3.1.5" // Amps x10
	oidPdu2PhaseVoltage = "1.3.6.1.4.1.318.1.1.26.6.3.1.6" // Volts
	oidPdu2PhasePower   = "1.3.6.1.4.1.318.1.1.26.6.3.1.7" // decaWatts

	oidPdu2BankCurrent = "1.3.6.1.4.1.318.1.1.26.8.3.1.5" // Amps x10
	oidPdu2BankPower   = "1.3.6.1.4.1.318.1.1.26.8.3.1.6" // Watts

	oidPdu2OutletName    = "1.3.6.1.4.1.318.1.1.26.9.2.1.1.3"
	oidPdu2OutletState   = "1.3.6.1.4.1.318.1.1.26.9.2.2.1.5" // 1=on, 2=off, 3+=metered-on

	oidPdu2TempStatus  = "1.3.6.1.4.1.318.1.1.26.10.2.2.1.5" // 1=ok
	oidPdu2Temp        = "1.3.6.1.4.1.318.1.1.26.10.2.2.1.8" // C x10
	oidPdu2HumidStatus = "1.3.6.1.4.1.318.1.1.26.10.2.2.1.6" // 1=ok
	oidPdu2Humidity    = "1.3.6.1.4.1.318.1.1.26.10.2.2.1.9" // % x10

	// APC rPDU (Gen1) fallback.
	oidPdu1Power = "1.3.6.1.4.1.318.1.1.12.1.16.0"

	maxPduBanks   = 12
	maxPduOutlets = 48
)

// PollPDU implements the PDU sub-poller (§4.2.1): APC Gen2 OID tree with a
// Gen1 fallback, bank and outlet upserts, one PduMetric sample per cycle.
func (p *Poller) PollPDU(ctx context.Context, d store.Device) error {
	sess, err := snmpclient.Dial(d.IPAddress, 161, p.credentialsFor(d), p.timeout, p.retries)
	if err != nil {
		_ = p.store.SetDeviceStatus(ctx, d.ID, "down", time.Now().UTC())
		return nil
	}
	defer sess.Close()

	now := time.Now().UTC()

	powerVal, ok := get1(sess, oidPdu2Power+".1")
	isGen2 := ok
	if !isGen2 {
		powerVal, ok = get1(sess, oidPdu1Power)
		if !ok {
			_ = p.store.SetDeviceStatus(ctx, d.ID, "down", now)
			return nil
		}
	}
	powerWatts := powerVal
	if isGen2 {
		powerWatts *= 10
	}

	var energyKWh float64
	if isGen2 {
		if v, ok := get1(sess, oidPdu2Energy+".1"); ok {
			energyKWh = v / 10
		}
	}

	type phase struct{ current, voltage, power float64 }
	phases := map[int]phase{}
	if isGen2 {
		for n := 1; n <= 3; n++ {
			current, ok := get1(sess, fmt.Sprintf("%s.%d", oidPdu2PhaseCurrent, n))
			if !ok {
				continue
			}
			voltage, _ := get1(sess, fmt.Sprintf("%s.%d", oidPdu2PhaseVoltage, n))
			power, _ := get1(sess, fmt.Sprintf("%s.%d", oidPdu2PhasePower, n))
			phases[n] = phase{current: current / 10, voltage: voltage, power: power * 10}
		}
	}

	var apparentVA, powerFactor float64
	var totalVA float64
	for _, ph := range phases {
		totalVA += ph.current * ph.voltage
	}
	if totalVA > 0 {
		apparentVA = totalVA
		if powerWatts != 0 {
			powerFactor = powerWatts / totalVA
		}
	}

	var temperature, humidity *float64
	if isGen2 {
		if status, ok := get1(sess, oidPdu2TempStatus+".1"); ok && status == 1 {
			if v, ok := get1(sess, oidPdu2Temp+".1"); ok {
				t := v / 10
				temperature = &t
			}
		}
		if status, ok := get1(sess, oidPdu2HumidStatus+".1"); ok && status == 1 {
			if v, ok := get1(sess, oidPdu2Humidity+".1"); ok {
				h := v / 10
				humidity = &h
			}
		}
	}

	var rated float64
	if isGen2 {
		avgVoltage := 230.0
		if len(phases) > 0 {
			var sum float64
			for _, ph := range phases {
				sum += ph.voltage
			}
			avgVoltage = sum / float64(len(phases))
		}
		numPhases := len(phases)
		if numPhases == 0 {
			numPhases = 1
		}
		if overloadAmps, ok := get1(sess, oidPdu2PhaseOverload+".1"); ok {
			rated = overloadAmps * avgVoltage * float64(numPhases)
		}
	}

	var loadPct float64
	if rated > 0 {
		loadPct = (powerWatts / rated) * 100
	}

	if err := p.store.InsertPduMetric(ctx, store.PduMetric{
		DeviceID: d.ID, Timestamp: now,
		TotalPowerWatts: powerWatts, EnergyKWh: energyKWh,
		ApparentPowerVA: apparentVA, PowerFactor: powerFactor,
		LoadPct: loadPct, TemperatureC: temperature, HumidityPct: humidity,
	}); err != nil {
		return err
	}

	if isGen2 {
		if err := p.pollPduBanks(ctx, sess, d, now); err != nil {
			p.logger.Warn("pdu bank poll failed", "device", d.Hostname, "error", err)
		}
	}
	if err := p.pollPduOutlets(ctx, sess, d, isGen2); err != nil {
		p.logger.Warn("pdu outlet poll failed", "device", d.Hostname, "error", err)
	}

	return p.store.UpdateDeviceHealth(ctx, d.ID, "up", 0, 0, 0, 0, 0, now)
}

func (p *Poller) pollPduBanks(ctx context.Context, sess *snmpclient.Session, d store.Device, now time.Time) error {
	for n := 1; n <= maxPduBanks; n++ {
		currentAmps, ok := get1(sess, fmt.Sprintf("%s.%d", oidPdu2BankCurrent, n))
		if !ok {
			break
		}
		currentAmps /= 10
		powerWatts, _ := get1(sess, fmt.Sprintf("%s.%d", oidPdu2BankPower, n))

		bankID, err := p.store.UpsertPduBank(ctx, store.PduBank{DeviceID: d.ID, Number: n})
		if err != nil {
			return err
		}

		if err := p.store.InsertPduBankMetric(ctx, store.PduBankMetric{
			BankID: bankID, Timestamp: now, CurrentAmps: currentAmps, PowerWatts: powerWatts,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Poller) pollPduOutlets(ctx context.Context, sess *snmpclient.Session, d store.Device, isGen2 bool) error {
	stateOID := oidPdu2OutletState
	nameOID := oidPdu2OutletName

	for n := 1; n <= maxPduOutlets; n++ {
		stateOIDn := fmt.Sprintf("%s.%d", stateOID, n)
		vals, err := sess.Get(stateOIDn)
		if err != nil || len(vals) == 0 || vals[0].IsError {
			break
		}

		state := outletState(vals[0].Int)

		name := fmt.Sprintf("Outlet %d", n)
		if isGen2 {
			if nameVals, err := sess.Get(fmt.Sprintf("%s.%d", nameOID, n)); err == nil && len(nameVals) > 0 && !nameVals[0].IsError && nameVals[0].Str != "" {
				name = nameVals[0].Str
			}
		}

		if err := p.store.UpsertPduOutlet(ctx, store.PduOutlet{
			DeviceID: d.ID, Number: n, Name: name, State: state,
		}); err != nil {
			return err
		}
	}
	return nil
}

// outletState maps an rPDU2OutletState varbind to "on"/"off". States >=3
// occur on metered-only (non-switchable) outlets and always read as on.
func outletState(raw int64) string {
	switch raw {
	case 2:
		return "off"
	default:
		return "on"
	}
}

// get1 issues a single GET and returns the numeric value as a float64,
// mapping any SNMP error response (no-such-instance, etc.) to ok=false —
// the signal the Gen2/Gen1 fallback branches key off of.
func get1(sess *snmpclient.Session, oid string) (float64, bool) {
	vals, err := sess.Get(oid)
	if err != nil || len(vals) == 0 || vals[0].IsError {
		return 0, false
	}
	v := vals[0]
	switch {
	case v.Uint != 0:
		return float64(v.Uint), true
	case v.Int != 0:
		return float64(v.Int), true
	default:
		// Distinguish a genuine zero reading from "not present": Kind is
		// set for every successfully decoded numeric varbind.
		if v.Kind != "" {
			return 0, true
		}
		return 0, false
	}
}
