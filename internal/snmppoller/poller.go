// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package snmppoller implements poll_device (§4.2): per-device sequential
// SNMP collection of health and interface counters, with HC-counter wrap
// correction and port-state-change tracking.
package snmppoller

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/grimm-is/netmond/internal/errors"
	"github.com/grimm-is/netmond/internal/logging"
	"github.com/grimm-is/netmond/internal/metrics"
	"github.com/grimm-is/netmond/internal/secrets"
	"github.com/grimm-is/netmond/internal/snmpclient"
	"github.com/grimm-is/netmond/internal/store"
	"github.com/grimm-is/netmond/internal/systemevent"
)

// Poller drives SNMP polling for every active, polling-enabled device.
type Poller struct {
	store   *store.Store
	events  *systemevent.Log
	logger  *logging.Logger
	secrets *secrets.Service
	metrics *metrics.Collector
	timeout time.Duration
	retries int
}

// New builds a Poller. defaultTimeout/defaultRetries come from
// Config.SNMP (§6) and apply to devices without per-device overrides.
// secretSvc decrypts a device's SNMPv3 auth/priv keys before they're
// handed to snmpclient; a nil secretSvc passes credentials through
// unchanged (used by tests that never store encrypted keys). mc may be
// nil to disable metrics recording.
func New(st *store.Store, events *systemevent.Log, logger *logging.Logger, secretSvc *secrets.Service, mc *metrics.Collector, defaultTimeout time.Duration, defaultRetries int) *Poller {
	if logger == nil {
		logger = logging.Default()
	}
	return &Poller{store: st, events: events, logger: logger.WithComponent("snmppoller"), secrets: secretSvc, metrics: mc, timeout: defaultTimeout, retries: defaultRetries}
}

// credentialsFor builds SNMP credentials for d, decrypting the SNMPv3
// auth/priv keys if this Poller has a secrets.Service.
func (p *Poller) credentialsFor(d store.Device) snmpclient.Credentials {
	creds := snmpclient.Credentials{Version: "2c", Community: d.SNMPCommunity}
	if d.SNMPv3User == "" {
		return creds
	}
	creds.Version = "3"
	creds.V3User = d.SNMPv3User
	creds.V3AuthKey = d.SNMPv3AuthKey
	creds.V3PrivKey = d.SNMPv3PrivKey
	if p.secrets != nil {
		creds.V3AuthKey = p.secrets.Decrypt(creds.V3AuthKey)
		creds.V3PrivKey = p.secrets.Decrypt(creds.V3PrivKey)
	}
	return creds
}

// PollAll polls every active, polling-enabled device; PDU devices go to
// PollPDU rather than PollDevice (§4.2 step 4). One device's failure never
// aborts the rest (§4.2 step 5 / §7).
func (p *Poller) PollAll(ctx context.Context) error {
	devices, err := p.store.ListActiveDevices(ctx)
	if err != nil {
		return err
	}
	polled := 0
	for _, d := range devices {
		if !d.PollingEnabled {
			continue
		}
		polled++
		start := time.Now()
		if d.DeviceType == "pdu" {
			err := p.PollPDU(ctx, d)
			if p.metrics != nil {
				p.metrics.RecordPoll(d.DeviceType, time.Since(start), err, "pdu")
			}
			if err != nil {
				p.logger.Warn("pdu poll failed", "device", d.Hostname, "error", err)
				p.logEvent(ctx, "warning", "snmp_poll", d.ID, err.Error())
			}
			continue
		}
		err := p.PollDevice(ctx, d)
		if p.metrics != nil {
			p.metrics.RecordPoll(d.DeviceType, time.Since(start), err, "device")
		}
		if err != nil {
			p.logger.Warn("poll_device failed", "device", d.Hostname, "error", err)
			p.logEvent(ctx, "warning", "snmp_poll", d.ID, err.Error())
		}
	}
	if p.metrics != nil {
		p.metrics.SetDevicesPolled(polled)
	}
	return nil
}

// PollDevice implements the §4.2 steps for a single device.
func (p *Poller) PollDevice(ctx context.Context, d store.Device) error {
	sess, err := snmpclient.Dial(d.IPAddress, 161, p.credentialsFor(d), p.timeout, p.retries)
	if err != nil {
		// Unreachable device: §4.2 step 1 — sysUpTime absent, mark down.
		now := time.Now().UTC()
		_ = p.store.SetDeviceStatus(ctx, d.ID, "down", now)
		return nil
	}
	defer sess.Close()

	now := time.Now().UTC()

	uptime, err := sess.Get(oidSysUptime)
	if err != nil || len(uptime) == 0 || uptime[0].IsError {
		_ = p.store.SetDeviceStatus(ctx, d.ID, "down", now)
		return nil
	}

	uptimeDuration := time.Duration(uptime[0].Uint/100) * time.Second

	if err := p.pollInterfaces(ctx, sess, d, now); err != nil {
		return errors.Wrapf(err, errors.KindTransient, "snmppoller: poll interfaces for %s", d.Hostname)
	}

	return p.store.UpdateDeviceHealth(ctx, d.ID, "up", uptimeDuration, 0, 0, 0, 0, now)
}

// pollInterfaces implements §4.2 steps 2-3: HC counter walk with 32-bit
// fallback, rate/utilization computation with wrap correction, and
// port-state-change tracking.
func (p *Poller) pollInterfaces(ctx context.Context, sess *snmpclient.Session, d store.Device, now time.Time) error {
	monitored, err := p.store.ListMonitoredInterfaces(ctx, d.ID)
	if err != nil {
		return err
	}
	byIndex := make(map[int64]store.Interface, len(monitored))
	for _, iface := range monitored {
		if iface.IfIndex != nil {
			byIndex[*iface.IfIndex] = iface
		}
	}
	if len(byIndex) == 0 {
		return nil
	}

	inOctets := indexByLastOID(sess.BulkWalk(oidIfHCInOctets))
	outOctets := indexByLastOID(sess.BulkWalk(oidIfHCOutOctets))
	if len(inOctets) == 0 {
		inOctets = indexByLastOID(sess.BulkWalk(oidIfInOctets))
	}
	if len(outOctets) == 0 {
		outOctets = indexByLastOID(sess.BulkWalk(oidIfOutOctets))
	}
	operStatus := indexByLastOID(sess.BulkWalk(oidIfOper))
	highSpeed := indexByLastOID(sess.BulkWalk(oidIfHighSpeed))

	for ifIndex, iface := range byIndex {
		inVal, ok := inOctets[ifIndex]
		if !ok {
			continue
		}
		outVal := outOctets[ifIndex]
		operVal := operStatus[ifIndex]
		speedVal := highSpeed[ifIndex]

		speedBps := int64(speedVal.Uint) * 1_000_000
		operStr := "down"
		if operVal.Uint == 1 || operVal.Int == 1 {
			operStr = "up"
		}

		metric := store.InterfaceMetric{
			InterfaceID: iface.ID,
			Timestamp:   now,
			InOctets:    inVal.Uint,
			OutOctets:   outVal.Uint,
		}

		prev, hasPrev, err := p.store.LatestInterfaceMetric(ctx, iface.ID)
		if err != nil {
			return err
		}
		if hasPrev {
			deltaSecs := now.Sub(prev.Timestamp).Seconds()
			if deltaSecs > 0 {
				inDelta := wrapCorrect(inVal.Uint, prev.InOctets)
				outDelta := wrapCorrect(outVal.Uint, prev.OutOctets)
				metric.InBps = float64(inDelta) * 8 / deltaSecs
				metric.OutBps = float64(outDelta) * 8 / deltaSecs
				if speedBps > 0 {
					metric.UtilizationIn = min(100, metric.InBps/float64(speedBps)*100)
					metric.UtilizationOut = min(100, metric.OutBps/float64(speedBps)*100)
				}
			}
		}

		if iface.OperStatus != "" && iface.OperStatus != operStr {
			if err := p.store.InsertPortStateChange(ctx, store.PortStateChange{
				InterfaceID: iface.ID, OldStatus: iface.OperStatus, NewStatus: operStr, ChangedAt: now,
			}); err != nil {
				return err
			}
		}
		if err := p.store.SetInterfaceOperStatus(ctx, iface.ID, operStr, now); err != nil {
			return err
		}
		if err := p.store.InsertInterfaceMetric(ctx, metric); err != nil {
			return err
		}
	}
	return nil
}

// wrapCorrect computes the observed byte delta with a single counter-wrap
// correction (§4.2). Go's unsigned subtraction is modulo 2^64, which is
// exactly the "if delta < 0, add 2^64" correction applied unconditionally —
// the same single-wrap assumption the original poller made.
func wrapCorrect(current, previous uint64) uint64 {
	return current - previous
}

func indexByLastOID(vals []snmpclient.Value, err error) map[int64]snmpclient.Value {
	out := make(map[int64]snmpclient.Value, len(vals))
	if err != nil {
		return out
	}
	for _, v := range vals {
		if v.IsError {
			continue
		}
		idx, ok := lastOIDComponent(v.OID)
		if !ok {
			continue
		}
		out[idx] = v
	}
	return out
}

func lastOIDComponent(oid string) (int64, bool) {
	parts := strings.Split(strings.TrimPrefix(oid, "."), ".")
	if len(parts) == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (p *Poller) logEvent(ctx context.Context, level, source string, deviceID int64, message string) {
	if p.events == nil {
		return
	}
	_ = p.events.Append(ctx, systemevent.Event{
		Level: level, Source: source, EventType: "poll_error",
		ResourceType: "device", ResourceID: strconv.FormatInt(deviceID, 10), Message: message,
	})
}
