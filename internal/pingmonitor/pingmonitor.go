// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package pingmonitor runs ICMP RTT/loss probes against every active
// device (§4 Ping Monitor), one scheduler tick per sweep.
package pingmonitor

import (
	"context"
	"sync"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/grimm-is/netmond/internal/logging"
	"github.com/grimm-is/netmond/internal/metrics"
	"github.com/grimm-is/netmond/internal/store"
	"github.com/grimm-is/netmond/internal/systemevent"
)

const (
	defaultCount        = 5
	defaultTimeout      = 5 * time.Second
	defaultConcurrency  = 32
)

// Result is the outcome of probing one device, independent of pro-bing's
// concrete type so ProbeFunc can be swapped out in tests.
type Result struct {
	RTTMinMs *float64
	RTTAvgMs *float64
	RTTMaxMs *float64

	PacketLossPct   float64
	PacketsSent     int
	PacketsReceived int
	Status          string // ok, loss, timeout
}

// ProbeFunc sends count ICMP echo requests to ip and summarizes the
// result. Swappable for tests — real network access is never required to
// exercise Prober's orchestration logic.
type ProbeFunc func(ip string, count int, timeout time.Duration) (Result, error)

// Prober probes every active, polling-enabled device once per tick.
type Prober struct {
	store       *store.Store
	events      *systemevent.Log
	logger      *logging.Logger
	metrics     *metrics.Collector
	probe       ProbeFunc
	count       int
	timeout     time.Duration
	concurrency int
}

// New builds a Prober using the real ICMP probe function. mc may be nil
// to disable metrics recording.
func New(st *store.Store, events *systemevent.Log, logger *logging.Logger, mc *metrics.Collector) *Prober {
	if logger == nil {
		logger = logging.Default()
	}
	return &Prober{
		store: st, events: events, logger: logger.WithComponent("pingmonitor"), metrics: mc,
		probe: icmpProbe, count: defaultCount, timeout: defaultTimeout, concurrency: defaultConcurrency,
	}
}

// SetProbeFunc overrides the ICMP probe implementation, for tests.
func (p *Prober) SetProbeFunc(fn ProbeFunc) {
	p.probe = fn
}

// ProbeAll probes every active, polling-enabled device concurrently,
// bounded by p.concurrency, and persists results per device independently
// — one device's probe failure never blocks or aborts the rest (§7).
func (p *Prober) ProbeAll(ctx context.Context) error {
	devices, err := p.store.ListActiveDevices(ctx)
	if err != nil {
		return err
	}

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for _, d := range devices {
		if !d.PollingEnabled {
			continue
		}
		d := d
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			p.probeDevice(ctx, d)
		}()
	}
	wg.Wait()
	return nil
}

func (p *Prober) probeDevice(ctx context.Context, d store.Device) {
	result, err := p.probe(d.IPAddress, p.count, p.timeout)
	if err != nil {
		p.logger.Debug("ping probe failed", "device", d.Hostname, "ip", d.IPAddress, "error", err)
		if p.metrics != nil {
			p.metrics.RecordPing(d.Hostname, 0, true)
		}
		if p.events != nil {
			p.events.Append(ctx, systemevent.Event{
				Level: "warning", Source: "ping_monitor", EventType: "probe_failed",
				ResourceType: "device", ResourceID: d.Hostname, Message: err.Error(),
			})
		}
		return
	}

	if p.metrics != nil {
		var rtt time.Duration
		if result.RTTAvgMs != nil {
			rtt = time.Duration(*result.RTTAvgMs * float64(time.Millisecond))
		}
		p.metrics.RecordPing(d.Hostname, rtt, result.Status != "ok")
	}

	now := time.Now().UTC()
	if err := p.store.InsertPingMetric(ctx, store.PingMetric{
		DeviceID: d.ID, Timestamp: now,
		RTTMinMs: result.RTTMinMs, RTTAvgMs: result.RTTAvgMs, RTTMaxMs: result.RTTMaxMs,
		PacketLossPct: result.PacketLossPct, PacketsSent: result.PacketsSent,
		PacketsReceived: result.PacketsReceived, Status: result.Status,
	}); err != nil {
		p.logger.Error("failed to persist ping metric", "device", d.Hostname, "error", err)
	}

	avg := 0.0
	if result.RTTAvgMs != nil {
		avg = *result.RTTAvgMs
	}
	if err := p.store.UpdateDevicePingHealth(ctx, d.ID, avg, result.PacketLossPct); err != nil {
		p.logger.Error("failed to update device ping health", "device", d.Hostname, "error", err)
	}
}

// icmpProbe is the real ProbeFunc, using pro-bing for unprivileged ICMP.
func icmpProbe(ip string, count int, timeout time.Duration) (Result, error) {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		return Result{}, err
	}
	pinger.Count = count
	pinger.Timeout = timeout
	pinger.SetPrivileged(false)

	if err := pinger.Run(); err != nil {
		return Result{}, err
	}

	stats := pinger.Statistics()
	status := "ok"
	switch {
	case stats.PacketsRecv == 0:
		status = "timeout"
	case stats.PacketLoss > 0:
		status = "loss"
	}

	minMs := stats.MinRtt.Seconds() * 1000
	avgMs := stats.AvgRtt.Seconds() * 1000
	maxMs := stats.MaxRtt.Seconds() * 1000

	return Result{
		RTTMinMs: &minMs, RTTAvgMs: &avgMs, RTTMaxMs: &maxMs,
		PacketLossPct: stats.PacketLoss, PacketsSent: stats.PacketsSent,
		PacketsReceived: stats.PacketsRecv, Status: status,
	}, nil
}
