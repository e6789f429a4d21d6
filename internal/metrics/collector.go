// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"sync"
	"time"

	"github.com/grimm-is/netmond/internal/logging"
)

// Collector updates the Prometheus registry from the signals raised by the
// scheduler-driven jobs (SNMP poller, flow collector, ping monitor). It
// does not run its own loop: callers report events as they happen.
type Collector struct {
	registry *Registry
	logger   *logging.Logger

	mu          sync.RWMutex
	lastUpdate  time.Time
	pingHistory map[string]*pingWindow
}

// pingWindow tracks a rolling probe count for loss-ratio reporting.
type pingWindow struct {
	sent int
	lost int
}

// NewCollector creates a metrics collector bound to the process registry.
func NewCollector(logger *logging.Logger) *Collector {
	return &Collector{
		registry:    Get(),
		logger:      logger,
		pingHistory: make(map[string]*pingWindow),
	}
}

// RecordPoll reports a single SNMP poll's outcome and duration (§4.2).
func (c *Collector) RecordPoll(deviceType string, duration time.Duration, err error, reason string) {
	c.registry.PollDuration.WithLabelValues(deviceType).Observe(duration.Seconds())
	if err != nil {
		c.registry.PollErrors.WithLabelValues(deviceType, reason).Inc()
	}
	c.mu.Lock()
	c.lastUpdate = time.Now()
	c.mu.Unlock()
}

// SetDevicesPolled records how many devices responded on the last poll cycle.
func (c *Collector) SetDevicesPolled(n int) {
	c.registry.DevicesPolled.Set(float64(n))
}

// RecordFlowDatagram reports a received NetFlow/sFlow UDP datagram, and an
// optional drop reason when decoding or enqueueing it failed (§4.3).
func (c *Collector) RecordFlowDatagram(proto string, dropReason string) {
	c.registry.FlowDatagramsReceived.WithLabelValues(proto).Inc()
	if dropReason != "" {
		c.registry.FlowDatagramsDropped.WithLabelValues(proto, dropReason).Inc()
	}
}

// RecordFlowRecords reports flow records decoded from one datagram.
func (c *Collector) RecordFlowRecords(proto string, count int) {
	if count <= 0 {
		return
	}
	c.registry.FlowRecordsIngested.WithLabelValues(proto).Add(float64(count))
}

// RecordAlertEvent reports a newly created alert event (§4.5, §4.6).
func (c *Collector) RecordAlertEvent(engine, severity string) {
	c.registry.AlertEventsBySeverity.WithLabelValues(engine, severity).Inc()
}

// SetOpenAlertEvents sets the current open-event gauge for an engine/severity pair.
func (c *Collector) SetOpenAlertEvents(engine, severity string, count int) {
	c.registry.OpenAlertEvents.WithLabelValues(engine, severity).Set(float64(count))
}

// RecordSchedulerLock reports whether a scheduler tick acquired its run-lock
// or was skipped because the previous run was still in flight (§2.1).
func (c *Collector) RecordSchedulerLock(job string, acquired bool) {
	if acquired {
		c.registry.SchedulerLockAcquired.Inc()
		return
	}
	c.registry.SchedulerLockMissed.WithLabelValues(job).Inc()
}

// RecordJobDuration reports how long a scheduler job run took.
func (c *Collector) RecordJobDuration(job string, d time.Duration) {
	c.registry.SchedulerJobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// RecordPing reports a single ICMP probe result for a target, updating the
// RTT histogram and a rolling loss ratio over the last pingWindowSize probes.
const pingWindowSize = 20

func (c *Collector) RecordPing(target string, rtt time.Duration, lost bool) {
	if !lost {
		c.registry.PingRTT.WithLabelValues(target).Observe(rtt.Seconds())
	}

	c.mu.Lock()
	w, ok := c.pingHistory[target]
	if !ok {
		w = &pingWindow{}
		c.pingHistory[target] = w
	}
	w.sent++
	if lost {
		w.lost++
	}
	if w.sent >= pingWindowSize {
		ratio := float64(w.lost) / float64(w.sent)
		c.registry.PingLoss.WithLabelValues(target).Set(ratio)
		w.sent, w.lost = 0, 0
	}
	c.mu.Unlock()
}

// GetLastUpdate returns the timestamp of the most recent recorded poll.
func (c *Collector) GetLastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// calculateRate computes the rate between two monotonic counter samples,
// treating a decrease as a counter reset (current becomes the delta from
// zero) rather than a negative rate.
func calculateRate(current, previous uint64, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	if current < previous {
		return float64(current) / elapsedSeconds
	}
	return float64(current-previous) / elapsedSeconds
}
