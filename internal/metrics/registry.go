// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the process's Prometheus collectors. Every counter and
// histogram is created once at startup and updated in place by the
// scheduler-driven collector.
type Registry struct {
	PollDuration   *prometheus.HistogramVec
	PollErrors     *prometheus.CounterVec
	DevicesPolled  prometheus.Gauge

	FlowDatagramsReceived *prometheus.CounterVec
	FlowDatagramsDropped  *prometheus.CounterVec
	FlowRecordsIngested   *prometheus.CounterVec

	AlertEventsBySeverity *prometheus.CounterVec
	OpenAlertEvents       *prometheus.GaugeVec

	SchedulerLockAcquired prometheus.Counter
	SchedulerLockMissed   *prometheus.CounterVec
	SchedulerJobDuration  *prometheus.HistogramVec

	PingRTT  *prometheus.HistogramVec
	PingLoss *prometheus.GaugeVec
}

func newRegistry() *Registry {
	return &Registry{
		PollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "netmond_poll_duration_seconds",
			Help:    "Duration of a single device SNMP poll.",
			Buckets: prometheus.DefBuckets,
		}, []string{"device_type"}),
		PollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netmond_poll_errors_total",
			Help: "Total number of failed device polls.",
		}, []string{"device_type", "reason"}),
		DevicesPolled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netmond_devices_polled",
			Help: "Number of devices reachable on the most recent poll cycle.",
		}),

		FlowDatagramsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netmond_flow_datagrams_received_total",
			Help: "Total NetFlow/sFlow UDP datagrams received.",
		}, []string{"proto"}),
		FlowDatagramsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netmond_flow_datagrams_dropped_total",
			Help: "Total NetFlow/sFlow UDP datagrams dropped due to decode errors or a full queue.",
		}, []string{"proto", "reason"}),
		FlowRecordsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netmond_flow_records_ingested_total",
			Help: "Total flow records decoded from received datagrams.",
		}, []string{"proto"}),

		AlertEventsBySeverity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netmond_alert_events_total",
			Help: "Total alert events created, by engine and severity.",
		}, []string{"engine", "severity"}),
		OpenAlertEvents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netmond_open_alert_events",
			Help: "Currently open alert events, by engine and severity.",
		}, []string{"engine", "severity"}),

		SchedulerLockAcquired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netmond_scheduler_lock_acquired_total",
			Help: "Total times the scheduler's run-lock was acquired for a tick.",
		}),
		SchedulerLockMissed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netmond_scheduler_lock_missed_total",
			Help: "Total times a scheduler tick was skipped because the previous run was still in progress.",
		}, []string{"job"}),
		SchedulerJobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "netmond_scheduler_job_duration_seconds",
			Help:    "Duration of a scheduler job run.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),

		PingRTT: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "netmond_ping_rtt_seconds",
			Help:    "Round-trip time of ICMP probes.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"target"}),
		PingLoss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netmond_ping_loss_ratio",
			Help: "Packet loss ratio over the most recent probe window.",
		}, []string{"target"}),
	}
}

func (r *Registry) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.PollDuration, r.PollErrors, r.DevicesPolled,
		r.FlowDatagramsReceived, r.FlowDatagramsDropped, r.FlowRecordsIngested,
		r.AlertEventsBySeverity, r.OpenAlertEvents,
		r.SchedulerLockAcquired, r.SchedulerLockMissed, r.SchedulerJobDuration,
		r.PingRTT, r.PingLoss,
	}
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Get returns the process-wide Registry, registering its collectors with
// the default Prometheus registerer on first use.
func Get() *Registry {
	defaultOnce.Do(func() {
		defaultReg = newRegistry()
		for _, c := range defaultReg.collectors() {
			prometheus.MustRegister(c)
		}
	})
	return defaultReg
}
