// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command netmond runs the network monitoring and control-plane process:
// SNMP polling, flow collection, ICMP probing, and the three alert engines,
// each driven by internal/scheduler on its own interval (§2.1, §6).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grimm-is/netmond/internal/alerting"
	"github.com/grimm-is/netmond/internal/cache"
	"github.com/grimm-is/netmond/internal/clock"
	"github.com/grimm-is/netmond/internal/config"
	"github.com/grimm-is/netmond/internal/eapi"
	"github.com/grimm-is/netmond/internal/flowcollector"
	"github.com/grimm-is/netmond/internal/flowrollup"
	"github.com/grimm-is/netmond/internal/geoip"
	"github.com/grimm-is/netmond/internal/logging"
	"github.com/grimm-is/netmond/internal/metrics"
	"github.com/grimm-is/netmond/internal/notification"
	"github.com/grimm-is/netmond/internal/pingmonitor"
	"github.com/grimm-is/netmond/internal/scheduler"
	"github.com/grimm-is/netmond/internal/secrets"
	"github.com/grimm-is/netmond/internal/snmppoller"
	"github.com/grimm-is/netmond/internal/store"
	"github.com/grimm-is/netmond/internal/systemevent"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "netmond:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	logger := logging.New(logging.DefaultConfig())
	logger.Info("starting netmond", "database", cfg.DatabasePath)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	events := systemevent.New(st, logger)

	// secretSvc decrypts device credentials wherever they're read back out
	// of the store; device provisioning itself is out of this process's
	// scope (§1 Non-goals: no REST API).
	secretSvc := secrets.New(cfg.AppSecret)

	c, err := cache.New(cfg.CacheURL)
	if err != nil {
		logger.Warn("cache unavailable, scheduler locks fail open", "error", err)
		c = nil
	}

	clock.CheckSkew(cfg.NTPServer, 2*time.Second, logger)

	metricsCollector := metrics.NewCollector(logger)

	var geoLookup flowcollector.GeoLookup
	if cfg.GeoIPDatabasePath != "" {
		lookup, err := geoip.Open(cfg.GeoIPDatabasePath, c, logger)
		if err != nil {
			logger.Warn("geoip database unavailable, flow records will carry no country", "error", err)
		} else {
			defer lookup.Close()
			geoLookup = lookup
		}
	}

	notifier := notification.New(cfg.SMTP, logger)

	snmpPoller := snmppoller.New(st, events, logger, secretSvc, metricsCollector, cfg.SNMP.Timeout, cfg.SNMP.Retries)
	eapiClient := eapi.New(secretSvc, logger)
	prober := pingmonitor.New(st, events, logger, metricsCollector)
	roller := flowrollup.New(st, events, logger)
	deviceEngine := alerting.New(st, notifier, events, logger)
	wanEngine := alerting.NewWanEngine(st, notifier, events, logger)
	powerEngine := alerting.NewPowerEngine(st, notifier, events, logger)

	flowCfg := flowcollector.Config{
		NetFlowAddr: fmt.Sprintf(":%d", cfg.NetflowPort),
		SFlowAddr:   fmt.Sprintf(":%d", cfg.SflowPort),
	}
	flows := flowcollector.New(flowCfg, st, st, geoLookup, events, logger, metricsCollector)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := flows.Start(ctx); err != nil {
		return err
	}
	defer flows.Stop()

	sched := scheduler.New(c, events, logger)
	registerJob(sched, metricsCollector, "snmp_poll", cfg.SNMPPollInterval, 0, snmpPoller.PollAll)
	registerJob(sched, metricsCollector, "mac_discovery", 300*time.Second, 55*time.Second, snmpPoller.DiscoverMacTables)
	registerJob(sched, metricsCollector, "mlag_discovery", 60*time.Second, 0, func(ctx context.Context) error {
		return snmpPoller.DiscoverMlagDomains(ctx, eapiClient)
	})
	registerJob(sched, metricsCollector, "ping_probe", cfg.PingInterval, 0, prober.ProbeAll)
	registerJob(sched, metricsCollector, "flow_rollup", cfg.FlowRollupInterval, 0, roller.Tick)
	registerJob(sched, metricsCollector, "alert_eval", cfg.AlertEvalInterval, 0, func(ctx context.Context) error {
		var firstErr error
		for _, eval := range []scheduler.JobFunc{deviceEngine.EvaluateRules, wanEngine.EvaluateRules, powerEngine.EvaluateRules} {
			if err := eval(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	})

	go sched.Start(ctx)

	metricsSrv := startMetricsServer(logger)

	<-ctx.Done()
	logger.Info("shutting down")
	sched.Stop()
	shutdownMetricsServer(metricsSrv, logger)
	return nil
}

// registerJob wraps job with duration recording before handing it to the
// scheduler; lockTTL of zero lets Scheduler.Register derive it from
// interval, except for mac_discovery where §9's open question preserves a
// deliberate TTL/interval mismatch.
func registerJob(sched *scheduler.Scheduler, mc *metrics.Collector, name string, interval, lockTTL time.Duration, fn scheduler.JobFunc) {
	sched.Register(scheduler.Job{
		ID:       name,
		Interval: interval,
		LockTTL:  lockTTL,
		Run: func(ctx context.Context) error {
			start := time.Now()
			err := fn(ctx)
			mc.RecordJobDuration(name, time.Since(start))
			return err
		},
	})
}

func startMetricsServer(logger *logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":9100", Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return srv
}

func shutdownMetricsServer(srv *http.Server, logger *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown error", "error", err)
	}
}
