// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config assembles the process configuration from the environment,
// once, at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/grimm-is/netmond/internal/errors"
)

// SNMPDefaults holds fallback SNMP settings applied when a Device row does
// not override them.
type SNMPDefaults struct {
	Community string
	Port      int
	Timeout   time.Duration
	Retries   int
}

// SMTPDefaults holds the mail-sending settings the notification Dispatcher
// uses as-is (§4.6); SMTP values stored as SystemSetting rows are not read.
type SMTPDefaults struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	From     string
}

// Config is the fully resolved process configuration.
type Config struct {
	DatabasePath string
	CacheURL     string
	AppSecret    string

	NetflowPort int
	SflowPort   int

	SNMPPollInterval time.Duration
	AlertEvalInterval time.Duration
	FlowRollupInterval time.Duration
	PingInterval time.Duration
	MetricsRetention time.Duration
	FlowRetention time.Duration

	SNMP SNMPDefaults
	SMTP SMTPDefaults

	GeoIPDatabasePath string
	NTPServer         string
}

// Default returns the configuration with every field at its documented
// default, matching §6 of the specification.
func Default() Config {
	return Config{
		DatabasePath:        "netmond.db",
		CacheURL:            "redis://127.0.0.1:6379/0",
		AppSecret:           "",
		NetflowPort:         2055,
		SflowPort:           6343,
		SNMPPollInterval:    60 * time.Second,
		AlertEvalInterval:   60 * time.Second,
		FlowRollupInterval:  300 * time.Second,
		PingInterval:        60 * time.Second,
		MetricsRetention:    90 * 24 * time.Hour,
		FlowRetention:       30 * 24 * time.Hour,
		SNMP: SNMPDefaults{
			Community: "public",
			Port:      161,
			Timeout:   5 * time.Second,
			Retries:   1,
		},
		SMTP: SMTPDefaults{
			Port: 587,
		},
		NTPServer: "pool.ntp.org",
	}
}

// FromEnv resolves a Config from environment variables layered over Default.
func FromEnv() (Config, error) {
	cfg := Default()

	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("CACHE_URL"); v != "" {
		cfg.CacheURL = v
	}
	cfg.AppSecret = os.Getenv("APP_SECRET")

	if v, err := envInt("NETFLOW_PORT"); err != nil {
		return cfg, err
	} else if v != 0 {
		cfg.NetflowPort = v
	}
	if v, err := envInt("SFLOW_PORT"); err != nil {
		return cfg, err
	} else if v != 0 {
		cfg.SflowPort = v
	}
	if v, err := envInt("SNMP_POLL_INTERVAL_SECONDS"); err != nil {
		return cfg, err
	} else if v != 0 {
		cfg.SNMPPollInterval = time.Duration(v) * time.Second
	}
	if v := os.Getenv("SNMP_COMMUNITY"); v != "" {
		cfg.SNMP.Community = v
	}
	if v := os.Getenv("GEOIP_DATABASE_PATH"); v != "" {
		cfg.GeoIPDatabasePath = v
	}
	if v := os.Getenv("NTP_SERVER"); v != "" {
		cfg.NTPServer = v
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configuration that cannot possibly function. Validation
// errors abort startup (fail fast) — distinct from the per-device/per-rule
// errors that must never take down the whole process (§7).
func (c Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.New(errors.KindValidation, "config: DATABASE_PATH must not be empty")
	}
	if c.NetflowPort <= 0 || c.NetflowPort > 65535 {
		return errors.Errorf(errors.KindValidation, "config: invalid NETFLOW_PORT %d", c.NetflowPort)
	}
	if c.SflowPort <= 0 || c.SflowPort > 65535 {
		return errors.Errorf(errors.KindValidation, "config: invalid SFLOW_PORT %d", c.SflowPort)
	}
	if c.SNMPPollInterval <= 0 {
		return errors.New(errors.KindValidation, "config: SNMP_POLL_INTERVAL_SECONDS must be positive")
	}
	return nil
}

func envInt(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, errors.KindValidation, "config: %s", fmt.Sprintf("invalid integer for %s=%q", key, v))
	}
	return n, nil
}
