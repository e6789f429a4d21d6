// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"fmt"
	"net"
	"time"
)

// SyslogWriter forwards log lines to a remote syslog collector over UDP or
// TCP. Connection failures are surfaced at construction time; write failures
// are swallowed (syslog is a best-effort sink, never load-bearing).
type SyslogWriter struct {
	conn net.Conn
	tag  string
}

// NewSyslogWriter dials cfg.Host:cfg.Port and returns a writer. Host is
// required; Port/Protocol/Tag default to 514/udp/netmond as in
// DefaultSyslogConfig. Facility is not used.
func NewSyslogWriter(cfg SyslogConfig) (*SyslogWriter, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("logging: syslog host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 514
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Tag == "" {
		cfg.Tag = "netmond"
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := net.DialTimeout(cfg.Protocol, addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("logging: dial syslog %s: %w", addr, err)
	}
	return &SyslogWriter{conn: conn, tag: cfg.Tag}, nil
}

// Write implements io.Writer. Errors are not propagated to the caller.
func (w *SyslogWriter) Write(p []byte) (int, error) {
	_, _ = fmt.Fprintf(w.conn, "<%s> %s", w.tag, p)
	return len(p), nil
}

// Close releases the underlying connection.
func (w *SyslogWriter) Close() error {
	return w.conn.Close()
}
