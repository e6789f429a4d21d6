// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package clock provides an injectable time source and an optional
// NTP-based skew sanity check performed once at startup.
package clock

import (
	"time"

	"github.com/beevik/ntp"

	"github.com/grimm-is/netmond/internal/logging"
)

// Clock is the minimal time source consumed by pollers and the scheduler.
// Production code uses System; tests inject a Fake.
type Clock interface {
	Now() time.Time
}

// System is the real wall-clock implementation.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fake is a controllable clock for tests.
type Fake struct {
	t time.Time
}

// NewFake returns a Fake pinned at t.
func NewFake(t time.Time) *Fake { return &Fake{t: t} }

func (f *Fake) Now() time.Time { return f.t }

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) { f.t = f.t.Add(d) }

// CheckSkew queries server (an NTP host) and logs a SystemEvent-worthy
// warning if the measured offset exceeds maxSkew. This is a fail-open
// diagnostic: any NTP failure (unreachable server, timeout) is logged at
// debug level and otherwise ignored — it never blocks startup or affects
// the clock actually used by the rest of the process.
func CheckSkew(server string, maxSkew time.Duration, log *logging.Logger) {
	if log == nil {
		log = logging.Default()
	}
	resp, err := ntp.Query(server)
	if err != nil {
		log.Debug("ntp skew check failed, continuing with system clock", "server", server, "error", err)
		return
	}
	offset := resp.ClockOffset
	if offset < 0 {
		offset = -offset
	}
	if offset > maxSkew {
		log.Warn("system clock skew exceeds threshold",
			"server", server, "offset", offset.String(), "threshold", maxSkew.String())
		return
	}
	log.Debug("ntp skew check ok", "server", server, "offset", offset.String())
}
