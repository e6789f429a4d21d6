// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package snmppoller

import (
	"context"
	"sync"

	"github.com/grimm-is/netmond/internal/errors"
	"github.com/grimm-is/netmond/internal/store"
)

// ErrNotImplemented is returned by sub-pollers with no defined behavior in
// the source this package was built from (§9 open question).
var ErrNotImplemented = errors.New(errors.KindUnavailable, "snmppoller: not implemented")

var lldpLogOnce, routesLogOnce sync.Once

// DiscoverLLDPNeighbors has no defined behavior to ground: neighbor
// discovery was never present in the source this poller was built from.
// Logged once, on the first call, rather than guessed at.
func (p *Poller) DiscoverLLDPNeighbors(ctx context.Context, d store.Device) error {
	lldpLogOnce.Do(func() {
		p.logger.Warn("lldp neighbor discovery is not implemented")
	})
	return ErrNotImplemented
}

// DiscoverRoutes has no defined behavior to ground: route-table discovery
// was never present in the source this poller was built from. Logged once,
// on the first call, rather than guessed at.
func (p *Poller) DiscoverRoutes(ctx context.Context, d store.Device) error {
	routesLogOnce.Do(func() {
		p.logger.Warn("route discovery is not implemented")
	})
	return ErrNotImplemented
}
