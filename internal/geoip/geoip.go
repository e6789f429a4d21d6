// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package geoip resolves an IP address to an ISO country code, caching
// results behind the ipgeo:<ip> contract of §6 so a flow-heavy collector
// does not hit the MaxMind database on every record.
package geoip

import (
	"context"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"

	"github.com/grimm-is/netmond/internal/cache"
	"github.com/grimm-is/netmond/internal/errors"
	"github.com/grimm-is/netmond/internal/logging"
)

// Lookup resolves IPs against a local MaxMind GeoLite2-Country database,
// caching hits and misses alike in Redis. It implements the flowcollector
// GeoLookup interface.
type Lookup struct {
	db     *geoip2.Reader
	cache  *cache.Client
	logger *logging.Logger

	mu     sync.RWMutex
	closed bool
}

// Open loads the MaxMind database at dbPath. cache may be nil, in which
// case lookups still work but every call reaches the local database.
func Open(dbPath string, c *cache.Client, logger *logging.Logger) (*Lookup, error) {
	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "geoip: open database")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Lookup{db: db, cache: c, logger: logger.WithComponent("geoip")}, nil
}

// Close releases the underlying database file.
func (l *Lookup) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}

// Country returns the ISO country code for ip, or ("", false) when the
// address is private, unresolvable, or the database has no record for it.
// Cache failures are logged and treated as a miss, not an error — geoip
// enrichment is best-effort (§7).
func (l *Lookup) Country(ctx context.Context, ip string) (string, bool) {
	parsed := net.ParseIP(ip)
	if !lookupable(parsed) {
		return "", false
	}

	key := cache.PrefixIPGeo + ip
	if l.cache != nil {
		if cached, ok, err := l.cache.Get(ctx, key); err == nil && ok {
			if cached == "" {
				return "", false
			}
			return cached, true
		} else if err != nil {
			l.logger.Debug("geoip cache get failed", "ip", ip, "error", err)
		}
	}

	record, err := l.db.Country(parsed)
	if err != nil {
		l.logger.Debug("geoip database lookup failed", "ip", ip, "error", err)
		return "", false
	}

	country := record.Country.IsoCode
	if l.cache != nil {
		if err := l.cache.Set(ctx, key, country, cache.TTLIPGeo); err != nil {
			l.logger.Debug("geoip cache set failed", "ip", ip, "error", err)
		}
	}
	if country == "" {
		return "", false
	}
	return country, true
}

// lookupable reports whether ip is eligible for a geo lookup: parsed
// successfully and not private/loopback address space.
func lookupable(ip net.IP) bool {
	return ip != nil && !ip.IsPrivate() && !ip.IsLoopback()
}
