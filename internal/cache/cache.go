// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package cache wraps a Redis client implementing the key contracts of §6:
// sched:<job_id> (scheduler leader lock), flow:<md5> (query result cache),
// ipgeo:<ip> (geoip cache), duo_state:<state> (out of core, generic TTL
// cache reused for it).
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/grimm-is/netmond/internal/errors"
)

// Client is a thin wrapper over go-redis exposing exactly the operations
// the core needs: an NX-with-TTL lock primitive and a plain TTL cache.
type Client struct {
	rdb *redis.Client
}

// New parses url (a redis:// URL) and returns a Client. Connectivity is not
// verified here — callers should treat a down cache as an expected,
// fail-open condition (§7), not a startup error.
func New(url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "cache: parse url")
	}
	return &Client{rdb: redis.NewClient(opts)}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// TryLock attempts to set key with NX semantics and the given TTL. It
// returns (true, nil) if the lock was acquired, (false, nil) if another
// worker already holds it, and (false, err) only for unexpected Redis
// errors — callers distinguish the latter from "lock held" to implement
// the fail-open policy of §4.1/§7 (run the job anyway on cache failure).
func (c *Client) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.KindUnavailable, "cache: setnx")
	}
	return ok, nil
}

// Get returns the cached value for key, or ("", false, nil) on a miss.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, errors.KindUnavailable, "cache: get")
	}
	return val, true, nil
}

// Set stores value under key with the given TTL (0 means no expiry).
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "cache: set")
	}
	return nil
}

// Delete removes key, ignoring a miss.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "cache: del")
	}
	return nil
}

// Cache key prefixes per §6.
const (
	PrefixScheduler = "sched:"
	PrefixFlowQuery = "flow:"
	PrefixIPGeo     = "ipgeo:"
	PrefixDuoState  = "duo_state:"
)

// TTLs per §6.
const (
	TTLFlowQueryShort = 30 * time.Second
	TTLFlowQueryLong  = 300 * time.Second
	TTLIPGeo          = 24 * time.Hour
	TTLDuoState       = 5 * time.Minute
)
