// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package nullroute installs operator-triggered null routes by adding the
// blocked address to a persistent nftables set (§4.1, §6). It does not read
// null-route or flowspec state from devices.
package nullroute

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/nftables"

	"github.com/grimm-is/netmond/internal/errors"
	"github.com/grimm-is/netmond/internal/logging"
)

const (
	tableName = "netmond"
	setName   = "null_routed"
)

// Installer maintains the nftables set backing null-route installation. A
// CIDR present in the set is dropped by a companion nftables rule outside
// this package's concern (the rule is provisioned once at deploy time, not
// per-route).
type Installer struct {
	logger *logging.Logger

	mu    sync.Mutex
	table *nftables.Table
	set   *nftables.Set
}

// New creates the netmond table and null_routed set if they do not already
// exist. It requires CAP_NET_ADMIN; callers on platforms or in containers
// without it should treat a non-nil error as "null-route installation
// disabled" rather than a fatal startup condition.
func New(logger *logging.Logger) (*Installer, error) {
	if logger == nil {
		logger = logging.Default()
	}
	i := &Installer{logger: logger.WithComponent("nullroute")}
	if err := i.ensureSet(); err != nil {
		return nil, err
	}
	return i, nil
}

func (i *Installer) ensureSet() error {
	conn, err := nftables.New()
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "nullroute: open nftables connection")
	}

	table := conn.AddTable(&nftables.Table{
		Family: nftables.TableFamilyIPv4,
		Name:   tableName,
	})

	set := &nftables.Set{
		Table:   table,
		Name:    setName,
		KeyType: nftables.TypeIPAddr,
	}
	if err := conn.AddSet(set, nil); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "nullroute: add set")
	}
	if err := conn.Flush(); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "nullroute: flush set creation")
	}

	i.table = table
	i.set = set
	return nil
}

// InstallRoute adds cidr's network address to the null-route set, causing
// matching traffic to be dropped by the companion nftables rule. Only the
// single address of an IPv4 /32 is supported; wider CIDRs are rejected
// since the set is an address set, not a prefix set, and IPv6 addresses
// are rejected since the set is IPv4-only (§4.1).
func (i *Installer) InstallRoute(ctx context.Context, cidr string) error {
	v4, err := hostAddress(cidr)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	conn, err := nftables.New()
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "nullroute: open nftables connection")
	}
	if err := conn.SetAddElements(i.set, []nftables.SetElement{{Key: v4}}); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "nullroute: add set element")
	}
	if err := conn.Flush(); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "nullroute: flush route install")
	}

	i.logger.Info("installed null route", "cidr", cidr)
	return nil
}

// RemoveRoute deletes ip from the null-route set, restoring normal forwarding.
func (i *Installer) RemoveRoute(ctx context.Context, cidr string) error {
	v4, err := hostAddress(cidr)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	conn, err := nftables.New()
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "nullroute: open nftables connection")
	}
	if err := conn.SetDeleteElements(i.set, []nftables.SetElement{{Key: v4}}); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "nullroute: delete set element")
	}
	if err := conn.Flush(); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "nullroute: flush route removal")
	}

	i.logger.Info("removed null route", "cidr", cidr)
	return nil
}

// hostAddress validates that cidr names a single IPv4 host (a /32) and
// returns its 4-byte representation. The set is an address set, not a
// prefix set, so wider CIDRs are rejected rather than silently truncated.
func hostAddress(cidr string) (net.IP, error) {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "nullroute: parse cidr")
	}
	ones, bits := ipNet.Mask.Size()
	if ones != bits {
		return nil, errors.New(errors.KindValidation, fmt.Sprintf("nullroute: %s is not a host address", cidr))
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, errors.New(errors.KindValidation, "nullroute: only IPv4 addresses are supported")
	}
	return v4, nil
}
