// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package snmpclient wraps gosnmp with the session construction and typed
// value conversion the pollers need (§4.2), generalized from a firewall
// dependency the teacher never had any use for.
package snmpclient

import (
	"net"
	"strconv"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/grimm-is/netmond/internal/errors"
)

// Credentials describes how to authenticate a session, mirroring Device's
// SNMP fields (§3). V3 fields are ignored when Version is "2c".
type Credentials struct {
	Version   string // "2c" or "3"
	Community string

	V3User       string
	V3AuthProto  string // md5, sha, sha256, ...
	V3AuthKey    string
	V3PrivProto  string // des, aes, aes256, ...
	V3PrivKey    string
}

// Session wraps a connected *gosnmp.GoSNMP.
type Session struct {
	g *gosnmp.GoSNMP
}

// Dial builds and connects a Session against host:port using creds.
// timeout/retries come from Config.SNMP (process defaults) unless the
// caller has device-specific overrides.
func Dial(host string, port int, creds Credentials, timeout time.Duration, retries int) (*Session, error) {
	g := &gosnmp.GoSNMP{
		Target:  host,
		Port:    uint16(port),
		Timeout: timeout,
		Retries: retries,
		MaxOids: 60,
	}

	switch creds.Version {
	case "3":
		g.Version = gosnmp.Version3
		g.SecurityModel = gosnmp.UserSecurityModel
		g.MsgFlags = msgFlags(creds)
		g.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 creds.V3User,
			AuthenticationProtocol:   authProto(creds.V3AuthProto),
			AuthenticationPassphrase: creds.V3AuthKey,
			PrivacyProtocol:          privProto(creds.V3PrivProto),
			PrivacyPassphrase:        creds.V3PrivKey,
		}
	default:
		g.Version = gosnmp.Version2c
		g.Community = creds.Community
	}

	if err := g.Connect(); err != nil {
		return nil, errors.Wrapf(err, errors.KindTransient, "snmpclient: connect %s:%d", host, port)
	}
	return &Session{g: g}, nil
}

// Close releases the underlying UDP socket.
func (s *Session) Close() error {
	return s.g.Conn.Close()
}

// Value is a typed SNMP varbind value, normalized from gosnmp's raw PDU
// types to the shapes the pollers actually consume.
type Value struct {
	OID     string
	Kind    string // Timeticks, Counter64, Counter32, Gauge32, OctetString, ObjectIdentifier, IPAddress
	Int     int64
	Uint    uint64
	Str     string
	IsError bool
}

// Get issues a single SNMP GET for oids.
func (s *Session) Get(oids ...string) ([]Value, error) {
	pkt, err := s.g.Get(oids)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindTransient, "snmpclient: get")
	}
	return convertAll(pkt.Variables), nil
}

// BulkWalk walks the subtree rooted at oid, falling back to WalkAll for
// SNMPv1 sessions (GETBULK is v2c/v3 only).
func (s *Session) BulkWalk(oid string) ([]Value, error) {
	var pdus []gosnmp.SnmpPDU
	var err error
	if s.g.Version == gosnmp.Version1 {
		pdus, err = s.g.WalkAll(oid)
	} else {
		pdus, err = s.g.BulkWalkAll(oid)
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindTransient, "snmpclient: walk %s", oid)
	}
	return convertAll(pdus), nil
}

func convertAll(pdus []gosnmp.SnmpPDU) []Value {
	out := make([]Value, 0, len(pdus))
	for _, p := range pdus {
		out = append(out, convert(p))
	}
	return out
}

func convert(p gosnmp.SnmpPDU) Value {
	v := Value{OID: p.Name}
	switch p.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		v.IsError = true
		return v
	case gosnmp.TimeTicks:
		v.Kind = "Timeticks"
		v.Uint = gosnmp.ToBigInt(p.Value).Uint64()
	case gosnmp.Counter64:
		v.Kind = "Counter64"
		v.Uint = gosnmp.ToBigInt(p.Value).Uint64()
	case gosnmp.Counter32:
		v.Kind = "Counter32"
		v.Uint = gosnmp.ToBigInt(p.Value).Uint64()
	case gosnmp.Gauge32:
		v.Kind = "Gauge32"
		v.Uint = gosnmp.ToBigInt(p.Value).Uint64()
	case gosnmp.Integer:
		v.Kind = "Integer"
		v.Int = gosnmp.ToBigInt(p.Value).Int64()
	case gosnmp.OctetString:
		v.Kind = "OctetString"
		v.Str = octetString(p.Value)
	case gosnmp.IPAddress:
		v.Kind = "IPAddress"
		v.Str = ipString(p.Value)
	case gosnmp.ObjectIdentifier:
		v.Kind = "ObjectIdentifier"
		if s, ok := p.Value.(string); ok {
			v.Str = s
		}
	default:
		v.Kind = "Unknown"
	}
	return v
}

func octetString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return ""
	}
}

func ipString(v any) string {
	switch x := v.(type) {
	case string:
		if ip := net.ParseIP(x); ip != nil {
			return ip.String()
		}
		return x
	case []byte:
		if len(x) == 4 || len(x) == 16 {
			return net.IP(x).String()
		}
		return ""
	default:
		return ""
	}
}

func msgFlags(c Credentials) gosnmp.SnmpV3MsgFlags {
	hasAuth := c.V3AuthProto != ""
	hasPriv := c.V3PrivProto != ""
	switch {
	case hasAuth && hasPriv:
		return gosnmp.AuthPriv
	case hasAuth:
		return gosnmp.AuthNoPriv
	default:
		return gosnmp.NoAuthNoPriv
	}
}

func authProto(s string) gosnmp.SnmpV3AuthProtocol {
	switch s {
	case "md5":
		return gosnmp.MD5
	case "sha":
		return gosnmp.SHA
	case "sha224":
		return gosnmp.SHA224
	case "sha256":
		return gosnmp.SHA256
	case "sha384":
		return gosnmp.SHA384
	case "sha512":
		return gosnmp.SHA512
	default:
		return gosnmp.NoAuth
	}
}

func privProto(s string) gosnmp.SnmpV3PrivProtocol {
	switch s {
	case "des":
		return gosnmp.DES
	case "aes":
		return gosnmp.AES
	case "aes192":
		return gosnmp.AES192
	case "aes256":
		return gosnmp.AES256
	default:
		return gosnmp.NoPriv
	}
}

// ParsePort parses a device's port string, defaulting to 161 on error —
// used by callers loading Device rows where the port was stored as text.
func ParsePort(s string) int {
	if s == "" {
		return 161
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 161
	}
	return n
}
