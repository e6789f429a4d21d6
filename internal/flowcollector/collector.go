// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package flowcollector runs the NetFlow v5 and sFlow v5 UDP listeners
// (§4.3): datagrams are parsed into Records, attributed to a device by
// exporter IP, enriched with geoip, and persisted in batches.
package flowcollector

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/grimm-is/netmond/internal/errors"
	"github.com/grimm-is/netmond/internal/logging"
	"github.com/grimm-is/netmond/internal/metrics"
	"github.com/grimm-is/netmond/internal/store"
	"github.com/grimm-is/netmond/internal/systemevent"
)

const (
	maxDatagramSize = 65535
	batchSize       = 500
	batchInterval   = 2 * time.Second
)

// GeoLookup resolves an IP to a country code, used to populate
// FlowRecord.SrcCountry/DstCountry. A nil GeoLookup disables enrichment.
type GeoLookup interface {
	Country(ctx context.Context, ip string) (string, bool)
}

// DeviceLookup resolves the exporting device by its source IP.
type DeviceLookup interface {
	GetDeviceByIP(ctx context.Context, ip string) (store.Device, bool, error)
}

// Config configures the two listener sockets. An empty address disables
// that listener.
type Config struct {
	NetFlowAddr string
	SFlowAddr   string
}

// Collector owns the NetFlow/sFlow UDP sockets and the batching writer
// that drains parsed Records into the store.
type Collector struct {
	cfg     Config
	store   *store.Store
	devices DeviceLookup
	geo     GeoLookup
	events  *systemevent.Log
	logger  *logging.Logger
	metrics *metrics.Collector

	netflowConn *net.UDPConn
	sflowConn   *net.UDPConn

	records chan taggedRecord

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

type taggedRecord struct {
	Record
	exporterIP string
}

// New builds a Collector. geo may be nil to disable geoip enrichment;
// mc may be nil to disable metrics recording.
func New(cfg Config, st *store.Store, devices DeviceLookup, geo GeoLookup, events *systemevent.Log, logger *logging.Logger, mc *metrics.Collector) *Collector {
	if logger == nil {
		logger = logging.Default()
	}
	return &Collector{
		cfg:     cfg,
		store:   st,
		devices: devices,
		geo:     geo,
		events:  events,
		logger:  logger.WithComponent("flowcollector"),
		metrics: mc,
		records: make(chan taggedRecord, 4096),
		stopCh:  make(chan struct{}),
	}
}

// Start binds the configured listener sockets and begins reading. Each
// datagram is parsed on its own goroutine, tracked by the collector's
// WaitGroup, so a burst of datagrams never blocks the socket read loop
// (§4.3); the number of concurrent parse goroutines is not bounded.
func (c *Collector) Start(ctx context.Context) error {
	if c.cfg.NetFlowAddr != "" {
		conn, err := c.listen(c.cfg.NetFlowAddr)
		if err != nil {
			return errors.Wrapf(err, errors.KindUnavailable, "flowcollector: bind netflow listener %s", c.cfg.NetFlowAddr)
		}
		c.netflowConn = conn
		c.wg.Add(1)
		go c.readLoop(conn, "netflow_v5")
	}
	if c.cfg.SFlowAddr != "" {
		conn, err := c.listen(c.cfg.SFlowAddr)
		if err != nil {
			return errors.Wrapf(err, errors.KindUnavailable, "flowcollector: bind sflow listener %s", c.cfg.SFlowAddr)
		}
		c.sflowConn = conn
		c.wg.Add(1)
		go c.readLoop(conn, "sflow")
	}

	c.wg.Add(1)
	go c.batchWriter(ctx)

	c.logger.Info("flow collector started", "netflow_addr", c.cfg.NetFlowAddr, "sflow_addr", c.cfg.SFlowAddr)
	return nil
}

func (c *Collector) listen(addr string) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp", udpAddr)
}

// Stop closes the listener sockets and waits for in-flight parsing and the
// batch writer to drain.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if c.netflowConn != nil {
			c.netflowConn.Close()
		}
		if c.sflowConn != nil {
			c.sflowConn.Close()
		}
	})
	c.wg.Wait()
	c.logger.Info("flow collector stopped")
}

func (c *Collector) readLoop(conn *net.UDPConn, kind string) {
	defer c.wg.Done()
	buf := make([]byte, maxDatagramSize)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-c.stopCh:
				return
			default:
			}
			c.logger.Warn("flow listener read error", "kind", kind, "error", err)
			continue
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		exporterIP := src.IP.String()
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.parse(kind, datagram, exporterIP)
		}()
	}
}

func (c *Collector) parse(kind string, datagram []byte, exporterIP string) {
	var recs []Record
	switch kind {
	case "netflow_v5":
		recs = ParseNetFlowV5(datagram)
	case "sflow":
		recs = ParseSFlowV5(datagram, c.logger)
	}
	if len(recs) == 0 && len(datagram) > 0 {
		c.logger.Debug("flow datagram produced no records", "kind", kind, "exporter", exporterIP, "bytes", len(datagram))
		if c.metrics != nil {
			c.metrics.RecordFlowDatagram(kind, "no_records")
		}
	} else if c.metrics != nil {
		c.metrics.RecordFlowDatagram(kind, "")
		c.metrics.RecordFlowRecords(kind, len(recs))
	}
	for _, r := range recs {
		select {
		case c.records <- taggedRecord{Record: r, exporterIP: exporterIP}:
		case <-c.stopCh:
			return
		}
	}
}

// batchWriter drains parsed records into the store in batches, bounded by
// whichever comes first: batchSize records or batchInterval elapsed.
func (c *Collector) batchWriter(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(batchInterval)
	defer ticker.Stop()

	batch := make([]taggedRecord, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		c.persist(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-c.records:
			batch = append(batch, rec)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-c.stopCh:
			for {
				select {
				case rec := <-c.records:
					batch = append(batch, rec)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (c *Collector) persist(ctx context.Context, batch []taggedRecord) {
	deviceByIP := make(map[string]*int64)
	out := make([]store.FlowRecord, 0, len(batch))
	now := time.Now().UTC()

	for _, tr := range batch {
		deviceID, ok := deviceByIP[tr.exporterIP]
		if !ok {
			deviceID = c.lookupDevice(ctx, tr.exporterIP)
			deviceByIP[tr.exporterIP] = deviceID
		}

		fr := store.FlowRecord{
			DeviceID: deviceID, Timestamp: now,
			SrcIP: tr.SrcIP, DstIP: tr.DstIP, SrcPort: tr.SrcPort, DstPort: tr.DstPort,
			Protocol: tr.Protocol, ProtocolName: tr.ProtocolName,
			Bytes: tr.Bytes, Packets: tr.Packets, DurationMs: tr.DurationMs,
			TCPFlags: tr.TCPFlags, Application: tr.Application, FlowType: tr.FlowType,
		}
		if c.geo != nil {
			if country, ok := c.geo.Country(ctx, tr.SrcIP); ok {
				fr.SrcCountry = country
			}
			if country, ok := c.geo.Country(ctx, tr.DstIP); ok {
				fr.DstCountry = country
			}
		}
		out = append(out, fr)
	}

	if err := c.store.InsertFlowRecords(ctx, out); err != nil {
		c.logger.Error("failed to persist flow records", "count", len(out), "error", err)
		if c.events != nil {
			c.events.Append(ctx, systemevent.Event{
				Level: "error", Source: "flow_collector", EventType: "persist_failed",
				Message: err.Error(), Details: map[string]any{"count": len(out)},
			})
		}
	}
}

func (c *Collector) lookupDevice(ctx context.Context, ip string) *int64 {
	if c.devices == nil {
		return nil
	}
	d, ok, err := c.devices.GetDeviceByIP(ctx, ip)
	if err != nil || !ok {
		return nil
	}
	id := d.ID
	return &id
}
