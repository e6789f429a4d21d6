// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package pingmonitor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grimm-is/netmond/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "netmond.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProbeAllUpdatesDeviceHealthAndPersistsMetric(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.InsertDevice(ctx, store.Device{
		Hostname: "core-1", IPAddress: "10.0.0.1", DeviceType: "core",
		IsActive: true, PollingEnabled: true,
	})
	require.NoError(t, err)

	p := New(s, nil, nil, nil)
	avg := 1.5
	p.SetProbeFunc(func(ip string, count int, timeout time.Duration) (Result, error) {
		return Result{RTTAvgMs: &avg, PacketLossPct: 0, PacketsSent: 5, PacketsReceived: 5, Status: "ok"}, nil
	})

	require.NoError(t, p.ProbeAll(ctx))

	d, ok, err := s.GetDevice(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1.5, d.RTTMs)
}

func TestProbeAllSkipsDisabledDevicesAndSurvivesOneFailure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.InsertDevice(ctx, store.Device{
		Hostname: "fails", IPAddress: "10.0.0.2", DeviceType: "leaf",
		IsActive: true, PollingEnabled: true,
	})
	require.NoError(t, err)
	_, err = s.InsertDevice(ctx, store.Device{
		Hostname: "disabled", IPAddress: "10.0.0.3", DeviceType: "leaf",
		IsActive: true, PollingEnabled: false,
	})
	require.NoError(t, err)
	_, err = s.InsertDevice(ctx, store.Device{
		Hostname: "ok", IPAddress: "10.0.0.4", DeviceType: "leaf",
		IsActive: true, PollingEnabled: true,
	})
	require.NoError(t, err)

	var probed int32
	p := New(s, nil, nil, nil)
	p.SetProbeFunc(func(ip string, count int, timeout time.Duration) (Result, error) {
		atomic.AddInt32(&probed, 1)
		if ip == "10.0.0.2" {
			return Result{}, fmt.Errorf("no route to host")
		}
		avg := 1.0
		return Result{RTTAvgMs: &avg, Status: "ok"}, nil
	})

	require.NoError(t, p.ProbeAll(ctx))
	require.EqualValues(t, 2, atomic.LoadInt32(&probed))
}
