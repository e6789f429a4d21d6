// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package eapi speaks Arista's eAPI (the JSON-RPC command-api endpoint
// every EOS switch exposes) for the control-plane data SNMP can't reach
// cleanly, starting with MLAG state (§4.2.2). It implements
// snmppoller.MlagDiscoverer so the SNMP MLAG MIB stays a fallback rather
// than the primary source.
package eapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/grimm-is/netmond/internal/logging"
	"github.com/grimm-is/netmond/internal/secrets"
	"github.com/grimm-is/netmond/internal/snmppoller"
	"github.com/grimm-is/netmond/internal/store"
)

// Client issues runCmds JSON-RPC requests against a device's command-api.
type Client struct {
	httpClient *http.Client
	secrets    *secrets.Service
	logger     *logging.Logger
}

// New builds a Client. secrets decrypts a device's stored API password
// before it goes on the wire.
func New(secrets *secrets.Service, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		// EOS command-api typically serves a self-signed certificate;
		// there's no CA chain to validate against on a LAN-managed switch.
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
		},
		secrets: secrets,
		logger:  logger.WithComponent("eapi"),
	}
}

type rpcRequest struct {
	Jsonrpc string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      string    `json:"id"`
}

type rpcParams struct {
	Version int      `json:"version"`
	Cmds    []string `json:"cmds"`
}

type rpcResponse struct {
	Result []json.RawMessage `json:"result"`
	Error  *rpcError         `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type showMlag struct {
	State            string `json:"state"`
	DomainID         string `json:"domainId"`
	LocalRole        string `json:"localRole"`
	PeerAddress      string `json:"peerAddress"`
	PeerLink         string `json:"peerLink"`
	PeerLinkStatus   string `json:"peerLinkStatus"`
	ConfigSanity     string `json:"configSanity"`
	PortsConfigured  int    `json:"portsConfigured"`
	PortsActive      int    `json:"portsActive"`
	PortsErrdisabled int    `json:"portsErrdisabled"`
}

type showMlagInterfaces struct {
	Interfaces map[string]struct {
		LocalInterface        string `json:"localInterface"`
		LocalInterfaceStatus  string `json:"localInterfaceStatus"`
		RemoteInterfaceStatus string `json:"remoteInterfaceStatus"`
	} `json:"interfaces"`
}

// Discover implements snmppoller.MlagDiscoverer. A device with no API
// credentials or that answers with MLAG disabled reports found=false so
// the caller falls through to the SNMP MIB.
func (c *Client) Discover(ctx context.Context, d store.Device) (snmppoller.MlagSnapshot, bool, error) {
	if d.APIUsername == "" {
		return snmppoller.MlagSnapshot{}, false, nil
	}

	var mlag showMlag
	var ifaces showMlagInterfaces
	if err := c.runCmds(ctx, d, []string{"show mlag", "show mlag interfaces"}, &mlag, &ifaces); err != nil {
		return snmppoller.MlagSnapshot{}, false, err
	}
	if mlag.State == "" || mlag.State == "disabled" {
		return snmppoller.MlagSnapshot{}, false, nil
	}

	var interfaces []store.MlagInterface
	for name, info := range ifaces.Interfaces {
		mlagID := 0
		fmt.Sscanf(strings.TrimPrefix(name, "Mlag"), "%d", &mlagID)
		interfaces = append(interfaces, store.MlagInterface{
			MlagID:         mlagID,
			LocalInterface: info.LocalInterface,
			Status:         info.LocalInterfaceStatus,
		})
	}

	return snmppoller.MlagSnapshot{
		DomainID:       mlag.DomainID,
		LocalRole:      strings.ToLower(mlag.LocalRole),
		PeerAddress:    mlag.PeerAddress,
		PeerLinkStatus: mlag.PeerLinkStatus,
		Interfaces:     interfaces,
	}, true, nil
}

func (c *Client) runCmds(ctx context.Context, d store.Device, cmds []string, out ...any) error {
	url := fmt.Sprintf("https://%s:443/command-api", d.IPAddress)
	body, err := json.Marshal(rpcRequest{
		Jsonrpc: "2.0",
		Method:  "runCmds",
		Params:  rpcParams{Version: 1, Cmds: cmds},
		ID:      "netmond-mlag",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(d.APIUsername, c.secrets.Decrypt(d.APIPassword))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var rpc rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		return fmt.Errorf("eapi: decode response: %w", err)
	}
	if rpc.Error != nil {
		return fmt.Errorf("eapi: %s", rpc.Error.Message)
	}
	if len(rpc.Result) < len(out) {
		return fmt.Errorf("eapi: expected %d results, got %d", len(out), len(rpc.Result))
	}
	for i, dst := range out {
		if err := json.Unmarshal(rpc.Result[i], dst); err != nil {
			return fmt.Errorf("eapi: decode result %d: %w", i, err)
		}
	}
	return nil
}
