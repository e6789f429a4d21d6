// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grimm-is/netmond/internal/config"
	"github.com/grimm-is/netmond/internal/logging"
)

func TestSendWebhookGenericPayload(t *testing.T) {
	var called atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		var body WebhookEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "wan-p95", body.RuleName)
		require.NotEmpty(t, body.DeliveryID)
		require.Equal(t, body.DeliveryID, r.Header.Get("X-Delivery-Id"))
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	d := New(config.SMTPDefaults{}, logging.New(logging.DefaultConfig()))
	err := d.SendWebhook(context.Background(), ts.URL, WebhookEvent{
		RuleName: "wan-p95", Severity: "warning", Message: "p95 over threshold",
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, called.Load())
}

func TestSendWebhookSlackPayload(t *testing.T) {
	var captured map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	// The detection is URL-substring based, so a query string carrying the
	// marker routes through the slack payload shape while still hitting the
	// local test listener.
	d := New(config.SMTPDefaults{}, logging.New(logging.DefaultConfig()))
	err := d.SendWebhook(context.Background(), ts.URL+"?x=hooks.slack.com", WebhookEvent{RuleName: "cpu-high", Severity: "critical", Message: "cpu at 95%"})
	require.NoError(t, err)
	require.Contains(t, captured, "text")
}

func TestSendEmailUsesInjectedSender(t *testing.T) {
	var gotTo []string
	var gotAddr string
	d := New(config.SMTPDefaults{Host: "smtp.example.com", Port: 587, From: "alerts@example.com"}, logging.New(logging.DefaultConfig()))
	d.emailSender = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotTo = to
		return nil
	}

	err := d.SendEmail(context.Background(), "oncall@example.com", "[NetMon Alert] CRITICAL: cpu high", "<p>body</p>")
	require.NoError(t, err)
	require.Equal(t, "smtp.example.com:587", gotAddr)
	require.Equal(t, []string{"oncall@example.com"}, gotTo)
}

func TestSendEmailRequiresHost(t *testing.T) {
	d := New(config.SMTPDefaults{}, logging.New(logging.DefaultConfig()))
	err := d.SendEmail(context.Background(), "a@b.com", "sub", "body")
	require.Error(t, err)
}
