// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package notification sends alert events to the email/webhook sinks named
// on an alert rule (§4.6). Every send is fire-and-forget from the caller's
// perspective: failures are logged, never returned up into rule evaluation.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/grimm-is/netmond/internal/config"
	"github.com/grimm-is/netmond/internal/logging"
)

// WebhookEvent is the JSON body posted to a rule's webhook sink. Its shape
// is the generic/ntfy payload; Slack and Discord sinks get a reshaped body
// instead (detected by URL, since a rule carries only a bare webhook URL).
type WebhookEvent struct {
	DeliveryID  string    `json:"delivery_id"`
	AlertID     int64     `json:"alert_id"`
	RuleName    string    `json:"rule_name"`
	RuleType    string    `json:"type"` // device, wan_aggregate, power_aggregate
	Severity    string    `json:"severity"`
	Message     string    `json:"message"`
	MetricValue float64   `json:"metric_value"`
	Threshold   float64   `json:"threshold"`
	Timestamp   time.Time `json:"timestamp"`
}

// Dispatcher sends alert notifications over HTTP webhooks and SMTP email.
type Dispatcher struct {
	smtp   config.SMTPDefaults
	logger *logging.Logger

	httpClient  *http.Client
	emailSender func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New builds a Dispatcher using smtp as the fallback mail server.
func New(smtp config.SMTPDefaults, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		smtp:        smtp,
		logger:      logger.WithComponent("notification"),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		emailSender: smtp.SendMail,
	}
}

// SendWebhook posts event to url, reshaping the payload for Slack and
// Discord's incoming-webhook formats and falling back to the raw event JSON
// for everything else (ntfy, generic receivers).
func (d *Dispatcher) SendWebhook(ctx context.Context, url string, event WebhookEvent) error {
	if url == "" {
		return fmt.Errorf("notification: empty webhook url")
	}
	if event.DeliveryID == "" {
		event.DeliveryID = uuid.New().String()
	}

	var payload any
	switch {
	case strings.Contains(url, "hooks.slack.com"):
		payload = map[string]string{"text": fmt.Sprintf("*%s* [%s]\n%s", event.RuleName, strings.ToUpper(event.Severity), event.Message)}
	case strings.Contains(url, "discord.com/api/webhooks"):
		payload = map[string]string{"content": fmt.Sprintf("**%s** [%s]\n%s", event.RuleName, strings.ToUpper(event.Severity), event.Message)}
	default:
		payload = event
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notification: marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", event.DeliveryID)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// SendEmail sends an HTML alert email to a single recipient using the
// process's configured SMTP server.
func (d *Dispatcher) SendEmail(ctx context.Context, to, subject, body string) error {
	if d.smtp.Host == "" {
		return fmt.Errorf("notification: no smtp host configured")
	}
	if to == "" {
		return fmt.Errorf("notification: empty recipient")
	}

	addr := fmt.Sprintf("%s:%d", d.smtp.Host, d.smtp.Port)
	var auth smtp.Auth
	if d.smtp.Username != "" {
		auth = smtp.PlainAuth("", d.smtp.Username, d.smtp.Password, d.smtp.Host)
	}

	from := d.smtp.From
	if from == "" {
		from = "netmond@localhost"
	}

	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"utf-8\"\r\n",
		from, to, subject)
	msg := []byte(headers + "\r\n" + body + "\r\n")

	return d.emailSender(addr, auth, from, []string{to}, msg)
}
