package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nithins313/unbound2/pkg/identity"
)

// WebhookConfig contains configuration for the webhook notifier.
type WebhookConfig struct {
	// URL receives the JSON alert payload via POST.
	URL string

	// Timeout bounds the delivery attempt. Default: 10 seconds.
	Timeout time.Duration
}

// WebhookNotifier delivers approval alerts as a JSON POST.
type WebhookNotifier struct {
	config WebhookConfig
	client *http.Client
	logger *slog.Logger
}

// webhookPayload is the wire shape of one alert delivery.
type webhookPayload struct {
	Command     string           `json:"command"`
	IdentityID  string           `json:"identity_id"`
	ApprovalID  string           `json:"approval_id"`
	Admins      []identity.Admin `json:"admins"`
	RequestedAt time.Time        `json:"requested_at"`
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(config WebhookConfig) *WebhookNotifier {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: slog.Default().With("component", "notify.webhook"),
	}
}

// SendApprovalAlert posts the alert to the configured URL.
func (n *WebhookNotifier) SendApprovalAlert(ctx context.Context, admins []identity.Admin, alert Alert) error {
	payload := webhookPayload{
		Command:     alert.Command,
		IdentityID:  alert.IdentityID,
		ApprovalID:  alert.ApprovalID,
		Admins:      admins,
		RequestedAt: time.Now().UTC(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert delivery returned status %d", resp.StatusCode)
	}

	n.logger.Info("approval alert delivered",
		"approval_id", alert.ApprovalID,
		"status", resp.StatusCode,
	)
	return nil
}
