package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/prospect-pipeline/internal/pkg/httpretry"
)

// WebhookNotifier POSTs deployment notifications to a tenant-configured
// URL. Notification is best-effort downstream of a successful dispatch:
// callers log failures and move on.
type WebhookNotifier struct {
	client httpretry.HTTPDoer
}

// NewWebhookNotifier creates a notifier. A nil doer gets a retrying client
// with sane defaults.
func NewWebhookNotifier(doer httpretry.HTTPDoer) *WebhookNotifier {
	if doer == nil {
		doer = httpretry.NewRetryClient(nil, 3)
	}
	return &WebhookNotifier{client: doer}
}

// DeployedPayload is the webhook body for a deployed sequence.
type DeployedPayload struct {
	Event      string    `json:"event"`
	LeadID     string    `json:"lead_id"`
	TenantID   string    `json:"tenant_id"`
	SequenceID string    `json:"sequence_id"`
	DeployedAt time.Time `json:"deployed_at"`
}

// NotifyDeployed sends the deployment notification to url.
func (n *WebhookNotifier) NotifyDeployed(ctx context.Context, url string, p DeployedPayload) error {
	if url == "" {
		return nil
	}
	p.Event = "sequence.deployed"

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("delivery: marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("delivery: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery: webhook post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("delivery: webhook returned %d", resp.StatusCode)
	}
	return nil
}
