package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/CosmoTheDev/seatwatch/internal/availability"
)

// WebhookChannel posts the batch as JSON to a generic HTTP endpoint with
// optional HMAC-SHA256 signing.
//
// Config keys: url (required), secret (optional).
type WebhookChannel struct {
	base
	client *http.Client
}

// NewWebhook is the Webhook constructor.
func NewWebhook(batch availability.Batch, cfg ChannelConfig, env Env) Channel {
	return &WebhookChannel{
		base:   newBase("Webhook", batch, cfg, env),
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type webhookPayload struct {
	Type  string             `json:"type"`
	Facts availability.Batch `json:"facts"`
	TS    string             `json:"ts"`
}

func (w *WebhookChannel) Render(_ context.Context) (string, error) {
	if len(w.batch) == 0 {
		return "", nil
	}
	b, err := json.Marshal(webhookPayload{
		Type:  "seats_available",
		Facts: w.batch,
		TS:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	w.rendered = string(b)
	return w.rendered, nil
}

func (w *WebhookChannel) Send(ctx context.Context) error {
	if err := w.ready(); err != nil {
		return err
	}
	url := w.cfg["url"]
	if url == "" {
		return fmt.Errorf("webhook: url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte(w.rendered)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if secret := w.cfg["secret"]; secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(w.rendered))
		req.Header.Set("X-Seatwatch-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}
	resp, err := w.client.Do(req) // #nosec G107 -- URL is a user-configured webhook endpoint
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
