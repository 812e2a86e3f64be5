package relay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// SignatureHeader carries the HMAC-SHA256 of the body when a secret is set:
// "sha256=<hex>".
const SignatureHeader = "X-Offerscout-Signature"

// WebhookSink POSTs every message as JSON to a fixed URL.
type WebhookSink struct {
	url    string
	secret string
	client *http.Client

	// delays are the waits before each attempt; the first is usually 0.
	delays []time.Duration
}

// NewWebhookSink creates a sink with three attempts (0s, 1s, 5s).
func NewWebhookSink(url, secret string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 5 * time.Second},
		delays: []time.Duration{0, time.Second, 5 * time.Second},
	}
}

func (w *WebhookSink) Name() string { return "webhook" }

// Deliver posts msg, retrying on failure until the attempts or ctx run out.
func (w *WebhookSink) Deliver(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("webhook: marshal message: %w", err)
	}

	var lastErr error
	for attempt, delay := range w.delays {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("webhook: %w (last error: %v)", ctx.Err(), lastErr)
			}
		}
		lastErr = w.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		slog.Debug("webhook delivery failed",
			"url", w.url,
			"store", msg.Store,
			"attempt", attempt+1,
			"error", lastErr,
		)
	}
	return lastErr
}

func (w *WebhookSink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Offerscout-Relay/1.0")
	if w.secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(w.secret, body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
