// Package webhook delivers completion notifications for finished
// evaluations, adapted from webhook/webhook.go's HMAC-signed event POST.
package webhook

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

// Event is the payload sent to a webhook endpoint when an evaluation
// finishes, successfully or not (§4.9[FULL]'s completion callback).
type Event struct {
	Type         string `json:"type"` // "evaluation.completed" | "evaluation.failed"
	EvaluationID string `json:"evaluation_id"`
	StartURL     string `json:"start_url"`
	Timestamp    int64  `json:"timestamp"`
	DurationMS   int64  `json:"duration_ms"`
	RecordCount  int    `json:"record_count"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

// Deliver sends a webhook event synchronously. The body is signed with
// HMAC-SHA256 when secret is non-empty.
func Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "DRWebEngine-Webhook/1.0")

	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		sig := hex.EncodeToString(mac.Sum(nil))
		req.Header.Set("X-DRWeb-Signature", "sha256="+sig)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync sends a webhook event in the background with up to 3
// retries, at 1s/5s/30s intervals.
func DeliverAsync(url, secret string, event *Event) {
	go func() {
		delays := []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}
		for attempt, delay := range delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := Deliver(ctx, url, secret, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", url,
					"event", event.Type,
					"evaluation_id", event.EvaluationID,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", url,
				"event", event.Type,
				"evaluation_id", event.EvaluationID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", url,
			"event", event.Type,
			"evaluation_id", event.EvaluationID,
		)
	}()
}
