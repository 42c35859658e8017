package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WebhookSender delivers analysis summaries to a configured HTTP endpoint
type WebhookSender struct {
	url        string
	authToken  string
	httpClient *http.Client
}

// NewWebhookSender creates a new webhook sender. The auth token is
// optional; when set it is attached as a bearer token.
func NewWebhookSender(url, authToken string) (*WebhookSender, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook URL must be set")
	}

	return &WebhookSender{
		url:       url,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// URL returns the configured endpoint
func (w *WebhookSender) URL() string {
	return w.url
}

// Send posts one JSON payload to the endpoint and returns the response
// status code. Any non-2xx response is an error.
func (w *WebhookSender) Send(ctx context.Context, payload interface{}) (int, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if w.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+w.authToken)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		detail := strings.TrimSpace(string(body))
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return resp.StatusCode, fmt.Errorf("webhook endpoint error (status %d): %s", resp.StatusCode, detail)
	}

	return resp.StatusCode, nil
}
