// Package delivery sends replies through a provider-agnostic outbound
// HTTP gateway. One channel account maps to one credential; the account
// is the "from" half of the conversation key.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sandevgo/relaybot/internal/config"
	"github.com/sandevgo/relaybot/internal/core"
)

type HTTPDeliverer struct {
	client      *http.Client
	baseURL     string
	credentials map[string]string
}

func NewHTTPDeliverer(cfg *config.DeliveryConfig) *HTTPDeliverer {
	return &HTTPDeliverer{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:     cfg.BaseURL,
		credentials: cfg.Credentials,
	}
}

// Send posts one message to the gateway. It makes exactly one attempt:
// retrying an ambiguous failure could double-send, and the caller keeps
// the reply pending for an explicit resend instead.
func (d *HTTPDeliverer) Send(ctx context.Context, destination, text string) error {
	account, recipient, err := splitDestination(destination)
	if err != nil {
		return err
	}

	token, ok := d.credentials[account]
	if !ok {
		return fmt.Errorf("no credential for account %q: %w", account, core.ErrConfigurationMissing)
	}

	payload, err := json.Marshal(map[string]string{
		"from": account,
		"to":   recipient,
		"text": text,
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func splitDestination(destination string) (account, recipient string, err error) {
	idx := strings.Index(destination, "|")
	if idx <= 0 || idx == len(destination)-1 {
		return "", "", fmt.Errorf("malformed conversation key %q", destination)
	}
	return destination[:idx], destination[idx+1:], nil
}
