// Package notify delivers user-facing alerts over an external SMS
// gateway. Only the insights tier holds the capability to use it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sender delivers one message to the configured recipient.
type Sender interface {
	Send(ctx context.Context, body string) error
}

// HTTPSender posts alerts to an SMS gateway endpoint.
type HTTPSender struct {
	endpoint  string
	recipient string
	http      *http.Client
}

// NewHTTPSender creates a sender for the given gateway.
func NewHTTPSender(endpoint, recipient string, timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSender{
		endpoint:  endpoint,
		recipient: recipient,
		http:      &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Send posts the message and surfaces gateway-reported failures as
// errors.
func (s *HTTPSender) Send(ctx context.Context, body string) error {
	payload, err := json.Marshal(sendRequest{To: s.recipient, Body: body})
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("alert gateway returned status %d", resp.StatusCode)
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("alert gateway refused message: %s", result.Error)
	}
	return nil
}
