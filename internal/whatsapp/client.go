// Package whatsapp sends messages through a gowa-compatible WhatsApp
// HTTP gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadcall_backend/platform/config"
	"leadcall_backend/platform/logger"
)

// Client talks to the WhatsApp gateway. A nil client (no gateway
// configured) silently refuses to send; the fallback chain moves on to
// the next channel.
type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	http     *http.Client
	log      *logger.Logger
}

type gowaRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// NewClient creates a gateway client, or nil when no URL is configured.
func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if !cfg.GetWhatsAppEnabled() {
		return nil
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.GetWhatsAppURL(), "/"),
		apiKey:   cfg.GetWhatsAppKey(),
		deviceID: cfg.GetWhatsAppDeviceID(),
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// Enabled reports whether the gateway is configured.
func (c *Client) Enabled() bool { return c != nil }

// SendMessage delivers one message to an E.164 phone number.
func (c *Client) SendMessage(ctx context.Context, phoneNumber, message string) error {
	if c == nil {
		return fmt.Errorf("whatsapp gateway not configured")
	}

	payload := gowaRequest{
		Phone:   strings.TrimPrefix(phoneNumber, "+"),
		Message: message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send/message", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(c.apiKey))
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("whatsapp message sent", "phone", payload.Phone)
	return nil
}

// formatAuthHeader accepts either a ready-made header value or a
// user:pass pair that needs basic-auth encoding.
func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(apiKey, "Basic ") || strings.HasPrefix(apiKey, "Bearer ") {
		return apiKey
	}
	if strings.Contains(apiKey, ":") {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(apiKey))
	}
	return "Bearer " + apiKey
}
