// Package callprovider is the gateway to the voice call provider. It
// places outbound calls, fetches call state for reconciliation, and
// parses inbound webhook payloads into a closed set of event variants.
package callprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"leadcall_backend/internal/leadstore"
	"leadcall_backend/platform/config"
	"leadcall_backend/platform/logger"
)

// Client talks to the provider's REST API. PlaceCall is rate limited;
// the provider rejects bursts above its concurrency cap.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	assistantID   string
	phoneNumberID string
	limiter       *rate.Limiter
	log           *logger.Logger
}

// NewClient creates a provider client from config.
func NewClient(cfg config.ProviderConfig, log *logger.Logger) *Client {
	timeout := cfg.GetProviderTimeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	callsPerSecond := cfg.GetProviderCallsPerSecond()
	if callsPerSecond <= 0 {
		callsPerSecond = 1
	}
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       cfg.GetProviderBaseURL(),
		apiKey:        cfg.GetProviderAPIKey(),
		assistantID:   cfg.GetProviderAssistantID(),
		phoneNumberID: cfg.GetProviderPhoneNumberID(),
		limiter:       rate.NewLimiter(rate.Limit(callsPerSecond), 1),
		log:           log,
	}
}

type placeCallRequest struct {
	AssistantID   string       `json:"assistantId"`
	PhoneNumberID string       `json:"phoneNumberId"`
	Customer      customerInfo `json:"customer"`
}

type customerInfo struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
}

type placeCallResponse struct {
	ID string `json:"id"`
}

// PlaceCall starts one outbound call and returns the provider call id.
// Timeouts and non-2xx responses surface as errors; the engine treats
// them as a synchronously failed attempt.
func (c *Client) PlaceCall(ctx context.Context, lead *leadstore.Lead) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(placeCallRequest{
		AssistantID:   c.assistantID,
		PhoneNumberID: c.phoneNumberID,
		Customer:      customerInfo{Number: lead.Phone, Name: lead.Name},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("place call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("place call: provider returned %d: %s", resp.StatusCode, string(msg))
	}

	var out placeCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("place call: decode response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("place call: provider returned no call id")
	}
	return out.ID, nil
}

// CallInfo is the provider-side view of one call, used by the
// reconciliation sweep.
type CallInfo struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	EndedReason string     `json:"endedReason"`
	StartedAt   *time.Time `json:"startedAt"`
	AnsweredAt  *time.Time `json:"answeredAt"`
	EndedAt     *time.Time `json:"endedAt"`
}

// Ended reports whether the provider considers the call finished.
func (c *CallInfo) Ended() bool {
	return c.Status == "ended" || c.EndedAt != nil
}

// GetCall fetches the current provider state of one call.
func (c *Client) GetCall(ctx context.Context, callID string) (*CallInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/call/"+callID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrCallNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("get call: provider returned %d", resp.StatusCode)
	}

	var info CallInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("get call: decode response: %w", err)
	}
	return &info, nil
}
