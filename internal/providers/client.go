package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"provider_gateway/internal/models"
)

const defaultUpstreamTimeout = 30 * time.Second

// protocolClient speaks the OpenAI-compatible chat-completion protocol that
// every supported backend exposes. Adapters own one and differ only in base
// URL and payload defaults.
type protocolClient struct {
	provider models.ProviderID
	baseURL  string
	timeout  time.Duration

	// syncClient bounds the whole call; streamClient must not, since a
	// streaming body legitimately stays open for minutes.
	syncClient   *http.Client
	streamClient *http.Client

	// defaults is merged into the payload before provider-specific fields.
	defaults map[string]any
}

func newProtocolClient(provider models.ProviderID, baseURL string, timeout time.Duration, defaults map[string]any) *protocolClient {
	if timeout <= 0 {
		timeout = defaultUpstreamTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &protocolClient{
		provider:     provider,
		baseURL:      baseURL,
		timeout:      timeout,
		syncClient:   &http.Client{Timeout: timeout, Transport: transport},
		streamClient: &http.Client{Transport: transport},
		defaults:     defaults,
	}
}

func (c *protocolClient) buildRequest(ctx context.Context, apiKey, model string, messages []ChatMessage, stream bool) (*http.Request, error) {
	payload := map[string]any{}
	for k, v := range c.defaults {
		payload[k] = v
	}
	payload["model"] = model
	payload["messages"] = messages
	payload["stream"] = stream

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	return req, nil
}

// complete performs a blocking completion call.
func (c *protocolClient) complete(ctx context.Context, apiKey, model string, messages []ChatMessage) (map[string]any, error) {
	req, err := c.buildRequest(ctx, apiKey, model, messages, false)
	if err != nil {
		return nil, err
	}

	resp, err := c.syncClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%s: %w", c.provider, ErrUpstreamTimeout)
		}
		return nil, &UpstreamError{Provider: c.provider, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%s: %w", c.provider, ErrUpstreamTimeout)
		}
		return nil, &UpstreamError{Provider: c.provider, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Message:    extractErrorMessage(respBody),
		}
	}

	var payload map[string]any
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, &UpstreamError{Provider: c.provider, Message: "invalid JSON in provider response"}
	}

	return payload, nil
}

// streamComplete opens a streaming completion. The caller owns the returned
// stream and must Close it; cancelling ctx also tears the connection down.
func (c *protocolClient) streamComplete(ctx context.Context, apiKey, model string, messages []ChatMessage) (*Stream, error) {
	req, err := c.buildRequest(ctx, apiKey, model, messages, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%s: %w", c.provider, ErrUpstreamTimeout)
		}
		return nil, &UpstreamError{Provider: c.provider, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &UpstreamError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Message:    extractErrorMessage(respBody),
		}
	}

	return NewStream(resp.Body), nil
}

// extractErrorMessage pulls the human-readable message out of an
// OpenAI-style error body, falling back to the raw body.
func extractErrorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}

	msg := string(bytes.TrimSpace(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
