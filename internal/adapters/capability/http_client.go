package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reqflow/internal/domain"
	"reqflow/internal/logging"
	"reqflow/internal/ports"
)

// HTTPCapability invokes a remote text capability over a JSON POST endpoint.
// The analyzer and the generator are the same shape of service behind
// different URLs.
type HTTPCapability struct {
	client *http.Client
	name   string
	url    string
}

// Verify interface compliance at compile time
var _ ports.Capability = (*HTTPCapability)(nil)

// NewHTTPCapability creates a capability client for the given endpoint.
// A zero timeout defaults to 120 seconds.
func NewHTTPCapability(name, url string, timeout time.Duration) *HTTPCapability {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPCapability{
		client: &http.Client{Timeout: timeout},
		name:   name,
		url:    url,
	}
}

type invokeRequest struct {
	Input     string `json:"input"`
	SessionID string `json:"session_id"`
}

// Invoke implements ports.Capability.Invoke
func (c *HTTPCapability) Invoke(ctx context.Context, input, sessionID string) (string, error) {
	body, err := json.Marshal(invokeRequest{Input: input, SessionID: sessionID})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", c.classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %s: reading response: %v", domain.ErrCapabilityUnavailable, c.name, err)
	}

	logging.Logger.Debug("capability invoked",
		"capability", c.name,
		"session_id", sessionID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: %s returned status %d", domain.ErrCapabilityUnavailable, c.name, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: %s returned status %d: %s", domain.ErrMalformedResponse, c.name, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	text := extractText(raw)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s returned an empty response", domain.ErrMalformedResponse, c.name)
	}
	return text, nil
}

func (c *HTTPCapability) classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", domain.ErrCapabilityTimeout, c.name, err)
	}
	var urlTimeout interface{ Timeout() bool }
	if errors.As(err, &urlTimeout) && urlTimeout.Timeout() {
		return fmt.Errorf("%w: %s: %v", domain.ErrCapabilityTimeout, c.name, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrCapabilityUnavailable, c.name, err)
}

// extractText pulls the text payload out of the known response envelopes.
// Services answer with one of:
//
//	{"output": "..."}
//	{"text": "..."}
//	{"message": {"parts": [{"text": "..."}]}}
//
// Anything else is passed through verbatim so a plain-text endpoint still
// works.
func extractText(raw []byte) string {
	var envelope struct {
		Output  string `json:"output"`
		Text    string `json:"text"`
		Message struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"message"`
	}

	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Output != "" {
			return envelope.Output
		}
		if envelope.Text != "" {
			return envelope.Text
		}
		if len(envelope.Message.Parts) > 0 {
			var sb strings.Builder
			for _, part := range envelope.Message.Parts {
				sb.WriteString(part.Text)
			}
			if sb.Len() > 0 {
				return sb.String()
			}
		}
	}

	return string(raw)
}
