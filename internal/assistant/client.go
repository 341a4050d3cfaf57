// Package assistant talks to the procurement chat assistant webhook.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"axmed/internal/config"
	"axmed/internal/logger"
)

// FallbackReply is returned when the webhook answers without any text.
const FallbackReply = "Sorry, I could not process that request."

var ErrNotConfigured = errors.New("assistant webhook url is not configured")

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
	maxRetries int
}

type sendRequest struct {
	Action    string `json:"action"`
	SessionID string `json:"sessionId"`
	ChatInput string `json:"chatInput"`
}

type sendResponse struct {
	Output  string `json:"output"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.ChatTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.ChatRateLimitRPS),
		maxRetries: 5,
	}
}

// NewSessionID returns a fresh conversation id.
func NewSessionID() string {
	return "session_" + uuid.NewString()
}

// Send posts one user message and returns the assistant's reply.
func (c *Client) Send(ctx context.Context, sessionID, text string) (string, error) {
	if strings.TrimSpace(c.cfg.ChatWebhookURL) == "" {
		return "", ErrNotConfigured
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty message")
	}

	payload, err := json.Marshal(sendRequest{Action: "sendMessage", SessionID: sessionID, ChatInput: text})
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ChatWebhookURL, bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < c.maxRetries {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				logger.Warnf("assistant webhook status %d, retrying in %s", resp.StatusCode, backoff)
				if err := sleepCtx(ctx, backoff); err != nil {
					return "", err
				}
				lastErr = fmt.Errorf("assistant status %d", resp.StatusCode)
				continue
			}
			return "", fmt.Errorf("assistant webhook error: status=%d body=%s", resp.StatusCode, string(body))
		}

		return replyText(body), nil
	}

	if lastErr == nil {
		lastErr = errors.New("assistant request failed")
	}
	return "", lastErr
}

// replyText picks output, text or message from a JSON reply, in that order.
// A non-JSON body is used as is.
func replyText(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return FallbackReply
	}
	var resp sendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			return FallbackReply
		}
		return trimmed
	}
	for _, v := range []string{resp.Output, resp.Text, resp.Message} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return FallbackReply
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
