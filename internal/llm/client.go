package llm

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

	"device-research/internal/common/logger"
	"device-research/internal/common/metrics"
)

var (
	ErrLLMTimeout         = errors.New("LLM_TIMEOUT")
	ErrLLMSynthesisFailed = errors.New("LLM_SYNTHESIS_FAILED")
	ErrNotConfigured      = errors.New("completion API key not configured")
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CallSettings are the generation parameters of one call site.
type CallSettings struct {
	Temperature float64
	MaxTokens   int
}

type Request struct {
	// CallSite labels metrics and logs, e.g. "synthesis".
	CallSite string
	Messages []Message
	Settings CallSettings
}

// Completer turns role-tagged messages into generated text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Client talks to an OpenAI-compatible /v1/chat/completions endpoint.
type Client struct {
	config *Config
	client *http.Client
	logger logger.Logger
}

func NewClient(config *Config, log logger.Logger) *Client {
	return &Client{
		config: config,
		client: &http.Client{},
		logger: log.With(map[string]interface{}{
			"component": "completion",
			"model":     config.Model,
		}),
	}
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	text, err := c.complete(ctx, req)
	outcome := "ok"
	switch {
	case errors.Is(err, ErrLLMTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	metrics.CompletionRequests.WithLabelValues(req.CallSite, outcome).Inc()
	return text, err
}

func (c *Client) complete(ctx context.Context, req Request) (string, error) {
	if c.config.APIKey == "" {
		return "", ErrNotConfigured
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:       c.config.Model,
		Messages:    req.Messages,
		Temperature: req.Settings.Temperature,
		MaxTokens:   req.Settings.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMSynthesisFailed, err)
	}

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "/v1/chat/completions"

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ErrLLMTimeout
			}
		}

		text, retryable, err := c.send(ctx, endpoint, body)
		if err == nil {
			c.logger.Info("completion succeeded", map[string]interface{}{
				"callSite": req.CallSite,
				"attempt":  attempt + 1,
			})
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ErrLLMTimeout
		}
		if !retryable {
			break
		}
	}

	c.logger.Error("completion failed", map[string]interface{}{
		"callSite": req.CallSite,
		"error":    lastErr.Error(),
	})
	return "", fmt.Errorf("%w: %v", ErrLLMSynthesisFailed, lastErr)
}

// send performs one attempt. Rate limits, server errors and transport
// faults are retryable.
func (c *Client) send(ctx context.Context, endpoint string, body []byte) (string, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("decode error: %v", err)
	}
	if len(out.Choices) == 0 {
		return "", false, errors.New("no choices in response")
	}
	return out.Choices[0].Message.Content, false, nil
}
