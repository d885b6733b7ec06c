// Package generation is the OpenRouter chat-completions client. It
// sends a rendered prompt as a single user message, requests a JSON
// object response, and retries transient upstream failures with
// exponential backoff before giving up.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/personacards/backend/internal/config"
	"github.com/personacards/backend/internal/fault"
	"github.com/personacards/backend/internal/pkg/httpx"
	"github.com/personacards/backend/internal/platform/logger"
)

const (
	chatCompletionsPath = "/chat/completions"
	baseBackoff         = 1 * time.Second
	maxRetryAfter       = 30 * time.Second
)

// Result is one successful completion. Attempts counts HTTP round
// trips, including the retries it took to get here.
type Result struct {
	Text     string
	Attempts int
}

// Client produces model text for a fully rendered prompt.
type Client interface {
	Complete(ctx context.Context, prompt string) (Result, error)
}

type OpenRouterClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	appTitle    string

	timeout     time.Duration
	maxAttempts int

	httpClient *http.Client
	log        *logger.Logger
}

func New(cfg config.GenerationConfig, log *logger.Logger) (*OpenRouterClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fault.New(fault.FatalConfig, "generation: base_url required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fault.New(fault.FatalConfig, "generation: model required")
	}

	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &OpenRouterClient{
		baseURL:     baseURL,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		appTitle:    cfg.AppTitle,
		timeout:     timeout,
		maxAttempts: attempts,
		httpClient:  &http.Client{Transport: tr},
		log:         log,
	}, nil
}

// NewWithHTTPClient is intended for tests; it avoids network access by
// using a custom RoundTripper.
func NewWithHTTPClient(cfg config.GenerationConfig, log *logger.Logger, httpClient *http.Client) (*OpenRouterClient, error) {
	c, err := New(cfg, log)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content,omitempty"`
		} `json:"message,omitempty"`
		Text string `json:"text,omitempty"`
	} `json:"choices"`
}

// Complete sends the prompt and returns sanitized completion text.
// Transient failures retry up to the configured attempt budget; an
// empty completion gets one extra same-prompt retry. Auth and other
// client errors fail immediately.
func (c *OpenRouterClient) Complete(ctx context.Context, prompt string) (Result, error) {
	if c.apiKey == "" {
		return Result{}, fault.New(fault.FatalConfig, "generation: OPENROUTER_API_KEY not set")
	}
	if strings.TrimSpace(prompt) == "" {
		return Result{}, fault.New(fault.FatalConfig, "generation: empty prompt")
	}

	attempts := 0
	emptyRetried := false
	var lastErr error

	for attempts < c.maxAttempts {
		attempts++

		text, err := c.do(ctx, prompt)
		if err == nil {
			clean := sanitizeJSONText(text)
			if clean != "" {
				return Result{Text: clean, Attempts: attempts}, nil
			}
			c.log.Warn("empty completion", "model", c.model, "attempt", attempts)
			if emptyRetried {
				return Result{}, fault.New(fault.FatalOutput, "generation: empty completion after retry (model=%s)", c.model)
			}
			emptyRetried = true
			continue
		}

		if kind := classify(err); kind == fault.FatalConfig {
			return Result{}, fault.Wrap(fault.FatalConfig, err)
		} else if kind != fault.Transient {
			return Result{}, fault.Wrap(kind, err)
		}

		lastErr = err
		if attempts >= c.maxAttempts {
			break
		}

		wait := backoff(attempts, err)
		c.log.Warn("transient upstream failure, retrying",
			"model", c.model, "attempt", attempts, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return Result{}, fault.Wrap(fault.FatalOutput, ctx.Err())
		case <-time.After(wait):
		}
	}

	if lastErr == nil {
		lastErr = errors.New("generation failed")
	}
	return Result{}, fault.New(fault.FatalOutput, "generation: retries exhausted after %d attempts: %v", attempts, lastErr)
}

func (c *OpenRouterClient) do(ctx context.Context, prompt string) (string, error) {
	reqBody := chatCompletionRequest{
		Model:          c.model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: map[string]any{"type": "json_object"},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return "", err
	}

	ctx2, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, "POST", c.baseURL+chatCompletionsPath, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.appTitle != "" {
		req.Header.Set("X-Title", c.appTitle)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return "", &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			RetryAfter: httpx.RetryAfter(resp, 0, maxRetryAfter),
		}
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return extractChatText(out), nil
}

func classify(err error) fault.Kind {
	var he *HTTPError
	if errors.As(err, &he) {
		switch {
		case he.StatusCode == http.StatusUnauthorized || he.StatusCode == http.StatusForbidden:
			return fault.FatalConfig
		case httpx.IsRetryableStatus(he.StatusCode):
			return fault.Transient
		case he.StatusCode >= 400 && he.StatusCode < 500:
			return fault.FatalConfig
		}
		return fault.Transient
	}
	if httpx.IsRetryable(err) {
		return fault.Transient
	}
	return fault.FatalOutput
}

func backoff(attempt int, err error) time.Duration {
	var he *HTTPError
	if errors.As(err, &he) && he.RetryAfter > 0 {
		return he.RetryAfter
	}
	wait := baseBackoff
	for i := 1; i < attempt; i++ {
		wait *= 2
	}
	return httpx.Jitter(wait)
}

func extractChatText(resp chatCompletionResponse) string {
	for _, ch := range resp.Choices {
		if strings.TrimSpace(ch.Message.Content) != "" {
			return ch.Message.Content
		}
		if strings.TrimSpace(ch.Text) != "" {
			return ch.Text
		}
	}
	return ""
}

func sanitizeJSONText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	firstNL := strings.IndexByte(s, '\n')
	if firstNL == -1 {
		return strings.TrimSpace(strings.Trim(s, "`"))
	}
	s = s[firstNL+1:]
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
