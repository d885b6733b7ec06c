// Package proxy is the browser-facing HTTP surface: it relays chat
// requests to OpenRouter so the API key stays server-side, and serves
// the generated card deck.
package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/personacards/backend/internal/config"
	"github.com/personacards/backend/internal/platform/logger"
	"github.com/personacards/backend/internal/store"
)

const chatCompletionsPath = "/chat/completions"

type Handler struct {
	cfg        config.Config
	log        *logger.Logger
	httpClient *http.Client
}

func NewHandler(cfg config.Config, log *logger.Logger, httpClient *http.Client) *Handler {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Handler{cfg: cfg, log: log, httpClient: httpClient}
}

type chatRequest struct {
	Model       string            `json:"model,omitempty"`
	Messages    []json.RawMessage `json:"messages"`
	Temperature *float64          `json:"temperature,omitempty"`
}

// Chat relays a chat request upstream with streaming enabled and pipes
// the SSE response through untouched.
func (h *Handler) Chat(c *gin.Context) {
	if h.cfg.Generation.APIKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "OPENROUTER_API_KEY not configured"})
		return
	}

	var in chatRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(in.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages is required"})
		return
	}

	model := strings.TrimSpace(in.Model)
	if model == "" {
		model = h.cfg.Generation.Model
	}

	upstream := map[string]any{
		"model":    model,
		"messages": in.Messages,
		"stream":   true,
	}
	if in.Temperature != nil {
		upstream["temperature"] = *in.Temperature
	}
	body, err := json.Marshal(upstream)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode upstream request"})
		return
	}

	url := strings.TrimRight(h.cfg.Generation.BaseURL, "/") + chatCompletionsPath
	req, err := http.NewRequestWithContext(c.Request.Context(), "POST", url, bytes.NewReader(body))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "build upstream request"})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.cfg.Generation.APIKey)
	req.Header.Set("Accept", "text/event-stream")
	if origin := c.GetHeader("Origin"); origin != "" {
		req.Header.Set("HTTP-Referer", origin)
	}
	if h.cfg.Generation.AppTitle != "" {
		req.Header.Set("X-Title", h.cfg.Generation.AppTitle)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.log.Error("upstream chat request failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unreachable"})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		h.log.Warn("upstream chat error", "status", resp.StatusCode)
		c.JSON(resp.StatusCode, gin.H{"error": "upstream error", "detail": string(raw)})
		return
	}

	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.Flush()

	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := c.Writer.Write(buf[:n]); writeErr != nil {
				return
			}
			c.Writer.Flush()
		}
		if readErr != nil {
			if readErr != io.EOF {
				h.log.Warn("upstream stream interrupted", "error", readErr)
			}
			return
		}
	}
}

// Health reports liveness and whether the upstream key is present,
// without ever echoing the key itself.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"api_key_configured": h.cfg.Generation.APIKey != "",
	})
}

// Cards serves the most recently generated card deck artifact.
func (h *Handler) Cards(c *gin.Context) {
	path := h.cfg.Pipeline.CardsOutputPath
	if _, err := os.Stat(path); os.IsNotExist(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no card deck generated yet"})
		return
	}
	doc, err := store.LoadDocument(path)
	if err != nil {
		h.log.Error("read card deck failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read card deck"})
		return
	}
	c.JSON(http.StatusOK, doc)
}
